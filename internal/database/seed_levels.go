package database

import (
	"fmt"
	"log"
)

// levelSeed mirrors the reading-level tiers used by the habits engine.
// Seeded into the database so reporting queries can join against them.
type levelSeed struct {
	code       string
	title      string
	minMinutes int
	maxMinutes int // -1 means unbounded
}

var levelSeeds = []levelSeed{
	{code: "faithful_flame", title: "Faithful Flame", minMinutes: 0, maxMinutes: 20},
	{code: "bright_beacon", title: "Bright Beacon", minMinutes: 21, maxMinutes: 35},
	{code: "radiant_reader", title: "Radiant Reader", minMinutes: 36, maxMinutes: 50},
	{code: "luminous_legend", title: "Luminous Legend", minMinutes: 51, maxMinutes: -1},
}

// SeedReadingLevels populates the reading_levels table on first run
func (db *DB) SeedReadingLevels() error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM reading_levels").Scan(&count); err != nil {
		return fmt.Errorf("failed to check reading levels count: %w", err)
	}

	if count > 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := "INSERT INTO reading_levels (code, title, min_daily_minutes, max_daily_minutes, position) VALUES (?, ?, ?, ?, ?)"
	for i, seed := range levelSeeds {
		var max interface{}
		if seed.maxMinutes >= 0 {
			max = seed.maxMinutes
		}
		if _, err := tx.Exec(query, seed.code, seed.title, seed.minMinutes, max, i); err != nil {
			return fmt.Errorf("failed to seed level %s: %w", seed.code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Printf("Reading levels seeded (%d tiers)", len(levelSeeds))
	return nil
}
