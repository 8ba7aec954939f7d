package repository

import (
	"database/sql"
	"fmt"
	"time"

	"readingclash/internal/database"
	"readingclash/internal/models"
)

// SchoolRepository handles database operations for entities and schools
type SchoolRepository struct {
	db *database.DB
}

// NewSchoolRepository creates a new school repository
func NewSchoolRepository(db *database.DB) *SchoolRepository {
	return &SchoolRepository{db: db}
}

// CreateEntity creates a new top-level entity
func (r *SchoolRepository) CreateEntity(name, code string) (*models.Entity, error) {
	query := "INSERT INTO entities (name, code) VALUES (?, ?)"
	entityID, err := r.db.ExecReturningID(query, name, code)
	if err != nil {
		return nil, fmt.Errorf("failed to create entity: %w", err)
	}

	return &models.Entity{
		ID:        entityID,
		Name:      name,
		Code:      code,
		CreatedAt: time.Now(),
	}, nil
}

// CreateSchool creates a new school under an entity
func (r *SchoolRepository) CreateSchool(entityID int64, name, signInCode string) (*models.School, error) {
	query := "INSERT INTO schools (entity_id, name, sign_in_code) VALUES (?, ?, ?)"
	schoolID, err := r.db.ExecReturningID(query, entityID, name, signInCode)
	if err != nil {
		return nil, fmt.Errorf("failed to create school: %w", err)
	}

	return &models.School{
		ID:         schoolID,
		EntityID:   entityID,
		Name:       name,
		SignInCode: signInCode,
		CreatedAt:  time.Now(),
	}, nil
}

// GetSchoolByID retrieves a school by ID
func (r *SchoolRepository) GetSchoolByID(schoolID int64) (*models.School, error) {
	query := "SELECT id, entity_id, name, sign_in_code, created_at FROM schools WHERE id = ?"
	school := &models.School{}
	err := r.db.QueryRow(query, schoolID).Scan(
		&school.ID,
		&school.EntityID,
		&school.Name,
		&school.SignInCode,
		&school.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get school: %w", err)
	}

	return school, nil
}

// GetSchoolBySignInCode retrieves a school by its sign-in code
func (r *SchoolRepository) GetSchoolBySignInCode(signInCode string) (*models.School, error) {
	query := "SELECT id, entity_id, name, sign_in_code, created_at FROM schools WHERE sign_in_code = ?"
	school := &models.School{}
	err := r.db.QueryRow(query, signInCode).Scan(
		&school.ID,
		&school.EntityID,
		&school.Name,
		&school.SignInCode,
		&school.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get school by sign-in code: %w", err)
	}

	return school, nil
}

// GetEntityByID retrieves an entity by ID
func (r *SchoolRepository) GetEntityByID(entityID int64) (*models.Entity, error) {
	query := "SELECT id, name, code, created_at FROM entities WHERE id = ?"
	entity := &models.Entity{}
	err := r.db.QueryRow(query, entityID).Scan(
		&entity.ID,
		&entity.Name,
		&entity.Code,
		&entity.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}

	return entity, nil
}
