package repository

import (
	"database/sql"
	"fmt"
	"time"

	"readingclash/internal/database"
	"readingclash/internal/models"
)

// FamilyRepository handles database operations for families
type FamilyRepository struct {
	db *database.DB
}

// NewFamilyRepository creates a new family repository
func NewFamilyRepository(db *database.DB) *FamilyRepository {
	return &FamilyRepository{db: db}
}

// CreateFamily writes a new family aggregate with its first parent
func (r *FamilyRepository) CreateFamily(familyID, familyName string, parentID int64) (*models.Family, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := "INSERT INTO families (id, family_name) VALUES (?, ?)"
	if _, err := tx.Exec(query, familyID, familyName); err != nil {
		return nil, fmt.Errorf("failed to create family: %w", err)
	}

	query = "INSERT INTO family_parents (family_id, parent_id) VALUES (?, ?)"
	if _, err := tx.Exec(query, familyID, parentID); err != nil {
		return nil, fmt.Errorf("failed to add founding parent: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &models.Family{
		ID:         familyID,
		FamilyName: familyName,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}, nil
}

// GetFamilyByID retrieves a family by ID
func (r *FamilyRepository) GetFamilyByID(familyID string) (*models.Family, error) {
	query := "SELECT id, family_name, created_at, updated_at FROM families WHERE id = ?"
	family := &models.Family{}
	err := r.db.QueryRow(query, familyID).Scan(
		&family.ID,
		&family.FamilyName,
		&family.CreatedAt,
		&family.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family: %w", err)
	}

	return family, nil
}

// GetFamilyByStudentID resolves the family a student belongs to via the
// indexed students.family_id column
func (r *FamilyRepository) GetFamilyByStudentID(studentID int64) (*models.Family, error) {
	query := `
		SELECT f.id, f.family_name, f.created_at, f.updated_at
		FROM families f
		INNER JOIN students s ON s.family_id = f.id
		WHERE s.id = ?
	`
	family := &models.Family{}
	err := r.db.QueryRow(query, studentID).Scan(
		&family.ID,
		&family.FamilyName,
		&family.CreatedAt,
		&family.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get family by student: %w", err)
	}

	return family, nil
}

// CountParents counts the parent members of a family
func (r *FamilyRepository) CountParents(familyID string) (int, error) {
	var count int
	query := "SELECT COUNT(*) FROM family_parents WHERE family_id = ?"
	if err := r.db.QueryRow(query, familyID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count family parents: %w", err)
	}
	return count, nil
}

// IsParentMember checks whether a parent already belongs to a family
func (r *FamilyRepository) IsParentMember(familyID string, parentID int64) (bool, error) {
	var count int
	query := "SELECT COUNT(*) FROM family_parents WHERE family_id = ? AND parent_id = ?"
	if err := r.db.QueryRow(query, familyID, parentID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check family membership: %w", err)
	}
	return count > 0, nil
}

// AddParent appends a parent to a family. The parent cap and the append
// are one conditional insert; returns false when the family is already
// at capacity or missing.
func (r *FamilyRepository) AddParent(familyID string, parentID int64) (bool, error) {
	query := `INSERT INTO family_parents (family_id, parent_id)
		SELECT f.id, ? FROM families f
		WHERE f.id = ?
		AND (SELECT COUNT(*) FROM family_parents fp WHERE fp.family_id = f.id) < ?`
	result, err := r.db.Exec(query, parentID, familyID, models.MaxFamilyParents)
	if err != nil {
		return false, fmt.Errorf("failed to add family parent: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check add result: %w", err)
	}
	return affected == 1, nil
}

// GetParentIDs returns the parent IDs of a family in join order
func (r *FamilyRepository) GetParentIDs(familyID string) ([]int64, error) {
	query := "SELECT parent_id FROM family_parents WHERE family_id = ? ORDER BY joined_at ASC, id ASC"
	rows, err := r.db.Query(query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query family parents: %w", err)
	}
	defer rows.Close()

	var parentIDs []int64
	for rows.Next() {
		var parentID int64
		if err := rows.Scan(&parentID); err != nil {
			return nil, fmt.Errorf("failed to scan family parent: %w", err)
		}
		parentIDs = append(parentIDs, parentID)
	}

	return parentIDs, nil
}

// AddStudent appends a student summary to the family's ordered student list
func (r *FamilyRepository) AddStudent(familyID string, summary models.StudentSummary, position int) error {
	query := `INSERT INTO family_students
		(family_id, student_id, student_name, school_name, entity_id, school_id, grade, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.Exec(query, familyID, summary.StudentID, summary.StudentName,
		summary.SchoolName, summary.EntityID, summary.SchoolID, summary.Grade, position)
	if err != nil {
		return fmt.Errorf("failed to add family student: %w", err)
	}
	return nil
}

// GetLinkedStudents returns the family's student entries in list order
func (r *FamilyRepository) GetLinkedStudents(familyID string) ([]models.LinkedStudent, error) {
	query := `
		SELECT student_id, student_name, school_name, entity_id, school_id, grade, position
		FROM family_students
		WHERE family_id = ?
		ORDER BY position ASC, id ASC
	`
	rows, err := r.db.Query(query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query family students: %w", err)
	}
	defer rows.Close()

	var students []models.LinkedStudent
	for rows.Next() {
		var student models.LinkedStudent
		if err := rows.Scan(
			&student.StudentID,
			&student.StudentName,
			&student.SchoolName,
			&student.EntityID,
			&student.SchoolID,
			&student.Grade,
			&student.Position,
		); err != nil {
			return nil, fmt.Errorf("failed to scan family student: %w", err)
		}
		students = append(students, student)
	}

	return students, nil
}

// GetAllFamilies retrieves all families
func (r *FamilyRepository) GetAllFamilies() ([]models.Family, error) {
	query := "SELECT id, family_name, created_at, updated_at FROM families ORDER BY created_at ASC"
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query families: %w", err)
	}
	defer rows.Close()

	var families []models.Family
	for rows.Next() {
		var family models.Family
		if err := rows.Scan(&family.ID, &family.FamilyName, &family.CreatedAt, &family.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan family: %w", err)
		}
		families = append(families, family)
	}

	return families, nil
}
