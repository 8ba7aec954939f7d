package repository

import (
	"database/sql"
	"fmt"
	"time"

	"readingclash/internal/database"
	"readingclash/internal/models"
)

// StudentRepository handles database operations for students
type StudentRepository struct {
	db *database.DB
}

// NewStudentRepository creates a new student repository
func NewStudentRepository(db *database.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `id, entity_id, school_id, first_name, last_initial, grade, sign_in_code,
	family_id, parent_invite_code, allow_parent_access, parent_linking_enabled,
	max_linked_parents, created_at, updated_at`

func scanStudent(row *sql.Row) (*models.Student, error) {
	student := &models.Student{}
	err := row.Scan(
		&student.ID,
		&student.EntityID,
		&student.SchoolID,
		&student.FirstName,
		&student.LastInitial,
		&student.Grade,
		&student.SignInCode,
		&student.FamilyID,
		&student.ParentInviteCode,
		&student.AllowParentAccess,
		&student.ParentLinkingEnabled,
		&student.MaxLinkedParents,
		&student.CreatedAt,
		&student.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan student: %w", err)
	}

	return student, nil
}

// CreateStudent creates a new student record
func (r *StudentRepository) CreateStudent(entityID, schoolID int64, firstName, lastInitial string, grade int, signInCode string) (*models.Student, error) {
	query := `INSERT INTO students (entity_id, school_id, first_name, last_initial, grade, sign_in_code)
		VALUES (?, ?, ?, ?, ?, ?)`
	studentID, err := r.db.ExecReturningID(query, entityID, schoolID, firstName, lastInitial, grade, signInCode)
	if err != nil {
		return nil, fmt.Errorf("failed to create student: %w", err)
	}

	return &models.Student{
		ID:               studentID,
		EntityID:         entityID,
		SchoolID:         schoolID,
		FirstName:        firstName,
		LastInitial:      lastInitial,
		Grade:            grade,
		SignInCode:       signInCode,
		MaxLinkedParents: 2,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}, nil
}

// GetStudentByID retrieves a student by ID
func (r *StudentRepository) GetStudentByID(studentID int64) (*models.Student, error) {
	query := "SELECT " + studentColumns + " FROM students WHERE id = ?"
	return scanStudent(r.db.QueryRow(query, studentID))
}

// GetStudentBySignInCode retrieves a student by sign-in code
func (r *StudentRepository) GetStudentBySignInCode(signInCode string) (*models.Student, error) {
	query := "SELECT " + studentColumns + " FROM students WHERE sign_in_code = ?"
	return scanStudent(r.db.QueryRow(query, signInCode))
}

// GetStudentByInviteCode retrieves the student owning a parent invite
// code via the unique index on parent_invite_code
func (r *StudentRepository) GetStudentByInviteCode(code string) (*models.Student, error) {
	query := "SELECT " + studentColumns + " FROM students WHERE parent_invite_code = ?"
	return scanStudent(r.db.QueryRow(query, code))
}

// SetInviteCode stores a freshly minted invite code and opens parent
// linking. A no-op when a code is already present, so an existing code
// and its links are never clobbered.
func (r *StudentRepository) SetInviteCode(studentID int64, code string) (bool, error) {
	query := `UPDATE students
		SET parent_invite_code = ?, allow_parent_access = ?, parent_linking_enabled = ?,
			max_linked_parents = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND parent_invite_code IS NULL`
	result, err := r.db.Exec(query, code, true, true, 2, studentID)
	if err != nil {
		return false, fmt.Errorf("failed to set invite code: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check invite code update: %w", err)
	}
	return affected == 1, nil
}

// CountLinkedParents counts how many parent accounts are linked to a student
func (r *StudentRepository) CountLinkedParents(studentID int64) (int, error) {
	var count int
	query := "SELECT COUNT(*) FROM student_parents WHERE student_id = ?"
	if err := r.db.QueryRow(query, studentID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count linked parents: %w", err)
	}
	return count, nil
}

// LinkParent appends a parent to a student's linked parents. The capacity
// check and the append are a single conditional insert so two racing
// parents cannot both take the last slot. Returns false when the student
// is missing or already at capacity.
func (r *StudentRepository) LinkParent(studentID, parentID int64) (bool, error) {
	query := `INSERT INTO student_parents (student_id, parent_id)
		SELECT s.id, ? FROM students s
		WHERE s.id = ?
		AND (SELECT COUNT(*) FROM student_parents sp WHERE sp.student_id = s.id) < s.max_linked_parents`
	result, err := r.db.Exec(query, parentID, studentID)
	if err != nil {
		return false, fmt.Errorf("failed to link parent: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check link result: %w", err)
	}
	return affected == 1, nil
}

// IsParentLinked checks whether a parent is already linked to a student
func (r *StudentRepository) IsParentLinked(studentID, parentID int64) (bool, error) {
	var count int
	query := "SELECT COUNT(*) FROM student_parents WHERE student_id = ? AND parent_id = ?"
	if err := r.db.QueryRow(query, studentID, parentID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check parent link: %w", err)
	}
	return count > 0, nil
}

// GetLinkedParentIDs returns the parent IDs linked to a student, oldest first
func (r *StudentRepository) GetLinkedParentIDs(studentID int64) ([]int64, error) {
	query := "SELECT parent_id FROM student_parents WHERE student_id = ? ORDER BY linked_at ASC, id ASC"
	rows, err := r.db.Query(query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query linked parents: %w", err)
	}
	defer rows.Close()

	var parentIDs []int64
	for rows.Next() {
		var parentID int64
		if err := rows.Scan(&parentID); err != nil {
			return nil, fmt.Errorf("failed to scan linked parent: %w", err)
		}
		parentIDs = append(parentIDs, parentID)
	}

	return parentIDs, nil
}

// SetFamilyID attaches a student to a family
func (r *StudentRepository) SetFamilyID(studentID int64, familyID string) error {
	query := "UPDATE students SET family_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?"
	if _, err := r.db.Exec(query, familyID, studentID); err != nil {
		return fmt.Errorf("failed to set student family: %w", err)
	}
	return nil
}

// GetAllStudents retrieves all students across all schools
func (r *StudentRepository) GetAllStudents() ([]models.Student, error) {
	query := "SELECT " + studentColumns + " FROM students ORDER BY id ASC"
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query students: %w", err)
	}
	defer rows.Close()

	var students []models.Student
	for rows.Next() {
		var student models.Student
		if err := rows.Scan(
			&student.ID,
			&student.EntityID,
			&student.SchoolID,
			&student.FirstName,
			&student.LastInitial,
			&student.Grade,
			&student.SignInCode,
			&student.FamilyID,
			&student.ParentInviteCode,
			&student.AllowParentAccess,
			&student.ParentLinkingEnabled,
			&student.MaxLinkedParents,
			&student.CreatedAt,
			&student.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, student)
	}

	return students, nil
}

// CreateStudentSession creates a new session for a student
func (r *StudentRepository) CreateStudentSession(sessionID string, studentID int64, expiresAt time.Time) error {
	query := "INSERT INTO student_sessions (id, student_id, expires_at) VALUES (?, ?, ?)"
	if _, err := r.db.Exec(query, sessionID, studentID, expiresAt); err != nil {
		return fmt.Errorf("failed to create student session: %w", err)
	}
	return nil
}

// GetStudentSession retrieves a student session by ID
func (r *StudentRepository) GetStudentSession(sessionID string) (*models.StudentSession, error) {
	query := "SELECT id, student_id, expires_at, created_at FROM student_sessions WHERE id = ?"
	session := &models.StudentSession{}
	err := r.db.QueryRow(query, sessionID).Scan(
		&session.ID,
		&session.StudentID,
		&session.ExpiresAt,
		&session.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get student session: %w", err)
	}

	return session, nil
}

// DeleteStudentSession removes a student session
func (r *StudentRepository) DeleteStudentSession(sessionID string) error {
	query := "DELETE FROM student_sessions WHERE id = ?"
	if _, err := r.db.Exec(query, sessionID); err != nil {
		return fmt.Errorf("failed to delete student session: %w", err)
	}
	return nil
}

// DeleteExpiredStudentSessions removes expired student sessions
func (r *StudentRepository) DeleteExpiredStudentSessions() error {
	query := "DELETE FROM student_sessions WHERE expires_at < ?"
	if _, err := r.db.Exec(query, time.Now()); err != nil {
		return fmt.Errorf("failed to delete expired student sessions: %w", err)
	}
	return nil
}
