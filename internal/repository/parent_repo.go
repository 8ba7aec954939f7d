package repository

import (
	"database/sql"
	"fmt"
	"time"

	"readingclash/internal/database"
	"readingclash/internal/models"
)

// ParentRepository handles database operations for parent accounts
type ParentRepository struct {
	db *database.DB
}

// NewParentRepository creates a new parent repository
func NewParentRepository(db *database.DB) *ParentRepository {
	return &ParentRepository{db: db}
}

const parentColumns = `id, email, password_hash, name, last_name, oauth_provider, oauth_subject,
	family_id, is_admin, created_at, updated_at`

func scanParent(row *sql.Row) (*models.Parent, error) {
	parent := &models.Parent{}
	err := row.Scan(
		&parent.ID,
		&parent.Email,
		&parent.PasswordHash,
		&parent.Name,
		&parent.LastName,
		&parent.OAuthProvider,
		&parent.OAuthSubject,
		&parent.FamilyID,
		&parent.IsAdmin,
		&parent.CreatedAt,
		&parent.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan parent: %w", err)
	}

	return parent, nil
}

// CreateParent creates a new parent account
func (r *ParentRepository) CreateParent(email, passwordHash, name, lastName string) (*models.Parent, error) {
	query := "INSERT INTO parents (email, password_hash, name, last_name) VALUES (?, ?, ?, ?)"
	parentID, err := r.db.ExecReturningID(query, email, passwordHash, name, lastName)
	if err != nil {
		return nil, fmt.Errorf("failed to create parent: %w", err)
	}

	return &models.Parent{
		ID:           parentID,
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		LastName:     lastName,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}, nil
}

// GetParentByID retrieves a parent by ID
func (r *ParentRepository) GetParentByID(parentID int64) (*models.Parent, error) {
	query := "SELECT " + parentColumns + " FROM parents WHERE id = ?"
	return scanParent(r.db.QueryRow(query, parentID))
}

// GetParentByEmail retrieves a parent by email
func (r *ParentRepository) GetParentByEmail(email string) (*models.Parent, error) {
	query := "SELECT " + parentColumns + " FROM parents WHERE email = ?"
	return scanParent(r.db.QueryRow(query, email))
}

// GetParentByOAuth retrieves a parent by OAuth identity
func (r *ParentRepository) GetParentByOAuth(provider, subject string) (*models.Parent, error) {
	query := "SELECT " + parentColumns + " FROM parents WHERE oauth_provider = ? AND oauth_subject = ?"
	return scanParent(r.db.QueryRow(query, provider, subject))
}

// LinkOAuthProvider attaches an OAuth identity to an existing parent
func (r *ParentRepository) LinkOAuthProvider(parentID int64, provider, subject string) error {
	query := "UPDATE parents SET oauth_provider = ?, oauth_subject = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?"
	if _, err := r.db.Exec(query, provider, subject, parentID); err != nil {
		return fmt.Errorf("failed to link oauth provider: %w", err)
	}
	return nil
}

// UpdatePassword changes a parent's password hash
func (r *ParentRepository) UpdatePassword(parentID int64, passwordHash string) error {
	query := "UPDATE parents SET password_hash = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?"
	if _, err := r.db.Exec(query, passwordHash, parentID); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// SetFamilyID attaches a parent to a family
func (r *ParentRepository) SetFamilyID(parentID int64, familyID string) error {
	query := "UPDATE parents SET family_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?"
	if _, err := r.db.Exec(query, familyID, parentID); err != nil {
		return fmt.Errorf("failed to set parent family: %w", err)
	}
	return nil
}

// AddSchool records a school on the parent's school set. Re-adding an
// existing school is a no-op.
func (r *ParentRepository) AddSchool(parentID, schoolID int64) error {
	query := "INSERT INTO parent_schools (parent_id, school_id) VALUES (?, ?) " +
		r.db.Dialect.InsertIgnoreClause("parent_id, school_id")
	if _, err := r.db.Exec(query, parentID, schoolID); err != nil {
		return fmt.Errorf("failed to add parent school: %w", err)
	}
	return nil
}

// GetSchoolIDs returns the distinct school IDs associated with a parent
func (r *ParentRepository) GetSchoolIDs(parentID int64) ([]int64, error) {
	query := "SELECT school_id FROM parent_schools WHERE parent_id = ? ORDER BY school_id ASC"
	rows, err := r.db.Query(query, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query parent schools: %w", err)
	}
	defer rows.Close()

	var schoolIDs []int64
	for rows.Next() {
		var schoolID int64
		if err := rows.Scan(&schoolID); err != nil {
			return nil, fmt.Errorf("failed to scan parent school: %w", err)
		}
		schoolIDs = append(schoolIDs, schoolID)
	}

	return schoolIDs, nil
}

// GetLinkedStudentIDs returns the student IDs linked to a parent, oldest first
func (r *ParentRepository) GetLinkedStudentIDs(parentID int64) ([]int64, error) {
	query := "SELECT student_id FROM student_parents WHERE parent_id = ? ORDER BY linked_at ASC, id ASC"
	rows, err := r.db.Query(query, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query linked students: %w", err)
	}
	defer rows.Close()

	var studentIDs []int64
	for rows.Next() {
		var studentID int64
		if err := rows.Scan(&studentID); err != nil {
			return nil, fmt.Errorf("failed to scan linked student: %w", err)
		}
		studentIDs = append(studentIDs, studentID)
	}

	return studentIDs, nil
}

// GetAllParents retrieves all parent accounts
func (r *ParentRepository) GetAllParents() ([]models.Parent, error) {
	query := "SELECT " + parentColumns + " FROM parents ORDER BY id ASC"
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query parents: %w", err)
	}
	defer rows.Close()

	var parents []models.Parent
	for rows.Next() {
		var parent models.Parent
		if err := rows.Scan(
			&parent.ID,
			&parent.Email,
			&parent.PasswordHash,
			&parent.Name,
			&parent.LastName,
			&parent.OAuthProvider,
			&parent.OAuthSubject,
			&parent.FamilyID,
			&parent.IsAdmin,
			&parent.CreatedAt,
			&parent.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan parent: %w", err)
		}
		parents = append(parents, parent)
	}

	return parents, nil
}

// CreateSession creates a new parent session
func (r *ParentRepository) CreateSession(sessionID string, parentID int64, expiresAt time.Time) (*models.Session, error) {
	query := "INSERT INTO parent_sessions (id, parent_id, expires_at) VALUES (?, ?, ?)"
	if _, err := r.db.Exec(query, sessionID, parentID, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &models.Session{
		ID:        sessionID,
		ParentID:  parentID,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}, nil
}

// GetSession retrieves a parent session by ID
func (r *ParentRepository) GetSession(sessionID string) (*models.Session, error) {
	query := "SELECT id, parent_id, expires_at, created_at FROM parent_sessions WHERE id = ?"
	session := &models.Session{}
	err := r.db.QueryRow(query, sessionID).Scan(
		&session.ID,
		&session.ParentID,
		&session.ExpiresAt,
		&session.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// DeleteSession removes a parent session
func (r *ParentRepository) DeleteSession(sessionID string) error {
	query := "DELETE FROM parent_sessions WHERE id = ?"
	if _, err := r.db.Exec(query, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes expired parent sessions
func (r *ParentRepository) DeleteExpiredSessions() error {
	query := "DELETE FROM parent_sessions WHERE expires_at < ?"
	if _, err := r.db.Exec(query, time.Now()); err != nil {
		return fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return nil
}

// CreatePasswordResetToken stores a password reset token
func (r *ParentRepository) CreatePasswordResetToken(token string, parentID int64, expiresAt time.Time) error {
	query := "INSERT INTO password_reset_tokens (token, parent_id, expires_at) VALUES (?, ?, ?)"
	if _, err := r.db.Exec(query, token, parentID, expiresAt); err != nil {
		return fmt.Errorf("failed to create reset token: %w", err)
	}
	return nil
}

// GetPasswordResetToken retrieves a password reset token
func (r *ParentRepository) GetPasswordResetToken(token string) (*models.PasswordResetToken, error) {
	query := "SELECT token, parent_id, expires_at, used, created_at FROM password_reset_tokens WHERE token = ?"
	reset := &models.PasswordResetToken{}
	err := r.db.QueryRow(query, token).Scan(
		&reset.Token,
		&reset.ParentID,
		&reset.ExpiresAt,
		&reset.Used,
		&reset.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reset token: %w", err)
	}

	return reset, nil
}

// MarkPasswordResetTokenAsUsed flags a token so it cannot be replayed
func (r *ParentRepository) MarkPasswordResetTokenAsUsed(token string) error {
	query := "UPDATE password_reset_tokens SET used = ? WHERE token = ?"
	if _, err := r.db.Exec(query, true, token); err != nil {
		return fmt.Errorf("failed to mark reset token as used: %w", err)
	}
	return nil
}

// DeleteParentPasswordResetTokens removes all reset tokens for one parent
func (r *ParentRepository) DeleteParentPasswordResetTokens(parentID int64) error {
	query := "DELETE FROM password_reset_tokens WHERE parent_id = ?"
	if _, err := r.db.Exec(query, parentID); err != nil {
		return fmt.Errorf("failed to delete reset tokens: %w", err)
	}
	return nil
}

// DeleteExpiredPasswordResetTokens removes expired reset tokens
func (r *ParentRepository) DeleteExpiredPasswordResetTokens() error {
	query := "DELETE FROM password_reset_tokens WHERE expires_at < ?"
	if _, err := r.db.Exec(query, time.Now()); err != nil {
		return fmt.Errorf("failed to delete expired reset tokens: %w", err)
	}
	return nil
}
