package service

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"readingclash/internal/database"
)

// BackupData represents the complete database backup structure
type BackupData struct {
	Version         string                `json:"version"`
	ExportedAt      time.Time             `json:"exported_at"`
	DatabaseType    string                `json:"database_type"`
	Entities        []EntityBackup        `json:"entities"`
	Schools         []SchoolBackup        `json:"schools"`
	Parents         []ParentBackup        `json:"parents"`
	Students        []StudentBackup       `json:"students"`
	Families        []FamilyBackup        `json:"families"`
	ReadingSessions []ReadingSessionBackup `json:"reading_sessions"`
	LevelStates     []LevelStateBackup    `json:"level_states"`
}

// EntityBackup represents a tenant entity record for backup
type EntityBackup struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

// SchoolBackup represents a school record for backup
type SchoolBackup struct {
	ID         int64     `json:"id"`
	EntityID   int64     `json:"entity_id"`
	Name       string    `json:"name"`
	SignInCode string    `json:"sign_in_code"`
	CreatedAt  time.Time `json:"created_at"`
}

// ParentBackup represents a parent record for backup
type ParentBackup struct {
	ID            int64     `json:"id"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"password_hash"`
	Name          string    `json:"name"`
	LastName      string    `json:"last_name"`
	OAuthProvider string    `json:"oauth_provider"`
	OAuthSubject  string    `json:"oauth_subject"`
	FamilyID      *string   `json:"family_id"`
	IsAdmin       bool      `json:"is_admin"`
	SchoolIDs     []int64   `json:"school_ids"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// StudentBackup represents a student record for backup
type StudentBackup struct {
	ID                   int64   `json:"id"`
	EntityID             int64   `json:"entity_id"`
	SchoolID             int64   `json:"school_id"`
	FirstName            string  `json:"first_name"`
	LastInitial          string  `json:"last_initial"`
	Grade                int     `json:"grade"`
	SignInCode           string  `json:"sign_in_code"`
	FamilyID             *string `json:"family_id"`
	ParentInviteCode     *string `json:"parent_invite_code"`
	AllowParentAccess    bool    `json:"allow_parent_access"`
	ParentLinkingEnabled bool    `json:"parent_linking_enabled"`
	MaxLinkedParents     int     `json:"max_linked_parents"`
	LinkedParentIDs      []int64 `json:"linked_parent_ids"`
}

// FamilyBackup represents a family aggregate for backup
type FamilyBackup struct {
	ID         string                `json:"id"`
	FamilyName string                `json:"family_name"`
	ParentIDs  []int64               `json:"parent_ids"`
	Students   []FamilyStudentBackup `json:"students"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// FamilyStudentBackup represents one family student entry
type FamilyStudentBackup struct {
	StudentID   int64  `json:"student_id"`
	StudentName string `json:"student_name"`
	SchoolName  string `json:"school_name"`
	EntityID    int64  `json:"entity_id"`
	SchoolID    int64  `json:"school_id"`
	Grade       int    `json:"grade"`
	Position    int    `json:"position"`
}

// ReadingSessionBackup represents a reading session for backup
type ReadingSessionBackup struct {
	ID              int64  `json:"id"`
	StudentID       int64  `json:"student_id"`
	SessionDate     string `json:"session_date"`
	DurationMinutes int    `json:"duration_minutes"`
	Completed       bool   `json:"completed"`
}

// LevelStateBackup represents a student's level state for backup
type LevelStateBackup struct {
	StudentID          int64  `json:"student_id"`
	CurrentLevel       string `json:"current_level"`
	DaysAtCurrentLevel int    `json:"days_at_current_level"`
	DaysBelowThreshold int    `json:"days_below_threshold"`
	LastEvaluated      string `json:"last_evaluated"`
}

// BackupService handles database backup and restore operations
type BackupService struct {
	db *database.DB
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB) *BackupService {
	return &BackupService{db: db}
}

// GetDB returns the database connection for direct queries
func (s *BackupService) GetDB() *database.DB {
	return s.db
}

// Export creates a complete backup of the database to a file
func (s *BackupService) Export(outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := s.ExportToWriter(file); err != nil {
		return err
	}

	log.Printf("Database exported successfully to %s", outputPath)
	return nil
}

// ExportToWriter writes a complete backup of the database as indented
// JSON (for file downloads)
func (s *BackupService) ExportToWriter(w io.Writer) error {
	log.Println("Starting database export...")

	backup := &BackupData{
		Version:      "1.0",
		ExportedAt:   time.Now(),
		DatabaseType: "universal",
	}

	if err := s.exportEntities(backup); err != nil {
		return fmt.Errorf("failed to export entities: %w", err)
	}
	if err := s.exportSchools(backup); err != nil {
		return fmt.Errorf("failed to export schools: %w", err)
	}
	if err := s.exportParents(backup); err != nil {
		return fmt.Errorf("failed to export parents: %w", err)
	}
	if err := s.exportStudents(backup); err != nil {
		return fmt.Errorf("failed to export students: %w", err)
	}
	if err := s.exportFamilies(backup); err != nil {
		return fmt.Errorf("failed to export families: %w", err)
	}
	if err := s.exportReadingSessions(backup); err != nil {
		return fmt.Errorf("failed to export reading sessions: %w", err)
	}
	if err := s.exportLevelStates(backup); err != nil {
		return fmt.Errorf("failed to export level states: %w", err)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}

	log.Printf("Exported: %d entities, %d schools, %d parents, %d students, %d families, %d sessions",
		len(backup.Entities), len(backup.Schools), len(backup.Parents),
		len(backup.Students), len(backup.Families), len(backup.ReadingSessions))

	return nil
}

// Import restores a database from a backup file
func (s *BackupService) Import(inputPath string) error {
	log.Printf("Starting database import from %s...", inputPath)

	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	return s.ImportFromReader(file)
}

// ImportFromReader restores a database from a backup reader (for file uploads)
func (s *BackupService) ImportFromReader(reader io.Reader) error {
	var backup BackupData
	decoder := json.NewDecoder(reader)
	if err := decoder.Decode(&backup); err != nil {
		return fmt.Errorf("failed to decode backup: %w", err)
	}

	log.Printf("Backup version: %s, exported at: %s", backup.Version, backup.ExportedAt)

	// Import in order of dependencies
	if err := s.importEntities(backup.Entities); err != nil {
		return fmt.Errorf("failed to import entities: %w", err)
	}
	if err := s.importSchools(backup.Schools); err != nil {
		return fmt.Errorf("failed to import schools: %w", err)
	}
	if err := s.importFamilies(backup.Families); err != nil {
		return fmt.Errorf("failed to import families: %w", err)
	}
	if err := s.importParents(backup.Parents); err != nil {
		return fmt.Errorf("failed to import parents: %w", err)
	}
	if err := s.importStudents(backup.Students); err != nil {
		return fmt.Errorf("failed to import students: %w", err)
	}
	if err := s.importFamilyMemberships(backup.Families); err != nil {
		return fmt.Errorf("failed to import family memberships: %w", err)
	}
	if err := s.importReadingSessions(backup.ReadingSessions); err != nil {
		return fmt.Errorf("failed to import reading sessions: %w", err)
	}
	if err := s.importLevelStates(backup.LevelStates); err != nil {
		return fmt.Errorf("failed to import level states: %w", err)
	}

	log.Println("Database import completed successfully")
	return nil
}

func (s *BackupService) exportEntities(backup *BackupData) error {
	query := "SELECT id, name, code, created_at FROM entities ORDER BY id"
	rows, err := s.db.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var e EntityBackup
		if err := rows.Scan(&e.ID, &e.Name, &e.Code, &e.CreatedAt); err != nil {
			return err
		}
		backup.Entities = append(backup.Entities, e)
	}
	return rows.Err()
}

func (s *BackupService) exportSchools(backup *BackupData) error {
	query := "SELECT id, entity_id, name, sign_in_code, created_at FROM schools ORDER BY id"
	rows, err := s.db.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var sc SchoolBackup
		if err := rows.Scan(&sc.ID, &sc.EntityID, &sc.Name, &sc.SignInCode, &sc.CreatedAt); err != nil {
			return err
		}
		backup.Schools = append(backup.Schools, sc)
	}
	return rows.Err()
}

func (s *BackupService) exportParents(backup *BackupData) error {
	query := `SELECT id, email, password_hash, name, last_name,
		COALESCE(oauth_provider, ''), COALESCE(oauth_subject, ''),
		family_id, is_admin, created_at, updated_at
		FROM parents ORDER BY id`
	rows, err := s.db.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var p ParentBackup
		var familyID sql.NullString
		if err := rows.Scan(&p.ID, &p.Email, &p.PasswordHash, &p.Name, &p.LastName,
			&p.OAuthProvider, &p.OAuthSubject, &familyID, &p.IsAdmin, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return err
		}
		if familyID.Valid {
			p.FamilyID = &familyID.String
		}
		backup.Parents = append(backup.Parents, p)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range backup.Parents {
		schoolIDs, err := s.queryIDs("SELECT school_id FROM parent_schools WHERE parent_id = ? ORDER BY id", backup.Parents[i].ID)
		if err != nil {
			return err
		}
		backup.Parents[i].SchoolIDs = schoolIDs
	}
	return nil
}

func (s *BackupService) exportStudents(backup *BackupData) error {
	query := `SELECT id, entity_id, school_id, first_name, last_initial, grade, sign_in_code,
		family_id, parent_invite_code, allow_parent_access, parent_linking_enabled, max_linked_parents
		FROM students ORDER BY id`
	rows, err := s.db.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var st StudentBackup
		var familyID, inviteCode sql.NullString
		if err := rows.Scan(&st.ID, &st.EntityID, &st.SchoolID, &st.FirstName, &st.LastInitial,
			&st.Grade, &st.SignInCode, &familyID, &inviteCode,
			&st.AllowParentAccess, &st.ParentLinkingEnabled, &st.MaxLinkedParents); err != nil {
			return err
		}
		if familyID.Valid {
			st.FamilyID = &familyID.String
		}
		if inviteCode.Valid {
			st.ParentInviteCode = &inviteCode.String
		}
		backup.Students = append(backup.Students, st)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range backup.Students {
		parentIDs, err := s.queryIDs("SELECT parent_id FROM student_parents WHERE student_id = ? ORDER BY id", backup.Students[i].ID)
		if err != nil {
			return err
		}
		backup.Students[i].LinkedParentIDs = parentIDs
	}
	return nil
}

func (s *BackupService) exportFamilies(backup *BackupData) error {
	query := "SELECT id, family_name, created_at, updated_at FROM families ORDER BY created_at"
	rows, err := s.db.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var f FamilyBackup
		if err := rows.Scan(&f.ID, &f.FamilyName, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return err
		}
		backup.Families = append(backup.Families, f)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range backup.Families {
		parentIDs, err := s.queryIDs("SELECT parent_id FROM family_parents WHERE family_id = ? ORDER BY id", backup.Families[i].ID)
		if err != nil {
			return err
		}
		backup.Families[i].ParentIDs = parentIDs

		studentQuery := `SELECT student_id, student_name, school_name, entity_id, school_id, grade, position
			FROM family_students WHERE family_id = ? ORDER BY position`
		studentRows, err := s.db.Query(studentQuery, backup.Families[i].ID)
		if err != nil {
			return err
		}
		for studentRows.Next() {
			var fs FamilyStudentBackup
			if err := studentRows.Scan(&fs.StudentID, &fs.StudentName, &fs.SchoolName,
				&fs.EntityID, &fs.SchoolID, &fs.Grade, &fs.Position); err != nil {
				studentRows.Close()
				return err
			}
			backup.Families[i].Students = append(backup.Families[i].Students, fs)
		}
		if err := studentRows.Err(); err != nil {
			studentRows.Close()
			return err
		}
		studentRows.Close()
	}
	return nil
}

func (s *BackupService) exportReadingSessions(backup *BackupData) error {
	query := "SELECT id, student_id, session_date, duration_minutes, completed FROM reading_sessions ORDER BY id"
	rows, err := s.db.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var rs ReadingSessionBackup
		if err := rows.Scan(&rs.ID, &rs.StudentID, &rs.SessionDate, &rs.DurationMinutes, &rs.Completed); err != nil {
			return err
		}
		backup.ReadingSessions = append(backup.ReadingSessions, rs)
	}
	return rows.Err()
}

func (s *BackupService) exportLevelStates(backup *BackupData) error {
	query := "SELECT student_id, current_level, days_at_current_level, days_below_threshold, last_evaluated FROM student_level_state ORDER BY student_id"
	rows, err := s.db.Query(query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var ls LevelStateBackup
		if err := rows.Scan(&ls.StudentID, &ls.CurrentLevel, &ls.DaysAtCurrentLevel, &ls.DaysBelowThreshold, &ls.LastEvaluated); err != nil {
			return err
		}
		backup.LevelStates = append(backup.LevelStates, ls)
	}
	return rows.Err()
}

func (s *BackupService) queryIDs(query string, arg interface{}) ([]int64, error) {
	rows, err := s.db.Query(query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *BackupService) importEntities(entities []EntityBackup) error {
	for _, e := range entities {
		query := "INSERT INTO entities (id, name, code, created_at) VALUES (?, ?, ?, ?)"
		if _, err := s.db.Exec(query, e.ID, e.Name, e.Code, e.CreatedAt); err != nil {
			return fmt.Errorf("entity %d: %w", e.ID, err)
		}
	}
	return nil
}

func (s *BackupService) importSchools(schools []SchoolBackup) error {
	for _, sc := range schools {
		query := "INSERT INTO schools (id, entity_id, name, sign_in_code, created_at) VALUES (?, ?, ?, ?, ?)"
		if _, err := s.db.Exec(query, sc.ID, sc.EntityID, sc.Name, sc.SignInCode, sc.CreatedAt); err != nil {
			return fmt.Errorf("school %d: %w", sc.ID, err)
		}
	}
	return nil
}

func (s *BackupService) importFamilies(families []FamilyBackup) error {
	for _, f := range families {
		query := "INSERT INTO families (id, family_name, created_at, updated_at) VALUES (?, ?, ?, ?)"
		if _, err := s.db.Exec(query, f.ID, f.FamilyName, f.CreatedAt, f.UpdatedAt); err != nil {
			return fmt.Errorf("family %s: %w", f.ID, err)
		}
	}
	return nil
}

func (s *BackupService) importParents(parents []ParentBackup) error {
	for _, p := range parents {
		oauthProvider := sql.NullString{String: p.OAuthProvider, Valid: p.OAuthProvider != ""}
		oauthSubject := sql.NullString{String: p.OAuthSubject, Valid: p.OAuthSubject != ""}
		familyID := sql.NullString{}
		if p.FamilyID != nil {
			familyID = sql.NullString{String: *p.FamilyID, Valid: true}
		}

		query := `INSERT INTO parents (id, email, password_hash, name, last_name, oauth_provider, oauth_subject, family_id, is_admin, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		if _, err := s.db.Exec(query, p.ID, p.Email, p.PasswordHash, p.Name, p.LastName,
			oauthProvider, oauthSubject, familyID, p.IsAdmin, p.CreatedAt, p.UpdatedAt); err != nil {
			return fmt.Errorf("parent %d: %w", p.ID, err)
		}

		for _, schoolID := range p.SchoolIDs {
			query := "INSERT INTO parent_schools (parent_id, school_id) VALUES (?, ?)"
			if _, err := s.db.Exec(query, p.ID, schoolID); err != nil {
				return fmt.Errorf("parent %d school %d: %w", p.ID, schoolID, err)
			}
		}
	}
	return nil
}

func (s *BackupService) importStudents(students []StudentBackup) error {
	for _, st := range students {
		familyID := sql.NullString{}
		if st.FamilyID != nil {
			familyID = sql.NullString{String: *st.FamilyID, Valid: true}
		}
		inviteCode := sql.NullString{}
		if st.ParentInviteCode != nil {
			inviteCode = sql.NullString{String: *st.ParentInviteCode, Valid: true}
		}

		query := `INSERT INTO students (id, entity_id, school_id, first_name, last_initial, grade, sign_in_code,
			family_id, parent_invite_code, allow_parent_access, parent_linking_enabled, max_linked_parents)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		if _, err := s.db.Exec(query, st.ID, st.EntityID, st.SchoolID, st.FirstName, st.LastInitial,
			st.Grade, st.SignInCode, familyID, inviteCode,
			st.AllowParentAccess, st.ParentLinkingEnabled, st.MaxLinkedParents); err != nil {
			return fmt.Errorf("student %d: %w", st.ID, err)
		}

		for _, parentID := range st.LinkedParentIDs {
			query := "INSERT INTO student_parents (student_id, parent_id) VALUES (?, ?)"
			if _, err := s.db.Exec(query, st.ID, parentID); err != nil {
				return fmt.Errorf("student %d parent %d: %w", st.ID, parentID, err)
			}
		}
	}
	return nil
}

func (s *BackupService) importFamilyMemberships(families []FamilyBackup) error {
	for _, f := range families {
		for _, parentID := range f.ParentIDs {
			query := "INSERT INTO family_parents (family_id, parent_id) VALUES (?, ?)"
			if _, err := s.db.Exec(query, f.ID, parentID); err != nil {
				return fmt.Errorf("family %s parent %d: %w", f.ID, parentID, err)
			}
		}
		for _, fs := range f.Students {
			query := `INSERT INTO family_students (family_id, student_id, student_name, school_name, entity_id, school_id, grade, position)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
			if _, err := s.db.Exec(query, f.ID, fs.StudentID, fs.StudentName, fs.SchoolName,
				fs.EntityID, fs.SchoolID, fs.Grade, fs.Position); err != nil {
				return fmt.Errorf("family %s student %d: %w", f.ID, fs.StudentID, err)
			}
		}
	}
	return nil
}

func (s *BackupService) importReadingSessions(sessions []ReadingSessionBackup) error {
	for _, rs := range sessions {
		query := "INSERT INTO reading_sessions (id, student_id, session_date, duration_minutes, completed) VALUES (?, ?, ?, ?, ?)"
		if _, err := s.db.Exec(query, rs.ID, rs.StudentID, rs.SessionDate, rs.DurationMinutes, rs.Completed); err != nil {
			return fmt.Errorf("session %d: %w", rs.ID, err)
		}
	}
	return nil
}

func (s *BackupService) importLevelStates(states []LevelStateBackup) error {
	for _, ls := range states {
		query := `INSERT INTO student_level_state (student_id, current_level, days_at_current_level, days_below_threshold, last_evaluated)
			VALUES (?, ?, ?, ?, ?)`
		if _, err := s.db.Exec(query, ls.StudentID, ls.CurrentLevel, ls.DaysAtCurrentLevel, ls.DaysBelowThreshold, ls.LastEvaluated); err != nil {
			return fmt.Errorf("level state %d: %w", ls.StudentID, err)
		}
	}
	return nil
}
