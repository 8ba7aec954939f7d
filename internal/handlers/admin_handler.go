package handlers

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"readingclash/internal/repository"
	"readingclash/internal/service"
)

// AdminHandler handles admin-only routes
type AdminHandler struct {
	backupService *service.BackupService
	parentRepo    *repository.ParentRepository
	studentRepo   *repository.StudentRepository
	familyRepo    *repository.FamilyRepository
	schoolRepo    *repository.SchoolRepository
	readingRepo   *repository.ReadingRepository
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(backupService *service.BackupService, parentRepo *repository.ParentRepository, studentRepo *repository.StudentRepository, familyRepo *repository.FamilyRepository, schoolRepo *repository.SchoolRepository, readingRepo *repository.ReadingRepository) *AdminHandler {
	return &AdminHandler{
		backupService: backupService,
		parentRepo:    parentRepo,
		studentRepo:   studentRepo,
		familyRepo:    familyRepo,
		schoolRepo:    schoolRepo,
		readingRepo:   readingRepo,
	}
}

// Stats handles GET /api/admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	db := h.backupService.GetDB()

	counts := map[string]int{}
	for name, table := range map[string]string{
		"parents":         "parents",
		"students":        "students",
		"families":        "families",
		"schools":         "schools",
		"readingSessions": "reading_sessions",
	} {
		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			respondWithError(w, http.StatusInternalServerError, "Failed to load stats", "Error counting "+table, err)
			return
		}
		counts[name] = count
	}

	respondJSON(w, http.StatusOK, counts)
}

// ListParents handles GET /api/admin/parents
func (h *AdminHandler) ListParents(w http.ResponseWriter, r *http.Request) {
	parents, err := h.parentRepo.GetAllParents()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load parents", "Error fetching parents", err)
		return
	}

	entries := make([]map[string]interface{}, 0, len(parents))
	for _, p := range parents {
		entry := map[string]interface{}{
			"id":      p.ID,
			"email":   p.Email,
			"name":    p.Name,
			"isAdmin": p.IsAdmin,
		}
		if p.FamilyID.Valid {
			entry["familyId"] = p.FamilyID.String
		}
		entries = append(entries, entry)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"parents": entries})
}

// ListStudents handles GET /api/admin/students
func (h *AdminHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.studentRepo.GetAllStudents()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load students", "Error fetching students", err)
		return
	}

	entries := make([]map[string]interface{}, 0, len(students))
	for _, s := range students {
		entry := map[string]interface{}{
			"id":       s.ID,
			"name":     s.DisplayName(),
			"grade":    s.Grade,
			"schoolId": s.SchoolID,
		}
		family, err := h.familyRepo.GetFamilyByStudentID(s.ID)
		if err != nil {
			log.Printf("Error fetching family for student %d: %v", s.ID, err)
		} else if family != nil {
			entry["familyId"] = family.ID
			entry["familyName"] = family.FamilyName
		}
		entries = append(entries, entry)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"students": entries})
}

// ListFamilies handles GET /api/admin/families
func (h *AdminHandler) ListFamilies(w http.ResponseWriter, r *http.Request) {
	families, err := h.familyRepo.GetAllFamilies()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load families", "Error fetching families", err)
		return
	}

	entries := make([]map[string]interface{}, 0, len(families))
	for _, f := range families {
		entry := map[string]interface{}{
			"id":   f.ID,
			"name": f.FamilyName,
		}
		parentIDs, err := h.familyRepo.GetParentIDs(f.ID)
		if err != nil {
			log.Printf("Error fetching parents for family %s: %v", f.ID, err)
		} else {
			entry["parentIds"] = parentIDs
		}
		students, err := h.familyRepo.GetLinkedStudents(f.ID)
		if err != nil {
			log.Printf("Error fetching students for family %s: %v", f.ID, err)
		} else {
			entry["studentCount"] = len(students)
		}
		entries = append(entries, entry)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"families": entries})
}

// ListSessions handles GET /api/admin/sessions
func (h *AdminHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.readingRepo.GetAllSessions()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load sessions", "Error fetching reading sessions", err)
		return
	}

	entries := make([]map[string]interface{}, 0, len(sessions))
	for _, s := range sessions {
		entries = append(entries, map[string]interface{}{
			"id":              s.ID,
			"studentId":       s.StudentID,
			"sessionDate":     s.SessionDate,
			"durationMinutes": s.DurationMinutes,
			"completed":       s.Completed,
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"sessions": entries})
}

// SchoolLookup handles GET /api/admin/schools/{signInCode}
func (h *AdminHandler) SchoolLookup(w http.ResponseWriter, r *http.Request) {
	signInCode := r.PathValue("signInCode")
	if signInCode == "" {
		respondWithError(w, http.StatusBadRequest, "Sign-in code is required", "", nil)
		return
	}

	school, err := h.schoolRepo.GetSchoolBySignInCode(signInCode)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to look up school", "School lookup failed", err)
		return
	}
	if school == nil {
		respondWithError(w, http.StatusNotFound, "School not found", "", nil)
		return
	}

	entry := map[string]interface{}{
		"id":         school.ID,
		"name":       school.Name,
		"signInCode": school.SignInCode,
	}
	entity, err := h.schoolRepo.GetEntityByID(school.EntityID)
	if err != nil {
		log.Printf("Error fetching entity for school %d: %v", school.ID, err)
	} else if entity != nil {
		entry["entity"] = map[string]interface{}{
			"id":   entity.ID,
			"name": entity.Name,
			"code": entity.Code,
		}
	}

	respondJSON(w, http.StatusOK, entry)
}

// ExportDatabase handles GET /api/admin/export, streaming a JSON backup
// for download
func (h *AdminHandler) ExportDatabase(w http.ResponseWriter, r *http.Request) {
	parent := GetParentFromContext(r.Context())

	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("readingclash_backup_%s.json", timestamp)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	if err := h.backupService.ExportToWriter(w); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to export database", "Error exporting database", err)
		return
	}

	log.Printf("Database exported by admin %s", parent.Email)
}

// ImportDatabase handles POST /api/admin/import with a multipart backup
// file upload
func (h *AdminHandler) ImportDatabase(w http.ResponseWriter, r *http.Request) {
	parent := GetParentFromContext(r.Context())

	// 10MB max
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		respondWithError(w, http.StatusBadRequest, "Failed to parse upload", "", err)
		return
	}

	file, _, err := r.FormFile("backup_file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Please select a backup file", "", err)
		return
	}
	defer file.Close()

	if err := h.backupService.ImportFromReader(file); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to import database", "Error importing database", err)
		return
	}

	log.Printf("Database imported by admin %s", parent.Email)
	respondJSON(w, http.StatusOK, map[string]string{"message": "Database imported successfully"})
}
