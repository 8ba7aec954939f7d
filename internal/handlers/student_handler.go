package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"readingclash/internal/service"
	"readingclash/internal/validation"
)

// StudentHandler handles the student-side habits and invite endpoints
type StudentHandler struct {
	habitsService  *service.HabitsService
	linkingService *service.LinkingService
	emailService   *service.EmailService
}

// NewStudentHandler creates a new student handler
func NewStudentHandler(habitsService *service.HabitsService, linkingService *service.LinkingService, emailService *service.EmailService) *StudentHandler {
	return &StudentHandler{
		habitsService:  habitsService,
		linkingService: linkingService,
		emailService:   emailService,
	}
}

// Dashboard handles GET /api/student/habits
func (h *StudentHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	student := GetStudentFromContext(r.Context())

	dashboard, err := h.habitsService.GetDashboard(student.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load reading habits", "Dashboard build failed", err)
		return
	}

	respondJSON(w, http.StatusOK, dashboard)
}

type recordSessionRequest struct {
	DurationMinutes int `json:"durationMinutes"`
}

// RecordSession handles POST /api/student/sessions. It serves both timer
// completion and the "bank partial progress" escape hatch; which one it
// was only shows in the minutes.
func (h *StudentHandler) RecordSession(w http.ResponseWriter, r *http.Request) {
	student := GetStudentFromContext(r.Context())

	var req recordSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", "", err)
		return
	}

	session, err := h.habitsService.RecordSession(student.ID, req.DurationMinutes)
	if err != nil {
		if errors.Is(err, service.ErrInvalidDuration) {
			respondWithError(w, http.StatusBadRequest, "Reading time must be a positive number of minutes", "", nil)
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to save reading session", "Session record failed", err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"id":              session.ID,
		"sessionDate":     session.SessionDate,
		"durationMinutes": session.DurationMinutes,
		"completed":       session.Completed,
	})
}

// Sessions handles GET /api/student/sessions, returning the student's
// recent reading history newest first
func (h *StudentHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	student := GetStudentFromContext(r.Context())

	sessions, err := h.habitsService.RecentSessions(student.ID, 30)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load reading sessions", "Session history load failed", err)
		return
	}

	entries := make([]map[string]interface{}, 0, len(sessions))
	for _, session := range sessions {
		entries = append(entries, map[string]interface{}{
			"id":              session.ID,
			"sessionDate":     session.SessionDate,
			"durationMinutes": session.DurationMinutes,
			"completed":       session.Completed,
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"sessions": entries})
}

// InviteCode handles POST /api/student/invite-code
func (h *StudentHandler) InviteCode(w http.ResponseWriter, r *http.Request) {
	student := GetStudentFromContext(r.Context())

	code, err := h.linkingService.CreateOrFetchInviteCode(student.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to create invite code", "Invite code creation failed", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"inviteCode": code})
}

type emailInviteRequest struct {
	Email string `json:"email"`
}

// EmailInviteCode handles POST /api/student/invite-code/email, sending
// the student's code to a parent address
func (h *StudentHandler) EmailInviteCode(w http.ResponseWriter, r *http.Request) {
	student := GetStudentFromContext(r.Context())

	var req emailInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", "", err)
		return
	}
	if err := validation.ValidateEmail(req.Email); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error(), "", nil)
		return
	}

	code, err := h.linkingService.CreateOrFetchInviteCode(student.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to create invite code", "Invite code creation failed", err)
		return
	}

	if err := h.emailService.SendInviteCodeEmail(r.Context(), req.Email, student.DisplayName(), code); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to send invite email", "Invite email failed", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Invite code sent"})
}

// parseID parses a positive integer path segment
func parseID(s string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(s, "%d", &id); err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
