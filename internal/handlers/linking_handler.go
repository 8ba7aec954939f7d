package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"readingclash/internal/models"
	"readingclash/internal/service"
)

// LinkingHandler handles the parent-side endpoints of the family
// linking protocol
type LinkingHandler struct {
	linkingService *service.LinkingService
}

// NewLinkingHandler creates a new linking handler
func NewLinkingHandler(linkingService *service.LinkingService) *LinkingHandler {
	return &LinkingHandler{linkingService: linkingService}
}

type validateCodeRequest struct {
	Code string `json:"code"`
}

// ValidateCode handles POST /api/linking/validate
func (h *LinkingHandler) ValidateCode(w http.ResponseWriter, r *http.Request) {
	var req validateCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", "", err)
		return
	}

	result, err := h.linkingService.ValidateInviteCode(req.Code)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to validate invite code", "Invite code validation failed", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// CheckCapacity handles GET /api/linking/capacity/{studentID}
func (h *LinkingHandler) CheckCapacity(w http.ResponseWriter, r *http.Request) {
	studentID, err := parseID(r.PathValue("studentID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid student ID", "", err)
		return
	}

	result, err := h.linkingService.CheckParentCapacity(studentID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to check capacity", "Capacity check failed", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

type linkRequest struct {
	Code             string `json:"code"`
	ExistingFamilyID string `json:"existingFamilyId"`
}

// Link handles POST /api/linking/link
func (h *LinkingHandler) Link(w http.ResponseWriter, r *http.Request) {
	parent := GetParentFromContext(r.Context())

	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", "", err)
		return
	}

	result, err := h.linkingService.LinkParentToStudent(parent.ID, req.Code, nil, req.ExistingFamilyID)
	if err != nil {
		h.respondLinkingError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

type createFamilyRequest struct {
	LastName string                  `json:"lastName"`
	Students []models.StudentSummary `json:"students"`
}

// CreateFamily handles POST /api/linking/family
func (h *LinkingHandler) CreateFamily(w http.ResponseWriter, r *http.Request) {
	parent := GetParentFromContext(r.Context())

	var req createFamilyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", "", err)
		return
	}

	lastName := req.LastName
	if lastName == "" {
		lastName = parent.LastName
	}

	familyID, err := h.linkingService.CreateFamily(parent.ID, lastName, req.Students)
	if err != nil {
		h.respondLinkingError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"familyId": familyID})
}

type joinFamilyRequest struct {
	FamilyID string `json:"familyId"`
}

// JoinFamily handles POST /api/linking/family/join
func (h *LinkingHandler) JoinFamily(w http.ResponseWriter, r *http.Request) {
	parent := GetParentFromContext(r.Context())

	var req joinFamilyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", "", err)
		return
	}

	result, err := h.linkingService.JoinExistingFamily(parent.ID, req.FamilyID)
	if err != nil {
		h.respondLinkingError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Family handles GET /api/linking/family
func (h *LinkingHandler) Family(w http.ResponseWriter, r *http.Request) {
	parent := GetParentFromContext(r.Context())

	family, err := h.linkingService.GetFamilyForParent(parent.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load family", "Family lookup failed", err)
		return
	}
	if family == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{"family": nil})
		return
	}

	students := make([]map[string]interface{}, 0, len(family.Students))
	for _, s := range family.Students {
		students = append(students, map[string]interface{}{
			"studentId":   s.StudentID,
			"studentName": s.StudentName,
			"schoolName":  s.SchoolName,
			"grade":       s.Grade,
		})
	}

	parents := make([]map[string]interface{}, 0, len(family.Parents))
	for _, p := range family.Parents {
		parents = append(parents, map[string]interface{}{
			"id":   p.ID,
			"name": p.Name,
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"family": map[string]interface{}{
			"id":       family.Family.ID,
			"name":     family.Family.FamilyName,
			"parents":  parents,
			"students": students,
		},
	})
}

// Students handles GET /api/parent/students, listing every student
// linked to the parent
func (h *LinkingHandler) Students(w http.ResponseWriter, r *http.Request) {
	parent := GetParentFromContext(r.Context())

	summaries, err := h.linkingService.GetLinkedStudents(parent.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load students", "Linked student lookup failed", err)
		return
	}

	students := make([]map[string]interface{}, 0, len(summaries))
	for _, s := range summaries {
		students = append(students, map[string]interface{}{
			"studentId":   s.StudentID,
			"studentName": s.StudentName,
			"schoolName":  s.SchoolName,
			"grade":       s.Grade,
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"students": students})
}

// Schools handles GET /api/parent/schools
func (h *LinkingHandler) Schools(w http.ResponseWriter, r *http.Request) {
	parent := GetParentFromContext(r.Context())

	schools, err := h.linkingService.GetParentSchools(parent.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load schools", "Parent school lookup failed", err)
		return
	}

	entries := make([]map[string]interface{}, 0, len(schools))
	for _, school := range schools {
		entries = append(entries, map[string]interface{}{
			"id":         school.ID,
			"name":       school.Name,
			"signInCode": school.SignInCode,
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"schools": entries})
}

// respondLinkingError maps service errors onto HTTP statuses, keeping
// the machine-readable code in the body
func (h *LinkingHandler) respondLinkingError(w http.ResponseWriter, err error) {
	var linkErr *service.LinkingError
	if errors.As(err, &linkErr) {
		status := http.StatusBadRequest
		switch linkErr.Code {
		case service.CodeNotFound, service.CodeStudentNotFound, service.CodeFamilyNotFound:
			status = http.StatusNotFound
		case service.CodeFamilyFull, service.CodeCapacityExceeded:
			status = http.StatusConflict
		}
		respondWithErrorCode(w, status, linkErr.Code, linkErr.Reason)
		return
	}

	respondWithError(w, http.StatusInternalServerError, "Linking failed", "Linking operation failed", err)
}
