package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"readingclash/internal/security"
	"readingclash/internal/service"
)

// AuthHandler handles authentication endpoints for parents and students
type AuthHandler struct {
	authService          *service.AuthService
	emailService         *service.EmailService
	csrfStore            *security.CSRFTokenStore
	oauthProviders       map[string]OAuthProvider
	oauthRedirectBaseURL string
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(
	authService *service.AuthService,
	emailService *service.EmailService,
	csrfStore *security.CSRFTokenStore,
	oauthProviders map[string]OAuthProvider,
	oauthRedirectBaseURL string,
) *AuthHandler {
	return &AuthHandler{
		authService:          authService,
		emailService:         emailService,
		csrfStore:            csrfStore,
		oauthProviders:       oauthProviders,
		oauthRedirectBaseURL: oauthRedirectBaseURL,
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	LastName string `json:"lastName"`
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", "", err)
		return
	}

	parent, err := h.authService.Register(req.Email, req.Password, req.Name, req.LastName)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			respondWithError(w, http.StatusConflict, "An account with this email already exists", "", nil)
			return
		}
		respondWithError(w, http.StatusBadRequest, err.Error(), "Registration failed", err)
		return
	}

	session, _, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Account created but sign-in failed", "Post-register login failed", err)
		return
	}

	http.SetCookie(w, security.CreateSessionCookie(r, "session_id", session.ID, session.ExpiresAt))
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"id":    parent.ID,
		"email": parent.Email,
		"name":  parent.Name,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", "", err)
		return
	}

	session, parent, err := h.authService.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			respondWithError(w, http.StatusUnauthorized, "Invalid email or password", "", nil)
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Sign-in failed", "Login failed", err)
		return
	}

	csrfToken, err := h.csrfStore.GenerateToken(session.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Sign-in failed", "CSRF token generation failed", err)
		return
	}

	http.SetCookie(w, security.CreateSessionCookie(r, "session_id", session.ID, session.ExpiresAt))
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":        parent.ID,
		"email":     parent.Email,
		"name":      parent.Name,
		"csrfToken": csrfToken,
	})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie("session_id"); err == nil {
		_ = h.authService.Logout(cookie.Value)
		h.csrfStore.DeleteToken(cookie.Value)
	}
	http.SetCookie(w, security.CreateDeleteCookie(r, "session_id"))
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	parent := GetParentFromContext(r.Context())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":       parent.ID,
		"email":    parent.Email,
		"name":     parent.Name,
		"lastName": parent.LastName,
		"isAdmin":  parent.IsAdmin,
	})
}

// IssueToken handles POST /api/auth/token, minting a bearer token for
// the signed-in parent
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	parent := GetParentFromContext(r.Context())

	token, err := h.authService.IssueAPIToken(parent.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to issue token", "Token issue failed", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

// RequestPasswordReset handles POST /api/auth/forgot-password
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", "", err)
		return
	}

	if err := h.authService.RequestPasswordReset(r.Context(), h.emailService, req.Email); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to process reset request", "Password reset request failed", err)
		return
	}

	// same response whether or not the address exists
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "If an account exists with that email, a reset link has been sent",
	})
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ValidateResetToken handles GET /api/auth/reset-password, letting the
// client check a token before showing the new-password form
func (h *AuthHandler) ValidateResetToken(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondWithError(w, http.StatusBadRequest, "Reset token is required", "", nil)
		return
	}

	valid, err := h.authService.ValidatePasswordResetToken(token)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to validate reset token", "Reset token validation failed", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

// ResetPassword handles POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", "", err)
		return
	}

	if err := h.authService.ResetPassword(req.Token, req.Password); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error(), "Password reset failed", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Password has been reset"})
}

type studentLoginRequest struct {
	SignInCode string `json:"signInCode"`
}

// StudentLogin handles POST /api/student/login
func (h *AuthHandler) StudentLogin(w http.ResponseWriter, r *http.Request) {
	var req studentLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", "", err)
		return
	}

	session, student, err := h.authService.StudentLogin(req.SignInCode)
	if err != nil {
		if errors.Is(err, service.ErrUnknownSignInCode) {
			respondWithError(w, http.StatusUnauthorized, "We don't recognize that sign-in code", "", nil)
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Sign-in failed", "Student login failed", err)
		return
	}

	http.SetCookie(w, security.CreateSessionCookie(r, "student_session_id", session.ID, session.ExpiresAt))
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":    student.ID,
		"name":  student.DisplayName(),
		"grade": student.Grade,
	})
}

// StudentLogout handles POST /api/student/logout
func (h *AuthHandler) StudentLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie("student_session_id"); err == nil {
		_ = h.authService.StudentLogout(cookie.Value)
	}
	http.SetCookie(w, security.CreateDeleteCookie(r, "student_session_id"))
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
