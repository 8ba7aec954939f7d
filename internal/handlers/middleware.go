package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"readingclash/internal/models"
	"readingclash/internal/security"
	"readingclash/internal/service"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	ParentContextKey  ContextKey = "parent"
	StudentContextKey ContextKey = "student"
)

// Middleware holds dependencies for middleware functions
type Middleware struct {
	authService *service.AuthService
	csrfStore   *security.CSRFTokenStore
	rateLimiter *security.RateLimiter
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(authService *service.AuthService, csrfStore *security.CSRFTokenStore, rateLimiter *security.RateLimiter) *Middleware {
	return &Middleware{
		authService: authService,
		csrfStore:   csrfStore,
		rateLimiter: rateLimiter,
	}
}

// RequireAuth requires a valid parent session cookie or bearer token
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parent := m.resolveParent(w, r)
		if parent == nil {
			respondWithError(w, http.StatusUnauthorized, "Authentication required", "", nil)
			return
		}

		ctx := context.WithValue(r.Context(), ParentContextKey, parent)
		next(w, r.WithContext(ctx))
	}
}

// RequireAdmin requires an authenticated parent with the admin flag
func (m *Middleware) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		parent := GetParentFromContext(r.Context())
		if parent == nil || !parent.IsAdmin {
			respondWithError(w, http.StatusForbidden, "Admin access required", "", nil)
			return
		}
		next(w, r)
	})
}

// RequireStudentAuth requires a valid student session cookie
func (m *Middleware) RequireStudentAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("student_session_id")
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, "Student sign-in required", "", nil)
			return
		}

		student, err := m.authService.ValidateStudentSession(cookie.Value)
		if err != nil {
			http.SetCookie(w, security.CreateDeleteCookie(r, "student_session_id"))
			respondWithError(w, http.StatusUnauthorized, "Student sign-in required", "", nil)
			return
		}

		ctx := context.WithValue(r.Context(), StudentContextKey, student)
		next(w, r.WithContext(ctx))
	}
}

// CSRFProtect validates the request's CSRF token on state-changing
// methods. Bearer-token requests are exempt; they carry no ambient
// credentials a cross-site page could ride on.
func (m *Middleware) CSRFProtect(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next(w, r)
			return
		}

		if strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
			next(w, r)
			return
		}

		cookie, err := r.Cookie("session_id")
		if err != nil {
			next(w, r)
			return
		}

		token := r.Header.Get("X-CSRF-Token")
		if token == "" {
			token = r.FormValue("csrf_token")
		}
		if !m.csrfStore.ValidateToken(cookie.Value, token) {
			respondWithError(w, http.StatusForbidden, "Invalid CSRF token", "", nil)
			return
		}

		next(w, r)
	}
}

// RateLimit applies the per-IP token bucket to a handler
func (m *Middleware) RateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := security.GetClientIP(r)
		if !m.rateLimiter.Allow(ip) {
			respondWithError(w, http.StatusTooManyRequests, "Too many requests, try again shortly", "", nil)
			return
		}
		next(w, r)
	}
}

// resolveParent tries the session cookie first, then a bearer token
func (m *Middleware) resolveParent(w http.ResponseWriter, r *http.Request) *models.Parent {
	if cookie, err := r.Cookie("session_id"); err == nil {
		parent, err := m.authService.ValidateSession(cookie.Value)
		if err == nil {
			return parent
		}
		http.SetCookie(w, security.CreateDeleteCookie(r, "session_id"))
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		token := strings.TrimPrefix(authHeader, "Bearer ")
		parent, err := m.authService.ValidateAPIToken(token)
		if err == nil {
			return parent
		}
	}

	return nil
}

// Logging middleware logs HTTP requests
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

// GetParentFromContext retrieves the parent from the request context
func GetParentFromContext(ctx context.Context) *models.Parent {
	parent, ok := ctx.Value(ParentContextKey).(*models.Parent)
	if !ok {
		return nil
	}
	return parent
}

// GetStudentFromContext retrieves the student from the request context
func GetStudentFromContext(ctx context.Context) *models.Student {
	student, ok := ctx.Value(StudentContextKey).(*models.Student)
	if !ok {
		return nil
	}
	return student
}
