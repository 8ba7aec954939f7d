package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"readingclash/internal/models"
	"readingclash/internal/repository"
	"readingclash/internal/security"
	"readingclash/internal/validation"
)

var (
	ErrEmailTaken         = errors.New("email already taken")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUnknownSignInCode  = errors.New("unknown sign-in code")
)

// AuthService handles authentication for parent and student accounts
type AuthService struct {
	parentRepo             *repository.ParentRepository
	studentRepo            *repository.StudentRepository
	sessionDuration        time.Duration
	studentSessionDuration time.Duration
	jwtSecret              []byte
}

// NewAuthService creates a new auth service
func NewAuthService(
	parentRepo *repository.ParentRepository,
	studentRepo *repository.StudentRepository,
	sessionDuration, studentSessionDuration time.Duration,
	jwtSecret string,
) *AuthService {
	return &AuthService{
		parentRepo:             parentRepo,
		studentRepo:            studentRepo,
		sessionDuration:        sessionDuration,
		studentSessionDuration: studentSessionDuration,
		jwtSecret:              []byte(jwtSecret),
	}
}

// Register creates a new parent account
func (s *AuthService) Register(email, password, name, lastName string) (*models.Parent, error) {
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, err
	}
	if err := validation.ValidateName(name); err != nil {
		return nil, err
	}
	if err := validation.ValidateName(lastName); err != nil {
		return nil, err
	}

	existing, err := s.parentRepo.GetParentByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing parent: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	parent, err := s.parentRepo.CreateParent(email, passwordHash, name, lastName)
	if err != nil {
		return nil, fmt.Errorf("failed to create parent: %w", err)
	}

	return parent, nil
}

// Login authenticates a parent and creates a session
func (s *AuthService) Login(email, password string) (*models.Session, *models.Parent, error) {
	parent, err := s.parentRepo.GetParentByEmail(email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get parent: %w", err)
	}
	if parent == nil {
		return nil, nil, ErrInvalidCredentials
	}

	if !security.CheckPassword(password, parent.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}

	sessionID := security.GenerateSessionID()
	expiresAt := time.Now().Add(s.sessionDuration)

	session, err := s.parentRepo.CreateSession(sessionID, parent.ID, expiresAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, parent, nil
}

// ValidateSession checks a session ID and returns the associated parent
func (s *AuthService) ValidateSession(sessionID string) (*models.Parent, error) {
	session, err := s.parentRepo.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if session.IsExpired() {
		_ = s.parentRepo.DeleteSession(sessionID)
		return nil, ErrSessionExpired
	}

	parent, err := s.parentRepo.GetParentByID(session.ParentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get parent: %w", err)
	}
	if parent == nil {
		return nil, ErrSessionNotFound
	}

	return parent, nil
}

// Logout invalidates a session
func (s *AuthService) Logout(sessionID string) error {
	if err := s.parentRepo.DeleteSession(sessionID); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}

// OAuthLogin authenticates or creates a parent using an OAuth provider
func (s *AuthService) OAuthLogin(provider, subject, email, name, lastName string) (*models.Session, *models.Parent, error) {
	if provider == "" || subject == "" {
		return nil, nil, errors.New("missing oauth provider information")
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, nil, err
	}

	parent, err := s.parentRepo.GetParentByOAuth(provider, subject)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lookup oauth parent: %w", err)
	}

	if parent == nil {
		existing, err := s.parentRepo.GetParentByEmail(email)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to check existing parent: %w", err)
		}
		if existing != nil {
			if existing.OAuthProvider != "" && existing.OAuthProvider != provider {
				return nil, nil, ErrEmailTaken
			}
			if err := s.parentRepo.LinkOAuthProvider(existing.ID, provider, subject); err != nil {
				return nil, nil, fmt.Errorf("failed to link oauth provider: %w", err)
			}
			parent = existing
		} else {
			if name == "" {
				name = strings.Split(email, "@")[0]
			}
			randomPasswordHash, err := security.HashPassword(security.GenerateSessionID())
			if err != nil {
				return nil, nil, fmt.Errorf("failed to generate oauth password hash: %w", err)
			}
			created, err := s.parentRepo.CreateParent(email, randomPasswordHash, name, lastName)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to create oauth parent: %w", err)
			}
			if err := s.parentRepo.LinkOAuthProvider(created.ID, provider, subject); err != nil {
				return nil, nil, fmt.Errorf("failed to link oauth provider: %w", err)
			}
			parent = created
		}
	}

	sessionID := security.GenerateSessionID()
	expiresAt := time.Now().Add(s.sessionDuration)
	session, err := s.parentRepo.CreateSession(sessionID, parent.ID, expiresAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, parent, nil
}

// StudentLogin signs a student in with their short sign-in code
func (s *AuthService) StudentLogin(signInCode string) (*models.StudentSession, *models.Student, error) {
	if signInCode == "" {
		return nil, nil, ErrUnknownSignInCode
	}

	student, err := s.studentRepo.GetStudentBySignInCode(signInCode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up sign-in code: %w", err)
	}
	if student == nil {
		return nil, nil, ErrUnknownSignInCode
	}

	sessionID := security.GenerateSessionID()
	expiresAt := time.Now().Add(s.studentSessionDuration)

	if err := s.studentRepo.CreateStudentSession(sessionID, student.ID, expiresAt); err != nil {
		return nil, nil, fmt.Errorf("failed to create student session: %w", err)
	}

	return &models.StudentSession{
		ID:        sessionID,
		StudentID: student.ID,
		ExpiresAt: expiresAt,
	}, student, nil
}

// ValidateStudentSession checks a student session ID and returns the student
func (s *AuthService) ValidateStudentSession(sessionID string) (*models.Student, error) {
	session, err := s.studentRepo.GetStudentSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get student session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if session.IsExpired() {
		_ = s.studentRepo.DeleteStudentSession(sessionID)
		return nil, ErrSessionExpired
	}

	student, err := s.studentRepo.GetStudentByID(session.StudentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	if student == nil {
		return nil, ErrSessionNotFound
	}

	return student, nil
}

// StudentLogout invalidates a student session
func (s *AuthService) StudentLogout(sessionID string) error {
	if err := s.studentRepo.DeleteStudentSession(sessionID); err != nil {
		return fmt.Errorf("failed to logout student: %w", err)
	}
	return nil
}

// IssueAPIToken mints a signed bearer token for a parent, used by
// non-browser clients instead of a session cookie
func (s *AuthService) IssueAPIToken(parentID int64) (string, error) {
	if len(s.jwtSecret) == 0 {
		return "", errors.New("api tokens are not configured")
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   fmt.Sprintf("%d", parentID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionDuration)),
		Issuer:    "readingclash",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateAPIToken verifies a bearer token and returns the parent it names
func (s *AuthService) ValidateAPIToken(tokenString string) (*models.Parent, error) {
	if len(s.jwtSecret) == 0 {
		return nil, ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	var parentID int64
	if _, err := fmt.Sscanf(claims.Subject, "%d", &parentID); err != nil {
		return nil, ErrInvalidToken
	}

	parent, err := s.parentRepo.GetParentByID(parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get parent: %w", err)
	}
	if parent == nil {
		return nil, ErrInvalidToken
	}
	return parent, nil
}

// RequestPasswordReset creates a password reset token and sends an email
func (s *AuthService) RequestPasswordReset(ctx context.Context, emailService *EmailService, email string) error {
	parent, err := s.parentRepo.GetParentByEmail(email)
	if err != nil {
		return fmt.Errorf("failed to get parent: %w", err)
	}

	// don't reveal whether the address exists
	if parent == nil {
		return nil
	}

	if parent.OAuthProvider != "" && parent.PasswordHash == "" {
		return nil
	}

	token, err := generateSecureToken(32)
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	_ = s.parentRepo.DeleteParentPasswordResetTokens(parent.ID)

	expiresAt := time.Now().Add(1 * time.Hour)
	if err := s.parentRepo.CreatePasswordResetToken(token, parent.ID, expiresAt); err != nil {
		return fmt.Errorf("failed to create reset token: %w", err)
	}

	if emailService != nil && emailService.IsEnabled() {
		if err := emailService.SendPasswordResetEmail(ctx, parent.Email, parent.Name, token); err != nil {
			return fmt.Errorf("failed to send reset email: %w", err)
		}
	}

	return nil
}

// ValidatePasswordResetToken checks if a reset token is usable
func (s *AuthService) ValidatePasswordResetToken(token string) (bool, error) {
	resetToken, err := s.parentRepo.GetPasswordResetToken(token)
	if err != nil {
		return false, fmt.Errorf("failed to get reset token: %w", err)
	}

	if resetToken == nil || resetToken.Used || resetToken.IsExpired() {
		return false, nil
	}
	return true, nil
}

// ResetPassword resets a parent's password using a valid token
func (s *AuthService) ResetPassword(token, newPassword string) error {
	resetToken, err := s.parentRepo.GetPasswordResetToken(token)
	if err != nil {
		return fmt.Errorf("failed to get reset token: %w", err)
	}

	if resetToken == nil {
		return errors.New("invalid or expired reset token")
	}
	if resetToken.Used {
		return errors.New("this reset link has already been used")
	}
	if resetToken.IsExpired() {
		return errors.New("this reset link has expired")
	}

	if err := validation.ValidatePassword(newPassword); err != nil {
		return err
	}

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.parentRepo.UpdatePassword(resetToken.ParentID, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.parentRepo.MarkPasswordResetTokenAsUsed(token); err != nil {
		return fmt.Errorf("failed to mark token as used: %w", err)
	}

	return nil
}

// CleanupExpiredSessions removes expired parent and student sessions and
// stale reset tokens
func (s *AuthService) CleanupExpiredSessions() error {
	if err := s.parentRepo.DeleteExpiredSessions(); err != nil {
		return fmt.Errorf("failed to cleanup parent sessions: %w", err)
	}
	if err := s.studentRepo.DeleteExpiredStudentSessions(); err != nil {
		return fmt.Errorf("failed to cleanup student sessions: %w", err)
	}
	if err := s.parentRepo.DeleteExpiredPasswordResetTokens(); err != nil {
		return fmt.Errorf("failed to cleanup reset tokens: %w", err)
	}
	return nil
}

// generateSecureToken generates a cryptographically secure random token
func generateSecureToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
