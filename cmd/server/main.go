package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/google"

	"readingclash/internal/config"
	"readingclash/internal/database"
	"readingclash/internal/handlers"
	"readingclash/internal/repository"
	"readingclash/internal/security"
	"readingclash/internal/service"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	log.Printf("Database connection established (type: %s)", cfg.DatabaseType)

	// Run migrations
	if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Migrations completed successfully")

	// Seed the reading level tiers
	if err := db.SeedReadingLevels(); err != nil {
		log.Printf("Warning: Failed to seed reading levels: %v", err)
	}

	// Initialize repositories
	schoolRepo := repository.NewSchoolRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	parentRepo := repository.NewParentRepository(db)
	familyRepo := repository.NewFamilyRepository(db)
	readingRepo := repository.NewReadingRepository(db)

	// Initialize services
	authService := service.NewAuthService(parentRepo, studentRepo,
		cfg.SessionDuration, cfg.StudentSessionDuration, cfg.JWTSecret)
	linkingService := service.NewLinkingService(studentRepo, parentRepo, familyRepo, schoolRepo)
	habitsService := service.NewHabitsService(readingRepo, studentRepo)
	backupService := service.NewBackupService(db)

	emailService, err := service.NewEmailService(cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AppBaseURL, cfg.EmailDebug)
	if err != nil {
		log.Fatalf("Failed to initialize email service: %v", err)
	}

	oauthProviders := map[string]handlers.OAuthProvider{
		"google": {
			Name:  "google",
			Label: "Google",
			Config: &oauth2.Config{
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				Endpoint:     google.Endpoint,
				Scopes:       []string{"openid", "email", "profile"},
			},
			UserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		},
		"facebook": {
			Name:  "facebook",
			Label: "Facebook",
			Config: &oauth2.Config{
				ClientID:     cfg.FacebookClientID,
				ClientSecret: cfg.FacebookClientSecret,
				Endpoint:     facebook.Endpoint,
				Scopes:       []string{"email", "public_profile"},
			},
			UserInfoURL: "https://graph.facebook.com/me?fields=id,name,email",
		},
	}

	// Initialize handlers
	csrfStore := security.NewCSRFTokenStore(cfg.SessionDuration)
	rateLimiter := security.NewRateLimiter(20, time.Minute)
	middleware := handlers.NewMiddleware(authService, csrfStore, rateLimiter)
	authHandler := handlers.NewAuthHandler(authService, emailService, csrfStore, oauthProviders, cfg.OAuthRedirectBaseURL)
	linkingHandler := handlers.NewLinkingHandler(linkingService)
	studentHandler := handlers.NewStudentHandler(habitsService, linkingService, emailService)
	adminHandler := handlers.NewAdminHandler(backupService, parentRepo, studentRepo, familyRepo, schoolRepo, readingRepo)

	// Setup routes
	mux := http.NewServeMux()

	// Public auth routes
	mux.HandleFunc("POST /api/auth/register", middleware.RateLimit(authHandler.Register))
	mux.HandleFunc("POST /api/auth/login", middleware.RateLimit(authHandler.Login))
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)
	mux.HandleFunc("POST /api/auth/forgot-password", middleware.RateLimit(authHandler.RequestPasswordReset))
	mux.HandleFunc("GET /api/auth/reset-password", middleware.RateLimit(authHandler.ValidateResetToken))
	mux.HandleFunc("POST /api/auth/reset-password", middleware.RateLimit(authHandler.ResetPassword))
	mux.HandleFunc("GET /auth/{provider}/start", authHandler.StartOAuth)
	mux.HandleFunc("GET /auth/{provider}/callback", authHandler.OAuthCallback)

	// Protected parent routes
	mux.HandleFunc("GET /api/auth/me", middleware.RequireAuth(authHandler.Me))
	mux.HandleFunc("POST /api/auth/token", middleware.RequireAuth(middleware.CSRFProtect(authHandler.IssueToken)))
	mux.HandleFunc("POST /api/linking/validate", middleware.RequireAuth(linkingHandler.ValidateCode))
	mux.HandleFunc("GET /api/linking/capacity/{studentID}", middleware.RequireAuth(linkingHandler.CheckCapacity))
	mux.HandleFunc("POST /api/linking/link", middleware.RequireAuth(middleware.CSRFProtect(linkingHandler.Link)))
	mux.HandleFunc("POST /api/linking/family", middleware.RequireAuth(middleware.CSRFProtect(linkingHandler.CreateFamily)))
	mux.HandleFunc("POST /api/linking/family/join", middleware.RequireAuth(middleware.CSRFProtect(linkingHandler.JoinFamily)))
	mux.HandleFunc("GET /api/linking/family", middleware.RequireAuth(linkingHandler.Family))
	mux.HandleFunc("GET /api/parent/students", middleware.RequireAuth(linkingHandler.Students))
	mux.HandleFunc("GET /api/parent/schools", middleware.RequireAuth(linkingHandler.Schools))

	// Admin routes
	mux.HandleFunc("GET /api/admin/stats", middleware.RequireAdmin(adminHandler.Stats))
	mux.HandleFunc("GET /api/admin/parents", middleware.RequireAdmin(adminHandler.ListParents))
	mux.HandleFunc("GET /api/admin/students", middleware.RequireAdmin(adminHandler.ListStudents))
	mux.HandleFunc("GET /api/admin/families", middleware.RequireAdmin(adminHandler.ListFamilies))
	mux.HandleFunc("GET /api/admin/sessions", middleware.RequireAdmin(adminHandler.ListSessions))
	mux.HandleFunc("GET /api/admin/schools/{signInCode}", middleware.RequireAdmin(adminHandler.SchoolLookup))
	mux.HandleFunc("GET /api/admin/export", middleware.RequireAdmin(adminHandler.ExportDatabase))
	mux.HandleFunc("POST /api/admin/import", middleware.RequireAdmin(middleware.CSRFProtect(adminHandler.ImportDatabase)))

	// Student routes
	mux.HandleFunc("POST /api/student/login", middleware.RateLimit(authHandler.StudentLogin))
	mux.HandleFunc("POST /api/student/logout", authHandler.StudentLogout)
	mux.HandleFunc("GET /api/student/habits", middleware.RequireStudentAuth(studentHandler.Dashboard))
	mux.HandleFunc("POST /api/student/sessions", middleware.RequireStudentAuth(studentHandler.RecordSession))
	mux.HandleFunc("POST /api/student/invite-code", middleware.RequireStudentAuth(studentHandler.InviteCode))
	mux.HandleFunc("GET /api/student/sessions", middleware.RequireStudentAuth(studentHandler.Sessions))
	mux.HandleFunc("POST /api/student/invite-code/email", middleware.RequireStudentAuth(studentHandler.EmailInviteCode))

	// Wrap with logging middleware
	handler := handlers.Logging(mux)

	// Start server
	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start background session cleanup
	go cleanupExpiredSessions(authService)

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on http://localhost%s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
}

// cleanupExpiredSessions periodically removes expired sessions and tokens
func cleanupExpiredSessions(authService *service.AuthService) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		if err := authService.CleanupExpiredSessions(); err != nil {
			log.Printf("Error cleaning up expired sessions: %v", err)
		} else {
			log.Println("Expired sessions cleaned up")
		}
	}
}
