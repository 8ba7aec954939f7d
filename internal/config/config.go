package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	ServerPort             string
	DatabaseType           string
	DatabasePath           string
	DatabaseURL            string
	MigrationsPath         string
	SessionDuration        time.Duration
	StudentSessionDuration time.Duration
	AppBaseURL             string
	JWTSecret              string
	AWSRegion              string
	SESFromEmail           string
	SESFromName            string
	EmailDebug             bool
	GoogleClientID         string
	GoogleClientSecret     string
	FacebookClientID       string
	FacebookClientSecret   string
	OAuthRedirectBaseURL   string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first if present.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env file")
	}

	return &Config{
		ServerPort:             getEnv("PORT", "8080"),
		DatabaseType:           getEnv("DB_TYPE", "sqlite"),
		DatabasePath:           getEnv("DB_PATH", "./readingclash.db"),
		DatabaseURL:            getEnv("DB_URL", ""),
		MigrationsPath:         getEnv("MIGRATIONS_PATH", "./migrations"),
		SessionDuration:        getEnvDuration("SESSION_DURATION", 24*time.Hour),
		StudentSessionDuration: getEnvDuration("STUDENT_SESSION_DURATION", 12*time.Hour),
		AppBaseURL:             getEnv("APP_BASE_URL", "http://localhost:8080"),
		JWTSecret:              getEnv("JWT_SECRET", ""),
		AWSRegion:              getEnv("AWS_REGION", "us-east-1"),
		SESFromEmail:           getEnv("SES_FROM_EMAIL", ""),
		SESFromName:            getEnv("SES_FROM_NAME", "ReadingClash"),
		EmailDebug:             getEnvBool("EMAIL_DEBUG", false),
		GoogleClientID:         getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:     getEnv("GOOGLE_CLIENT_SECRET", ""),
		FacebookClientID:       getEnv("FACEBOOK_CLIENT_ID", ""),
		FacebookClientSecret:   getEnv("FACEBOOK_CLIENT_SECRET", ""),
		OAuthRedirectBaseURL:   getEnv("OAUTH_REDIRECT_BASE_URL", "http://localhost:8080"),
	}
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool reads a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Warning: invalid boolean for %s: %q, using default", key, value)
		return defaultValue
	}
	return parsed
}

// getEnvDuration reads a duration environment variable or returns a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Warning: invalid duration for %s: %q, using default", key, value)
		return defaultValue
	}
	return parsed
}
