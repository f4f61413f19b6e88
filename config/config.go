package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime parameter of the service.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int
	TokenTTL     time.Duration

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string

	// ReportEscalationTTL is how long a pending report may sit on an
	// unconfirmed match before the staleness sweep flags it.
	ReportEscalationTTL time.Duration
	StandingsCacheTTL   time.Duration

	StatusCronSpec     string
	StaleSweepCronSpec string
}

// Load reads configuration from environment variables, optionally seeded
// from a .env file for local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	tokenTTL, err := durationEnv("TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	reportTTL, err := durationEnv("REPORT_ESCALATION_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	standingsTTL, err := durationEnv("STANDINGS_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:  dbURL,
		JWTSecretKey: jwtKey,
		ServerPort:   port,
		TokenTTL:     tokenTTL,

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),

		ReportEscalationTTL: reportTTL,
		StandingsCacheTTL:   standingsTTL,

		StatusCronSpec:     stringEnv("STATUS_CRON_SPEC", "*/1 * * * *"),
		StaleSweepCronSpec: stringEnv("STALE_SWEEP_CRON_SPEC", "0 * * * *"),
	}

	return cfg, nil
}

// R2Configured reports whether avatar storage credentials are present.
// Avatar upload is disabled, not fatal, when they are missing.
func (c *Config) R2Configured() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" &&
		c.R2SecretAccessKey != "" && c.R2BucketName != "" && c.R2PublicBaseURL != ""
}

func stringEnv(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func intEnv(name string, fallback int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", name, err)
	}
	return value, nil
}

func durationEnv(name string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", name, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", name, value)
	}
	return value, nil
}
