package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"team-health/internal/github"
	"team-health/internal/jira"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Jira   jira.Config
	GitHub github.Config

	Port     int
	Location *time.Location
	Debug    bool

	// Report policies
	StuckThresholdDays int
	SprintDurationDays int
	LoadImbalanceRatio float64
	SprintHistory      int
}

// MissingConfigError lists every required variable that was not set.
type MissingConfigError struct {
	Vars []string
}

func (e *MissingConfigError) Error() string {
	return fmt.Sprintf("missing required environment variables: %s", strings.Join(e.Vars, ", "))
}

var requiredJiraVars = []string{"JIRA_HOST", "JIRA_EMAIL", "JIRA_API_TOKEN"}

// Load loads the configuration from .env files and environment variables.
func Load() (*AppConfig, error) {
	// 1. Executable directory first, then the working directory.
	if exePath, err := os.Executable(); err == nil {
		envPath := filepath.Join(filepath.Dir(exePath), ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables")
	}

	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (*AppConfig, error) {
	var missing []string
	for _, key := range requiredJiraVars {
		if strings.TrimSpace(os.Getenv(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingConfigError{Vars: missing}
	}

	tzName := getEnv("TZ", "America/New_York")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		log.Warn().Err(err).Str("tz", tzName).Msg("Unknown timezone, falling back to UTC")
		loc = time.UTC
	}

	cfg := &AppConfig{
		Jira: jira.Config{
			Host:        normalizeHost(os.Getenv("JIRA_HOST")),
			Email:       os.Getenv("JIRA_EMAIL"),
			APIToken:    os.Getenv("JIRA_API_TOKEN"),
			BoardID:     getEnvInt("JIRA_BOARD_ID", 7),
			ProjectKey:  getEnv("JIRA_PROJECT_KEY", ""),
			SprintField: getEnv("JIRA_SPRINT_FIELD", ""),
		},
		GitHub: github.Config{
			Token: getEnv("GITHUB_TOKEN", ""),
			Org:   getEnv("GITHUB_ORG", ""),
		},
		Port:               getEnvInt("PORT", 3000),
		Location:           loc,
		Debug:              getEnvBool("DEBUG", false),
		StuckThresholdDays: getEnvInt("STUCK_THRESHOLD_DAYS", 7),
		SprintDurationDays: getEnvInt("SPRINT_DURATION_DAYS", 14),
		LoadImbalanceRatio: getEnvFloat("LOAD_IMBALANCE_RATIO", 2),
		SprintHistory:      getEnvInt("SPRINT_HISTORY", 6),
	}

	if !cfg.GitHub.Enabled() {
		log.Info().Msg("GITHUB_TOKEN/GITHUB_ORG not set, pull request report disabled")
	}

	return cfg, nil
}

// normalizeHost accepts both "acme.atlassian.net" and "https://acme.atlassian.net/".
func normalizeHost(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if host != "" && !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	return host
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return i
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring non-integer value")
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil && f > 0 {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}
