package config

import (
	"errors"
	"os"
	"testing"

	"github.com/joho/godotenv"
)

func setJiraEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JIRA_HOST", "acme.atlassian.net")
	t.Setenv("JIRA_EMAIL", "bot@acme.io")
	t.Setenv("JIRA_API_TOKEN", "secret")
}

func TestFromEnv_MissingListsEveryVariable(t *testing.T) {
	t.Setenv("JIRA_HOST", "")
	t.Setenv("JIRA_EMAIL", "")
	t.Setenv("JIRA_API_TOKEN", "")

	_, err := FromEnv()
	var missing *MissingConfigError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingConfigError, got %v", err)
	}
	if len(missing.Vars) != 3 {
		t.Errorf("expected 3 missing vars, got %v", missing.Vars)
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	setJiraEnv(t)
	t.Setenv("JIRA_BOARD_ID", "")
	t.Setenv("TZ", "")
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GITHUB_ORG", "")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Jira.Host != "https://acme.atlassian.net" {
		t.Errorf("host: got %q", cfg.Jira.Host)
	}
	if cfg.Jira.BoardID != 7 {
		t.Errorf("board id: got %d, want 7", cfg.Jira.BoardID)
	}
	if cfg.Location.String() != "America/New_York" {
		t.Errorf("location: got %s", cfg.Location)
	}
	if cfg.GitHub.Enabled() {
		t.Error("github should be disabled without token and org")
	}
	if cfg.StuckThresholdDays != 7 || cfg.SprintDurationDays != 14 || cfg.LoadImbalanceRatio != 2 {
		t.Errorf("unexpected policy defaults: %+v", cfg)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	setJiraEnv(t)
	t.Setenv("JIRA_HOST", "https://jira.example.com/")
	t.Setenv("JIRA_BOARD_ID", "42")
	t.Setenv("GITHUB_TOKEN", "ghp_x")
	t.Setenv("GITHUB_ORG", "acme")
	t.Setenv("LOAD_IMBALANCE_RATIO", "1.5")
	t.Setenv("TZ", "UTC")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Jira.Host != "https://jira.example.com" {
		t.Errorf("host: got %q", cfg.Jira.Host)
	}
	if cfg.Jira.BoardID != 42 {
		t.Errorf("board id: got %d", cfg.Jira.BoardID)
	}
	if !cfg.GitHub.Enabled() {
		t.Error("github should be enabled")
	}
	if cfg.LoadImbalanceRatio != 1.5 {
		t.Errorf("ratio: got %v", cfg.LoadImbalanceRatio)
	}
}

func TestGodotenvQuoting(t *testing.T) {
	content := `JIRA_API_TOKEN='token with "double quotes"'`
	tmpfile, err := os.CreateTemp("", ".env.test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpfile.Name())

	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}

	env, err := godotenv.Read(tmpfile.Name())
	if err != nil {
		t.Fatalf("Error reading env: %v", err)
	}

	expected := `token with "double quotes"`
	if env["JIRA_API_TOKEN"] != expected {
		t.Errorf("Expected %s, got %s", expected, env["JIRA_API_TOKEN"])
	}
}
