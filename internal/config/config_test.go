package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"agentwatch/internal/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "server:\n  port: \"9000\"\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server.Port != "9000" {
		t.Errorf("port = %q, want 9000", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Scheduler.MetricsInterval != 5*time.Second {
		t.Errorf("metrics interval = %v, want 5s", cfg.Scheduler.MetricsInterval)
	}
	if cfg.Detection != DefaultDetection() {
		t.Errorf("detection = %+v, want defaults", cfg.Detection)
	}
	if cfg.Alerts.MinSeverity != models.SeverityHigh {
		t.Errorf("min severity = %q, want high", cfg.Alerts.MinSeverity)
	}
}

func TestLoadConfigExpandsSecrets(t *testing.T) {
	t.Setenv("AW_TEST_SECRET", "s3cret")
	t.Setenv("AW_TEST_DB", "postgres://localhost/agentwatch")

	cfg, err := LoadConfig(writeConfig(t, `
database:
  driver: postgres
  url: "${AW_TEST_DB}"
auth:
  jwt_secret: "${AW_TEST_SECRET}"
detection:
  bucket_width: 10s
`))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Auth.JWTSecret != "s3cret" {
		t.Errorf("jwt secret = %q", cfg.Auth.JWTSecret)
	}
	if cfg.Database.URL != "postgres://localhost/agentwatch" {
		t.Errorf("database url = %q", cfg.Database.URL)
	}
	if cfg.Detection.BucketWidth != 10*time.Second {
		t.Errorf("bucket width = %v, want 10s", cfg.Detection.BucketWidth)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown driver", "database:\n  driver: mysql\n"},
		{"collector without url", "collector:\n  enabled: true\n"},
		{"unknown severity", "alerts:\n  min_severity: urgent\n"},
		{"operator without hash", "auth:\n  operators:\n    - name: oncall\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.body)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfigKeepsOperatorHashesVerbatim(t *testing.T) {
	const hash = "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA"
	cfg, err := LoadConfig(writeConfig(t, "auth:\n  operators:\n    - name: oncall\n      password_hash: '"+hash+"'\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.Auth.Operators) != 1 || cfg.Auth.Operators[0].PasswordHash != hash {
		t.Errorf("operators = %+v", cfg.Auth.Operators)
	}
}
