package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
database:
  host: db.internal
  name: reunite
  user: app
  password: secret
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port = %d, want 5432", cfg.Database.Port)
	}
	if cfg.Match.Threshold != 0.6 {
		t.Errorf("Match.Threshold = %v, want 0.6", cfg.Match.Threshold)
	}
	if cfg.Video.Threshold != 0.85 {
		t.Errorf("Video.Threshold = %v, want 0.85", cfg.Video.Threshold)
	}
	if cfg.Video.IntervalSeconds != 1.0 {
		t.Errorf("Video.IntervalSeconds = %v, want 1.0", cfg.Video.IntervalSeconds)
	}
	if cfg.Video.MaxFileBytes != 2<<30 {
		t.Errorf("Video.MaxFileBytes = %d, want %d", cfg.Video.MaxFileBytes, 2<<30)
	}
	if cfg.Video.MaxDuration() != 30*time.Minute {
		t.Errorf("Video.MaxDuration() = %v, want 30m", cfg.Video.MaxDuration())
	}
	if cfg.Video.FlushFrames != 10 {
		t.Errorf("Video.FlushFrames = %d, want 10", cfg.Video.FlushFrames)
	}
	if cfg.Vision.StrictThreshold != 0.6 || cfg.Vision.RelaxedThreshold != 0.3 {
		t.Errorf("Vision thresholds = %v/%v, want 0.6/0.3",
			cfg.Vision.StrictThreshold, cfg.Vision.RelaxedThreshold)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
}

func TestLoad_ExplicitValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9999
video:
  threshold: 0.7
  worker_count: 4
  max_duration_minutes: 10
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Video.Threshold != 0.7 {
		t.Errorf("Video.Threshold = %v, want 0.7", cfg.Video.Threshold)
	}
	if cfg.Video.WorkerCount != 4 {
		t.Errorf("Video.WorkerCount = %d, want 4", cfg.Video.WorkerCount)
	}
	if cfg.Video.MaxDuration() != 10*time.Minute {
		t.Errorf("Video.MaxDuration() = %v, want 10m", cfg.Video.MaxDuration())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RE_DB_HOST", "override.internal")
	t.Setenv("RE_NATS_URL", "nats://override:4222")
	t.Setenv("RE_API_KEY", "sekrit")

	path := writeConfig(t, `
database:
  host: original.internal
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Host != "override.internal" {
		t.Errorf("Database.Host = %q, want override", cfg.Database.Host)
	}
	if cfg.NATS.URL != "nats://override:4222" {
		t.Errorf("NATS.URL = %q, want override", cfg.NATS.URL)
	}
	if cfg.Server.APIKey != "sekrit" {
		t.Errorf("Server.APIKey = %q, want override", cfg.Server.APIKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: 5433, Name: "n", User: "u", Password: "p"}
	want := "postgres://u:p@h:5433/n?sslmode=disable"
	if got := d.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
