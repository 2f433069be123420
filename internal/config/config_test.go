package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "driftrace.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if r := cfg.Validate(); !r.IsValid() {
		t.Errorf("Default config should be valid: %v", r.Errors)
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Errorf("Expected 0.0.0.0:8080, got %s", cfg.Addr())
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
race:
  countdown_seconds: 5
  countdown_interval: 500ms
  start_grid:
    base: {x: 1, y: 2, z: 3}
    spacing: 6
log:
  format: json
`)

	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Unset fields should keep defaults, host=%q", cfg.Server.Host)
	}
	if cfg.Race.CountdownSeconds != 5 || cfg.Race.CountdownInterval != 500*time.Millisecond {
		t.Errorf("Unexpected race section %+v", cfg.Race)
	}

	rs := cfg.RoomSettings()
	if slot := rs.StartGrid.Slot(1); slot.X != 7 || slot.Y != 2 || slot.Z != 3 {
		t.Errorf("Unexpected start slot %+v", slot)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Expected json log format, got %s", cfg.Log.Format)
	}
}

func TestLoadMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	if _, err := Load(missing, true); err != nil {
		t.Errorf("Optional missing file should not fail: %v", err)
	}
	if _, err := Load(missing, false); err == nil {
		t.Error("Required missing file should fail")
	}
}

func TestLoadMalformed(t *testing.T) {
	path := writeConfig(t, "server: [not, a, map")

	if _, err := Load(path, false); err == nil {
		t.Error("Malformed YAML should fail")
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(map[string]string{
		"PORT":                        "7000",
		"DRIFTRACE_DB_PATH":           "/tmp/races.db",
		"DRIFTRACE_LOG_LEVEL":         "debug",
		"DRIFTRACE_COUNTDOWN_SECONDS": "0",
	})
	if err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}

	if cfg.Server.Port != 7000 {
		t.Errorf("Expected port 7000, got %d", cfg.Server.Port)
	}
	if cfg.Database.Path != "/tmp/races.db" {
		t.Errorf("Expected db path override, got %s", cfg.Database.Path)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Expected debug, got %s", cfg.Log.Level)
	}
	if cfg.Race.CountdownSeconds != 0 {
		t.Errorf("Expected countdown 0, got %d", cfg.Race.CountdownSeconds)
	}
}

func TestApplyEnvRejectsBadNumbers(t *testing.T) {
	cfg := Default()
	if err := cfg.ApplyEnv(map[string]string{"PORT": "eighty"}); err == nil {
		t.Error("Non-numeric PORT should fail")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"no db", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"negative countdown", func(c *Config) { c.Race.CountdownSeconds = -1 }, "countdown_seconds"},
		{"zero interval", func(c *Config) { c.Race.CountdownInterval = 0 }, "countdown_interval"},
		{"no buffer", func(c *Config) { c.Transport.SendBuffer = 0 }, "send_buffer"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			r := cfg.Validate()
			if r.IsValid() {
				t.Fatal("Expected validation to fail")
			}
			if err := r.Err(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateWarnings(t *testing.T) {
	cfg := Default()
	cfg.Race.StartGrid.Spacing = 0

	r := cfg.Validate()
	if !r.IsValid() {
		t.Fatalf("Zero spacing should only warn: %v", r.Errors)
	}
	if len(r.Warnings) != 1 {
		t.Errorf("Expected 1 warning, got %v", r.Warnings)
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("WARN").String() != "WARN" {
		t.Error("Level parsing should be case-insensitive")
	}
	if parseLevel("").String() != "INFO" {
		t.Error("Empty level should default to info")
	}
}
