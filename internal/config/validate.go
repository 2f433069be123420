package config

import (
	"fmt"
	"strings"
)

var (
	knownLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	knownLogFormats = map[string]bool{"text": true, "json": true}
)

// ValidationResult holds errors and warnings from config validation.
type ValidationResult struct {
	Errors   []string
	Warnings []string
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

func (r *ValidationResult) Err() error {
	if r.IsValid() {
		return nil
	}
	return fmt.Errorf("invalid config: %s", strings.Join(r.Errors, "; "))
}

func (c Config) Validate() *ValidationResult {
	r := &ValidationResult{}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		r.Errors = append(r.Errors, fmt.Sprintf("server.port %d must be between 1 and 65535", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		r.Warnings = append(r.Warnings, "server.shutdown_timeout is not positive; shutdown will not wait for requests")
	}

	if c.Database.Path == "" {
		r.Errors = append(r.Errors, "database.path is required")
	}

	if c.Race.CountdownSeconds < 0 {
		r.Errors = append(r.Errors, "race.countdown_seconds must not be negative")
	}
	if c.Race.CountdownSeconds > 0 && c.Race.CountdownInterval <= 0 {
		r.Errors = append(r.Errors, "race.countdown_interval must be positive when a countdown is configured")
	}
	if c.Race.StartGrid.Spacing == 0 {
		r.Warnings = append(r.Warnings, "race.start_grid.spacing is 0; every car starts on the same cell")
	}
	if c.Race.LobbyGrid.Spacing == 0 {
		r.Warnings = append(r.Warnings, "race.lobby_grid.spacing is 0; every car spawns on the same cell")
	}

	if c.Transport.SendBuffer <= 0 {
		r.Errors = append(r.Errors, "transport.send_buffer must be positive")
	}
	if c.Transport.MaxMessageSize <= 0 {
		r.Errors = append(r.Errors, "transport.max_message_size must be positive")
	}
	if c.Transport.MessagesPerSecond <= 0 || c.Transport.MessageBurst <= 0 {
		r.Errors = append(r.Errors, "transport.messages_per_second and transport.message_burst must be positive")
	}

	if c.Retention.Enabled && c.Retention.Interval <= 0 {
		r.Errors = append(r.Errors, "retention.interval must be positive when retention is enabled")
	}
	if c.Retention.Enabled && c.Retention.MaxAge == 0 && c.Retention.KeepRecent == 0 {
		r.Warnings = append(r.Warnings, "retention is enabled but neither max_age nor keep_recent is set")
	}

	if !knownLogLevels[strings.ToLower(c.Log.Level)] {
		r.Errors = append(r.Errors, fmt.Sprintf("log.level %q must be one of: debug, info, warn, error", c.Log.Level))
	}
	if !knownLogFormats[strings.ToLower(c.Log.Format)] {
		r.Errors = append(r.Errors, fmt.Sprintf("log.format %q must be one of: text, json", c.Log.Format))
	}

	return r
}
