package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/manpreetbhatti/driftrace/backend/internal/race"
	"github.com/manpreetbhatti/driftrace/backend/internal/retention"
	"github.com/manpreetbhatti/driftrace/backend/internal/room"
	"github.com/manpreetbhatti/driftrace/backend/internal/ws"
	"gopkg.in/yaml.v3"
)

// Config is the server configuration as read from driftrace.yaml.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Race      RaceConfig      `yaml:"race"`
	Transport TransportConfig `yaml:"transport"`
	Retention RetentionConfig `yaml:"retention"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RaceConfig struct {
	CountdownSeconds  int           `yaml:"countdown_seconds"`
	CountdownInterval time.Duration `yaml:"countdown_interval"`
	LobbyGrid         race.Grid     `yaml:"lobby_grid"`
	StartGrid         race.Grid     `yaml:"start_grid"`
}

type TransportConfig struct {
	SendBuffer        int     `yaml:"send_buffer"`
	MaxMessageSize    int64   `yaml:"max_message_size"`
	MessagesPerSecond float64 `yaml:"messages_per_second"`
	MessageBurst      int     `yaml:"message_burst"`
	MaxViolations     int     `yaml:"max_violations"`
}

type RetentionConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Interval   time.Duration `yaml:"interval"`
	MaxAge     time.Duration `yaml:"max_age"`
	KeepRecent int           `yaml:"keep_recent"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() Config {
	rs := room.DefaultSettings()
	tc := ws.DefaultConfig()
	rc := retention.DefaultConfig()
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{Path: "./data/driftrace.db"},
		Race: RaceConfig{
			CountdownSeconds:  rs.CountdownSeconds,
			CountdownInterval: rs.CountdownInterval,
			LobbyGrid:         rs.LobbyGrid,
			StartGrid:         rs.StartGrid,
		},
		Transport: TransportConfig{
			SendBuffer:        tc.SendBuffer,
			MaxMessageSize:    tc.MaxMessageSize,
			MessagesPerSecond: tc.MessagesPerSecond,
			MessageBurst:      tc.MessageBurst,
			MaxViolations:     tc.MaxViolations,
		},
		Retention: RetentionConfig{
			Enabled:    true,
			Interval:   rc.Interval,
			MaxAge:     rc.MaxAge,
			KeepRecent: rc.KeepRecent,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults. A missing file is not an error when
// optional is true.
func Load(path string, optional bool) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables. Unparseable numbers
// are reported rather than ignored.
func (c *Config) ApplyEnv(env map[string]string) error {
	if v := env["PORT"]; v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := env["DRIFTRACE_DB_PATH"]; v != "" {
		c.Database.Path = v
	}
	if v := env["DRIFTRACE_LOG_LEVEL"]; v != "" {
		c.Log.Level = v
	}
	if v := env["DRIFTRACE_LOG_FORMAT"]; v != "" {
		c.Log.Format = v
	}
	if v := env["DRIFTRACE_COUNTDOWN_SECONDS"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DRIFTRACE_COUNTDOWN_SECONDS: %w", err)
		}
		c.Race.CountdownSeconds = n
	}
	return nil
}

// Environ returns the process environment as a map for ApplyEnv.
func Environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c Config) RoomSettings() room.Settings {
	return room.Settings{
		LobbyGrid:         c.Race.LobbyGrid,
		StartGrid:         c.Race.StartGrid,
		CountdownSeconds:  c.Race.CountdownSeconds,
		CountdownInterval: c.Race.CountdownInterval,
	}
}

func (c Config) TransportConfig() ws.Config {
	return ws.Config{
		SendBuffer:        c.Transport.SendBuffer,
		MaxMessageSize:    c.Transport.MaxMessageSize,
		MessagesPerSecond: c.Transport.MessagesPerSecond,
		MessageBurst:      c.Transport.MessageBurst,
		MaxViolations:     c.Transport.MaxViolations,
	}
}

func (c Config) RetentionConfig() retention.Config {
	return retention.Config{
		Interval:   c.Retention.Interval,
		MaxAge:     c.Retention.MaxAge,
		KeepRecent: c.Retention.KeepRecent,
	}
}

// NewLogger builds the process logger from the log section.
func (c Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.Log.Level)}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
