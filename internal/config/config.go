package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"chat-relay/internal/auth"
	"chat-relay/internal/presence"
)

// Config is read from the environment, optionally seeded from a .env file.
type Config struct {
	Port            string        `envconfig:"PORT" default:"5000"`
	AllowedOrigins  []string      `envconfig:"ALLOWED_ORIGINS"`
	OriginPatterns  []string      `envconfig:"ORIGIN_PATTERNS"`
	EmitSecret      string        `envconfig:"EMIT_SECRET"`
	RedisURL        string        `envconfig:"REDIS_URL"`
	RedisChannel    string        `envconfig:"REDIS_CHANNEL" default:"chat:events"`
	PresenceMode    string        `envconfig:"PRESENCE_MODE" default:"set"`
	TypingTTL       time.Duration `envconfig:"TYPING_TTL" default:"3s"`
	SendBuffer      int           `envconfig:"SEND_BUFFER" default:"256"`
	IdentitySecret  string        `envconfig:"IDENTITY_SECRET"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"text"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Load reads files (default .env) into the environment without overriding
// variables that are already set, then parses the environment.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = append([]string(nil), auth.DefaultOrigins...)
	}
	if len(cfg.OriginPatterns) == 0 {
		cfg.OriginPatterns = append([]string(nil), auth.DefaultOriginPatterns...)
	}
	for i := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(cfg.AllowedOrigins[i])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if _, err := presence.ParseMode(c.PresenceMode); err != nil {
		return err
	}
	if _, err := auth.NewGate(c.AllowedOrigins, c.OriginPatterns, c.EmitSecret); err != nil {
		return err
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("SEND_BUFFER must be positive, got %d", c.SendBuffer)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT can be text or json but not %q", c.LogFormat)
	}
	return nil
}

// Addr is the listen address for Port.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// SetupLogger installs the default slog logger for the configured level and format.
func (c *Config) SetupLogger() {
	level := slog.LevelInfo
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
