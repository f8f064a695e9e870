package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/cadenza/internal/grading"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Grading GradingConfig     `yaml:"grading"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Inbox   InboxConfig       `yaml:"inbox"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Grading.Validate(); err != nil {
		return fmt.Errorf("grading: %w", err)
	}
	if err := c.SQLite.Validate(); err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	if err := c.Inbox.Validate(); err != nil {
		return fmt.Errorf("inbox: %w", err)
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// GradingConfig tunes the grading engine and the service around it.
// Tolerances are in beats.
type GradingConfig struct {
	PositionTolerance float64       `yaml:"position_tolerance"`
	DurationTolerance float64       `yaml:"duration_tolerance"`
	MaxUploadBytes    int64         `yaml:"max_upload_bytes"`
	Timeout           time.Duration `yaml:"timeout"`
	BatchConcurrency  int           `yaml:"batch_concurrency"`
}

// Validate validates the grading configuration.
func (c *GradingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.PositionTolerance, validation.Required, validation.Min(0.0), validation.Max(4.0)),
		validation.Field(&c.DurationTolerance, validation.Min(0.0), validation.Max(4.0)),
		validation.Field(&c.MaxUploadBytes, validation.Required, validation.Min(int64(1024))),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.BatchConcurrency, validation.Required, validation.Min(1), validation.Max(64)),
	)
}

// EngineOptions converts the configuration into engine options.
func (c *GradingConfig) EngineOptions(logger *slog.Logger) []grading.Option {
	return []grading.Option{
		grading.WithPositionTolerance(c.PositionTolerance),
		grading.WithDurationTolerance(c.DurationTolerance),
		grading.WithLogger(logger),
	}
}

// SQLiteConfig holds the gradebook database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// InboxConfig holds the watched submissions directory configuration.
type InboxConfig struct {
	Enabled          bool    `yaml:"enabled"`
	Path             string  `yaml:"path"`
	DefaultSemitones int     `yaml:"default_semitones"`
	DefaultMaxPoints float64 `yaml:"default_max_points"`
}

// Validate validates the inbox configuration.
func (c *InboxConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.DefaultSemitones, validation.Min(-127), validation.Max(127)),
		validation.Field(&c.DefaultMaxPoints, validation.Min(0.0)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Grading: GradingConfig{
			PositionTolerance: grading.DefaultPositionTolerance,
			DurationTolerance: grading.DefaultDurationTolerance,
			MaxUploadBytes:    10 << 20,
			Timeout:           10 * time.Second,
			BatchConcurrency:  4,
		},
		SQLite: SQLiteConfig{
			Path: "./cadenza.db",
		},
		Inbox: InboxConfig{
			Enabled:          false,
			Path:             "./inbox",
			DefaultMaxPoints: 10,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
