package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/jotter/internal/pipeline"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Store    StoreConfig       `yaml:"store"`
	Pipeline PipelineConfig    `yaml:"pipeline"`
	Ingress  IngressConfig     `yaml:"ingress"`
	Watch    WatchConfig       `yaml:"watch"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{&c.App, &c.Store, &c.Pipeline, &c.Ingress, &c.Watch, &c.Auth} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
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
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.When(c.Enabled, validation.Required, validation.Min(1), validation.Max(65535))),
	)
}

// StoreConfig locates the persistence file.
type StoreConfig struct {
	Path       string `yaml:"path"`
	File       string `yaml:"file"`
	Encryption bool   `yaml:"encryption"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.File, validation.Required),
	)
}

// PipelineConfig tunes the command pipeline.
type PipelineConfig struct {
	ResponseTimeout time.Duration `yaml:"response_timeout"`
	Shutdown        string        `yaml:"shutdown"`
	UndoDepth       int           `yaml:"undo_depth"`
}

// Validate validates the pipeline configuration.
func (c *PipelineConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ResponseTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.Shutdown, validation.Required,
			validation.In(string(pipeline.Drain), string(pipeline.Discard))),
		validation.Field(&c.UndoDepth, validation.Min(0), validation.Max(10000)),
	)
}

// IngressConfig holds the framed TCP listener configuration.
type IngressConfig struct {
	Enabled    bool `yaml:"enabled"`
	Port       int  `yaml:"port"`
	Backlog    int  `yaml:"backlog"`
	MaxPayload int  `yaml:"max_payload"`
}

// Address returns the ingress listen address.
func (c *IngressConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the ingress configuration.
func (c *IngressConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.When(c.Enabled, validation.Required, validation.Min(1), validation.Max(65535))),
		validation.Field(&c.Backlog, validation.When(c.Enabled, validation.Required, validation.Min(1))),
		validation.Field(&c.MaxPayload, validation.When(c.Enabled, validation.Required, validation.Min(1), validation.Max(999_999_999))),
	)
}

// WatchConfig controls reloading on external changes to the data file.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the watcher configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// AuthConfig holds authentication configuration for the HTTP API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
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
				Enabled: true,
				Port:    8080,
			},
		},
		Store: StoreConfig{
			Path: "./data",
			File: "records.json",
		},
		Pipeline: PipelineConfig{
			ResponseTimeout: 10 * time.Second,
			Shutdown:        string(pipeline.Drain),
			UndoDepth:       pipeline.DefaultUndoDepth,
		},
		Ingress: IngressConfig{
			Enabled:    false,
			Port:       7070,
			Backlog:    16,
			MaxPayload: 1 << 20,
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: 200 * time.Millisecond,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
