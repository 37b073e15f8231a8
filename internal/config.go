package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/lookback/internal/projector"
	"github.com/starford/lookback/internal/store"
	"github.com/starford/lookback/internal/watch"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Archive ArchiveConfig     `yaml:"archive"`
	Ingest  IngestConfig      `yaml:"ingest"`
	Store   StoreConfig       `yaml:"store"`
	View    ViewConfig        `yaml:"view"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Archive.Validate(); err != nil {
		return err
	}
	if err := c.Ingest.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.View.Validate(); err != nil {
		return err
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

// ArchiveConfig describes the memories folder served at startup.
//
// Path may be empty, in which case nothing is ingested until a client asks
// for a folder. IngestOnStart and Watch both require a path.
type ArchiveConfig struct {
	Path          string        `yaml:"path"`
	IngestOnStart bool          `yaml:"ingest_on_start"`
	Watch         bool          `yaml:"watch"`
	Debounce      time.Duration `yaml:"debounce"`
}

// Validate validates the archive configuration.
func (c *ArchiveConfig) Validate() error {
	if c.Debounce == 0 {
		c.Debounce = watch.DefaultDebounce
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(10*time.Millisecond)),
	); err != nil {
		return err
	}
	if c.Path == "" && (c.IngestOnStart || c.Watch) {
		return errors.New("archive: ingest_on_start and watch need a path")
	}
	return nil
}

// IngestConfig tunes folder ingestion.
type IngestConfig struct {
	Concurrency   int   `yaml:"concurrency"`
	Autosave      bool  `yaml:"autosave"`
	MinMediaBytes int64 `yaml:"min_media_bytes"`
}

// Validate validates the ingest configuration.
func (c *IngestConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Concurrency, validation.Required, validation.Min(1), validation.Max(64)),
		validation.Field(&c.MinMediaBytes, validation.Min(int64(0))),
	)
}

// StoreConfig selects where the catalog is persisted.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(store.DriverSQLite, store.DriverJSON)),
		validation.Field(&c.Path, validation.Required),
	)
}

// ViewConfig holds projection settings.
type ViewConfig struct {
	Flashbacks int    `yaml:"flashbacks"`
	TimeZone   string `yaml:"timezone"`

	location *time.Location
}

// Validate validates the view configuration and resolves the time zone.
func (c *ViewConfig) Validate() error {
	if c.TimeZone == "" {
		c.TimeZone = "UTC"
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Flashbacks, validation.Required, validation.Min(1), validation.Max(100)),
	); err != nil {
		return err
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return fmt.Errorf("view: timezone %q: %w", c.TimeZone, err)
	}
	c.location = loc
	return nil
}

// Location returns the resolved calendar zone, UTC until Validate succeeds.
func (c *ViewConfig) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// AuthConfig holds authentication configuration.
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
				Port: 8080,
			},
		},
		Archive: ArchiveConfig{
			Debounce: watch.DefaultDebounce,
		},
		Ingest: IngestConfig{
			Concurrency: 8,
		},
		Store: StoreConfig{
			Driver: store.DriverSQLite,
			Path:   "./lookback.db",
		},
		View: ViewConfig{
			Flashbacks: projector.DefaultFlashbacks,
			TimeZone:   "UTC",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
