package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/hikelog/internal/calendar"
	"github.com/starford/hikelog/internal/store"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Photos   PhotosConfig      `yaml:"photos"`
	Inbox    InboxConfig       `yaml:"inbox"`
	Calendar CalendarConfig    `yaml:"calendar"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{&c.App, &c.SQLite, &c.Photos, &c.Inbox, &c.Calendar, &c.Auth} {
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

// SQLiteConfig holds SQLite database configuration.
// Driver picks the cgo driver ("sqlite3") or the pure-Go one ("sqlite").
type SQLiteConfig struct {
	Path   string `yaml:"path"`
	Driver string `yaml:"driver"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	if c.Driver == "" {
		c.Driver = store.DriverCGO
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Driver, validation.In(store.DriverCGO, store.DriverPureGo)),
	)
}

// StoreConfig converts to the store's connection settings.
func (c *SQLiteConfig) StoreConfig() store.Config {
	return store.Config{Path: c.Path, Driver: c.Driver}
}

// PhotosConfig holds the directory that keeps hike and observation photos.
type PhotosConfig struct {
	Dir string `yaml:"dir"`
}

// Validate validates the photos configuration.
func (c *PhotosConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
	)
}

// InboxConfig controls the watched import directory.
type InboxConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// Validate validates the inbox configuration.
func (c *InboxConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.When(c.Enabled, validation.Required)),
	)
}

// CalendarConfig selects how hikes are added to a calendar.
type CalendarConfig struct {
	Platform string `yaml:"platform"`
	Dir      string `yaml:"dir"`
}

// Validate validates the calendar configuration.
func (c *CalendarConfig) Validate() error {
	if c.Platform == "" {
		c.Platform = calendar.PlatformNone
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Platform, validation.In(calendar.PlatformICS, calendar.PlatformNone)),
		validation.Field(&c.Dir, validation.When(c.Platform == calendar.PlatformICS, validation.Required)),
	)
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
		SQLite: SQLiteConfig{
			Path:   "./hikelog.db",
			Driver: store.DriverCGO,
		},
		Photos: PhotosConfig{
			Dir: "./photos",
		},
		Inbox: InboxConfig{
			Enabled: false,
			Dir:     "./inbox",
		},
		Calendar: CalendarConfig{
			Platform: calendar.PlatformNone,
			Dir:      "./calendar",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
