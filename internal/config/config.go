package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Session  SessionConfig
	OIDC     OIDCConfig
	Sync     SyncConfig
	Backfill BackfillConfig
	Log      LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" envDefault:"8080"`
	// RootURL is the externally visible URL of this server. The import view
	// refuses to sync from it.
	RootURL string `env:"SERVER_ROOT_URL" envDefault:"http://localhost:8080"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER" envDefault:"sqlite3"`
	DSN    string `env:"DB_DSN" envDefault:"data/position-admin.db"`
}

// SessionConfig holds the session cookie settings.
type SessionConfig struct {
	Secret   string        `env:"SESSION_SECRET"`
	Duration time.Duration `env:"SESSION_DURATION" envDefault:"24h"`
	Secure   bool          `env:"SESSION_SECURE" envDefault:"false"`
}

// SecretBytes returns the session secret as a 32-byte key.
func (c *SessionConfig) SecretBytes() ([]byte, error) {
	if c.Secret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}
	if len(c.Secret) == 64 {
		decoded, err := hex.DecodeString(c.Secret)
		if err == nil {
			return decoded, nil
		}
	}
	if len(c.Secret) != 32 {
		return nil, fmt.Errorf("SESSION_SECRET must be 32 bytes (or 64 hex characters)")
	}
	return []byte(c.Secret), nil
}

// OIDCConfig holds OIDC sign-in configuration.
type OIDCConfig struct {
	Enabled        bool   `env:"OIDC_ENABLED" envDefault:"false"`
	IssuerURL      string `env:"OIDC_ISSUER_URL"`
	ClientID       string `env:"OIDC_CLIENT_ID"`
	ClientSecret   string `env:"OIDC_CLIENT_SECRET"`
	RedirectURL    string `env:"OIDC_REDIRECT_URL"`
	Scopes         string `env:"OIDC_SCOPES" envDefault:"openid,email,profile"`
	AllowedDomains string `env:"OIDC_ALLOWED_DOMAINS"`
}

// GetScopes returns the OIDC scopes as a slice.
func (c *OIDCConfig) GetScopes() []string {
	if c.Scopes == "" {
		return []string{"openid", "email", "profile"}
	}
	return strings.Split(c.Scopes, ",")
}

// GetAllowedDomains returns the allowed email domains as a slice.
func (c *OIDCConfig) GetAllowedDomains() []string {
	if c.AllowedDomains == "" {
		return nil
	}
	domains := strings.Split(c.AllowedDomains, ",")
	for i := range domains {
		domains[i] = strings.TrimSpace(domains[i])
	}
	return domains
}

// SyncConfig holds the master server sync settings.
type SyncConfig struct {
	// PositionsURL is the master server's positions sync-out endpoint.
	PositionsURL string        `env:"POSITIONS_SYNC_URL" envDefault:"https://api.wevoteusa.org/apis/v1/positionsSyncOut/"`
	APIKey       string        `env:"POSITIONS_SYNC_API_KEY"`
	// FileShim, when set, imports from a local sync-out dump instead of the master.
	FileShim     string        `env:"POSITIONS_SYNC_FILE_SHIM"`
	Timeout      time.Duration `env:"SYNC_TIMEOUT" envDefault:"60s"`
	Attempts     uint          `env:"SYNC_ATTEMPTS" envDefault:"3"`
	ExportRPS    float64       `env:"SYNC_EXPORT_RPS" envDefault:"2"`
	ExportBurst  int           `env:"SYNC_EXPORT_BURST" envDefault:"4"`
	// ExportAPIKey, when set, is required from peers calling the sync-out export.
	ExportAPIKey string        `env:"SYNC_EXPORT_API_KEY"`
}

// UseFileShim reports whether imports read from a local file.
func (c *SyncConfig) UseFileShim() bool {
	return c.FileShim != ""
}

// BackfillConfig caps the backfill routines.
type BackfillConfig struct {
	BatchSize           int `env:"BACKFILL_BATCH_SIZE" envDefault:"500"`
	PoliticianBatchSize int `env:"BACKFILL_POLITICIAN_BATCH_SIZE" envDefault:"10"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Env   string `env:"APP_ENV" envDefault:"production"`
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load loads configuration from a .env file, if present, and the environment.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := &Config{}
	sections := []struct {
		name string
		dst  any
	}{
		{"server", &cfg.Server},
		{"database", &cfg.Database},
		{"session", &cfg.Session},
		{"oidc", &cfg.OIDC},
		{"sync", &cfg.Sync},
		{"backfill", &cfg.Backfill},
		{"log", &cfg.Log},
	}
	for _, s := range sections {
		if err := env.Parse(s.dst); err != nil {
			return nil, fmt.Errorf("parsing %s config: %w", s.name, err)
		}
	}
	return cfg, nil
}

// Addr returns the server address in host:port format.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite3 or postgres, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}

	if _, err := c.Session.SecretBytes(); err != nil {
		return err
	}

	if c.Sync.PositionsURL != "" {
		if _, err := url.ParseRequestURI(c.Sync.PositionsURL); err != nil {
			return fmt.Errorf("POSITIONS_SYNC_URL is not a valid URL: %w", err)
		}
	}

	if c.Sync.ExportRPS <= 0 || c.Sync.ExportBurst <= 0 {
		return fmt.Errorf("SYNC_EXPORT_RPS and SYNC_EXPORT_BURST must be positive")
	}

	if c.Backfill.BatchSize <= 0 {
		return fmt.Errorf("BACKFILL_BATCH_SIZE must be positive")
	}
	if c.Backfill.PoliticianBatchSize <= 0 {
		return fmt.Errorf("BACKFILL_POLITICIAN_BATCH_SIZE must be positive")
	}

	if c.OIDC.Enabled {
		if c.OIDC.IssuerURL == "" {
			return fmt.Errorf("OIDC_ISSUER_URL is required when OIDC is enabled")
		}
		if c.OIDC.ClientID == "" {
			return fmt.Errorf("OIDC_CLIENT_ID is required when OIDC is enabled")
		}
		if c.OIDC.ClientSecret == "" {
			return fmt.Errorf("OIDC_CLIENT_SECRET is required when OIDC is enabled")
		}
		if c.OIDC.RedirectURL == "" {
			return fmt.Errorf("OIDC_REDIRECT_URL is required when OIDC is enabled")
		}
	}

	return nil
}
