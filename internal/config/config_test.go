package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, 24*time.Hour, cfg.Session.Duration)
	assert.Equal(t, 500, cfg.Backfill.BatchSize)
	assert.Equal(t, 10, cfg.Backfill.PoliticianBatchSize)
	assert.Equal(t, uint(3), cfg.Sync.Attempts)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("BACKFILL_BATCH_SIZE=25\nSERVER_PORT=9000\n"), 0o600))
	t.Setenv("SERVER_PORT", "9100")
	defer os.Unsetenv("BACKFILL_BATCH_SIZE")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Backfill.BatchSize)
	assert.Equal(t, 9100, cfg.Server.Port, "environment wins over .env")
}

func validConfig() *Config {
	return &Config{
		Database: DatabaseConfig{Driver: "sqlite3", DSN: ":memory:"},
		Session:  SessionConfig{Secret: testSecret},
		Sync:     SyncConfig{PositionsURL: "https://master.example/positions/sync-out", ExportRPS: 2, ExportBurst: 4},
		Backfill: BackfillConfig{BatchSize: 500, PoliticianBatchSize: 10},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Database.Driver = "mysql" },
			wantErr: "DB_DRIVER",
		},
		{
			name:    "missing session secret",
			mutate:  func(c *Config) { c.Session.Secret = "" },
			wantErr: "SESSION_SECRET is required",
		},
		{
			name:    "short session secret",
			mutate:  func(c *Config) { c.Session.Secret = "short" },
			wantErr: "32 bytes",
		},
		{
			name:    "bad sync url",
			mutate:  func(c *Config) { c.Sync.PositionsURL = "not a url" },
			wantErr: "POSITIONS_SYNC_URL",
		},
		{
			name:    "zero export rate",
			mutate:  func(c *Config) { c.Sync.ExportRPS = 0 },
			wantErr: "SYNC_EXPORT_RPS",
		},
		{
			name:    "zero batch",
			mutate:  func(c *Config) { c.Backfill.BatchSize = 0 },
			wantErr: "BACKFILL_BATCH_SIZE",
		},
		{
			name: "oidc without issuer",
			mutate: func(c *Config) {
				c.OIDC.Enabled = true
			},
			wantErr: "OIDC_ISSUER_URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSecretBytesAcceptsHex(t *testing.T) {
	c := SessionConfig{Secret: strings.Repeat("ab", 32)}
	key, err := c.SecretBytes()
	require.NoError(t, err)
	assert.Len(t, key, 32)
}

func TestOIDCLists(t *testing.T) {
	c := OIDCConfig{AllowedDomains: "wevote.us, example.org"}
	assert.Equal(t, []string{"wevote.us", "example.org"}, c.GetAllowedDomains())
	assert.Equal(t, []string{"openid", "email", "profile"}, (&OIDCConfig{}).GetScopes())
}
