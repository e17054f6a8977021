package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "sandbox", cfg.Signing.Environment)
	assert.Equal(t, time.Minute, cfg.Signing.SweepInterval)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 10*time.Second, cfg.Client.Timeout)
	assert.True(t, cfg.Database.Migrate)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docsign.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
signing:
  environment: production
  base_url: https://sign.example.com
database:
  url: postgres://file
`), 0o600))
	t.Setenv("DOCSIGN_DATABASE_URL", "postgres://env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "production", cfg.Signing.Environment)
	assert.Equal(t, "https://sign.example.com", cfg.Signing.BaseURL)
	assert.Equal(t, "postgres://env", cfg.Database.URL)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateServer(t *testing.T) {
	cfg := Config{
		Database: DatabaseConfig{URL: "postgres://x"},
		Auth:     AuthConfig{JWTSecret: "0123456789abcdef0123456789abcdef"},
		Signing:  SigningConfig{Environment: "sandbox"},
	}
	require.NoError(t, cfg.ValidateServer())

	bad := cfg
	bad.Auth.JWTSecret = "short"
	assert.Error(t, bad.ValidateServer())

	bad = cfg
	bad.Signing.Environment = "staging"
	assert.Error(t, bad.ValidateServer())

	bad = cfg
	bad.Database.URL = ""
	assert.Error(t, bad.ValidateServer())
}

func TestLoadLocation(t *testing.T) {
	loc, err := Config{}.LoadLocation()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = Config{Signing: SigningConfig{Location: "Nowhere/Void"}}.LoadLocation()
	assert.Error(t, err)
}
