package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv(TokenEnv, "")
	t.Setenv(JWTSecretEnv, "")
	path := writeFile(t, "config.yaml", `
server:
  port: 9090
database:
  driver: postgres
  dsn: "host=localhost dbname=campus"
auth:
  jwt_secret: "abc"
  token_ttl_minutes: 5
client:
  base_url: "http://api.example.edu"
  timeout_seconds: 3
  last_settled_wins: true
log:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.CacheTTL)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "host=localhost dbname=campus", cfg.Database.DSN)
	assert.Equal(t, "abc", cfg.Auth.JWTSecret)
	assert.Equal(t, 5*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, "campus-admin", cfg.Auth.Issuer)
	assert.Equal(t, "http://api.example.edu", cfg.Client.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Client.Timeout)
	assert.True(t, cfg.Client.LastSettledWins)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeFile(t, "bad.yaml", "server: [1, 2"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	t.Setenv(TokenEnv, "")
	t.Setenv(JWTSecretEnv, "")
	cfg := Default()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.NotEmpty(t, cfg.Database.DSN)
	assert.Equal(t, "http://localhost:8080", cfg.Client.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Client.Timeout)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Empty(t, cfg.Client.Token)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(TokenEnv, "tok")
	t.Setenv(JWTSecretEnv, "sec")
	cfg := Default()
	assert.Equal(t, "tok", cfg.Client.Token)
	assert.Equal(t, "sec", cfg.Auth.JWTSecret)
}

func TestLoadEnv(t *testing.T) {
	// godotenv never overrides a variable that is already set, even to "".
	t.Setenv(TokenEnv, "")
	require.NoError(t, os.Unsetenv(TokenEnv))
	path := writeFile(t, ".env", TokenEnv+"=from-dotenv\n")

	require.NoError(t, LoadEnv(filepath.Join(t.TempDir(), "absent.env"), path))
	assert.Equal(t, "from-dotenv", os.Getenv(TokenEnv))
	assert.Equal(t, "from-dotenv", Default().Client.Token)
}
