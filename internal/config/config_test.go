package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// inDir runs the test from a scratch working directory holding the given config.yaml.
func inDir(t *testing.T, yaml string) {
	t.Helper()
	dir := t.TempDir()
	if yaml != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	}
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	inDir(t, "")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("PORT", "8081")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expire)
	assert.Equal(t, time.Minute, cfg.Redis.StatsTTL)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Empty(t, cfg.MinIO.Endpoint)
}

func TestLoad_FileThenEnvOverride(t *testing.T) {
	inDir(t, `
server:
  port: 4000
database:
  driver: postgres
  host: db.internal
  port: 6432
  user: dispatch
  password: pw
  dbname: dispatch
redis:
  addr: cache:6379
  stats_ttl: 15s
jwt:
  secret: from-file
log:
  level: debug
  format: console
`)
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, 15*time.Second, cfg.Redis.StatsTTL)
	assert.Equal(t,
		"host=db.internal port=6432 user=dispatch password=pw dbname=dispatch sslmode=disable TimeZone=UTC",
		cfg.Database.DSN())
}

func TestLoad_Rejects(t *testing.T) {
	inDir(t, "")
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	assert.ErrorContains(t, err, "jwt.secret")

	t.Setenv("JWT_SECRET", "x")
	t.Setenv("DB_DRIVER", "sqlite")
	_, err = Load()
	assert.ErrorContains(t, err, "database.driver")
}

func TestDSN_PrefersURL(t *testing.T) {
	c := DatabaseConfig{URL: "postgres://u:p@h/db", Host: "ignored"}
	assert.Equal(t, "postgres://u:p@h/db", c.DSN())
}

func TestNewLogger(t *testing.T) {
	log, err := NewLogger(LogConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zap.InfoLevel))
	assert.True(t, log.Core().Enabled(zap.WarnLevel))
}
