package config

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DECKHAND_CONFIG_FILE", "")
	t.Setenv("DECKHAND_DB_PATH", "/tmp/test.db")

	cfg, err := Load(quietLogger())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, 30*time.Second, cfg.Docker.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Realtime.SnapshotInterval)
	assert.Equal(t, "100", cfg.Realtime.LogTail)
	assert.Equal(t, 30, cfg.LogRetention.Days)
	assert.Empty(t, cfg.Auth.JWTSecret)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deckhand.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9000"
  allowed_origins: ["http://localhost:3000"]
docker:
  timeout: 10s
realtime:
  snapshot_interval: 2s
log:
  level: debug
  format: json
`), 0o644))

	t.Setenv("DECKHAND_CONFIG_FILE", path)
	t.Setenv("DECKHAND_SERVER_PORT", "9100")
	t.Setenv("DECKHAND_JWT_SECRET", "secret")

	cfg, err := Load(quietLogger())
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 10*time.Second, cfg.Docker.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Realtime.SnapshotInterval)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "secret", cfg.Auth.JWTSecret)
}

func TestLoadInvalidValueFallsBack(t *testing.T) {
	t.Setenv("DECKHAND_CONFIG_FILE", "")
	t.Setenv("DECKHAND_DOCKER_TIMEOUT", "soon")
	t.Setenv("DECKHAND_ALLOWED_ORIGINS", "http://a, http://b")

	cfg, err := Load(quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Docker.Timeout)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.Server.AllowedOrigins)
}

func TestLoadRejectsInvalidConfiguration(t *testing.T) {
	t.Setenv("DECKHAND_CONFIG_FILE", "")

	t.Setenv("DECKHAND_CPU_THRESHOLD", "150")
	_, err := Load(quietLogger())
	assert.Error(t, err)

	t.Setenv("DECKHAND_CPU_THRESHOLD", "")
	t.Setenv("DECKHAND_LOG_FORMAT", "xml")
	_, err = Load(quietLogger())
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("DECKHAND_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load(quietLogger())
	assert.Error(t, err)
}

func TestConfigureLogger(t *testing.T) {
	logger := logrus.New()
	LogConfig{Level: "warn", Format: "json"}.ConfigureLogger(logger)

	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
}
