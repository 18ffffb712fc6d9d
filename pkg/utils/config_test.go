package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8765", config.App.Port)
	assert.Equal(t, "sqlite", config.Database.Driver)
	assert.Equal(t, 2*time.Hour, config.Session.Lifetime)
	assert.Equal(t, 10*time.Minute, config.Session.SweepInterval)
	assert.Equal(t, 5, config.Security.MaxLoginAttempts)
	assert.Equal(t, 15*time.Minute, config.Security.LockoutDuration)
	assert.Equal(t, 10*time.Second, config.App.ShutdownTimeout)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "PORT=9000\nDB_DRIVER=postgres\nSESSION_LIFETIME=30m\nLOGIN_MAX_ATTEMPTS=3\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	t.Setenv("LOGIN_MAX_ATTEMPTS", "8")

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", config.App.Port)
	assert.Equal(t, "postgres", config.Database.Driver)
	assert.Equal(t, 30*time.Minute, config.Session.Lifetime)
	assert.Equal(t, 8, config.Security.MaxLoginAttempts, "environment wins over the file")
}
