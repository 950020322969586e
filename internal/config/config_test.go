package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":3000", cfg.BasicConfig.ServerAddress)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "memory", cfg.Session.Store)
	assert.Equal(t, "lo1.sid", cfg.Session.CookieName)
	assert.Equal(t, 30, cfg.Session.IdleTimeoutMinutes)
	assert.Equal(t, 60, cfg.BasicConfig.StagingTTLMinutes)
	assert.Equal(t, 4, cfg.BasicConfig.FileWorkers)
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "absent.json")

	cfg, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "public", "uploads"), cfg.BasicConfig.UploadStagingDir)

	_, err = Load(path, true)
	require.Error(t, err)
}

func TestLoadResolvesPathsAgainstConfigDir(t *testing.T) {
	path := writeConfig(t, `{
		"basic_config": {"environment": "production", "static_dir": "www", "image_dir": "/srv/images"},
		"session": {"store": "SQLite"},
		"databases": {"sqlite3": {"dsn": "data/sessions.db"}}
	}`)
	dir := filepath.Dir(path)

	cfg, err := Load(path, true)
	require.NoError(t, err)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, filepath.Join(dir, "www"), cfg.BasicConfig.StaticDir)
	assert.Equal(t, "/srv/images", cfg.BasicConfig.ImageDir)
	assert.Equal(t, "sqlite3", cfg.Session.Store)
	assert.Equal(t, filepath.Join(dir, "data", "sessions.db"), cfg.Databases["sqlite3"].DSN)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"bad environment":  `{"basic_config": {"environment": "staging"}}`,
		"unknown store":    `{"session": {"store": "etcd"}}`,
		"missing database": `{"session": {"store": "postgres"}}`,
		"malformed json":   `{"basic_config": `,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body), true)
			require.Error(t, err)
		})
	}
}
