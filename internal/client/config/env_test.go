package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(m map[string]string) lookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestApplyEnv(t *testing.T) {
	c := validConfig()
	err := applyEnv(c, mapLookup(map[string]string{
		"GOPHCHAT_MONGO_URI":           "mongodb://db:27017",
		"GOPHCHAT_CHANGE_SOURCE":       "redis",
		"GOPHCHAT_S3_BUCKET":           "media",
		"GOPHCHAT_CLEANUP_INTERVAL":    "12h",
		"GOPHCHAT_CLEANUP_CONCURRENCY": "8",
		"GOPHCHAT_MAX_IMAGE_BYTES":     "1024",
		"GOPHCHAT_AVATARS":             " a.png, ,b.png ",
	}))
	require.NoError(t, err)

	assert.Equal(t, "mongodb://db:27017", c.MongoURI)
	assert.Equal(t, ChangeSourceRedis, c.ChangeSource)
	assert.Equal(t, "media", c.S3.Bucket)
	assert.Equal(t, 12*time.Hour, c.CleanupInterval)
	assert.Equal(t, 8, c.CleanupConcurrency)
	assert.Equal(t, int64(1024), c.MaxImageBytes)
	assert.Equal(t, []string{"a.png", "b.png"}, c.Avatars)
	// untouched
	assert.Equal(t, "gophchat", c.MongoDatabase)
}

func TestApplyEnv_CollectsErrors(t *testing.T) {
	c := validConfig()
	err := applyEnv(c, mapLookup(map[string]string{
		"GOPHCHAT_CLEANUP_INTERVAL": "daily",
		"GOPHCHAT_MAX_VIDEO_BYTES":  "lots",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOPHCHAT_CLEANUP_INTERVAL")
	assert.Contains(t, err.Error(), "GOPHCHAT_MAX_VIDEO_BYTES")
	assert.Equal(t, 24*time.Hour, c.CleanupInterval)
}

func TestParseEnv_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("GOPHCHAT_MONGO_DATABASE=fromfile\nGOPHCHAT_LOG_LEVEL=debug\n"), 0o600))

	t.Setenv("GOPHCHAT_ENV_FILE", path)
	t.Setenv("GOPHCHAT_LOG_LEVEL", "warn")
	t.Cleanup(func() { _ = os.Unsetenv("GOPHCHAT_MONGO_DATABASE") })

	c := validConfig()
	require.NoError(t, parseEnv(c))

	assert.Equal(t, "fromfile", c.MongoDatabase)
	// the process environment wins over the file
	assert.Equal(t, "warn", c.LogLevel)
}

func TestParseEnv_MissingFileIsFine(t *testing.T) {
	t.Setenv("GOPHCHAT_ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
	c := validConfig()
	assert.NoError(t, parseEnv(c))
}
