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

	assert.Equal(t, "https://api.discogs.com", cfg.Discogs.BaseURL)
	assert.Equal(t, "file", cfg.Cache.Backend)
	assert.Equal(t, 5, cfg.Pacing.LowWater)
	assert.Equal(t, 60*time.Second, cfg.Pacing.Cooldown)
	assert.Equal(t, 700*time.Millisecond, cfg.EnrichPacing().AnnotationDelay)
	assert.Equal(t, 1500*time.Millisecond, cfg.WritePacing().Target)
	assert.Equal(t, filepath.Join(".", "discogs_cache.json"), cfg.SnapshotPath())
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "discat.yaml")
	yaml := `
discogs:
  token: file-token
  username: file-user
output:
  dir: /data/discat
pacing:
  metadata_delay: 1s
  write_checkpoint: 20
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("DISCOGS_TOKEN", "env-token")
	t.Setenv("DISCAT_PACING_ANNOTATION_DELAY", "250ms")
	t.Setenv("DISCAT_CACHE_BACKEND", "badger")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Discogs.Token, "env overrides file")
	assert.Equal(t, "file-user", cfg.Discogs.Username)
	assert.Equal(t, "/data/discat", cfg.Output.Dir)
	assert.Equal(t, time.Second, cfg.Pacing.MetadataDelay)
	assert.Equal(t, 250*time.Millisecond, cfg.Pacing.AnnotationDelay)
	assert.Equal(t, 20, cfg.Pacing.WriteCheckpoint)
	assert.Equal(t, "badger", cfg.Cache.Backend)
	assert.Equal(t, "/data/discat/discat-cache", cfg.BadgerPath())
	assert.Equal(t, "debug", cfg.LogConfig().Level)
	assert.Equal(t, "env-token", cfg.DiscogsCredentials().Token)
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown backend", map[string]string{"DISCAT_CACHE_BACKEND": "redis"}},
		{"bad log level", map[string]string{"DISCAT_LOGGING_LEVEL": "loud"}},
		{"postgres without url", map[string]string{"DISCAT_CACHE_BACKEND": "postgres"}},
		{"bad base url", map[string]string{"DISCOGS_BASE_URL": "not a url"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvTransformFunc(t *testing.T) {
	tests := map[string]string{
		"DISCOGS_TOKEN":                  "discogs.token",
		"DISCOGS_USERNAME":               "discogs.username",
		"DATABASE_URL":                   "database.url",
		"DISCAT_OUTPUT_DIR":              "output.dir",
		"DISCAT_PACING_METADATA_DELAY":   "pacing.metadata_delay",
		"DISCAT_SERVER_SHUTDOWN_TIMEOUT": "server.shutdown_timeout",
		"DISCAT_CONFIG":                  "",
		"DISCAT_":                        "",
		"HOME":                           "",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}
