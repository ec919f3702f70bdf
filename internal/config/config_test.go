package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/resscene/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, domain.DefaultActionTimeout, cfg.Scenes.ActionTimeout)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := writeFile(t, "resscene.yaml", `
store:
  backend: sqlite
  path: /var/lib/resscene/scenes.db
redact: [entity_picture, access_token]
scenes:
  action_timeout: 15s
log:
  level: debug
`)
	t.Setenv("RESSCENE_LOG_LEVEL", "warn")
	t.Setenv("RESSCENE_HTTP_ADDRESS", ":9000")
	t.Setenv("RESSCENE_SCENE_RESTORE_LIGHT_ATTRIBUTES", "true")

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "/var/lib/resscene/scenes.db", cfg.Store.Path)
	assert.Equal(t, []string{"entity_picture", "access_token"}, cfg.Redact)
	assert.Equal(t, 15*time.Second, cfg.Scenes.ActionTimeout)
	assert.Equal(t, time.Second, cfg.Scenes.CallDelay, "untouched defaults survive")
	assert.Equal(t, "warn", cfg.Log.Level, "environment overrides the file")
	assert.Equal(t, ":9000", cfg.HTTP.Address)
	assert.True(t, cfg.Scenes.RestoreLightAttributes)
}

func TestLoad_DotEnv(t *testing.T) {
	dotenv := writeFile(t, ".env", "RESSCENE_HA_URL=http://ha.local:8123\nRESSCENE_HA_TOKEN=abc\nRESSCENE_STORE_BACKEND=memory\n")
	t.Setenv("RESSCENE_HA_TOKEN", "from-env")
	t.Cleanup(func() {
		os.Unsetenv("RESSCENE_HA_URL")
		os.Unsetenv("RESSCENE_STORE_BACKEND")
	})

	cfg, err := Load("", dotenv)
	require.NoError(t, err)
	assert.Equal(t, "http://ha.local:8123", cfg.HomeAssistant.URL)
	assert.Equal(t, "from-env", cfg.HomeAssistant.Token, ".env never overrides the environment")
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
}

func TestLoad_MissingDotEnvIsIgnored(t *testing.T) {
	_, err := Load("", filepath.Join(t.TempDir(), ".env"))
	assert.NoError(t, err)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), "")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	key := base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32)))

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"default", func(*Config) {}, ""},
		{"unknown backend", func(c *Config) { c.Store.Backend = "etcd" }, "unknown store backend"},
		{"file without path", func(c *Config) { c.Store.Path = " " }, "store.path"},
		{"locking without redis", func(c *Config) { c.Redis.Locking = true }, "redis.locking"},
		{"short key", func(c *Config) { c.Encryption.Key = base64.StdEncoding.EncodeToString([]byte("short")) }, "32 bytes"},
		{"bad base64", func(c *Config) { c.Encryption.Key = "%%%" }, "encryption.key"},
		{"good key", func(c *Config) { c.Encryption.Key = key }, ""},
		{"bad fallback", func(c *Config) { c.Encryption.Key = key; c.Encryption.FallbackKeys = []string{"x"} }, "fallback_keys[0]"},
		{"zero timeout", func(c *Config) { c.Scenes.ActionTimeout = 0 }, "action_timeout"},
		{"negative delay", func(c *Config) { c.Scenes.CallDelay = -time.Second }, "call_delay"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
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

func TestEncryptionKeys(t *testing.T) {
	active := []byte(strings.Repeat("a", 32))
	old := []byte(strings.Repeat("b", 32))
	cfg := Default()
	cfg.Encryption.Key = base64.StdEncoding.EncodeToString(active)
	cfg.Encryption.FallbackKeys = []string{base64.StdEncoding.EncodeToString(old)}

	gotActive, gotFallbacks, err := cfg.EncryptionKeys()
	require.NoError(t, err)
	assert.Equal(t, active, gotActive)
	assert.Equal(t, [][]byte{old}, gotFallbacks)
}
