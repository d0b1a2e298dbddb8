package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/smartpm/internal/models"
)

// isolate points every location the config reads at a temp dir and clears
// SMARTPM_* overrides
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	for _, key := range []string{
		"SMARTPM_API_URL", "SMARTPM_STORE", "SMARTPM_STORE_URL", "SMARTPM_STORE_KEY",
		"SMARTPM_DB_PATH", "SMARTPM_USER_ID", "SMARTPM_TOKEN", "SMARTPM_MODEL", "SMARTPM_DOWNLOAD_DIR",
	} {
		t.Setenv(key, "")
	}
	return dir
}

func TestLoadDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.APIURL)
	assert.Equal(t, StoreSQLite, cfg.Store.Kind)
	assert.Equal(t, filepath.Join(dir, "data", "smartpm", "smartpm.db"), cfg.Store.DBPath)
	assert.Equal(t, "local", cfg.UserID)
	assert.Equal(t, models.ModelOpenAI, cfg.Model)
	assert.Equal(t, filepath.Join(dir, "Downloads"), cfg.DownloadDir)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, filepath.Join(dir, "config", "smartpm", "config.yaml"), cfg.Path())
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config", "smartpm", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`
api_url: https://api.example.com
store:
  kind: postgrest
  url: https://db.example.com
  key: anon
user_id: user-1
model: gemini
request_timeout: 5s
`), 0o644))

	t.Setenv("SMARTPM_API_URL", "http://127.0.0.1:9000")
	t.Setenv("SMARTPM_TOKEN", "jwt")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9000", cfg.APIURL)
	assert.Equal(t, StorePostgREST, cfg.Store.Kind)
	assert.Equal(t, "https://db.example.com", cfg.Store.URL)
	assert.Equal(t, "anon", cfg.Store.Key)
	assert.Empty(t, cfg.Store.DBPath)
	assert.Equal(t, "user-1", cfg.UserID)
	assert.Equal(t, "jwt", cfg.Token)
	assert.Equal(t, models.ModelGemini, cfg.Model)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
}

func TestValidate(t *testing.T) {
	isolate(t)

	t.Setenv("SMARTPM_STORE", "postgrest")
	_, err := Load()
	assert.ErrorContains(t, err, "store url is required")

	t.Setenv("SMARTPM_STORE", "mysql")
	_, err = Load()
	assert.ErrorContains(t, err, "unknown store kind")

	t.Setenv("SMARTPM_STORE", "")
	t.Setenv("SMARTPM_MODEL", "claude")
	_, err = Load()
	assert.ErrorContains(t, err, "unknown model")
}

func TestSaveRoundTrip(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load()
	require.NoError(t, err)
	cfg.LastProjectID = "p42"
	cfg.RequestTimeout = 10 * time.Second
	require.NoError(t, cfg.Save())

	info, err := os.Stat(filepath.Join(dir, "config", "smartpm", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "p42", again.LastProjectID)
	assert.Equal(t, 10*time.Second, again.RequestTimeout)
	assert.Equal(t, cfg.Store, again.Store)
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("SMARTPM_TEST_VALUE", "")
	assert.Equal(t, "fallback", EnvOrDefault("SMARTPM_TEST_VALUE", "fallback"))
	t.Setenv("SMARTPM_TEST_VALUE", "set")
	assert.Equal(t, "set", EnvOrDefault("SMARTPM_TEST_VALUE", "fallback"))
}
