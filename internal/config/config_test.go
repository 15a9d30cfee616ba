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

// chdirTemp moves into an empty directory and blanks the legacy variables so
// the host environment cannot leak into Load.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	for _, name := range legacyEnv {
		t.Setenv(name, "")
	}
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, "*", cfg.Server.FrontendOrigin)
	assert.Equal(t, int64(1048576), cfg.Server.MaxBodyBytes)
	assert.False(t, cfg.Server.DebugErrors)
	assert.Equal(t, 15, cfg.Server.ReadTimeoutSecs)
	assert.Equal(t, 120, cfg.Server.WriteTimeoutSecs)
	assert.Equal(t, 120, cfg.Server.IdleTimeoutSecs)

	assert.Equal(t, "https://earthengine.googleapis.com", cfg.EarthEngine.BaseURL)
	assert.Equal(t, "https://oauth2.googleapis.com/token", cfg.EarthEngine.TokenURL)
	assert.Equal(t, "NASA/ORNL/biomass_carbon_density/v1", cfg.EarthEngine.Dataset)
	assert.InDelta(t, 300.0, cfg.EarthEngine.Scale, 1e-9)
	assert.InDelta(t, 1e13, cfg.EarthEngine.MaxPixels, 1)
	assert.True(t, cfg.EarthEngine.BestEffort)
	assert.InDelta(t, 9.0, cfg.EarthEngine.PixelAreaHa, 1e-9)
	assert.Equal(t, 120, cfg.EarthEngine.TimeoutSecs)
	assert.InDelta(t, 5.0, cfg.EarthEngine.RateLimit, 1e-9)
	assert.Empty(t, cfg.EarthEngine.KeyFile)
	assert.Empty(t, cfg.EarthEngine.ServiceAccountKey)

	assert.Equal(t, 3, cfg.Reducer.Retry.MaxAttempts)
	assert.Equal(t, 500, cfg.Reducer.Retry.InitialBackoffMs)
	assert.Equal(t, 10000, cfg.Reducer.Retry.MaxBackoffMs)
	assert.Equal(t, 5, cfg.Reducer.Circuit.FailureThreshold)
	assert.Equal(t, 30, cfg.Reducer.Circuit.ResetTimeoutSecs)
	assert.Equal(t, 256, cfg.Reducer.Cache.MaxEntries)
	assert.Equal(t, time.Hour, cfg.Reducer.Cache.TTL())

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
server:
  port: 9090
  debug_errors: true
earthengine:
  project: carbon-demo
  scale: 500
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Server.DebugErrors)
	assert.Equal(t, "carbon-demo", cfg.EarthEngine.Project)
	assert.InDelta(t, 500.0, cfg.EarthEngine.Scale, 1e-9)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	// Defaults still apply for unset values
	assert.Equal(t, "*", cfg.Server.FrontendOrigin)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
server:
  port: 9090
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("CARBON_SERVER_PORT", "7070")
	t.Setenv("CARBON_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadLegacyEnv(t *testing.T) {
	chdirTemp(t)

	t.Setenv("PORT", "5050")
	t.Setenv("FRONTEND_ORIGIN", "https://map.example.org")
	t.Setenv("GEE_KEY_FILE", "/secrets/key.json")
	t.Setenv("GEE_SERVICE_ACCOUNT_KEY", `{"client_email":"a@b"}`)
	t.Setenv("GEE_PROJECT", "legacy-project")
	t.Setenv("GEE_ACCESS_TOKEN", "ya29.legacy")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5050, cfg.Server.Port)
	assert.Equal(t, "https://map.example.org", cfg.Server.FrontendOrigin)
	assert.Equal(t, "/secrets/key.json", cfg.EarthEngine.KeyFile)
	assert.Equal(t, `{"client_email":"a@b"}`, cfg.EarthEngine.ServiceAccountKey)
	assert.Equal(t, "legacy-project", cfg.EarthEngine.Project)
	assert.Equal(t, "ya29.legacy", cfg.EarthEngine.AccessToken)
}

func TestLoadPrefixedEnvBeatsLegacy(t *testing.T) {
	chdirTemp(t)

	t.Setenv("PORT", "5050")
	t.Setenv("CARBON_SERVER_PORT", "6060")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 6060, cfg.Server.Port)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("GEE_PROJECT", "")
	// godotenv does not override variables that are already set, even to "".
	require.NoError(t, os.Unsetenv("GEE_PROJECT"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GEE_PROJECT=from-dotenv\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("GEE_PROJECT") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.EarthEngine.Project)
}

func TestLoadInvalidPort(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CARBON_SERVER_PORT", "70000")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.Server.Port = 4000
		cfg.Server.MaxBodyBytes = 1 << 20
		cfg.EarthEngine.Scale = 300
		cfg.EarthEngine.TimeoutSecs = 120
		return cfg
	}

	assert.NoError(t, valid().Validate())

	cfg := valid()
	cfg.Server.Port = 0
	assert.ErrorContains(t, cfg.Validate(), "server.port")

	cfg = valid()
	cfg.Server.MaxBodyBytes = 0
	assert.ErrorContains(t, cfg.Validate(), "max_body_bytes")

	cfg = valid()
	cfg.EarthEngine.Scale = -1
	assert.ErrorContains(t, cfg.Validate(), "earthengine.scale")

	cfg = valid()
	cfg.EarthEngine.TimeoutSecs = 0
	assert.ErrorContains(t, cfg.Validate(), "earthengine.timeout_secs")
}

func TestLoadRejectsNonPositiveTimeout(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CARBON_EARTHENGINE_TIMEOUT_SECS", "-5")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "earthengine.timeout_secs")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
