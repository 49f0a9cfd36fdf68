package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/liability-cli/internal/model"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 60, cfg.Server.RequestTimeoutSecs)
	assert.True(t, cfg.Geocode.Enabled)
	assert.Equal(t, "https://nominatim.openstreetmap.org", cfg.Geocode.BaseURL)
	assert.Equal(t, "liability-cli/1.0", cfg.Geocode.UserAgent)
	assert.Equal(t, 10, cfg.Geocode.TimeoutSecs)
	assert.InDelta(t, 1.0, cfg.Geocode.RatePerSec, 0.001)
	assert.Equal(t, 1, cfg.Geocode.MaxAttempts)
	assert.Empty(t, cfg.Geocode.CachePath)
	assert.InDelta(t, 2.0, cfg.Proximity.PopulationFactor, 0.001)
	assert.InDelta(t, 2.5, cfg.Proximity.MedicalFactor, 0.001)
	assert.Equal(t, model.DefaultFieldDefaults(), cfg.Defaults.FieldDefaults())
	assert.Equal(t, 5000, cfg.Estimate.Min)
	assert.Equal(t, 50000, cfg.Estimate.Max)
	assert.Equal(t, 4, cfg.Batch.Concurrency)

	for _, mode := range []string{"analyze", "batch", "geocode", "serve"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
  format: console
server:
  port: 9090
tables:
  population_path: data/centros_poblados.csv
  medical_table: geo.establecimientos
defaults:
  facility_type: Puesto de salud
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "data/centros_poblados.csv", cfg.Tables.PopulationPath)
	assert.Equal(t, "geo.establecimientos", cfg.Tables.MedicalTable)
	assert.Equal(t, "Puesto de salud", cfg.Defaults.FacilityType)
	// Defaults still apply for unset values
	assert.Equal(t, 1000, cfg.Defaults.Population)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
geocode:
  base_url: http://localhost:9999
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("LIABILITY_LOG_LEVEL", "warn")
	t.Setenv("LIABILITY_GEOCODE_BASE_URL", "http://nominatim.internal")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "http://nominatim.internal", cfg.Geocode.BaseURL)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("LIABILITY_SERVER_PORT", "3000")
	t.Setenv("LIABILITY_PROXIMITY_MEDICAL_FACTOR", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.InDelta(t, 3.0, cfg.Proximity.MedicalFactor, 0.001)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log: [unclosed"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("LIABILITY_TEST_DOTENV=from-file\n"), 0o644))
	t.Setenv("LIABILITY_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("LIABILITY_TEST_DOTENV"))

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("LIABILITY_TEST_DOTENV"))
}

func TestLoadEnvFile_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("LIABILITY_TEST_DOTENV=from-file\n"), 0o644))
	t.Setenv("LIABILITY_TEST_DOTENV", "from-env")

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-env", os.Getenv("LIABILITY_TEST_DOTENV"))
}

func TestLoadEnvFile_Missing(t *testing.T) {
	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), ".env")))
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

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Geocode.TimeoutSecs = 10
	cfg.Geocode.RatePerSec = 1
	cfg.Geocode.MaxAttempts = 1
	cfg.Proximity.PopulationFactor = 2
	cfg.Proximity.MedicalFactor = 2.5
	cfg.Defaults.Population = 1000
	cfg.Defaults.HistoricalPopulation = 1000
	cfg.Estimate.Min = 5000
	cfg.Estimate.Max = 50000
	cfg.Batch.Concurrency = 4
	return cfg
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	// Port is irrelevant outside serve mode.
	assert.NoError(t, cfg.Validate("analyze"))
}

func TestValidateBatch_Concurrency(t *testing.T) {
	cfg := validDefaults()
	cfg.Batch.Concurrency = 0

	err := cfg.Validate("batch")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "batch.concurrency must be >= 1")
	assert.NoError(t, cfg.Validate("analyze"))
}

func TestValidateGeocode(t *testing.T) {
	cfg := validDefaults()
	cfg.Geocode.TimeoutSecs = 0
	cfg.Geocode.MaxAttempts = 0

	err := cfg.Validate("geocode")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "geocode.timeout_secs must be > 0")
	assert.Contains(t, err.Error(), "geocode.max_attempts must be >= 1")
}

func TestValidateAnalysis(t *testing.T) {
	cfg := validDefaults()
	cfg.Proximity.MedicalFactor = 0
	cfg.Estimate.Max = cfg.Estimate.Min

	err := cfg.Validate("analyze")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "proximity factors must be > 0")
	assert.Contains(t, err.Error(), "estimate.max must be greater than estimate.min")

	// Geocode mode does not look at analysis settings.
	assert.NoError(t, cfg.Validate("geocode"))
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestGeocodeDurations(t *testing.T) {
	g := GeocodeConfig{TimeoutSecs: 10, CacheTTLHours: 2}
	assert.Equal(t, "10s", g.Timeout().String())
	assert.Equal(t, "2h0m0s", g.CacheTTL().String())
}
