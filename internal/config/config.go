package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/liability-cli/internal/model"
)

// EnvPrefix is prepended to every environment override, e.g.
// LIABILITY_GEOCODE_BASE_URL.
const EnvPrefix = "LIABILITY"

// Config holds the full application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Geocode   GeocodeConfig   `yaml:"geocode" mapstructure:"geocode"`
	Tables    TablesConfig    `yaml:"tables" mapstructure:"tables"`
	Proximity ProximityConfig `yaml:"proximity" mapstructure:"proximity"`
	Defaults  DefaultsConfig  `yaml:"defaults" mapstructure:"defaults"`
	Estimate  EstimateConfig  `yaml:"estimate" mapstructure:"estimate"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the dashboard server.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins     []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
}

// GeocodeConfig configures the Nominatim client and its cache.
type GeocodeConfig struct {
	Enabled       bool    `yaml:"enabled" mapstructure:"enabled"`
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent     string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec    float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	MaxAttempts   int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	CachePath     string  `yaml:"cache_path" mapstructure:"cache_path"`
	CacheTTLHours int     `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// Timeout returns the per-lookup deadline.
func (g GeocodeConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSecs) * time.Second
}

// CacheTTL returns the cache entry lifetime; zero means entries never expire.
func (g GeocodeConfig) CacheTTL() time.Duration {
	return time.Duration(g.CacheTTLHours) * time.Hour
}

// TablesConfig locates the entity tables. A file path takes precedence over
// the corresponding Postgres table.
type TablesConfig struct {
	PopulationPath  string `yaml:"population_path" mapstructure:"population_path"`
	MedicalPath     string `yaml:"medical_path" mapstructure:"medical_path"`
	Sheet           string `yaml:"sheet" mapstructure:"sheet"`
	DatabaseURL     string `yaml:"database_url" mapstructure:"database_url"`
	PopulationTable string `yaml:"population_table" mapstructure:"population_table"`
	MedicalTable    string `yaml:"medical_table" mapstructure:"medical_table"`
}

// ProximityConfig holds the per-category threshold factors.
type ProximityConfig struct {
	PopulationFactor float64 `yaml:"population_factor" mapstructure:"population_factor"`
	MedicalFactor    float64 `yaml:"medical_factor" mapstructure:"medical_factor"`
}

// DefaultsConfig holds the values used for missing optional table columns.
type DefaultsConfig struct {
	Population           int    `yaml:"population" mapstructure:"population"`
	HistoricalPopulation int    `yaml:"historical_population" mapstructure:"historical_population"`
	FacilityType         string `yaml:"facility_type" mapstructure:"facility_type"`
}

// FieldDefaults converts the section to the model type.
func (d DefaultsConfig) FieldDefaults() model.FieldDefaults {
	return model.FieldDefaults{
		Population:           d.Population,
		HistoricalPopulation: d.HistoricalPopulation,
		FacilityType:         d.FacilityType,
	}
}

// EstimateConfig configures the simulated affected-population draw.
type EstimateConfig struct {
	Seed int64 `yaml:"seed" mapstructure:"seed"`
	Min  int   `yaml:"min" mapstructure:"min"`
	Max  int   `yaml:"max" mapstructure:"max"`
}

// BatchConfig configures the batch command.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return eris.Wrapf(err, "config: load env file %s", path)
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.request_timeout_secs", 60)
	v.SetDefault("geocode.enabled", true)
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "liability-cli/1.0")
	v.SetDefault("geocode.timeout_secs", 10)
	v.SetDefault("geocode.rate_per_sec", 1.0)
	v.SetDefault("geocode.max_attempts", 1)
	v.SetDefault("geocode.cache_path", "")
	v.SetDefault("geocode.cache_ttl_hours", 24*30)
	v.SetDefault("tables.population_path", "")
	v.SetDefault("tables.medical_path", "")
	v.SetDefault("tables.sheet", "")
	v.SetDefault("tables.database_url", "")
	v.SetDefault("tables.population_table", "")
	v.SetDefault("tables.medical_table", "")
	v.SetDefault("proximity.population_factor", 2.0)
	v.SetDefault("proximity.medical_factor", 2.5)
	v.SetDefault("defaults.population", 1000)
	v.SetDefault("defaults.historical_population", 1000)
	v.SetDefault("defaults.facility_type", "unspecified")
	v.SetDefault("estimate.seed", 0)
	v.SetDefault("estimate.min", 5000)
	v.SetDefault("estimate.max", 50000)
	v.SetDefault("batch.concurrency", 4)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode relies on. Modes: "analyze",
// "batch", "geocode", "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "analyze", "batch", "serve":
		problems = append(problems, c.validateAnalysis()...)
		problems = append(problems, c.validateGeocode()...)
		if mode == "batch" && c.Batch.Concurrency < 1 {
			problems = append(problems, "batch.concurrency must be >= 1")
		}
		if mode == "serve" && c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "geocode":
		problems = append(problems, c.validateGeocode()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validateGeocode() []string {
	var problems []string
	if c.Geocode.TimeoutSecs <= 0 {
		problems = append(problems, "geocode.timeout_secs must be > 0")
	}
	if c.Geocode.RatePerSec <= 0 {
		problems = append(problems, "geocode.rate_per_sec must be > 0")
	}
	if c.Geocode.MaxAttempts < 1 {
		problems = append(problems, "geocode.max_attempts must be >= 1")
	}
	return problems
}

func (c *Config) validateAnalysis() []string {
	var problems []string
	if c.Proximity.PopulationFactor <= 0 || c.Proximity.MedicalFactor <= 0 {
		problems = append(problems, "proximity factors must be > 0")
	}
	if c.Defaults.Population < 0 || c.Defaults.HistoricalPopulation < 0 {
		problems = append(problems, "defaults population values must be >= 0")
	}
	if c.Estimate.Min < 0 || c.Estimate.Max <= c.Estimate.Min {
		problems = append(problems, "estimate.max must be greater than estimate.min")
	}
	return problems
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
