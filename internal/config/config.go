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
)

// Config holds the full application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	EarthEngine EarthEngineConfig `yaml:"earthengine" mapstructure:"earthengine"`
	Reducer     ReducerConfig     `yaml:"reducer" mapstructure:"reducer"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port             int    `yaml:"port" mapstructure:"port"`
	FrontendOrigin   string `yaml:"frontend_origin" mapstructure:"frontend_origin"`
	MaxBodyBytes     int64  `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	DebugErrors      bool   `yaml:"debug_errors" mapstructure:"debug_errors"`
	ReadTimeoutSecs  int    `yaml:"read_timeout_secs" mapstructure:"read_timeout_secs"`
	WriteTimeoutSecs int    `yaml:"write_timeout_secs" mapstructure:"write_timeout_secs"`
	IdleTimeoutSecs  int    `yaml:"idle_timeout_secs" mapstructure:"idle_timeout_secs"`
}

// EarthEngineConfig configures Earth Engine access and the reduction request.
type EarthEngineConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// TokenURL replaces the key's token_uri when set to a non-default value.
	TokenURL          string  `yaml:"token_url" mapstructure:"token_url"`
	Project           string  `yaml:"project" mapstructure:"project"`
	KeyFile           string  `yaml:"key_file" mapstructure:"key_file"`
	ServiceAccountKey string  `yaml:"service_account_key" mapstructure:"service_account_key"`
	// AccessToken is a pre-issued bearer token used instead of a service
	// account. It is not refreshed, so it suits short-lived runs.
	AccessToken string  `yaml:"access_token" mapstructure:"access_token"`
	Dataset     string  `yaml:"dataset" mapstructure:"dataset"`
	Scale       float64 `yaml:"scale" mapstructure:"scale"`
	MaxPixels   float64 `yaml:"max_pixels" mapstructure:"max_pixels"`
	BestEffort  bool    `yaml:"best_effort" mapstructure:"best_effort"`
	PixelAreaHa float64 `yaml:"pixel_area_ha" mapstructure:"pixel_area_ha"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ReducerConfig configures retries, the circuit breaker and the result cache
// around Earth Engine calls.
type ReducerConfig struct {
	Retry   RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Circuit CircuitConfig `yaml:"circuit" mapstructure:"circuit"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
}

// RetryConfig controls backoff for transient Earth Engine failures.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// CircuitConfig controls the Earth Engine circuit breaker.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// CacheConfig controls the reduction result cache. MaxEntries 0 disables it.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`
	TTLMins    int `yaml:"ttl_mins" mapstructure:"ttl_mins"`
}

// TTL returns the cache TTL as a duration.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLMins) * time.Minute
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// legacyEnv maps config keys to the environment variable names used by
// earlier deployments. The CARBON_-prefixed name is bound first and wins.
var legacyEnv = map[string]string{
	"server.port":                     "PORT",
	"server.frontend_origin":          "FRONTEND_ORIGIN",
	"earthengine.key_file":            "GEE_KEY_FILE",
	"earthengine.service_account_key": "GEE_SERVICE_ACCOUNT_KEY",
	"earthengine.project":             "GEE_PROJECT",
	"earthengine.access_token":        "GEE_ACCESS_TOKEN",
}

// Load reads configuration from an optional .env file, an optional
// config.yaml and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CARBON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		prefixed := "CARBON_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Defaults
	v.SetDefault("server.port", 4000)
	v.SetDefault("server.frontend_origin", "*")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.debug_errors", false)
	v.SetDefault("server.read_timeout_secs", 15)
	v.SetDefault("server.write_timeout_secs", 120)
	v.SetDefault("server.idle_timeout_secs", 120)
	v.SetDefault("earthengine.base_url", "https://earthengine.googleapis.com")
	v.SetDefault("earthengine.token_url", "https://oauth2.googleapis.com/token")
	v.SetDefault("earthengine.project", "")
	v.SetDefault("earthengine.key_file", "")
	v.SetDefault("earthengine.service_account_key", "")
	v.SetDefault("earthengine.access_token", "")
	v.SetDefault("earthengine.dataset", "NASA/ORNL/biomass_carbon_density/v1")
	v.SetDefault("earthengine.scale", 300)
	v.SetDefault("earthengine.max_pixels", 1e13)
	v.SetDefault("earthengine.best_effort", true)
	v.SetDefault("earthengine.pixel_area_ha", 9)
	v.SetDefault("earthengine.timeout_secs", 120)
	v.SetDefault("earthengine.rate_limit", 5)
	v.SetDefault("reducer.retry.max_attempts", 3)
	v.SetDefault("reducer.retry.initial_backoff_ms", 500)
	v.SetDefault("reducer.retry.max_backoff_ms", 10000)
	v.SetDefault("reducer.circuit.failure_threshold", 5)
	v.SetDefault("reducer.circuit.reset_timeout_secs", 30)
	v.SetDefault("reducer.cache.max_entries", 256)
	v.SetDefault("reducer.cache.ttl_mins", 60)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return eris.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return eris.New("config: server.max_body_bytes must be positive")
	}
	if c.EarthEngine.Scale <= 0 {
		return eris.New("config: earthengine.scale must be positive")
	}
	if c.EarthEngine.TimeoutSecs <= 0 {
		return eris.New("config: earthengine.timeout_secs must be positive")
	}
	return nil
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
