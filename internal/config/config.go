package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Fuzzy    FuzzyConfig    `yaml:"fuzzy" mapstructure:"fuzzy"`
	Dispatch DispatchConfig `yaml:"dispatch" mapstructure:"dispatch"`
	Geo      GeoConfig      `yaml:"geo" mapstructure:"geo"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int    `yaml:"max_conns" mapstructure:"max_conns"`
}

// FuzzyConfig configures the external fuzzy-inference service client.
type FuzzyConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst   int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// DispatchConfig configures the classification dispatcher.
type DispatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// GeoConfig points at the district boundary files served by the map API.
type GeoConfig struct {
	GeoJSONPath   string `yaml:"geojson_path" mapstructure:"geojson_path"`
	ShapefilePath string `yaml:"shapefile_path" mapstructure:"shapefile_path"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FLOODMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("fuzzy.base_url", "http://localhost:5001")
	v.SetDefault("fuzzy.timeout_secs", 30)
	v.SetDefault("fuzzy.max_attempts", 3)
	v.SetDefault("fuzzy.rate_limit", 10)
	v.SetDefault("fuzzy.rate_burst", 5)
	v.SetDefault("dispatch.concurrency", 4)
	v.SetDefault("server.port", 8080)
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

	return &cfg, nil
}

// Validate checks the fields required for the given run mode.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		problems = append(problems, "store.driver must be postgres or sqlite")
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "dispatch":
		if c.Fuzzy.BaseURL == "" {
			problems = append(problems, "fuzzy.base_url is required")
		}
		if c.Dispatch.Concurrency < 1 || c.Dispatch.Concurrency > 32 {
			problems = append(problems, "dispatch.concurrency must be between 1 and 32")
		}
	case "import", "migrate", "status":
		// Store settings alone suffice.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
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
