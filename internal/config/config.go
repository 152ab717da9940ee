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
	Alert    AlertConfig    `yaml:"alert" mapstructure:"alert"`
	Delivery DeliveryConfig `yaml:"delivery" mapstructure:"delivery"`
	ZipCode  ZipCodeConfig  `yaml:"zipcode" mapstructure:"zipcode"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend. Driver is "postgres" or
// "sqlite"; DatabaseURL is a connection string for postgres or a file
// path for sqlite.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AlertConfig configures proximity matching.
type AlertConfig struct {
	// RadiusMiles is the default notification radius.
	RadiusMiles float64 `yaml:"radius_miles" mapstructure:"radius_miles"`

	// LookbackHours is the default window for nearby-strike queries.
	LookbackHours int `yaml:"lookback_hours" mapstructure:"lookback_hours"`
}

// DeliveryConfig configures the notification delivery worker.
type DeliveryConfig struct {
	Concurrency        int     `yaml:"concurrency" mapstructure:"concurrency"`
	AttemptTimeoutSecs int     `yaml:"attempt_timeout_secs" mapstructure:"attempt_timeout_secs"`
	MailerRPS          float64 `yaml:"mailer_rps" mapstructure:"mailer_rps"`
	IntervalSecs       int     `yaml:"interval_secs" mapstructure:"interval_secs"`
}

// ZipCodeConfig configures the ZIP lookup client. An empty BaseURL
// limits lookups to the built-in table.
type ZipCodeConfig struct {
	BaseURL string  `yaml:"base_url" mapstructure:"base_url"`
	RPS     float64 `yaml:"rps" mapstructure:"rps"`
}

// ServerConfig configures the HTTP server.
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
	v.SetEnvPrefix("STRIKEALERT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("alert.radius_miles", 20.0)
	v.SetDefault("alert.lookback_hours", 24)
	v.SetDefault("delivery.concurrency", 5)
	v.SetDefault("delivery.attempt_timeout_secs", 10)
	v.SetDefault("delivery.mailer_rps", 10.0)
	v.SetDefault("delivery.interval_secs", 30)
	v.SetDefault("zipcode.rps", 10.0)
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
