package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all runtime settings. Every key can be set through the environment
// or a YAML file named by CONFIG_FILE; the environment wins.
type Config struct {
	AppPort            string        `mapstructure:"APP_PORT" validate:"required"`
	AppEnv             string        `mapstructure:"APP_ENV" validate:"required,oneof=development production test"`
	DBDriver           string        `mapstructure:"DB_DRIVER" validate:"required,oneof=memory sqlite postgres"`
	DatabaseDSN        string        `mapstructure:"DATABASE_DSN" validate:"required_unless=DBDriver memory"`
	RedisAddr          string        `mapstructure:"REDIS_ADDR" validate:"omitempty,hostname_port"`
	CachePrefix        string        `mapstructure:"CACHE_PREFIX"`
	CacheTTL           time.Duration `mapstructure:"CACHE_TTL" validate:"gt=0"`
	RabbitMQURL        string        `mapstructure:"RABBITMQ_URL" validate:"omitempty,url"`
	LogLevel           string        `mapstructure:"LOG_LEVEL" validate:"oneof=trace debug info warn error"`
	LogFile            string        `mapstructure:"LOG_FILE"`
	SeedProducts       bool          `mapstructure:"SEED_PRODUCTS"`
	DiagnosticsEnabled bool          `mapstructure:"DIAGNOSTICS_ENABLED"`
	ShutdownTimeout    time.Duration `mapstructure:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
}

var defaults = map[string]interface{}{
	"APP_PORT":            ":8080",
	"APP_ENV":             "development",
	"DB_DRIVER":           "sqlite",
	"DATABASE_DSN":        "file:catalog.db?cache=shared",
	"REDIS_ADDR":          "",
	"CACHE_PREFIX":        "product:",
	"CACHE_TTL":           5 * time.Minute,
	"RABBITMQ_URL":        "",
	"LOG_LEVEL":           "info",
	"LOG_FILE":            "",
	"SEED_PRODUCTS":       true,
	"DIAGNOSTICS_ENABLED": true,
	"SHUTDOWN_TIMEOUT":    30 * time.Second,
}

// Load reads configuration from defaults, the optional CONFIG_FILE and the environment.
func Load() (*Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetDefault("CONFIG_FILE", "")
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.DBDriver = strings.ToLower(cfg.DBDriver)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the struct tags and reports every offending field.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		messages = append(messages, fmt.Sprintf("field '%s' failed on the '%s' tag", e.Field(), e.Tag()))
	}
	return fmt.Errorf("%s", strings.Join(messages, "; "))
}

// CacheEnabled reports whether a Redis cache should wrap the product store.
func (c *Config) CacheEnabled() bool {
	return c.RedisAddr != ""
}

// EventsEnabled reports whether product events should be published to RabbitMQ.
func (c *Config) EventsEnabled() bool {
	return c.RabbitMQURL != ""
}
