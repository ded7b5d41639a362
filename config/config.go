package config

import (
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Cancellation policy names accepted in breaker configs.
const (
	OnCancelFailure = "failure"
	OnCancelIgnore  = "ignore"
)

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// BreakerConfig configures the circuit breaker guarding one tier.
type BreakerConfig struct {
	Tier             string `mapstructure:"tier"`
	FailureThreshold int    `mapstructure:"failure_threshold"`
	RecoveryTimeout  string `mapstructure:"recovery_timeout"`
	HalfOpenMaxCalls int    `mapstructure:"half_open_max_calls"`
	SuccessThreshold int    `mapstructure:"success_threshold"`
	OnCancel         string `mapstructure:"on_cancel"`
}

type RetryConfig struct {
	MaxAttempts     int     `mapstructure:"max_attempts"`
	BaseDelay       string  `mapstructure:"base_delay"`
	MaxDelay        string  `mapstructure:"max_delay"`
	ExponentialBase float64 `mapstructure:"exponential_base"`
	Jitter          bool    `mapstructure:"jitter"`
}

type TierConfig struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

type HealthConfig struct {
	Interval     string       `mapstructure:"interval"`
	ProbeTimeout string       `mapstructure:"probe_timeout"`
	Tiers        []TierConfig `mapstructure:"tiers"`
}

type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Logging  LoggingConfig   `mapstructure:"logging"`
	Breakers []BreakerConfig `mapstructure:"breakers"`
	Retry    RetryConfig     `mapstructure:"retry"`
	Health   HealthConfig    `mapstructure:"health"`
}

func Load() (*Config, error) {
	viper.SetDefault("server.environment", EnvDev)
	viper.SetDefault("server.address", ":9090")
	viper.SetDefault("logging.level", LogLevelInfo)
	viper.SetDefault("retry.max_attempts", 3)
	viper.SetDefault("retry.base_delay", "500ms")
	viper.SetDefault("retry.max_delay", "30s")
	viper.SetDefault("retry.exponential_base", 2.0)
	viper.SetDefault("retry.jitter", true)
	viper.SetDefault("health.interval", "10s")
	viper.SetDefault("health.probe_timeout", "5s")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Warn("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", viper.ConfigFileUsed()))
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.Breakers,
			validation.Each(validation.By(validateBreakerConfig)),
		),
		validation.Field(&c.Retry,
			validation.Required,
			validation.By(func(value interface{}) error {
				rc, ok := value.(RetryConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a RetryConfig")
				}
				return validation.ValidateStruct(&rc,
					validation.Field(&rc.MaxAttempts,
						validation.Required,
						validation.Min(1),
					),
					validation.Field(&rc.BaseDelay,
						validation.Required,
						validation.By(validateDuration),
					),
					validation.Field(&rc.MaxDelay,
						validation.Required,
						validation.By(validateDuration),
					),
					validation.Field(&rc.ExponentialBase,
						validation.Required,
						validation.Min(1.0),
						validation.By(func(value interface{}) error {
							base, _ := value.(float64)
							if base <= 1 {
								return validation.NewError("validation_invalid_base", "must be greater than 1")
							}
							return nil
						}),
					),
				)
			}),
		),
		validation.Field(&c.Health,
			validation.Required,
			validation.By(func(value interface{}) error {
				hc, ok := value.(HealthConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a HealthConfig")
				}
				return validation.ValidateStruct(&hc,
					validation.Field(&hc.Interval,
						validation.Required,
						validation.By(validateDuration),
					),
					validation.Field(&hc.ProbeTimeout,
						validation.Required,
						validation.By(validateDuration),
					),
					validation.Field(&hc.Tiers,
						validation.Each(validation.By(validateTierConfig)),
					),
				)
			}),
		),
	)
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}
	if d <= 0 {
		return validation.NewError("validation_invalid_duration", "must be a positive duration")
	}

	return nil
}

func validateBreakerConfig(value interface{}) error {
	bc, ok := value.(BreakerConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a BreakerConfig")
	}

	if bc.Tier == "" {
		return validation.NewError("validation_empty_tier", "breaker tier name cannot be empty")
	}

	if bc.FailureThreshold < 1 {
		return validation.NewError("validation_invalid_threshold", "failure_threshold must be at least 1")
	}

	if bc.HalfOpenMaxCalls < 1 {
		return validation.NewError("validation_invalid_half_open", "half_open_max_calls must be at least 1")
	}

	if bc.SuccessThreshold < 1 {
		return validation.NewError("validation_invalid_threshold", "success_threshold must be at least 1")
	}

	if err := validateDuration(bc.RecoveryTimeout); err != nil {
		return err
	}

	if bc.OnCancel != "" && bc.OnCancel != OnCancelFailure && bc.OnCancel != OnCancelIgnore {
		return validation.NewError("validation_invalid_on_cancel", "on_cancel must be \"failure\" or \"ignore\"")
	}

	return nil
}

func validateTierConfig(value interface{}) error {
	tc, ok := value.(TierConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a TierConfig")
	}

	if tc.Name == "" {
		return validation.NewError("validation_empty_name", "tier name cannot be empty")
	}

	if tc.URL == "" {
		return validation.NewError("validation_empty_url", "tier URL cannot be empty")
	}

	parsedURL, err := url.Parse(tc.URL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}
