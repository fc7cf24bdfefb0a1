package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/reflexhq/reflex/internal/logger"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Set defaults
	config := GetDefaults()

	// Configure viper
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/reflex/")
	viper.AddConfigPath("$HOME/.reflex/")

	// Environment variable overrides
	viper.SetEnvPrefix("REFLEX")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Use specific config file if provided
	if configPath != "" {
		viper.SetConfigFile(configPath)
	}

	// Read configuration
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal into config struct
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Redis.URL == "" {
		return fmt.Errorf("redis url cannot be empty")
	}

	if config.Security.MaxQueryLength <= 0 {
		return fmt.Errorf("invalid max query length: %d", config.Security.MaxQueryLength)
	}

	switch config.Security.PatternSet {
	case "strict", "standard", "relaxed":
	default:
		return fmt.Errorf("invalid pattern set: %s (must be strict, standard, or relaxed)", config.Security.PatternSet)
	}

	switch config.Security.DetectionMode {
	case "strict", "standard", "relaxed":
	default:
		return fmt.Errorf("invalid detection mode: %s (must be strict, standard, or relaxed)", config.Security.DetectionMode)
	}

	switch config.Security.RedactionStrategy {
	case "placeholder", "partial", "token", "mask", "remove":
	default:
		return fmt.Errorf("invalid redaction strategy: %s", config.Security.RedactionStrategy)
	}

	for name, tier := range config.RateLimit.Tiers {
		if tier.Capacity <= 0 || tier.RefillRate <= 0 {
			return fmt.Errorf("invalid rate limit tier %q: capacity and refill_rate must be positive", name)
		}
	}

	if config.RateLimit.Enabled {
		for name, limits := range map[string]TierLimits{
			"ip":       config.RateLimit.IP,
			"endpoint": config.RateLimit.Endpoint,
			"global":   config.RateLimit.Global,
		} {
			if limits.Capacity <= 0 || limits.RefillRate <= 0 {
				return fmt.Errorf("invalid %s rate limit: capacity and refill_rate must be positive", name)
			}
		}
	}

	if config.Cache.Enabled {
		if config.Cache.Namespace == "" {
			return fmt.Errorf("cache namespace cannot be empty")
		}
		if config.Cache.ForwardedTTL <= 0 || config.Cache.BlockedTTL <= 0 {
			return fmt.Errorf("cache TTLs must be positive")
		}
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	return nil
}

// Watch starts watching the configuration file for changes. The pipeline
// resolves config once at startup, so callers typically just log the event.
func Watch(config *Config, log *logger.Logger, callback func(*Config)) error {
	viper.WatchConfig()
	viper.OnConfigChange(func(e fsnotify.Event) {
		log.Info("Configuration file changed", zap.String("file", e.Name))
		reload(log, callback)
	})

	return nil
}

// reload re-reads viper state over the defaults and hands the result to
// the callback. Broken edits are logged and ignored; the running config
// stays in effect.
func reload(log *logger.Logger, callback func(*Config)) {
	newConfig := GetDefaults()
	if err := viper.Unmarshal(newConfig); err != nil {
		log.Error("Failed to parse changed configuration, keeping current", zap.Error(err))
		return
	}

	if err := validateConfig(newConfig); err != nil {
		log.Error("Changed configuration is invalid, keeping current", zap.Error(err))
		return
	}

	callback(newConfig)
}
