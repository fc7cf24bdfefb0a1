package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Redis     RedisConfig     `yaml:"redis" mapstructure:"redis"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Security  SecurityConfig  `yaml:"security" mapstructure:"security"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	MaxBodySize  int64         `yaml:"max_body_size" mapstructure:"max_body_size"`
}

// RedisConfig contains Redis connection configuration shared by the
// cache manager and the distributed rate limiter
type RedisConfig struct {
	URL            string        `yaml:"url" mapstructure:"url"`
	PoolSize       int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns   int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`
	CommandTimeout time.Duration `yaml:"command_timeout" mapstructure:"command_timeout"`
}

// CacheConfig contains decision cache configuration
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	Namespace    string        `yaml:"namespace" mapstructure:"namespace"`
	ForwardedTTL time.Duration `yaml:"forwarded_ttl" mapstructure:"forwarded_ttl"`
	BlockedTTL   time.Duration `yaml:"blocked_ttl" mapstructure:"blocked_ttl"`
}

// SecurityConfig contains PII and injection detection configuration
type SecurityConfig struct {
	EnablePIIDetection       bool   `yaml:"enable_pii_detection" mapstructure:"enable_pii_detection"`
	EnableInjectionDetection bool   `yaml:"enable_injection_detection" mapstructure:"enable_injection_detection"`
	BlockOnHighRisk          bool   `yaml:"block_on_high_risk" mapstructure:"block_on_high_risk"`
	MaxQueryLength           int    `yaml:"max_query_length" mapstructure:"max_query_length"`
	PatternSet               string `yaml:"pattern_set" mapstructure:"pattern_set"`       // strict, standard, or relaxed
	DetectionMode            string `yaml:"detection_mode" mapstructure:"detection_mode"` // strict, standard, or relaxed
	RedactionStrategy        string `yaml:"redaction_strategy" mapstructure:"redaction_strategy"`
	ContextWindow            int    `yaml:"context_window" mapstructure:"context_window"`
}

// TierLimits describes a token bucket shape for a rate limit tier or dimension
type TierLimits struct {
	Capacity   int     `yaml:"capacity" mapstructure:"capacity"`
	RefillRate float64 `yaml:"refill_rate" mapstructure:"refill_rate"` // tokens per second
}

// RateLimitConfig contains multi-dimensional rate limiting configuration
type RateLimitConfig struct {
	Enabled  bool                  `yaml:"enabled" mapstructure:"enabled"`
	FailOpen bool                  `yaml:"fail_open" mapstructure:"fail_open"`
	Tiers    map[string]TierLimits `yaml:"tiers" mapstructure:"tiers"`
	IP       TierLimits            `yaml:"ip" mapstructure:"ip"`
	Endpoint TierLimits            `yaml:"endpoint" mapstructure:"endpoint"`
	Global   TierLimits            `yaml:"global" mapstructure:"global"`
}

// PipelineConfig contains orchestrator tuning
type PipelineConfig struct {
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
		Path     string `yaml:"path" mapstructure:"path"`
		MaxSize  int    `yaml:"max_size" mapstructure:"max_size"`
		MaxAge   int    `yaml:"max_age" mapstructure:"max_age"`
		Compress bool   `yaml:"compress" mapstructure:"compress"`
	} `yaml:"file" mapstructure:"file"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			MaxBodySize:  10 << 20, // 10MB
		},
		Redis: RedisConfig{
			URL:            "redis://localhost:6379",
			PoolSize:       10,
			MinIdleConns:   2,
			ConnectTimeout: 1 * time.Second,
			CommandTimeout: 100 * time.Millisecond,
		},
		Cache: CacheConfig{
			Enabled:      true,
			Namespace:    "reflex",
			ForwardedTTL: 30 * time.Second,
			BlockedTTL:   1 * time.Hour,
		},
		Security: SecurityConfig{
			EnablePIIDetection:       true,
			EnableInjectionDetection: true,
			BlockOnHighRisk:          true,
			MaxQueryLength:           10000,
			PatternSet:               "standard",
			DetectionMode:            "standard",
			RedactionStrategy:        "placeholder",
			ContextWindow:            20,
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			FailOpen: true,
			Tiers: map[string]TierLimits{
				"free":       {Capacity: 10, RefillRate: 100.0 / 3600.0},
				"basic":      {Capacity: 50, RefillRate: 1000.0 / 3600.0},
				"pro":        {Capacity: 100, RefillRate: 10000.0 / 3600.0},
				"enterprise": {Capacity: 500, RefillRate: 100000.0 / 3600.0},
			},
			IP:       TierLimits{Capacity: 60, RefillRate: 1.0},
			Endpoint: TierLimits{Capacity: 100, RefillRate: 10.0},
			Global:   TierLimits{Capacity: 1000, RefillRate: 100.0},
		},
		Pipeline: PipelineConfig{
			RequestTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			File: struct {
				Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
				Path     string `yaml:"path" mapstructure:"path"`
				MaxSize  int    `yaml:"max_size" mapstructure:"max_size"`
				MaxAge   int    `yaml:"max_age" mapstructure:"max_age"`
				Compress bool   `yaml:"compress" mapstructure:"compress"`
			}{
				Enabled:  false,
				Path:     "logs/reflexd.log",
				MaxSize:  100, // MB
				MaxAge:   30,  // days
				Compress: true,
			},
		},
	}
}
