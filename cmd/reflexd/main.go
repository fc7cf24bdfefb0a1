package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/reflexhq/reflex/internal/cache"
	"github.com/reflexhq/reflex/internal/config"
	"github.com/reflexhq/reflex/internal/injection"
	"github.com/reflexhq/reflex/internal/logger"
	"github.com/reflexhq/reflex/internal/pii"
	"github.com/reflexhq/reflex/internal/pipeline"
	"github.com/reflexhq/reflex/internal/ratelimit"
	"github.com/reflexhq/reflex/internal/server"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.Bool("health-check", false, "Perform health check and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("reflexd %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if *healthCheck {
		performHealthCheck()
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled:  cfg.Logging.File.Enabled,
			Path:     cfg.Logging.File.Path,
			MaxSize:  cfg.Logging.File.MaxSize,
			MaxAge:   cfg.Logging.File.MaxAge,
			Compress: cfg.Logging.File.Compress,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting reflexd",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	// Patterns and limits are resolved once at startup; a changed file
	// takes effect on restart
	if err := config.Watch(cfg, log.WithComponent("config"), func(*config.Config) {
		log.Info("Configuration reload validated, restart required to apply")
	}); err != nil {
		log.Warn("Config watcher unavailable", zap.Error(err))
	}

	client, err := cache.NewClient(cfg.Redis, log.WithComponent("redis"))
	if err != nil {
		log.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer client.Close()

	cacheMgr := cache.NewManager(client, cache.Config{
		Enabled:      cfg.Cache.Enabled,
		Namespace:    cfg.Cache.Namespace,
		ForwardedTTL: cfg.Cache.ForwardedTTL,
		BlockedTTL:   cfg.Cache.BlockedTTL,
	}, log.WithComponent("cache"))

	limiter := ratelimit.NewMultiLimiter(
		ratelimit.NewLimiter(client, log.WithComponent("ratelimit")),
		limiterConfig(cfg.RateLimit),
		log.WithComponent("ratelimit"),
	)

	stop := make(chan struct{})
	defer close(stop)
	limiter.StartCleanup(stop)

	piiDetector := pii.New(pii.Config{
		PatternSet:       pii.PatternSet(cfg.Security.PatternSet),
		EnableValidation: true,
		EnableContext:    true,
		ContextWindow:    cfg.Security.ContextWindow,
	}, log.WithComponent("pii"))

	injDetector := injection.New(injection.Config{
		Mode:                  injection.Mode(cfg.Security.DetectionMode),
		EnableContextAnalysis: true,
		EnableEntropyCheck:    true,
		SeverityThreshold:     injection.SeverityLow,
	}, log.WithComponent("injection"))

	p := pipeline.New(pipeline.Config{
		MaxQueryLength:    cfg.Security.MaxQueryLength,
		BlockOnHighRisk:   cfg.Security.BlockOnHighRisk,
		EnablePII:         cfg.Security.EnablePIIDetection,
		EnableInjection:   cfg.Security.EnableInjectionDetection,
		RedactionStrategy: pii.Strategy(cfg.Security.RedactionStrategy),
		RequestTimeout:    cfg.Pipeline.RequestTimeout,
		ForwardedTTL:      cfg.Cache.ForwardedTTL,
		BlockedTTL:        cfg.Cache.BlockedTTL,
		StoreTimeout:      cfg.Redis.CommandTimeout,
	}, piiDetector, injDetector, cacheMgr, limiter, log.WithComponent("pipeline"))

	srv := server.New(cfg, p, cacheMgr, log, version)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("Server error", zap.Error(err))
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Stop(ctx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
			os.Exit(1)
		}

		log.Info("Server shutdown complete")
	}
}

// limiterConfig converts the config representation of limits into the
// rate limiter's
func limiterConfig(cfg config.RateLimitConfig) ratelimit.Config {
	tiers := make(map[string]ratelimit.Limit, len(cfg.Tiers))
	for name, tier := range cfg.Tiers {
		tiers[name] = ratelimit.Limit{Capacity: tier.Capacity, RefillRate: tier.RefillRate}
	}

	return ratelimit.Config{
		Enabled:  cfg.Enabled,
		FailOpen: cfg.FailOpen,
		Tiers:    tiers,
		IP:       ratelimit.Limit{Capacity: cfg.IP.Capacity, RefillRate: cfg.IP.RefillRate},
		Endpoint: ratelimit.Limit{Capacity: cfg.Endpoint.Capacity, RefillRate: cfg.Endpoint.RefillRate},
		Global:   ratelimit.Limit{Capacity: cfg.Global.Capacity, RefillRate: cfg.Global.RefillRate},
	}
}

// performHealthCheck performs a health check against the running server
func performHealthCheck() {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get("http://localhost:8080/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}
