package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/arproxy/service/arweave"
	"github.com/brojonat/arproxy/service/cache"
	"github.com/brojonat/arproxy/service/config"
	"github.com/brojonat/arproxy/service/lookup"
	"github.com/brojonat/arproxy/service/metrics"
	"github.com/brojonat/arproxy/service/nats"
	"github.com/brojonat/arproxy/service/server"
	"github.com/brojonat/arproxy/service/tracing"
	"github.com/lmittmann/tint"
)

const serviceName = "arproxy"

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
		"gateway", cfg.ArweaveGatewayURL,
		"min_confirmations", cfg.MinConfirmations,
	)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing falls back to a no-op provider when the exporter can't be built
	shutdownTracing, err := tracing.Init(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	} else if cfg.OTLPEndpoint != "" {
		logger.Info("tracing enabled", "endpoint", cfg.OTLPEndpoint)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	// Initialize metrics (registered with the default Prometheus registry)
	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.NewMetrics(nil)
	}

	// Initialize Arweave gateway client
	httpGateway := arweave.NewHTTPGateway(cfg.ArweaveGatewayURL,
		&http.Client{Timeout: cfg.ArweaveTimeout},
		arweave.WithMaxResponseBytes(cfg.ArweaveMaxResponseBytes),
	)
	gateway := arweave.NewClient(httpGateway, m, logger)
	logger.Info("initialized arweave gateway client", "url", cfg.ArweaveGatewayURL, "timeout", cfg.ArweaveTimeout)

	// Initialize the confirmed-lookup cache (optional)
	txCache, err := cache.New(ctx, cfg.CacheBackend, cfg.RedisAddr, cfg.CacheTTL)
	if err != nil {
		logger.Error("failed to initialize cache", "backend", cfg.CacheBackend, "error", err)
		os.Exit(1)
	}
	var lookupCache lookup.Cache
	if txCache != nil {
		defer txCache.Close()
		lookupCache = txCache
		logger.Info("lookup cache enabled", "backend", cfg.CacheBackend, "ttl", cfg.CacheTTL)
	}

	// Initialize NATS publisher (optional)
	var lookupPublisher lookup.Publisher
	if cfg.NATSURL != "" {
		publisher, err := nats.NewPublisher(cfg.NATSURL, m, logger)
		if err != nil {
			logger.Error("failed to connect to NATS", "url", cfg.NATSURL, "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		lookupPublisher = publisher
	}

	svc := lookup.NewService(gateway, cfg.MinConfirmations, lookupCache, lookupPublisher, m, logger)

	// Initialize HTTP server
	httpServer := server.New(cfg.ServerAddr, cfg, svc, m, logger)

	logger.Info("server initialized, all dependencies ready",
		"cache_backend", cfg.CacheBackend,
		"nats_enabled", cfg.NATSURL != "",
		"metrics_enabled", cfg.MetricsEnabled,
	)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level and format.
func setupLogger(w io.Writer, levelStr, format string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	case "tint":
		return slog.New(tint.NewHandler(w, &tint.Options{Level: level, TimeFormat: time.Kitchen}))
	default:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
}
