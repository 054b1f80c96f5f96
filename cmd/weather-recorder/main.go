package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/weather-recorder/internal/app"
	"github.com/i474232898/weather-recorder/internal/config"
	"github.com/i474232898/weather-recorder/internal/logging"
	"github.com/i474232898/weather-recorder/internal/metrics"
	"github.com/i474232898/weather-recorder/internal/publish"
	"github.com/i474232898/weather-recorder/internal/weather/providers"
)

const appName = "weather-recorder"

// Set with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "INFO: no .env file loaded: %v\n", err)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	flag.BoolVar(&cfg.ExportEnabled, "export", cfg.ExportEnabled, "also export the latest readings to "+cfg.ExportPath)
	flag.Parse()

	logger := logging.New(cfg, version, appName)
	slog.SetDefault(logger)
	metrics.MustRegister()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
	logger.Info("shutting down")
}

func run(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) error {
	// One storage handle for the whole process, closed on exit.
	st, closer, err := app.OpenStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closer.Close(); err != nil {
			logger.Error("store close", "error", err)
		}
	}()

	// Shared HTTP client for the upstream API, with response caching.
	httpClient := providers.NewCachingClient(cfg.HTTPTimeout, cfg.CacheTTL)
	provider := providers.NewOpenMeteoProvider(httpClient, cfg.Location)

	deps := app.Deps{Provider: provider, Store: st}

	if cfg.MQTTBroker != "" {
		pub := publish.NewMQTTPublisher(publish.Config{
			Broker:   cfg.MQTTBroker,
			Port:     cfg.MQTTPort,
			ClientID: cfg.MQTTClientID,
			Topic:    cfg.MQTTTopic,
		}, logger.With("component", "mqtt"))

		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := pub.Connect(connectCtx)
		cancel()
		if err != nil {
			// Auto-reconnect keeps trying; readings are still stored meanwhile.
			logger.Warn("mqtt connection failed (continuing)", "error", err)
		}
		defer pub.Disconnect()
		deps.Publisher = pub
	}

	return app.Run(ctx, cfg, deps, logger)
}
