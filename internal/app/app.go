// Package app wires the collector, exporter and status API around one
// storage handle and runs them until shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	httpapi "github.com/i474232898/weather-recorder/internal/api/http"
	"github.com/i474232898/weather-recorder/internal/config"
	"github.com/i474232898/weather-recorder/internal/db"
	"github.com/i474232898/weather-recorder/internal/export"
	"github.com/i474232898/weather-recorder/internal/scheduler"
	"github.com/i474232898/weather-recorder/internal/store"
	"github.com/i474232898/weather-recorder/internal/weather"
)

const (
	CollectorTask = "collector"
	ExporterTask  = "exporter"

	shutdownTimeout = 10 * time.Second
)

// Deps are the long-lived handles built by main and shared by every task.
type Deps struct {
	Provider  weather.Provider
	Store     weather.Store
	Publisher weather.Publisher // optional
}

// OpenStore opens the configured store. The returned closer releases it.
func OpenStore(cfg *config.AppConfig, logger *slog.Logger) (weather.Store, io.Closer, error) {
	switch cfg.StoreDriver {
	case "memory":
		return store.NewMemoryStore(), nopCloser{}, nil
	case "sqlite":
		conn, err := db.Open(cfg.DatabasePath, logger)
		if err != nil {
			return nil, nil, err
		}
		return store.NewSQLStore(conn.Gorm()), conn, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Tasks returns the periodic duties for the configured mode: the collector
// always, the exporter only when export is enabled.
func Tasks(cfg *config.AppConfig, collector *weather.Collector, exporter *export.Exporter) []scheduler.Task {
	tasks := []scheduler.Task{{
		Name:     CollectorTask,
		Interval: cfg.FetchInterval,
		Run:      collector.Collect,
	}}
	if cfg.ExportEnabled && exporter != nil {
		tasks = append(tasks, scheduler.Task{
			Name:     ExporterTask,
			Interval: cfg.ExportInterval,
			Run:      exporter.Export,
		})
	}
	return tasks
}

// Run blocks until ctx is cancelled (nil) or a task fails (the task's error).
func Run(ctx context.Context, cfg *config.AppConfig, deps Deps, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	collector := weather.NewCollector(deps.Provider, deps.Store, deps.Publisher, logger.With("component", CollectorTask))

	var exporter *export.Exporter
	if cfg.ExportEnabled {
		loc, err := time.LoadLocation(cfg.Location.Timezone)
		if err != nil {
			return fmt.Errorf("load timezone %q: %w", cfg.Location.Timezone, err)
		}
		exporter = export.NewExporter(deps.Store, cfg.ExportPath, cfg.ExportLimit, loc, logger.With("component", ExporterTask))
	}

	logger.Info("recorder starting",
		"location", cfg.Location.Key(),
		"timezone", cfg.Location.Timezone,
		"fetch_interval", cfg.FetchInterval,
		"export_enabled", cfg.ExportEnabled,
		"export_path", cfg.ExportPath,
		"export_interval", cfg.ExportInterval,
	)

	errCh := make(chan error, 1)
	stopHTTP := func() {}
	if cfg.HTTPEnabled {
		srv := httpapi.NewApp()
		httpapi.RegisterRoutes(srv, deps.Store)
		go func() {
			logger.Info("http listening", "port", cfg.Port)
			if err := srv.Listen(":" + cfg.Port); err != nil {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}()
		stopHTTP = func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.ShutdownWithContext(shutdownCtx); err != nil {
				logger.Error("http shutdown", "error", err)
			}
		}
	}
	defer stopHTTP()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	schedDone := make(chan error, 1)
	go func() {
		schedDone <- scheduler.New(logger, Tasks(cfg, collector, exporter)...).Run(runCtx)
	}()

	select {
	case err := <-schedDone:
		return err
	case err := <-errCh:
		cancel()
		if schedErr := <-schedDone; schedErr != nil {
			return errors.Join(err, schedErr)
		}
		return err
	}
}
