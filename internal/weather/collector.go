package weather

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/i474232898/weather-recorder/internal/metrics"
)

// Collector fetches current conditions and appends them to the store.
type Collector struct {
	provider  Provider
	store     Store
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewCollector creates a Collector. publisher may be nil.
func NewCollector(provider Provider, store Store, publisher Publisher, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		provider:  provider,
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Collect runs one fetch -> store cycle. A failed fetch stores nothing.
func (c *Collector) Collect(ctx context.Context) error {
	cond, err := c.provider.Current(ctx)
	if err != nil {
		metrics.RecordError("collector", "fetch")
		return fmt.Errorf("fetch current conditions from %s: %w", c.provider.Name(), err)
	}

	reading := NewReading(c.now(), cond)
	if err := c.store.SaveReading(ctx, &reading); err != nil {
		metrics.RecordError("collector", "store")
		return fmt.Errorf("save reading: %w", err)
	}
	metrics.ReadingsStored.Inc()

	c.logger.Debug("reading stored",
		"id", reading.ID,
		"provider", cond.ProviderName,
		"observed_at", cond.ObservedAt,
		"temperature_c", reading.Temperature,
	)

	if c.publisher != nil {
		if err := c.publisher.PublishReading(ctx, reading); err != nil {
			c.logger.Warn("publish reading failed", "id", reading.ID, "error", err)
		}
	}
	return nil
}
