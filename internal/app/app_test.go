package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/i474232898/weather-recorder/internal/config"
	"github.com/i474232898/weather-recorder/internal/export"
	"github.com/i474232898/weather-recorder/internal/store"
	"github.com/i474232898/weather-recorder/internal/weather"
)

type fakeProvider struct {
	calls atomic.Int32
	err   error
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Current(context.Context) (weather.Conditions, error) {
	p.calls.Add(1)
	if p.err != nil {
		return weather.Conditions{}, p.err
	}
	return weather.Conditions{
		ProviderName:  "fake",
		TemperatureC:  10,
		PrecipMm:      0,
		PressureHpa:   1015,
		WindSpeedMS:   1.5,
		WindDirection: 45,
	}, nil
}

func testConfig(t *testing.T, exportEnabled bool) *config.AppConfig {
	t.Helper()
	return &config.AppConfig{
		AppEnv:         "dev",
		StoreDriver:    "memory",
		Location:       weather.Coordinates{Latitude: 55.7007, Longitude: 37.36185, Timezone: "Europe/Moscow"},
		FetchInterval:  10 * time.Millisecond,
		ExportEnabled:  exportEnabled,
		ExportPath:     filepath.Join(t.TempDir(), "weather_data.xlsx"),
		ExportLimit:    export.DefaultLimit,
		ExportInterval: 20 * time.Millisecond,
		HTTPEnabled:    false,
	}
}

func waitForCount(t *testing.T, s *store.MemoryStore, n int64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if got, _ := s.Count(context.Background()); got >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("store did not reach %d readings", n)
}

func runUntil(t *testing.T, cfg *config.AppConfig, deps Deps, until func()) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, deps, nil) }()

	until()
	cancel()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
		return nil
	}
}

func TestTasksByMode(t *testing.T) {
	s := store.NewMemoryStore()
	collector := weather.NewCollector(&fakeProvider{}, s, nil, nil)
	exporter := export.NewExporter(s, "out.xlsx", 10, nil, nil)

	tasks := Tasks(testConfig(t, false), collector, exporter)
	if len(tasks) != 1 || tasks[0].Name != CollectorTask {
		t.Fatalf("collector-only mode: got %+v", tasks)
	}

	tasks = Tasks(testConfig(t, true), collector, exporter)
	if len(tasks) != 2 || tasks[1].Name != ExporterTask {
		t.Fatalf("collector+exporter mode: got %+v", tasks)
	}
	if tasks[1].Interval != 20*time.Millisecond {
		t.Fatalf("exporter interval: got %s", tasks[1].Interval)
	}
}

func TestRunCollectorOnlyNeverWritesSpreadsheet(t *testing.T) {
	cfg := testConfig(t, false)
	s := store.NewMemoryStore()

	err := runUntil(t, cfg, Deps{Provider: &fakeProvider{}, Store: s}, func() { waitForCount(t, s, 3) })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := os.Stat(cfg.ExportPath); !os.IsNotExist(err) {
		t.Fatalf("spreadsheet must not exist in collector-only mode, stat err=%v", err)
	}
}

func TestRunWithExportWritesSpreadsheet(t *testing.T) {
	cfg := testConfig(t, true)
	s := store.NewMemoryStore()

	err := runUntil(t, cfg, Deps{Provider: &fakeProvider{}, Store: s}, func() {
		waitForCount(t, s, 2)
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			if _, err := os.Stat(cfg.ExportPath); err == nil {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := os.Stat(cfg.ExportPath); err != nil {
		t.Fatalf("expected spreadsheet at %s: %v", cfg.ExportPath, err)
	}
}

func TestRunStopsOnProviderError(t *testing.T) {
	cfg := testConfig(t, false)
	s := store.NewMemoryStore()
	apiErr := errors.New("upstream returned 502")
	prov := &fakeProvider{err: apiErr}

	done := make(chan error, 1)
	go func() { done <- Run(context.Background(), cfg, Deps{Provider: prov, Store: s}, nil) }()

	select {
	case err := <-done:
		if !errors.Is(err, apiErr) {
			t.Fatalf("expected provider error, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop on provider error")
	}

	if n, _ := s.Count(context.Background()); n != 0 {
		t.Fatalf("no reading may be stored after a failed fetch, got %d", n)
	}
	if prov.calls.Load() != 1 {
		t.Fatalf("collector should stop after the first failure, got %d calls", prov.calls.Load())
	}
}

func TestOpenStore(t *testing.T) {
	cfg := testConfig(t, false)

	s, closer, err := OpenStore(cfg, nil)
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	if _, ok := s.(*store.MemoryStore); !ok {
		t.Fatalf("expected *store.MemoryStore, got %T", s)
	}
	if err := closer.Close(); err != nil {
		t.Fatalf("closing the memory store should be a no-op, got %v", err)
	}

	cfg.StoreDriver = "sqlite"
	cfg.DatabasePath = filepath.Join(t.TempDir(), "weather.db")
	s, closer, err = OpenStore(cfg, nil)
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	defer closer.Close()
	if _, ok := s.(*store.SQLStore); !ok {
		t.Fatalf("expected *store.SQLStore, got %T", s)
	}

	cfg.StoreDriver = "bolt"
	if _, _, err := OpenStore(cfg, nil); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
