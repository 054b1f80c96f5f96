package weather

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type stubProvider struct {
	cond Conditions
	err  error
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Current(context.Context) (Conditions, error) {
	if p.err != nil {
		return Conditions{}, p.err
	}
	return p.cond, nil
}

type sliceStore struct {
	mu       sync.Mutex
	readings []Reading
}

func (s *sliceStore) SaveReading(_ context.Context, r *Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = uint64(len(s.readings) + 1)
	s.readings = append(s.readings, *r)
	return nil
}

func (s *sliceStore) LatestReadings(context.Context, int) ([]Reading, error) {
	return nil, nil
}

type recordingPublisher struct {
	got []Reading
	err error
}

func (p *recordingPublisher) PublishReading(_ context.Context, r Reading) error {
	p.got = append(p.got, r)
	return p.err
}

func sampleConditions() Conditions {
	return Conditions{
		ProviderName:  "stub",
		ObservedAt:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		TemperatureC:  14.5,
		PrecipMm:      0.2,
		PressureHpa:   1013.1,
		WindSpeedMS:   3.4,
		WindDirection: 270,
	}
}

func TestCollectStoresOneReadingWithCaptureTime(t *testing.T) {
	store := &sliceStore{}
	c := NewCollector(&stubProvider{cond: sampleConditions()}, store, nil, nil)

	captured := time.Date(2024, 5, 1, 15, 4, 5, 0, time.FixedZone("MSK", 3*3600))
	c.now = func() time.Time { return captured }

	if err := c.Collect(context.Background()); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(store.readings) != 1 {
		t.Fatalf("expected 1 reading, got %d", len(store.readings))
	}

	r := store.readings[0]
	if !r.Timestamp.Equal(captured) {
		t.Errorf("timestamp: got %v, want %v", r.Timestamp, captured)
	}
	if r.Timestamp.Location() != time.UTC {
		t.Errorf("timestamp should be stored in UTC, got %v", r.Timestamp.Location())
	}
	if r.Temperature != 14.5 || r.PrecipitationAmount != 0.2 || r.Pressure != 1013.1 ||
		r.WindSpeed != 3.4 || r.WindDirection != 270 {
		t.Errorf("unexpected values: %+v", r)
	}
}

func TestCollectFetchErrorWritesNothing(t *testing.T) {
	store := &sliceStore{}
	fetchErr := errors.New("connection refused")
	c := NewCollector(&stubProvider{err: fetchErr}, store, nil, nil)

	err := c.Collect(context.Background())
	if !errors.Is(err, fetchErr) {
		t.Fatalf("expected wrapped fetch error, got %v", err)
	}
	if len(store.readings) != 0 {
		t.Fatalf("expected no readings after failed fetch, got %d", len(store.readings))
	}
}

func TestCollectIdenticalResponsesProduceDistinctReadings(t *testing.T) {
	store := &sliceStore{}
	c := NewCollector(&stubProvider{cond: sampleConditions()}, store, nil, nil)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	c.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * 5 * time.Second)
	}

	for i := 0; i < 2; i++ {
		if err := c.Collect(context.Background()); err != nil {
			t.Fatalf("Collect #%d: %v", i, err)
		}
	}
	if len(store.readings) != 2 {
		t.Fatalf("expected 2 readings, got %d", len(store.readings))
	}

	a, b := store.readings[0], store.readings[1]
	if a.ID == b.ID {
		t.Errorf("expected distinct ids, both %d", a.ID)
	}
	if a.Timestamp.Equal(b.Timestamp) {
		t.Errorf("expected distinct timestamps, both %v", a.Timestamp)
	}
	a.ID, b.ID = 0, 0
	a.Timestamp, b.Timestamp = time.Time{}, time.Time{}
	if a != b {
		t.Errorf("measurements differ: %+v vs %+v", a, b)
	}
}

func TestCollectPublishFailureDoesNotFailCycle(t *testing.T) {
	store := &sliceStore{}
	pub := &recordingPublisher{err: errors.New("broker down")}
	c := NewCollector(&stubProvider{cond: sampleConditions()}, store, pub, nil)

	if err := c.Collect(context.Background()); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(pub.got) != 1 || pub.got[0].ID != 1 {
		t.Fatalf("expected stored reading to be published, got %+v", pub.got)
	}
	if len(store.readings) != 1 {
		t.Fatalf("expected reading to stay stored, got %d", len(store.readings))
	}
}
