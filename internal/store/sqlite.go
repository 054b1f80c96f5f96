package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/i474232898/weather-recorder/internal/weather"
)

// SQLStore persists readings in the weather_data table.
type SQLStore struct {
	db *gorm.DB
}

func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

// SaveReading inserts r and sets r.ID. The insert is committed before it returns.
func (s *SQLStore) SaveReading(ctx context.Context, r *weather.Reading) error {
	if err := checkInsert(r); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("insert reading: %w", err)
	}
	return nil
}

// LatestReadings returns up to limit readings, newest first.
func (s *SQLStore) LatestReadings(ctx context.Context, limit int) ([]weather.Reading, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	var out []weather.Reading
	err := s.db.WithContext(ctx).
		Order("timestamp DESC").
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("query latest readings: %w", err)
	}
	return out, nil
}

// Count returns the number of stored readings.
func (s *SQLStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&weather.Reading{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count readings: %w", err)
	}
	return n, nil
}

var (
	// ErrInvalidLimit is returned for a non-positive read limit.
	ErrInvalidLimit = errors.New("limit must be greater than zero")
	// ErrMissingTimestamp is returned when a reading has no capture time.
	ErrMissingTimestamp = errors.New("reading timestamp is required")
	// ErrAlreadyStored is returned when a reading that already has an id is saved again.
	ErrAlreadyStored = errors.New("reading already stored")
)

// checkInsert validates r and normalizes its timestamp to UTC. The sqlite
// driver stores times as zone-suffixed text, so ordering is only correct
// when every row uses the same zone.
func checkInsert(r *weather.Reading) error {
	if r == nil {
		return errors.New("reading is nil")
	}
	if r.ID != 0 {
		return fmt.Errorf("%w: id %d", ErrAlreadyStored, r.ID)
	}
	if r.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}
	r.Timestamp = r.Timestamp.UTC()
	return nil
}
