package weather

import (
	"context"
)

// Provider abstracts the upstream weather source.
type Provider interface {
	Name() string
	Current(ctx context.Context) (Conditions, error)
}

// Store is the contract the SQLite store (and the in-memory store) must satisfy.
type Store interface {
	SaveReading(ctx context.Context, r *Reading) error
	LatestReadings(ctx context.Context, limit int) ([]Reading, error)
}

// Publisher receives every reading after it has been stored.
type Publisher interface {
	PublishReading(ctx context.Context, r Reading) error
}
