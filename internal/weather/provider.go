package weather

import (
	"context"
	"errors"
	"time"
)

// ErrNoSnapshot is returned by stores that hold nothing for a city.
var ErrNoSnapshot = errors.New("no snapshot")

// FeedProvider abstracts a forecast feed source (e.g. the CWA open-data API).
type FeedProvider interface {
	Name() string
	FetchFeed(ctx context.Context, city string) (*Feed, error)
}

// Store is the contract the in-memory store (and any future persistent store) must satisfy.
// SaveSnapshot reports false when a newer snapshot for the city is already held.
type Store interface {
	SaveSnapshot(snapshot Snapshot) bool
	GetLatest(city string) (Snapshot, error)
	GetRange(city string, from, to time.Time) ([]Snapshot, error)
}

// Publisher forwards stored snapshots to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, snapshot Snapshot) error
}
