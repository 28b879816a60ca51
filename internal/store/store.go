package store

import (
	"context"
	"time"

	"github.com/PratikDhanave/repo-activity-service/internal/models"
)

// EventStore is the append-only home of normalized events.
// Implementations must be safe for concurrent Insert and Query.
type EventStore interface {
	// Insert appends ev and returns the identifier assigned to it.
	// Duplicate request ids are stored as separate events.
	Insert(ctx context.Context, ev models.Event) (string, error)
	// Query returns up to limit events, newest timestamp first.
	// Events with equal timestamps come back in reverse insertion order.
	Query(ctx context.Context, limit int) ([]models.Event, error)
	// All returns every stored event in insertion order.
	All(ctx context.Context) ([]models.Event, error)
	// Stats counts events, and events with a timestamp at or after since.
	Stats(ctx context.Context, since time.Time) (models.ActivityStats, error)
	Ping(ctx context.Context) error
	Close()
}
