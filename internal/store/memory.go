package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PratikDhanave/repo-activity-service/internal/models"
)

// MemoryStore keeps events in process memory. Used for local runs
// (STORE_DRIVER=memory) and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	events []models.Event
}

var _ EventStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Insert(_ context.Context, ev models.Event) (string, error) {
	if _, err := time.Parse(time.RFC3339Nano, ev.Timestamp); err != nil {
		return "", fmt.Errorf("parsing event timestamp: %w", err)
	}

	ev.ID = uuid.New().String()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return ev.ID, nil
}

func (s *MemoryStore) Query(_ context.Context, limit int) ([]models.Event, error) {
	if limit <= 0 {
		return []models.Event{}, nil
	}

	s.mu.RLock()
	out := make([]models.Event, 0, len(s.events))
	for i := len(s.events) - 1; i >= 0; i-- {
		out = append(out, s.events[i])
	}
	s.mu.RUnlock()

	// Timestamps share one fixed-width layout, so string order is time order.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) All(_ context.Context) ([]models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Event, len(s.events))
	copy(out, s.events)
	return out, nil
}

func (s *MemoryStore) Stats(_ context.Context, since time.Time) (models.ActivityStats, error) {
	threshold := models.FormatTimestamp(since)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats models.ActivityStats
	for _, ev := range s.events {
		stats.TotalEvents++
		if ev.Timestamp >= threshold {
			stats.RecentEventsCount++
		}
		if stats.LatestEvent == nil || ev.Timestamp > *stats.LatestEvent {
			ts := ev.Timestamp
			stats.LatestEvent = &ts
		}
	}
	return stats, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() {}
