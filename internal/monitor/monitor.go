// Package monitor periodically checks the event store and logs activity.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/PratikDhanave/repo-activity-service/internal/logger"
	"github.com/PratikDhanave/repo-activity-service/internal/models"
	"github.com/PratikDhanave/repo-activity-service/internal/store"
)

const (
	DefaultInterval = 5 * time.Minute
	activityWindow  = time.Hour
	checkTimeout    = 5 * time.Second
)

const (
	DatabaseConnected    = "connected"
	DatabaseDisconnected = "disconnected"
)

// Report is the outcome of one health check.
type Report struct {
	Timestamp string                `json:"timestamp"`
	Database  string                `json:"database"`
	Activity  *models.ActivityStats `json:"recent_activity,omitempty"`
	Healthy   bool                  `json:"healthy"`
}

// Monitor runs Check on a fixed interval until stopped.
type Monitor struct {
	store    store.EventStore
	interval time.Duration
	now      func() time.Time

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

func New(st store.EventStore, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		store:    st,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the check loop. It returns immediately and is a no-op
// when the monitor is already running.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	slog.Info("monitor starting", "interval", m.interval)

	m.wg.Add(1)
	go m.loop()
}

// Stop ends the loop and waits for an in-flight check to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	close(m.stopCh)
	m.wg.Wait()
	slog.Info("monitor stopped")
}

func (m *Monitor) loop() {
	defer m.wg.Done()

	ctx := logger.WithLogFields(context.Background(), logger.LogFields{Component: "monitor"})

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Check(ctx)
		case <-m.stopCh:
			return
		}
	}
}

// Check pings the store and, when reachable, reads activity over the
// last hour. An unreachable store is logged as a warning.
func (m *Monitor) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	now := m.now().UTC()
	report := Report{Timestamp: models.FormatTimestamp(now), Database: DatabaseConnected}

	if err := m.store.Ping(ctx); err != nil {
		report.Database = DatabaseDisconnected
		slog.WarnContext(ctx, "health check failed: event store unreachable", "error", err)
		return report
	}

	stats, err := m.store.Stats(ctx, now.Add(-activityWindow))
	if err != nil {
		slog.ErrorContext(ctx, "activity check failed", "error", err)
		return report
	}

	report.Activity = &stats
	report.Healthy = true

	attrs := []any{
		"recent_events_count", stats.RecentEventsCount,
		"total_events", stats.TotalEvents,
	}
	if stats.LatestEvent != nil {
		attrs = append(attrs, "latest_event", *stats.LatestEvent)
	}
	slog.InfoContext(ctx, "health check", attrs...)

	return report
}
