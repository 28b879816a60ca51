// Package backup snapshots the event store to dated JSON archives.
//
// Snapshots are best effort: Trigger runs detached from the caller, and
// failures are only visible in the logs.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/PratikDhanave/repo-activity-service/internal/logger"
	"github.com/PratikDhanave/repo-activity-service/internal/models"
)

const (
	DefaultRetention = 7

	filePrefix = "events-"
	fileSuffix = ".json"
	dateLayout = "2006-01-02"
)

// Source is the part of the event store a snapshot needs.
type Source interface {
	All(ctx context.Context) ([]models.Event, error)
}

// Snapshot is the on-disk archive format.
type Snapshot struct {
	ExportedAt string         `json:"exported_at"`
	Count      int            `json:"count"`
	Events     []models.Event `json:"events"`
}

type Exporter struct {
	source    Source
	dir       string
	retention int
	now       func() time.Time
	wg        sync.WaitGroup
}

func NewExporter(source Source, dir string, retention int) *Exporter {
	if retention < 1 {
		retention = DefaultRetention
	}
	return &Exporter{
		source:    source,
		dir:       dir,
		retention: retention,
		now:       time.Now,
	}
}

// WithClock replaces the time source used for archive names.
func (e *Exporter) WithClock(now func() time.Time) *Exporter {
	e.now = now
	return e
}

// Trigger starts a snapshot in its own goroutine and returns immediately.
// There is no cancellation, timeout or ordering between concurrent triggers.
func (e *Exporter) Trigger() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx := logger.WithLogFields(context.Background(), logger.LogFields{Component: "backup.exporter"})

		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(ctx, "backup panicked", "panic", r)
			}
		}()

		if err := e.Export(ctx); err != nil {
			slog.ErrorContext(ctx, "backup failed", "error", err)
		}
	}()
}

// Wait blocks until every triggered snapshot has finished.
func (e *Exporter) Wait() {
	e.wg.Wait()
}

// Export writes today's archive and prunes old ones.
func (e *Exporter) Export(ctx context.Context) error {
	events, err := e.source.All(ctx)
	if err != nil {
		return fmt.Errorf("reading store: %w", err)
	}
	if events == nil {
		events = []models.Event{}
	}

	now := e.now().UTC()
	data, err := json.MarshalIndent(Snapshot{
		ExportedAt: models.FormatTimestamp(now),
		Count:      len(events),
		Events:     events,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("creating backup dir %s: %w", e.dir, err)
	}

	path := filepath.Join(e.dir, ArchiveName(now))
	if err := writeAtomic(e.dir, path, data); err != nil {
		return err
	}

	removed, err := e.prune()
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "backup written", "path", path, "events", len(events), "pruned", removed)
	return nil
}

// ArchiveName is the file name used for the archive of t's UTC date.
func ArchiveName(t time.Time) string {
	return filePrefix + t.UTC().Format(dateLayout) + fileSuffix
}

// Archives lists archive file names in dir, oldest first.
func Archives(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing backup dir %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !isArchiveName(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (e *Exporter) prune() (int, error) {
	names, err := Archives(e.dir)
	if err != nil {
		return 0, err
	}
	if len(names) <= e.retention {
		return 0, nil
	}

	stale := names[:len(names)-e.retention]
	for _, name := range stale {
		// A concurrent trigger may have pruned it already.
		if err := os.Remove(filepath.Join(e.dir, name)); err != nil && !os.IsNotExist(err) {
			return 0, fmt.Errorf("removing old backup %s: %w", name, err)
		}
	}
	return len(stale), nil
}

func isArchiveName(name string) bool {
	if len(name) != len(filePrefix)+len(dateLayout)+len(fileSuffix) {
		return false
	}
	if name[:len(filePrefix)] != filePrefix || name[len(name)-len(fileSuffix):] != fileSuffix {
		return false
	}
	_, err := time.Parse(dateLayout, name[len(filePrefix):len(name)-len(fileSuffix)])
	return err == nil
}

// writeAtomic writes through a private temp file and renames it over path,
// so concurrent writers never interleave and the last rename wins.
func writeAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".events-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("setting backup permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming backup into place: %w", err)
	}
	return nil
}
