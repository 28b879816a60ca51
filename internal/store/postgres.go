package store

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PratikDhanave/repo-activity-service/internal/models"
)

// schemaSQL is embedded so the service can self-bootstrap its database schema.
//
//go:embed schema.sql
var schemaSQL string

// PostgresConfig holds connection and table settings for PostgresStore.
type PostgresConfig struct {
	DSN      string
	Table    string
	MaxConns int32
	MinConns int32
}

// PostgresStore is the durable persistence layer for events.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string // sanitized identifier
	index string
}

var _ EventStore = (*PostgresStore)(nil)

// NewPostgresStore creates a connection pool and fails fast if DB is unreachable.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	table := cfg.Table
	if table == "" {
		table = "events"
	}

	return &PostgresStore{
		pool:  pool,
		table: pgx.Identifier{table}.Sanitize(),
		index: pgx.Identifier{table + "_ts_seq_idx"}.Sanitize(),
	}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, fmt.Sprintf(schemaSQL, p.table, p.index)); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// Ping is used by readiness endpoint to validate DB connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}

// Insert relies on single-row INSERT atomicity; no read-modify-write happens.
func (p *PostgresStore) Insert(ctx context.Context, ev models.Event) (string, error) {
	ts, err := time.Parse(time.RFC3339Nano, ev.Timestamp)
	if err != nil {
		return "", fmt.Errorf("parsing event timestamp: %w", err)
	}

	id := uuid.New()
	_, err = p.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (id, author, ts, action, request_id, from_branch, to_branch)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.table), id, ev.Author, ts.UTC(), string(ev.Action), ev.RequestID, ev.FromBranch, ev.ToBranch)
	if err != nil {
		return "", fmt.Errorf("inserting event: %w", err)
	}

	return id.String(), nil
}

func (p *PostgresStore) Query(ctx context.Context, limit int) ([]models.Event, error) {
	if limit <= 0 {
		return []models.Event{}, nil
	}

	rows, err := p.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, author, ts, action, request_id, from_branch, to_branch
		FROM %s
		ORDER BY ts DESC, seq DESC
		LIMIT $1
	`, p.table), limit)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}

	events, err := pgx.CollectRows(rows, scanEvent)
	if err != nil {
		return nil, fmt.Errorf("scanning events: %w", err)
	}
	return events, nil
}

func (p *PostgresStore) All(ctx context.Context) ([]models.Event, error) {
	rows, err := p.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, author, ts, action, request_id, from_branch, to_branch
		FROM %s
		ORDER BY seq ASC
	`, p.table))
	if err != nil {
		return nil, fmt.Errorf("reading events: %w", err)
	}

	events, err := pgx.CollectRows(rows, scanEvent)
	if err != nil {
		return nil, fmt.Errorf("scanning events: %w", err)
	}
	return events, nil
}

func (p *PostgresStore) Stats(ctx context.Context, since time.Time) (models.ActivityStats, error) {
	var (
		stats  models.ActivityStats
		latest *time.Time
	)
	err := p.pool.QueryRow(ctx, fmt.Sprintf(`
		SELECT COUNT(*) FILTER (WHERE ts >= $1), MAX(ts), COUNT(*)
		FROM %s
	`, p.table), since.UTC()).Scan(&stats.RecentEventsCount, &latest, &stats.TotalEvents)
	if err != nil {
		return models.ActivityStats{}, fmt.Errorf("computing event stats: %w", err)
	}

	if latest != nil {
		s := models.FormatTimestamp(*latest)
		stats.LatestEvent = &s
	}
	return stats, nil
}

func scanEvent(row pgx.CollectableRow) (models.Event, error) {
	var (
		ev     models.Event
		id     uuid.UUID
		ts     time.Time
		action string
	)
	if err := row.Scan(&id, &ev.Author, &ts, &action, &ev.RequestID, &ev.FromBranch, &ev.ToBranch); err != nil {
		return models.Event{}, err
	}
	ev.ID = id.String()
	ev.Timestamp = models.FormatTimestamp(ts)
	ev.Action = models.Action(action)
	return ev, nil
}
