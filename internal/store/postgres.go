package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rcx-service/internal/models"
)

// Store writes fault rows to Postgres, one table per table name. Tables are
// created on first use.
type Store struct {
	pool *pgxpool.Pool

	mu     sync.Mutex
	tables map[string]bool
}

func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &Store{pool: pool, tables: make(map[string]bool)}, nil
}

func createTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id TEXT PRIMARY KEY,
	device_id TEXT NOT NULL,
	datetime TIMESTAMPTZ NOT NULL,
	diagnostic_name TEXT NOT NULL,
	diagnostic_message TEXT NOT NULL,
	energy_impact DOUBLE PRECISION,
	color_code TEXT NOT NULL
)`, pgx.Identifier{table}.Sanitize())
}

func createIndexSQL(table string) string {
	return fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (device_id, datetime DESC)`,
		pgx.Identifier{table + "_device_datetime_idx"}.Sanitize(), pgx.Identifier{table}.Sanitize())
}

func insertSQL(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (id, device_id, datetime, diagnostic_name, diagnostic_message, energy_impact, color_code)
VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (id) DO NOTHING`, pgx.Identifier{table}.Sanitize())
}

func historySQL(table string) string {
	return fmt.Sprintf(`SELECT id, device_id, datetime, diagnostic_name, diagnostic_message, energy_impact, color_code
FROM %s WHERE device_id = $1 AND datetime >= $2 ORDER BY datetime DESC LIMIT $3`, pgx.Identifier{table}.Sanitize())
}

// EnsureTable creates table once per process.
func (s *Store) EnsureTable(ctx context.Context, table string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tables[table] {
		return nil
	}
	for _, stmt := range []string{createTableSQL(table), createIndexSQL(table)} {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create table %s: %w", table, err)
		}
	}
	s.tables[table] = true
	return nil
}

func (s *Store) InsertRow(ctx context.Context, table string, rec models.FaultRecord) error {
	if err := s.EnsureTable(ctx, table); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, insertSQL(table),
		rec.ID, rec.DeviceID, rec.Timestamp, rec.DiagnosticName, rec.Message, rec.EnergyImpact, string(rec.Color))
	if err != nil {
		return fmt.Errorf("insert fault %s: %w", rec.ID, err)
	}
	return nil
}

// History returns a device's rows since the given time, newest first.
func (s *Store) History(ctx context.Context, table, deviceID string, since time.Time, limit int) ([]models.FaultRecord, error) {
	if err := s.EnsureTable(ctx, table); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, historySQL(table), deviceID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.FaultRecord, error) {
		var (
			rec   models.FaultRecord
			color string
		)
		err := row.Scan(&rec.ID, &rec.DeviceID, &rec.Timestamp, &rec.DiagnosticName, &rec.Message, &rec.EnergyImpact, &color)
		rec.Color = models.Color(color)
		return rec, err
	})
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	s.pool.Close()
}
