// Package storage keeps the SQLite audit log of outbound report deliveries.
// Ledger data is never stored here.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kakeibo/internal/core"
	"kakeibo/internal/log"

	_ "modernc.org/sqlite"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 200
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// applies migrations.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// RecordDelivery stores d and returns its row id. CreatedAt defaults to now.
func (r *SQLiteRepository) RecordDelivery(ctx context.Context, d core.Delivery) (int64, error) {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = r.now()
	}

	arg := CreateDeliveryParams{
		RequestID: d.RequestID,
		Month:     d.Month,
		Channel:   d.Channel,
		Digest:    d.Digest,
		CreatedAt: d.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if d.Posted {
		arg.Posted = 1
	}
	if d.StatusCode != 0 {
		arg.StatusCode = sql.NullInt64{Int64: int64(d.StatusCode), Valid: true}
	}
	if d.Error != "" {
		arg.Error = sql.NullString{String: d.Error, Valid: true}
	}

	id, err := r.queries.CreateDelivery(ctx, arg)
	if err != nil {
		return 0, fmt.Errorf("create delivery: %w", err)
	}

	log.FromContext(ctx).WithComponent(log.ComponentStorage).InfoContext(ctx, "Delivery recorded",
		log.FieldOperation, log.OpRecord,
		log.FieldDeliveryID, id,
		log.FieldMonth, d.Month,
		log.FieldPosted, d.Posted)
	return id, nil
}

// ListDeliveries returns the newest deliveries first. limit is clamped to
// 1..MaxListLimit, with DefaultListLimit for non-positive values.
func (r *SQLiteRepository) ListDeliveries(ctx context.Context, limit int) ([]core.Delivery, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	rows, err := r.queries.ListDeliveries(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}

	out := make([]core.Delivery, 0, len(rows))
	for _, row := range rows {
		created, err := time.Parse(time.RFC3339Nano, row.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("delivery %d: parse created_at: %w", row.ID, err)
		}
		out = append(out, core.Delivery{
			ID:         row.ID,
			RequestID:  row.RequestID,
			Month:      row.Month,
			Channel:    row.Channel,
			Digest:     row.Digest,
			Posted:     row.Posted == 1,
			StatusCode: int(row.StatusCode.Int64),
			Error:      row.Error.String,
			CreatedAt:  created,
		})
	}
	return out, nil
}

// PostedCount returns how many successful posts exist for month.
func (r *SQLiteRepository) PostedCount(ctx context.Context, month core.MonthToken) (int64, error) {
	n, err := r.queries.CountPostedByMonth(ctx, month.String())
	if err != nil {
		return 0, fmt.Errorf("count deliveries: %w", err)
	}
	return n, nil
}
