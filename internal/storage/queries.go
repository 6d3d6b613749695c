package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the statements against report_deliveries.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// ReportDelivery mirrors one report_deliveries row.
type ReportDelivery struct {
	ID         int64
	RequestID  string
	Month      string
	Channel    string
	Digest     string
	Posted     int64
	StatusCode sql.NullInt64
	Error      sql.NullString
	CreatedAt  string
}

const createDelivery = `
INSERT INTO report_deliveries (request_id, month, channel, digest, posted, status_code, error, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id
`

type CreateDeliveryParams struct {
	RequestID  string
	Month      string
	Channel    string
	Digest     string
	Posted     int64
	StatusCode sql.NullInt64
	Error      sql.NullString
	CreatedAt  string
}

func (q *Queries) CreateDelivery(ctx context.Context, arg CreateDeliveryParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createDelivery,
		arg.RequestID,
		arg.Month,
		arg.Channel,
		arg.Digest,
		arg.Posted,
		arg.StatusCode,
		arg.Error,
		arg.CreatedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const listDeliveries = `
SELECT id, request_id, month, channel, digest, posted, status_code, error, created_at
FROM report_deliveries
ORDER BY id DESC
LIMIT ?
`

func (q *Queries) ListDeliveries(ctx context.Context, limit int64) ([]ReportDelivery, error) {
	rows, err := q.db.QueryContext(ctx, listDeliveries, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ReportDelivery
	for rows.Next() {
		var i ReportDelivery
		if err := rows.Scan(
			&i.ID,
			&i.RequestID,
			&i.Month,
			&i.Channel,
			&i.Digest,
			&i.Posted,
			&i.StatusCode,
			&i.Error,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countDeliveriesByMonth = `
SELECT COUNT(*) FROM report_deliveries WHERE month = ? AND posted = 1
`

func (q *Queries) CountPostedByMonth(ctx context.Context, month string) (int64, error) {
	row := q.db.QueryRowContext(ctx, countDeliveriesByMonth, month)
	var n int64
	err := row.Scan(&n)
	return n, err
}
