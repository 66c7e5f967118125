package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ajitpratap0/ees/internal/domain"
	"github.com/ajitpratap0/ees/internal/metrics"
)

// RecordOrder upserts an order's current state into the archival store.
// Called at every lifecycle transition (placed, filled, rejected,
// cancelled) so the archive ends up with the same history the executor's
// poll loop observed.
func (db *DB) RecordOrder(ctx context.Context, ord domain.Order) error {
	started := time.Now()
	defer func() { metrics.RecordDatabaseQuery("upsert_order", float64(time.Since(started).Milliseconds())) }()

	query := `
		INSERT INTO archived_orders (
			id, broker_order_id, position_id, symbol, side,
			quantity, limit_price, status, filled_quantity, avg_fill_price,
			owner_tag, reject_reason, created_at, updated_at, filled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			broker_order_id = EXCLUDED.broker_order_id,
			status = EXCLUDED.status,
			filled_quantity = EXCLUDED.filled_quantity,
			avg_fill_price = EXCLUDED.avg_fill_price,
			reject_reason = EXCLUDED.reject_reason,
			updated_at = EXCLUDED.updated_at,
			filled_at = EXCLUDED.filled_at
	`
	_, err := db.pool.Exec(ctx, query,
		ord.ID, ord.BrokerOrderID, ord.PositionID, ord.Symbol, string(ord.Side),
		ord.Quantity, int64(ord.LimitPrice), string(ord.Status), ord.FilledQuantity, int64(ord.AvgFillPrice),
		ord.OwnerTag, ord.RejectReason, ord.CreatedAt, ord.UpdatedAt, ord.FilledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to archive order: %w", err)
	}
	return nil
}

type archivedOrderRow struct {
	ID             string
	BrokerOrderID  string
	PositionID     string
	Symbol         string
	Side           string
	Quantity       int
	LimitPrice     int64
	Status         string
	FilledQuantity int
	AvgFillPrice   int64
	OwnerTag       string
	RejectReason   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	FilledAt       *time.Time
}

const archivedOrderColumns = `
	id, broker_order_id, position_id, symbol, side, quantity, limit_price,
	status, filled_quantity, avg_fill_price, owner_tag, reject_reason,
	created_at, updated_at, filled_at
`

func scanArchivedOrder(row pgx.Row) (archivedOrderRow, error) {
	var r archivedOrderRow
	err := row.Scan(
		&r.ID, &r.BrokerOrderID, &r.PositionID, &r.Symbol, &r.Side, &r.Quantity, &r.LimitPrice,
		&r.Status, &r.FilledQuantity, &r.AvgFillPrice, &r.OwnerTag, &r.RejectReason,
		&r.CreatedAt, &r.UpdatedAt, &r.FilledAt,
	)
	return r, err
}

// GetArchivedOrder fetches one archived order row by its internal ID.
func (db *DB) GetArchivedOrder(ctx context.Context, id string) (archivedOrderRow, error) {
	query := "SELECT " + archivedOrderColumns + " FROM archived_orders WHERE id = $1"
	r, err := scanArchivedOrder(db.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return archivedOrderRow{}, fmt.Errorf("archived order not found: %s", id)
		}
		return archivedOrderRow{}, fmt.Errorf("failed to get archived order: %w", err)
	}
	return r, nil
}

// ListArchivedOrdersBySymbol returns the most recent archived orders for
// a symbol, newest first.
func (db *DB) ListArchivedOrdersBySymbol(ctx context.Context, symbol string, limit int) ([]archivedOrderRow, error) {
	query := "SELECT " + archivedOrderColumns + ` FROM archived_orders
		WHERE symbol = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := db.pool.Query(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query archived orders: %w", err)
	}
	defer rows.Close()

	var out []archivedOrderRow
	for rows.Next() {
		r, err := scanArchivedOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan archived order: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating archived orders: %w", err)
	}
	return out, nil
}

// ListArchivedOrdersByStatus returns the most recent archived orders
// currently in status, newest first — used by the statusapi surface to
// report working/rejected orders without touching the live executor.
func (db *DB) ListArchivedOrdersByStatus(ctx context.Context, status domain.OrderStatus, limit int) ([]archivedOrderRow, error) {
	query := "SELECT " + archivedOrderColumns + ` FROM archived_orders
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := db.pool.Query(ctx, query, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query archived orders by status: %w", err)
	}
	defer rows.Close()

	var out []archivedOrderRow
	for rows.Next() {
		r, err := scanArchivedOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan archived order: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating archived orders: %w", err)
	}
	return out, nil
}
