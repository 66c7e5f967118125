package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ajitpratap0/ees/internal/domain"
	"github.com/ajitpratap0/ees/internal/metrics"
)

// RecordPositionOpened archives a freshly opened position. Every field
// this store keeps beyond domain.Position's own is immutable, derived
// from the first fill.
func (db *DB) RecordPositionOpened(ctx context.Context, pos domain.Position) error {
	started := time.Now()
	defer func() {
		metrics.RecordDatabaseQuery("insert_position", float64(time.Since(started).Milliseconds()))
	}()

	query := `
		INSERT INTO archived_positions (
			id, session_id, symbol, quantity, entry_price, entry_order_id,
			opened_at, trail_state
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := db.pool.Exec(ctx, query,
		pos.ID, pos.SessionID, pos.Symbol, pos.Quantity, int64(pos.EntryPrice),
		pos.EntryOrderID, pos.OpenedAt, string(pos.TrailState),
	)
	if err != nil {
		return fmt.Errorf("failed to archive opened position: %w", err)
	}
	return nil
}

// RecordPositionClosed updates the archival row for a closed position.
func (db *DB) RecordPositionClosed(ctx context.Context, pos domain.Position) error {
	started := time.Now()
	defer func() {
		metrics.RecordDatabaseQuery("update_position", float64(time.Since(started).Milliseconds()))
	}()

	query := `
		UPDATE archived_positions
		SET closed_at = $2, realized_pnl = $3, exit_order_id = $4, trail_state = $5
		WHERE id = $1
	`
	result, err := db.pool.Exec(ctx, query,
		pos.ID, pos.ClosedAt, int64(pos.RealizedPnL), pos.ExitOrderID, string(pos.TrailState),
	)
	if err != nil {
		return fmt.Errorf("failed to archive closed position: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("archived position not found: %s", pos.ID)
	}
	return nil
}

// UpdateUnrealizedPnL periodically snapshots mark-to-market P&L for an
// open archived position, so a post-mortem can see the equity curve
// rather than only entry/exit.
func (db *DB) UpdateUnrealizedPnL(ctx context.Context, positionID string, unrealizedPnL domain.Micros, stopPrice domain.Micros, trailState domain.TrailState) error {
	query := `
		UPDATE archived_positions
		SET unrealized_pnl = $2, stop_price = $3, trail_state = $4, updated_at = $5
		WHERE id = $1
	`
	_, err := db.pool.Exec(ctx, query, positionID, int64(unrealizedPnL), int64(stopPrice), string(trailState), time.Now())
	if err != nil {
		return fmt.Errorf("failed to update archived position mark: %w", err)
	}
	return nil
}

// archivedPositionRow is the on-disk shape of one archived_positions row.
type archivedPositionRow struct {
	ID            string
	SessionID     string
	Symbol        string
	Quantity      int
	EntryPrice    int64
	StopPrice     *int64
	TrailState    string
	OpenedAt      time.Time
	ClosedAt      *time.Time
	RealizedPnL   *int64
	UnrealizedPnL *int64
	EntryOrderID  string
	ExitOrderID   *string
}

func scanArchivedPosition(row pgx.Row) (archivedPositionRow, error) {
	var r archivedPositionRow
	err := row.Scan(
		&r.ID, &r.SessionID, &r.Symbol, &r.Quantity, &r.EntryPrice, &r.StopPrice,
		&r.TrailState, &r.OpenedAt, &r.ClosedAt, &r.RealizedPnL, &r.UnrealizedPnL,
		&r.EntryOrderID, &r.ExitOrderID,
	)
	return r, err
}

const archivedPositionColumns = `
	id, session_id, symbol, quantity, entry_price, stop_price, trail_state,
	opened_at, closed_at, realized_pnl, unrealized_pnl, entry_order_id, exit_order_id
`

// GetArchivedPosition fetches one archived position row by ID.
func (db *DB) GetArchivedPosition(ctx context.Context, id string) (archivedPositionRow, error) {
	query := "SELECT " + archivedPositionColumns + " FROM archived_positions WHERE id = $1"
	row := db.pool.QueryRow(ctx, query, id)
	r, err := scanArchivedPosition(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return archivedPositionRow{}, fmt.Errorf("archived position not found: %s", id)
		}
		return archivedPositionRow{}, fmt.Errorf("failed to get archived position: %w", err)
	}
	return r, nil
}

// ListOpenArchivedPositions returns every archived position not yet
// closed for a session, ordered most-recently-opened first.
func (db *DB) ListOpenArchivedPositions(ctx context.Context, sessionID string) ([]archivedPositionRow, error) {
	query := "SELECT " + archivedPositionColumns + ` FROM archived_positions
		WHERE session_id = $1 AND closed_at IS NULL
		ORDER BY opened_at DESC`
	rows, err := db.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query open archived positions: %w", err)
	}
	defer rows.Close()

	var out []archivedPositionRow
	for rows.Next() {
		r, err := scanArchivedPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan archived position: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating archived positions: %w", err)
	}
	return out, nil
}

// ListArchivedPositionsBySymbol returns every archived position ever held
// for symbol within a session, for post-mortem review of a symbol's
// trading history.
func (db *DB) ListArchivedPositionsBySymbol(ctx context.Context, sessionID, symbol string, limit int) ([]archivedPositionRow, error) {
	query := "SELECT " + archivedPositionColumns + ` FROM archived_positions
		WHERE session_id = $1 AND symbol = $2
		ORDER BY opened_at DESC
		LIMIT $3`
	rows, err := db.pool.Query(ctx, query, sessionID, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query archived positions by symbol: %w", err)
	}
	defer rows.Close()

	var out []archivedPositionRow
	for rows.Next() {
		r, err := scanArchivedPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan archived position: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating archived positions: %w", err)
	}
	return out, nil
}
