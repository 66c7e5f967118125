package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/ees/internal/domain"
	"github.com/ajitpratap0/ees/internal/metrics"
)

// PostgresSessionStore is a Postgres-backed implementation of
// internal/session.StateStore, an alternative to FileStateStore for
// deployments that already run a Postgres archival store and would
// rather not depend on a writable local disk. Grounded on this file's
// original CreateSession/GetSession/UpdateSessionStats/StopSession
// shape, generalized from per-session stat rows to one JSONB-encoded
// domain.SessionState snapshot per trading date.
type PostgresSessionStore struct {
	db *DB
}

func NewPostgresSessionStore(db *DB) *PostgresSessionStore {
	return &PostgresSessionStore{db: db}
}

// Load returns the most recently saved session state, if any.
func (s *PostgresSessionStore) Load(ctx context.Context) (domain.SessionState, bool, error) {
	query := `
		SELECT state FROM archived_sessions
		ORDER BY updated_at DESC
		LIMIT 1
	`
	var raw []byte
	err := s.db.pool.QueryRow(ctx, query).Scan(&raw)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.SessionState{}, false, nil
		}
		return domain.SessionState{}, false, fmt.Errorf("failed to load session state: %w", err)
	}

	var state domain.SessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return domain.SessionState{}, false, fmt.Errorf("failed to decode session state: %w", err)
	}
	return state, true, nil
}

// Save upserts the session state for state.TradingDate.
func (s *PostgresSessionStore) Save(ctx context.Context, state domain.SessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}

	query := `
		INSERT INTO archived_sessions (trading_date, state, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (trading_date) DO UPDATE SET
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.pool.Exec(ctx, query, state.TradingDate, raw, time.Now())
	if err != nil {
		log.Error().Err(err).Str("tradingDate", state.TradingDate).Msg("failed to persist session state")
		return fmt.Errorf("failed to save session state: %w", err)
	}
	return nil
}

// RecordEndOfDaySummary archives one trading day's closing report,
// independent of the live session-state row (which keeps only the most
// recent snapshot needed to resume).
func (db *DB) RecordEndOfDaySummary(ctx context.Context, summary domain.EndOfDaySummary) error {
	started := time.Now()
	defer func() {
		metrics.RecordDatabaseQuery("upsert_end_of_day_summary", float64(time.Since(started).Milliseconds()))
	}()

	query := `
		INSERT INTO end_of_day_summaries (
			trading_date, trades_opened, trades_closed, realized_pnl,
			unrealized_pnl, win_rate, largest_win, largest_loss, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (trading_date) DO UPDATE SET
			trades_opened = EXCLUDED.trades_opened,
			trades_closed = EXCLUDED.trades_closed,
			realized_pnl = EXCLUDED.realized_pnl,
			unrealized_pnl = EXCLUDED.unrealized_pnl,
			win_rate = EXCLUDED.win_rate,
			largest_win = EXCLUDED.largest_win,
			largest_loss = EXCLUDED.largest_loss
	`
	_, err := db.pool.Exec(ctx, query,
		summary.TradingDate, summary.TradesOpened, summary.TradesClosed, int64(summary.RealizedPnL),
		int64(summary.UnrealizedPnL), summary.WinRate, int64(summary.LargestWin), int64(summary.LargestLoss), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to archive end-of-day summary: %w", err)
	}
	return nil
}

// GetEndOfDaySummary fetches the archived summary for a trading date.
func (db *DB) GetEndOfDaySummary(ctx context.Context, tradingDate string) (domain.EndOfDaySummary, error) {
	query := `
		SELECT trading_date, trades_opened, trades_closed, realized_pnl,
		       unrealized_pnl, win_rate, largest_win, largest_loss
		FROM end_of_day_summaries
		WHERE trading_date = $1
	`
	var summary domain.EndOfDaySummary
	var realized, unrealized, largestWin, largestLoss int64
	err := db.pool.QueryRow(ctx, query, tradingDate).Scan(
		&summary.TradingDate, &summary.TradesOpened, &summary.TradesClosed, &realized,
		&unrealized, &summary.WinRate, &largestWin, &largestLoss,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.EndOfDaySummary{}, fmt.Errorf("end-of-day summary not found: %s", tradingDate)
		}
		return domain.EndOfDaySummary{}, fmt.Errorf("failed to get end-of-day summary: %w", err)
	}
	summary.RealizedPnL = domain.Micros(realized)
	summary.UnrealizedPnL = domain.Micros(unrealized)
	summary.LargestWin = domain.Micros(largestWin)
	summary.LargestLoss = domain.Micros(largestLoss)
	return summary, nil
}
