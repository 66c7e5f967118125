package db

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/ees/internal/domain"
)

func TestRecordPositionOpened(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewWithPool(mock, zerolog.Nop())

	pos := domain.Position{
		ID:           "pos-1",
		SessionID:    "2026-07-30",
		Symbol:       "AAPL",
		Quantity:     10,
		EntryPrice:   domain.Micros(150_000_000),
		EntryOrderID: "ord-1",
		OpenedAt:     time.Now(),
		TrailState:   domain.TrailInactive,
	}

	mock.ExpectExec("INSERT INTO archived_positions").
		WithArgs(pos.ID, pos.SessionID, pos.Symbol, pos.Quantity, int64(pos.EntryPrice),
			pos.EntryOrderID, pos.OpenedAt, string(pos.TrailState)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = store.RecordPositionOpened(context.Background(), pos)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPositionClosed_NotFoundReturnsError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewWithPool(mock, zerolog.Nop())

	pos := domain.Position{
		ID:          "missing",
		ClosedAt:    nil,
		RealizedPnL: domain.Micros(500_000),
		ExitOrderID: "ord-2",
		TrailState:  domain.TrailTrailing,
	}

	mock.ExpectExec("UPDATE archived_positions").
		WithArgs(pos.ID, pos.ClosedAt, int64(pos.RealizedPnL), pos.ExitOrderID, string(pos.TrailState)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = store.RecordPositionClosed(context.Background(), pos)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListOpenArchivedPositions(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewWithPool(mock, zerolog.Nop())

	opened := time.Now()
	rows := pgxmock.NewRows([]string{
		"id", "session_id", "symbol", "quantity", "entry_price", "stop_price", "trail_state",
		"opened_at", "closed_at", "realized_pnl", "unrealized_pnl", "entry_order_id", "exit_order_id",
	}).AddRow("pos-1", "2026-07-30", "AAPL", 10, int64(150_000_000), (*int64)(nil), "trailing",
		opened, (*time.Time)(nil), (*int64)(nil), (*int64)(nil), "ord-1", (*string)(nil))

	mock.ExpectQuery("SELECT (.|\n)* FROM archived_positions").
		WithArgs("2026-07-30").
		WillReturnRows(rows)

	got, err := store.ListOpenArchivedPositions(context.Background(), "2026-07-30")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "pos-1", got[0].ID)
	assert.Equal(t, "AAPL", got[0].Symbol)
	require.NoError(t, mock.ExpectationsWereMet())
}
