package db

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/ees/internal/domain"
)

func TestPostgresSessionStore_SaveThenLoad(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	db := NewWithPool(mock, zerolog.Nop())
	store := NewPostgresSessionStore(db)

	state := domain.SessionState{
		TradingDate:    "2026-07-30",
		Phase:          domain.PhaseOpen,
		PhaseEnteredAt: time.Now(),
	}

	mock.ExpectExec("INSERT INTO archived_sessions").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Save(context.Background(), state))
	require.NoError(t, mock.ExpectationsWereMet())

	raw, err := json.Marshal(state)
	require.NoError(t, err)
	rows := pgxmock.NewRows([]string{"state"}).AddRow(raw)
	mock.ExpectQuery("SELECT state FROM archived_sessions").WillReturnRows(rows)

	got, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, state.TradingDate, got.TradingDate)
	assert.Equal(t, state.Phase, got.Phase)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSessionStore_LoadNoRowsReturnsNotOK(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	db := NewWithPool(mock, zerolog.Nop())
	store := NewPostgresSessionStore(db)

	mock.ExpectQuery("SELECT state FROM archived_sessions").WillReturnError(pgx.ErrNoRows)

	_, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordEndOfDaySummary(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewWithPool(mock, zerolog.Nop())

	summary := domain.EndOfDaySummary{
		TradingDate:  "2026-07-30",
		TradesOpened: 3,
		TradesClosed: 2,
		RealizedPnL:  domain.Micros(1_250_000),
		WinRate:      0.5,
	}

	mock.ExpectExec("INSERT INTO end_of_day_summaries").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = store.RecordEndOfDaySummary(context.Background(), summary)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
