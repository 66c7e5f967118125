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

func TestRecordOrder_Upsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewWithPool(mock, zerolog.Nop())

	now := time.Now()
	ord := domain.Order{
		ID:             "ord-1",
		BrokerOrderID:  "broker-9",
		Symbol:         "AAPL",
		Side:           domain.OrderSideBuy,
		Quantity:       10,
		Status:         domain.OrderFilled,
		FilledQuantity: 10,
		AvgFillPrice:   domain.Micros(150_000_000),
		OwnerTag:       "ees-1",
		CreatedAt:      now,
		UpdatedAt:      now,
		FilledAt:       &now,
	}

	mock.ExpectExec("INSERT INTO archived_orders").
		WithArgs(ord.ID, ord.BrokerOrderID, ord.PositionID, ord.Symbol, string(ord.Side),
			ord.Quantity, int64(ord.LimitPrice), string(ord.Status), ord.FilledQuantity, int64(ord.AvgFillPrice),
			ord.OwnerTag, ord.RejectReason, ord.CreatedAt, ord.UpdatedAt, ord.FilledAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = store.RecordOrder(context.Background(), ord)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListArchivedOrdersByStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewWithPool(mock, zerolog.Nop())

	now := time.Now()
	rows := pgxmock.NewRows([]string{
		"id", "broker_order_id", "position_id", "symbol", "side", "quantity", "limit_price",
		"status", "filled_quantity", "avg_fill_price", "owner_tag", "reject_reason",
		"created_at", "updated_at", "filled_at",
	}).AddRow("ord-1", "broker-9", "pos-1", "AAPL", "buy", 10, int64(0),
		"filled", 10, int64(150_000_000), "ees-1", "", now, now, (*time.Time)(nil))

	mock.ExpectQuery("SELECT (.|\n)* FROM archived_orders").
		WithArgs(string(domain.OrderFilled), 25).
		WillReturnRows(rows)

	got, err := store.ListArchivedOrdersByStatus(context.Background(), domain.OrderFilled, 25)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ord-1", got[0].ID)
	assert.Equal(t, "filled", got[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
