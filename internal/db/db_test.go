package db

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestDB_Ping(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectPing()

	store := NewWithPool(mock, zerolog.Nop())
	require.NoError(t, store.Ping(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDB_Pool_NilWhenConstructedFromMock(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewWithPool(mock, zerolog.Nop())
	require.Nil(t, store.Pool())
}

func TestDB_Close(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)

	mock.ExpectClose()

	store := NewWithPool(mock, zerolog.Nop())
	store.Close()
	require.NoError(t, mock.ExpectationsWereMet())
}
