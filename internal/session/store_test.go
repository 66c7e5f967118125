package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ajitpratap0/ees/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestFileStateStore_SaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStateStore(filepath.Join(dir, "session.json"))

	want := domain.SessionState{
		TradingDate:    "2026-07-30",
		Phase:          domain.PhaseOpen,
		PhaseEnteredAt: time.Date(2026, 7, 30, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, store.Save(context.Background(), want))

	got, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, want.TradingDate, got.TradingDate)
	require.Equal(t, want.Phase, got.Phase)
}

func TestFileStateStore_LoadMissingFileReturnsNotOK(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStateStore(filepath.Join(dir, "missing.json"))

	_, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}
