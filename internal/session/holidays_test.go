package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadHolidayCalendar_WeekendAndListedHoliday(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "holidays.yaml")
	content := "holidays:\n  - \"2026-12-25\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cal, err := LoadHolidayCalendar(path)
	require.NoError(t, err)

	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	saturday := time.Date(2026, 8, 1, 12, 0, 0, 0, loc)
	require.False(t, cal.IsBusinessDay(saturday))

	holiday := time.Date(2026, 12, 25, 12, 0, 0, 0, loc)
	require.False(t, cal.IsBusinessDay(holiday))

	regular := time.Date(2026, 7, 30, 12, 0, 0, 0, loc)
	require.True(t, cal.IsBusinessDay(regular))
}
