package session

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// HolidayCalendar answers whether the exchange is open for regular trading
// on a given (already timezone-localized) day.
type HolidayCalendar interface {
	IsBusinessDay(t time.Time) bool
}

// holidayFile is the on-disk shape of the calendar: a flat list of
// exchange-closed dates, "YYYY-MM-DD", alongside the exchange's regular
// weekend.
type holidayFile struct {
	Holidays []string `yaml:"holidays"`
}

// FileHolidayCalendar loads its closed-day list from a YAML file once at
// construction; the spec treats this file as ground truth with no
// cross-verification against an external calendar service.
type FileHolidayCalendar struct {
	closed map[string]bool
}

// LoadHolidayCalendar reads a holiday file of the form:
//
//	holidays:
//	  - "2026-01-01"
//	  - "2026-07-04"
func LoadHolidayCalendar(path string) (*FileHolidayCalendar, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read holiday file: %w", err)
	}
	var hf holidayFile
	if err := yaml.Unmarshal(raw, &hf); err != nil {
		return nil, fmt.Errorf("failed to parse holiday file: %w", err)
	}
	closed := make(map[string]bool, len(hf.Holidays))
	for _, d := range hf.Holidays {
		closed[d] = true
	}
	return &FileHolidayCalendar{closed: closed}, nil
}

// IsBusinessDay reports whether t (already in exchange local time) is a
// regular trading day: not a weekend, not a listed holiday.
func (c *FileHolidayCalendar) IsBusinessDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.closed[t.Format("2006-01-02")]
}
