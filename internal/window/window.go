// Package window derives the business-day boundaries that parameterize
// report queries.
package window

import (
	"fmt"
	"time"
)

// Date and time-of-day layouts used in the report tables
const (
	DateLayout = time.DateOnly // 2006-01-02
	TimeLayout = time.TimeOnly // 15:04:05
)

// Boundaries are the fixed times of day the window is cut at
type Boundaries struct {
	Close string // previous session close, HH:MM:SS
	Open  string // current session open, HH:MM:SS
}

// DefaultBoundaries matches the cc050/ci050 publication times
var DefaultBoundaries = Boundaries{Close: "19:00:00", Open: "08:00:00"}

// Dates is the set of values substituted into report definitions
type Dates struct {
	LastDay      string `json:"last_day"`
	CurrentDay   string `json:"current_day"`
	MaxTimeOfDay string `json:"max_time_of_day"`
	MinTimeOfDay string `json:"min_time_of_day"`
}

// Compute derives the window for asOf. LastDay is the previous business
// day (weekends skipped).
func Compute(asOf time.Time, b Boundaries) (Dates, error) {
	closeAt, err := time.Parse(TimeLayout, b.Close)
	if err != nil {
		return Dates{}, fmt.Errorf("close time %q: %w", b.Close, err)
	}
	openAt, err := time.Parse(TimeLayout, b.Open)
	if err != nil {
		return Dates{}, fmt.Errorf("open time %q: %w", b.Open, err)
	}
	if !openAt.Before(closeAt) {
		return Dates{}, fmt.Errorf("open %s must be before close %s", b.Open, b.Close)
	}

	return Dates{
		LastDay:      PreviousBusinessDay(asOf).Format(DateLayout),
		CurrentDay:   asOf.Format(DateLayout),
		MaxTimeOfDay: closeAt.Format(TimeLayout),
		MinTimeOfDay: openAt.Format(TimeLayout),
	}, nil
}

// PreviousBusinessDay returns the closest weekday strictly before t
func PreviousBusinessDay(t time.Time) time.Time {
	d := t.AddDate(0, 0, -1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// ParseAsOf parses a YYYY-MM-DD reference date in loc. An empty string
// means today.
func ParseAsOf(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		now := time.Now().In(loc)
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc), nil
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("as-of date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}

// Placeholders maps config template tokens to their values
func (d Dates) Placeholders() map[string]string {
	return map[string]string{
		"{{last_day}}":        d.LastDay,
		"{{current_day}}":     d.CurrentDay,
		"{{max_time_of_day}}": d.MaxTimeOfDay,
		"{{min_time_of_day}}": d.MinTimeOfDay,
	}
}
