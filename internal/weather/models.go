package weather

import (
	"time"
)

// DateLayout is the wire and storage format of a calendar date.
const DateLayout = "2006-01-02"

// Reading is the provider-derived part of a weather record.
type Reading struct {
	Condition   string  `json:"weather"`
	Icon        string  `json:"icon"`
	Temperature float64 `json:"temperature"` // provider native unit (Kelvin)
}

// Record is the weather observed on a calendar date.
// Records are values: they are never mutated once stored.
type Record struct {
	Date time.Time `json:"date"` // midnight UTC, see DateOf
	Reading
}

// DateOf drops the clock and zone of t, keeping its calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return DateOf(t), nil
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
