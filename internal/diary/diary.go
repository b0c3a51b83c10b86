package diary

import (
	"context"
	"errors"
	"time"

	"github.com/i474232898/weather-diary/internal/weather"
)

// ErrNotFound is returned when an update targets a date with no entries.
var ErrNotFound = errors.New("diary not found")

// Entry is a diary text together with the weather snapshot taken when it was written.
type Entry struct {
	ID          int64
	Date        time.Time
	Condition   string
	Icon        string
	Temperature float64
	Text        string
}

// Store persists diary entries. Listing methods return entries ordered by date, then id.
type Store interface {
	CreateEntry(ctx context.Context, e Entry) (Entry, error)
	EntriesByDate(ctx context.Context, date time.Time) ([]Entry, error)
	EntriesBetween(ctx context.Context, start, end time.Time) ([]Entry, error)
	// UpdateFirstText sets the text of the lowest-id entry on date, or returns ErrNotFound.
	UpdateFirstText(ctx context.Context, date time.Time, text string) error
	DeleteByDate(ctx context.Context, date time.Time) (int64, error)
}

// Resolver yields the weather record to annotate an entry written for date.
type Resolver interface {
	Resolve(ctx context.Context, date time.Time) (weather.Record, error)
}
