package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/weather-diary/internal/diary"
	"github.com/i474232898/weather-diary/internal/weather"
)

// MemoryStore is a concurrency-safe in-memory implementation of both the
// date-weather store and the diary store. Data is lost on restart.
type MemoryStore struct {
	mu sync.RWMutex

	// key: YYYY-MM-DD, value: records in insertion order
	weather map[string][]weather.Record

	entries []diary.Entry // ordered by id
	nextID  int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		weather: make(map[string][]weather.Record),
		nextID:  1,
	}
}

// Append stores a weather record after any existing records for its date.
func (s *MemoryStore) Append(ctx context.Context, rec weather.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec.Date = weather.DateOf(rec.Date)
	key := weather.FormatDate(rec.Date)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.weather[key] = append(s.weather[key], rec)
	return nil
}

// FindByDate returns a copy of the records stored for date.
func (s *MemoryStore) FindByDate(ctx context.Context, date time.Time) ([]weather.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := weather.FormatDate(weather.DateOf(date))

	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.weather[key]
	out := make([]weather.Record, len(history))
	copy(out, history)
	return out, nil
}

// CreateEntry assigns the next id and stores the entry.
func (s *MemoryStore) CreateEntry(ctx context.Context, e diary.Entry) (diary.Entry, error) {
	if err := ctx.Err(); err != nil {
		return diary.Entry{}, err
	}
	e.Date = weather.DateOf(e.Date)

	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.nextID
	s.nextID++
	s.entries = append(s.entries, e)
	return e, nil
}

// EntriesByDate returns the entries on date ordered by id.
func (s *MemoryStore) EntriesByDate(ctx context.Context, date time.Time) ([]diary.Entry, error) {
	date = weather.DateOf(date)
	return s.filter(ctx, func(e diary.Entry) bool { return e.Date.Equal(date) })
}

// EntriesBetween returns the entries with start <= date <= end ordered by date, then id.
func (s *MemoryStore) EntriesBetween(ctx context.Context, start, end time.Time) ([]diary.Entry, error) {
	start, end = weather.DateOf(start), weather.DateOf(end)
	out, err := s.filter(ctx, func(e diary.Entry) bool {
		return !e.Date.Before(start) && !e.Date.After(end)
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// UpdateFirstText sets the text of the lowest-id entry on date.
func (s *MemoryStore) UpdateFirstText(ctx context.Context, date time.Time, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	date = weather.DateOf(date)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].Date.Equal(date) {
			s.entries[i].Text = text
			return nil
		}
	}
	return diary.ErrNotFound
}

// DeleteByDate removes every entry on date.
func (s *MemoryStore) DeleteByDate(ctx context.Context, date time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	date = weather.DateOf(date)

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	var removed int64
	for _, e := range s.entries {
		if e.Date.Equal(date) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return removed, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) filter(ctx context.Context, keep func(diary.Entry) bool) ([]diary.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]diary.Entry, 0)
	for _, e := range s.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out, nil
}
