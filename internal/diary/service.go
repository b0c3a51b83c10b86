package diary

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/weather-diary/internal/observability"
	"github.com/i474232898/weather-diary/internal/weather"
)

// Service implements the diary operations on top of a Store and a weather Resolver.
type Service struct {
	store    Store
	resolver Resolver
	logger   *zap.Logger
}

// NewService creates a new Service.
func NewService(store Store, resolver Resolver, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		resolver: resolver,
		logger:   observability.OrNop(logger),
	}
}

// Create writes text for date, annotated with the weather resolved for that date.
// The entry keeps the requested date even when the weather came from a live fetch.
func (s *Service) Create(ctx context.Context, date time.Time, text string) (entry Entry, err error) {
	defer record("create", &err)
	date = weather.DateOf(date)

	w, err := s.resolver.Resolve(ctx, date)
	if err != nil {
		return Entry{}, fmt.Errorf("resolve weather: %w", err)
	}

	entry, err = s.store.CreateEntry(ctx, Entry{
		Date:        date,
		Condition:   w.Condition,
		Icon:        w.Icon,
		Temperature: w.Temperature,
		Text:        text,
	})
	if err != nil {
		return Entry{}, fmt.Errorf("create diary: %w", err)
	}
	s.logger.Info("diary created",
		zap.Int64("id", entry.ID),
		zap.String("date", weather.FormatDate(date)),
		zap.String("weather", entry.Condition))
	return entry, nil
}

// Read returns the entries written for date.
func (s *Service) Read(ctx context.Context, date time.Time) (entries []Entry, err error) {
	defer record("read", &err)
	entries, err = s.store.EntriesByDate(ctx, weather.DateOf(date))
	if err != nil {
		return nil, fmt.Errorf("read diary: %w", err)
	}
	return entries, nil
}

// ReadRange returns the entries with start <= date <= end.
func (s *Service) ReadRange(ctx context.Context, start, end time.Time) (entries []Entry, err error) {
	defer record("read_range", &err)
	entries, err = s.store.EntriesBetween(ctx, weather.DateOf(start), weather.DateOf(end))
	if err != nil {
		return nil, fmt.Errorf("read diaries: %w", err)
	}
	return entries, nil
}

// Update replaces the text of the earliest entry on date.
func (s *Service) Update(ctx context.Context, date time.Time, text string) (err error) {
	defer record("update", &err)
	if err = s.store.UpdateFirstText(ctx, weather.DateOf(date), text); err != nil {
		return fmt.Errorf("update diary: %w", err)
	}
	return nil
}

// Delete removes every entry on date and reports how many were removed.
func (s *Service) Delete(ctx context.Context, date time.Time) (n int64, err error) {
	defer record("delete", &err)
	n, err = s.store.DeleteByDate(ctx, weather.DateOf(date))
	if err != nil {
		return 0, fmt.Errorf("delete diary: %w", err)
	}
	s.logger.Info("diary deleted", zap.String("date", weather.FormatDate(date)), zap.Int64("count", n))
	return n, nil
}

func record(operation string, err *error) {
	observability.DiaryOperationsTotal.WithLabelValues(operation, observability.Outcome(*err)).Inc()
}
