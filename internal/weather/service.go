package weather

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/weather-diary/internal/observability"
)

// Service resolves the weather for a date and performs the daily refresh.
type Service struct {
	store    Store
	provider Provider
	logger   *zap.Logger
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock sets the source of "today". Defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = observability.OrNop(logger) }
}

// NewService creates a new Service.
func NewService(store Store, provider Provider, opts ...Option) *Service {
	s := &Service{
		store:    store,
		provider: provider,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the current calendar date in the service clock's zone.
func (s *Service) Today() time.Time {
	return DateOf(s.now())
}

// Resolve returns the first stored record for date. On a miss it fetches the
// current weather live; that record is dated today and is not stored.
func (s *Service) Resolve(ctx context.Context, date time.Time) (Record, error) {
	date = DateOf(date)

	candidates, err := s.store.FindByDate(ctx, date)
	if err != nil {
		observability.WeatherResolveTotal.WithLabelValues("error").Inc()
		return Record{}, fmt.Errorf("find weather for %s: %w", FormatDate(date), err)
	}
	if len(candidates) > 0 {
		observability.WeatherResolveTotal.WithLabelValues("store").Inc()
		s.logger.Debug("weather resolved from store",
			zap.String("date", FormatDate(date)),
			zap.Int("candidates", len(candidates)))
		return candidates[0], nil
	}

	rec, err := s.FetchCurrent(ctx)
	if err != nil {
		observability.WeatherResolveTotal.WithLabelValues("error").Inc()
		return Record{}, err
	}
	observability.WeatherResolveTotal.WithLabelValues("live").Inc()
	s.logger.Debug("weather resolved live",
		zap.String("requested_date", FormatDate(date)),
		zap.String("record_date", FormatDate(rec.Date)))
	return rec, nil
}

// FetchCurrent calls the provider once and parses the body into a record dated today.
func (s *Service) FetchCurrent(ctx context.Context) (Record, error) {
	body, err := s.provider.CurrentWeather(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("provider %s: %w", s.provider.Name(), err)
	}

	reading, err := Parse(body)
	if err != nil {
		return Record{}, fmt.Errorf("provider %s: %w", s.provider.Name(), err)
	}

	return Record{Date: s.Today(), Reading: reading}, nil
}

// Refresh fetches today's weather and appends it to the store.
// Nothing is written unless both the fetch and the parse succeed.
func (s *Service) Refresh(ctx context.Context) (Record, error) {
	rec, err := s.FetchCurrent(ctx)
	if err != nil {
		return Record{}, err
	}
	if err := s.store.Append(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("append weather for %s: %w", FormatDate(rec.Date), err)
	}
	return rec, nil
}
