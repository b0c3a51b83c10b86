package weather

import (
	"context"
	"time"
)

// Provider abstracts the upstream current-weather endpoint.
// CurrentWeather returns the raw body for any HTTP status; only transport
// failures are errors, and those wrap ErrTransport.
type Provider interface {
	Name() string
	CurrentWeather(ctx context.Context) (string, error)
}

// Store is the date-weather cache. FindByDate returns records in insertion order.
type Store interface {
	Append(ctx context.Context, rec Record) error
	FindByDate(ctx context.Context, date time.Time) ([]Record, error)
}
