package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/i474232898/weather-diary/internal/observability"
)

// DefaultOpenWeatherURL is the OpenWeatherMap current-weather endpoint.
const DefaultOpenWeatherURL = "https://api.openweathermap.org/data/2.5/weather"

// OpenWeatherSettings configures an OpenWeatherProvider. Values are copied at construction.
type OpenWeatherSettings struct {
	APIKey  string
	BaseURL string
	City    string

	// RequestsPerSecond paces outbound calls; 0 disables pacing.
	RequestsPerSecond float64
	Burst             int
}

// OpenWeatherProvider implements weather.Provider for OpenWeatherMap's current-weather endpoint
// for a single configured city.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	city    string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewOpenWeatherProvider creates a provider. The client's Timeout bounds every call.
func NewOpenWeatherProvider(client *http.Client, settings OpenWeatherSettings, logger *zap.Logger) *OpenWeatherProvider {
	baseURL := settings.BaseURL
	if baseURL == "" {
		baseURL = DefaultOpenWeatherURL
	}

	var limiter *rate.Limiter
	if settings.RequestsPerSecond > 0 {
		burst := settings.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(settings.RequestsPerSecond), burst)
	}

	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  settings.APIKey,
		city:    settings.City,
		baseURL: baseURL,
		client:  client,
		circuit: newCircuitBreaker("openweathermap"),
		limiter: limiter,
		logger:  observability.OrNop(logger),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

// CurrentWeather issues one GET and returns the body for any status code.
func (p *OpenWeatherProvider) CurrentWeather(ctx context.Context) (string, error) {
	start := time.Now()
	resp, err := doRequest(ctx, p.client, p.circuit, p.limiter, p.buildRequest)

	status := statusLabel(resp, err)
	observability.WeatherProviderCallsTotal.WithLabelValues(status).Inc()
	observability.WeatherProviderDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	if err != nil {
		p.logger.Warn("weather provider call failed", zap.String("provider", p.name), zap.Error(err))
		return "", err
	}
	if status != "success" {
		p.logger.Warn("weather provider returned non-2xx",
			zap.String("provider", p.name),
			zap.Int("status_code", resp.StatusCode))
	} else {
		p.logger.Debug("weather provider call",
			zap.String("provider", p.name),
			zap.Duration("duration", time.Since(start)))
	}
	return resp.Body, nil
}

func (p *OpenWeatherProvider) buildRequest(ctx context.Context) (*http.Request, error) {
	u, err := url.Parse(p.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	values := u.Query()
	values.Set("q", p.city)
	values.Set("appid", p.apiKey)
	u.RawQuery = values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}
