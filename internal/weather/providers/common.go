package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/weather-diary/internal/observability"
	"github.com/i474232898/weather-diary/internal/weather"
)

var (
	errNoHTTPClient = errors.New("http client not configured")
	errCircuitOpen  = errors.New("circuit breaker open")
)

// rawResponse is what a provider call yields when the transport succeeded.
type rawResponse struct {
	StatusCode int
	Body       string
}

// newCircuitBreaker builds the breaker shared by all calls of one provider.
// Only transport failures count against it; any HTTP response is a success.
func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		OnStateChange: func(_ string, _, to gobreaker.State) {
			observability.WeatherProviderCircuitState.Set(float64(to))
		},
	})
}

// doRequest performs exactly one HTTP round trip through the limiter and the circuit breaker.
// The body is read whatever the status code. Failures wrap weather.ErrTransport.
func doRequest(
	ctx context.Context,
	client *http.Client,
	cb *gobreaker.CircuitBreaker,
	limiter *rate.Limiter,
	buildRequest func(ctx context.Context) (*http.Request, error),
) (rawResponse, error) {
	if client == nil {
		return rawResponse{}, fmt.Errorf("%w: %w", weather.ErrTransport, errNoHTTPClient)
	}

	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return rawResponse{}, fmt.Errorf("%w: rate limiter: %w", weather.ErrTransport, err)
		}
	}

	req, err := buildRequest(ctx)
	if err != nil {
		return rawResponse{}, fmt.Errorf("%w: build request: %w", weather.ErrTransport, err)
	}

	result, err := cb.Execute(func() (interface{}, error) {
		resp, execErr := client.Do(req)
		if execErr != nil {
			return nil, stripURL(execErr)
		}
		defer resp.Body.Close()

		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, fmt.Errorf("read response body: %w", readErr)
		}
		return rawResponse{StatusCode: resp.StatusCode, Body: string(body)}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return rawResponse{}, fmt.Errorf("%w: %w: %v", weather.ErrTransport, errCircuitOpen, err)
		}
		return rawResponse{}, fmt.Errorf("%w: %w", weather.ErrTransport, err)
	}

	resp, ok := result.(rawResponse)
	if !ok {
		return rawResponse{}, fmt.Errorf("%w: unexpected result type from circuit breaker", weather.ErrTransport)
	}
	return resp, nil
}

// stripURL drops the request URL from a transport error. The query string
// carries the API key.
func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s request: %w", uerr.Op, uerr.Err)
	}
	return err
}

// statusLabel maps a call result to the weatherProviderCallsTotal status label.
func statusLabel(resp rawResponse, err error) string {
	switch {
	case err != nil:
		return "transport_error"
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return "success"
	default:
		return "non_2xx"
	}
}
