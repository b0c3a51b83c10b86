package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/i474232898/weather-diary/internal/weather"
)

func newTestProvider(t *testing.T, url string, timeout time.Duration) *OpenWeatherProvider {
	t.Helper()
	return NewOpenWeatherProvider(&http.Client{Timeout: timeout}, OpenWeatherSettings{
		APIKey:  "test-api-key-12345",
		BaseURL: url,
		City:    "seoul",
	}, nil)
}

func TestOpenWeatherProvider_CurrentWeather_Success(t *testing.T) {
	const body = `{"weather":[{"main":"Clouds","icon":"04d"}],"main":{"temp":282.15}}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if got := r.URL.Query().Get("q"); got != "seoul" {
			t.Errorf("q = %q, want seoul", got)
		}
		if got := r.URL.Query().Get("appid"); got != "test-api-key-12345" {
			t.Errorf("appid = %q, want the configured key", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, 2*time.Second)
	got, err := p.CurrentWeather(context.Background())
	if err != nil {
		t.Fatalf("CurrentWeather() error = %v", err)
	}
	if got != body {
		t.Errorf("CurrentWeather() = %q, want %q", got, body)
	}
}

func TestOpenWeatherProvider_CurrentWeather_Non2xxReturnsBody(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"cod":401,"message":"Invalid API key."}`},
		{"not found", http.StatusNotFound, `{"cod":"404","message":"city not found"}`},
		{"server error", http.StatusInternalServerError, `upstream exploded`},
		{"bad gateway", http.StatusBadGateway, ``},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			p := newTestProvider(t, server.URL, 2*time.Second)
			got, err := p.CurrentWeather(context.Background())
			if err != nil {
				t.Fatalf("CurrentWeather() error = %v, want body returned", err)
			}
			if got != tc.body {
				t.Errorf("CurrentWeather() = %q, want %q", got, tc.body)
			}
		})
	}
}

func TestOpenWeatherProvider_CurrentWeather_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	p := newTestProvider(t, url, 2*time.Second)
	_, err := p.CurrentWeather(context.Background())
	if !errors.Is(err, weather.ErrTransport) {
		t.Fatalf("CurrentWeather() error = %v, want ErrTransport", err)
	}
}

func TestOpenWeatherProvider_TransportErrorOmitsAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	p := newTestProvider(t, url, 2*time.Second)
	_, err := p.CurrentWeather(context.Background())
	if err == nil {
		t.Fatal("CurrentWeather() expected error")
	}
	if strings.Contains(err.Error(), "test-api-key-12345") || strings.Contains(err.Error(), "appid") {
		t.Errorf("error %q exposes the request query", err)
	}
}

func TestOpenWeatherProvider_CurrentWeather_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	p := newTestProvider(t, server.URL, 50*time.Millisecond)
	_, err := p.CurrentWeather(context.Background())
	if !errors.Is(err, weather.ErrTransport) {
		t.Fatalf("CurrentWeather() error = %v, want ErrTransport on timeout", err)
	}
}

func TestOpenWeatherProvider_CurrentWeather_NoRetry(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, 2*time.Second)
	if _, err := p.CurrentWeather(context.Background()); err != nil {
		t.Fatalf("CurrentWeather() error = %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("upstream hits = %d, want exactly 1", got)
	}
}

func TestOpenWeatherProvider_CircuitOpensAfterTransportFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	p := newTestProvider(t, url, 200*time.Millisecond)
	// gobreaker's default trip condition is more than 5 consecutive failures.
	for i := 0; i < 6; i++ {
		_, _ = p.CurrentWeather(context.Background())
	}

	_, err := p.CurrentWeather(context.Background())
	if !errors.Is(err, errCircuitOpen) {
		t.Fatalf("CurrentWeather() error = %v, want circuit open", err)
	}
	if !errors.Is(err, weather.ErrTransport) {
		t.Errorf("open circuit error %v should match ErrTransport", err)
	}
}

func TestOpenWeatherProvider_RateLimiterHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	p := NewOpenWeatherProvider(&http.Client{Timeout: time.Second}, OpenWeatherSettings{
		APIKey:            "test-api-key-12345",
		BaseURL:           server.URL,
		City:              "seoul",
		RequestsPerSecond: 0.001,
		Burst:             1,
	}, nil)

	if _, err := p.CurrentWeather(context.Background()); err != nil {
		t.Fatalf("first call error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.CurrentWeather(ctx)
	if !errors.Is(err, weather.ErrTransport) {
		t.Fatalf("second call error = %v, want ErrTransport from limiter", err)
	}
}

func TestOpenWeatherProvider_NilClient(t *testing.T) {
	p := NewOpenWeatherProvider(nil, OpenWeatherSettings{APIKey: "k", City: "seoul"}, nil)
	_, err := p.CurrentWeather(context.Background())
	if !errors.Is(err, weather.ErrTransport) {
		t.Fatalf("CurrentWeather() error = %v, want ErrTransport", err)
	}
}

func TestNewOpenWeatherProvider_DefaultURL(t *testing.T) {
	p := NewOpenWeatherProvider(http.DefaultClient, OpenWeatherSettings{APIKey: "k", City: "seoul"}, nil)
	req, err := p.buildRequest(context.Background())
	if err != nil {
		t.Fatalf("buildRequest() error = %v", err)
	}
	want := "https://api.openweathermap.org/data/2.5/weather?appid=k&q=seoul"
	if req.URL.String() != want {
		t.Errorf("URL = %q, want %q", req.URL.String(), want)
	}
}
