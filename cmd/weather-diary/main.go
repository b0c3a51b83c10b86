package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httpapi "github.com/i474232898/weather-diary/internal/api/http"
	"github.com/i474232898/weather-diary/internal/config"
	"github.com/i474232898/weather-diary/internal/diary"
	"github.com/i474232898/weather-diary/internal/observability"
	"github.com/i474232898/weather-diary/internal/scheduler"
	"github.com/i474232898/weather-diary/internal/store"
	"github.com/i474232898/weather-diary/internal/weather"
	"github.com/i474232898/weather-diary/internal/weather/providers"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := store.New(ctx, cfg.Store())
	if err != nil {
		logger.Fatal("failed to open store", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn("failed to close store", zap.Error(err))
		}
	}()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.WeatherAPITimeout,
	}
	provider := providers.NewOpenWeatherProvider(httpClient, providers.OpenWeatherSettings{
		APIKey:            cfg.OpenWeatherAPIKey,
		BaseURL:           cfg.WeatherAPIURL,
		City:              cfg.City,
		RequestsPerSecond: cfg.WeatherAPIRPS,
		Burst:             cfg.WeatherAPIBurst,
	}, logger.Named("provider"))

	loc := cfg.Location
	weatherService := weather.NewService(backend, provider,
		weather.WithClock(func() time.Time { return time.Now().In(loc) }),
		weather.WithLogger(logger.Named("weather")))
	diaryService := diary.NewService(backend, weatherService, logger.Named("diary"))

	sched := scheduler.New(weatherService, cfg.RefreshSchedule, cfg.RefreshTimeout, loc, logger.Named("scheduler"))
	if err := sched.Start(); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	app := httpapi.NewApp(diaryService, logger.Named("http"))

	go func() {
		logger.Info("listening",
			zap.String("port", cfg.Port),
			zap.String("store", cfg.DBDriver),
			zap.String("city", cfg.City))
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("fiber server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
