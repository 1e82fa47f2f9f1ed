package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/weather-dashboard/internal/api/http"
	"github.com/i474232898/weather-dashboard/internal/config"
	"github.com/i474232898/weather-dashboard/internal/scheduler"
	"github.com/i474232898/weather-dashboard/internal/store"
	"github.com/i474232898/weather-dashboard/internal/weather"
	"github.com/i474232898/weather-dashboard/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// Saved locations and preferences.
	locStore, err := store.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("failed to open database %s: %v", cfg.DatabasePath, err)
	}
	defer locStore.Close()

	seeds := make([]weather.Location, 0, len(cfg.Locations))
	for _, seed := range cfg.Locations {
		seeds = append(seeds, weather.Location{
			Name:      seed.Name,
			RemoteID:  seed.ID,
			Latitude:  seed.Latitude,
			Longitude: seed.Longitude,
		})
	}
	if err := locStore.Seed(seeds, cfg.DefaultLocation); err != nil {
		log.Fatalf("failed to seed locations: %v", err)
	}

	// In-memory dashboards with configured retention.
	memStore := store.NewMemoryStore(cfg.DashboardMaxHistory, cfg.DashboardMaxAge)

	// Provider with resilience (circuit breaker, optional backoff).
	backoff := providers.BackoffConfig{MaxRetries: cfg.TransportMaxRetries}
	qweather := providers.NewQWeatherProvider(providers.QWeatherConfig{
		APIKey:  cfg.QWeather.APIKey,
		BaseURL: cfg.QWeather.BaseURL,
		Lang:    cfg.QWeather.Lang,
		Client:  httpClient,
		Backoff: backoff,
	})

	var nameGeocoder weather.Geocoder
	switch cfg.NameGeocoder {
	case config.NameGeocoderGoogle:
		nameGeocoder = providers.NewGoogleGeocoder(cfg.GoogleGeocoderAPIKey)
	case config.NameGeocoderOpenMeteo:
		nameGeocoder = providers.NewOpenMeteoGeocoder(httpClient, "", cfg.QWeather.Lang, backoff)
	}

	// Core service orchestrating fetch cycles and dashboards.
	service := weather.NewService(locStore, memStore, qweather, qweather, weather.ServiceConfig{
		Configured:   cfg.QWeather.APIKey != "",
		NameGeocoder: nameGeocoder,
		Orchestrator: weather.OrchestratorConfig{
			SolarHours:    cfg.SolarHours,
			SolarInterval: cfg.SolarInterval,
		},
	})
	defer service.Close()

	// Scheduler that periodically refreshes saved locations.
	sched := scheduler.New(service, cfg.RefreshInterval, cfg.RefreshCron)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "weather-dashboard",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          40 * time.Second,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		started, discarded := service.Stats()
		return c.JSON(fiber.Map{
			"status":         "ok",
			"service":        "weather-dashboard",
			"configured":     cfg.QWeather.APIKey != "",
			"cyclesStarted":  started,
			"staleDiscarded": discarded,
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, service)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
