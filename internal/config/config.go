package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Name geocoders usable as the coordinate fallback.
const (
	NameGeocoderOpenMeteo = "openmeteo"
	NameGeocoderGoogle    = "google"
	NameGeocoderNone      = "none"
)

type AppConfig struct {
	QWeather QWeatherConfig `yaml:"qweather"`

	// NameGeocoder selects the geocoder used when a location id cannot be
	// resolved to coordinates: openmeteo, google or none.
	NameGeocoder         string `yaml:"name_geocoder"`
	GoogleGeocoderAPIKey string `yaml:"google_geocoder_api_key"`

	HTTPTimeout         time.Duration `yaml:"http_timeout"`
	TransportMaxRetries int           `yaml:"transport_max_retries"`

	DatabasePath string `yaml:"database_path"`

	// RefreshInterval controls how often saved locations are refreshed.
	// RefreshCron, when set, takes precedence.
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	RefreshCron     string        `yaml:"refresh_cron"`

	SolarHours    int `yaml:"solar_hours"`
	SolarInterval int `yaml:"solar_interval"`

	// In-memory dashboard retention.
	DashboardMaxHistory int           `yaml:"dashboard_max_history"` // max dashboards per location (0 = unlimited)
	DashboardMaxAge     time.Duration `yaml:"dashboard_max_age"`     // max age of dashboards (0 = unlimited)

	// Locations are saved on startup when missing.
	Locations       []SeedLocation `yaml:"locations"`
	DefaultLocation string         `yaml:"default_location"`

	Port string `yaml:"port"`
}

type QWeatherConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Lang    string `yaml:"lang"`
}

// SeedLocation is a location listed in the config file.
type SeedLocation struct {
	Name      string `yaml:"name"`
	ID        string `yaml:"id"`
	Latitude  string `yaml:"lat"`
	Longitude string `yaml:"lon"`
}

func defaults() AppConfig {
	return AppConfig{
		QWeather: QWeatherConfig{
			BaseURL: "https://api.qweather.com",
			Lang:    "en",
		},
		NameGeocoder:        NameGeocoderOpenMeteo,
		HTTPTimeout:         10 * time.Second,
		TransportMaxRetries: 0,
		DatabasePath:        "weather.db",
		RefreshInterval:     15 * time.Minute,
		SolarHours:          1,
		SolarInterval:       60,
		DashboardMaxHistory: 96, // roughly 24h at 15-minute intervals
		DashboardMaxAge:     24 * time.Hour,
		Port:                "8080",
	}
}

// Load reads configuration with sensible defaults, overlaid by the optional
// YAML file named in CONFIG_FILE, overlaid by environment variables.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if cfg.QWeather.APIKey == "" {
		log.Printf("WARN: QWEATHER_API_KEY is not set; refreshes will be rejected")
	}
	return &cfg, nil
}

func (c *AppConfig) applyEnv() error {
	c.QWeather.APIKey = getenvDefault("QWEATHER_API_KEY", c.QWeather.APIKey)
	c.QWeather.BaseURL = getenvDefault("QWEATHER_BASE_URL", c.QWeather.BaseURL)
	c.QWeather.Lang = getenvDefault("QWEATHER_LANG", c.QWeather.Lang)
	c.NameGeocoder = strings.ToLower(getenvDefault("NAME_GEOCODER", c.NameGeocoder))
	c.GoogleGeocoderAPIKey = getenvDefault("GOOGLE_GEOCODER_API_KEY", c.GoogleGeocoderAPIKey)
	c.DatabasePath = getenvDefault("DATABASE_PATH", c.DatabasePath)
	c.RefreshCron = getenvDefault("REFRESH_CRON", c.RefreshCron)
	c.Port = getenvDefault("PORT", c.Port)

	c.TransportMaxRetries = getenvInt("TRANSPORT_MAX_RETRIES", c.TransportMaxRetries)
	c.SolarHours = getenvInt("SOLAR_HOURS", c.SolarHours)
	c.SolarInterval = getenvInt("SOLAR_INTERVAL", c.SolarInterval)
	c.DashboardMaxHistory = getenvInt("DASHBOARD_MAX_HISTORY", c.DashboardMaxHistory)

	var err error
	if c.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", c.HTTPTimeout); err != nil {
		return err
	}
	if c.RefreshInterval, err = getenvDuration("REFRESH_INTERVAL", c.RefreshInterval); err != nil {
		return err
	}
	if c.DashboardMaxAge, err = getenvDuration("DASHBOARD_MAX_AGE", c.DashboardMaxAge); err != nil {
		return err
	}
	return nil
}

func (c *AppConfig) validate() error {
	if c.RefreshCron != "" {
		if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
			return fmt.Errorf("invalid REFRESH_CRON %q: %w", c.RefreshCron, err)
		}
	} else if c.RefreshInterval < time.Minute {
		return fmt.Errorf("REFRESH_INTERVAL must be at least 1m, got %s", c.RefreshInterval)
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("HTTP_TIMEOUT must be positive")
	}
	if c.TransportMaxRetries < 0 {
		return errors.New("TRANSPORT_MAX_RETRIES must not be negative")
	}
	if c.SolarHours < 1 || c.SolarHours > 60 {
		return fmt.Errorf("SOLAR_HOURS must be between 1 and 60, got %d", c.SolarHours)
	}
	switch c.SolarInterval {
	case 15, 30, 60:
	default:
		return fmt.Errorf("SOLAR_INTERVAL must be 15, 30 or 60, got %d", c.SolarInterval)
	}
	switch c.NameGeocoder {
	case NameGeocoderOpenMeteo, NameGeocoderNone:
	case NameGeocoderGoogle:
		if c.GoogleGeocoderAPIKey == "" {
			return errors.New("Google geocoder requires GOOGLE_GEOCODER_API_KEY or google_geocoder_api_key")
		}
	default:
		return fmt.Errorf("unknown NAME_GEOCODER %q", c.NameGeocoder)
	}
	for i, l := range c.Locations {
		if l.Name == "" || l.ID == "" {
			return fmt.Errorf("locations[%d]: name and id are required", i)
		}
		if (l.Latitude == "") != (l.Longitude == "") {
			return fmt.Errorf("locations[%d]: lat and lon must be set together", i)
		}
	}
	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
		log.Printf("WARN: ignoring invalid %s=%q", key, v)
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
