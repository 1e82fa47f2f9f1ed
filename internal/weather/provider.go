package weather

import (
	"context"
	"time"
)

// Provider abstracts the remote weather endpoints. Primary variants are keyed by
// the provider's location id, secondary variants by coordinates.
type Provider interface {
	CurrentConditions(ctx context.Context, locationID string) (Current, error)

	DailyForecast(ctx context.Context, locationID string) ([]DailyForecast, error)
	DailyForecastByCoordinates(ctx context.Context, c Coordinates) ([]DailyForecast, error)

	HourlyForecast(ctx context.Context, locationID string) ([]HourlyForecast, error)
	HourlyForecastByCoordinates(ctx context.Context, c Coordinates) ([]HourlyForecast, error)

	AirQuality(ctx context.Context, locationID string) (AirQuality, error)
	AirQualityByCoordinates(ctx context.Context, c Coordinates) (AirQuality, error)

	MinutelyPrecipitation(ctx context.Context, c Coordinates) (Precipitation, error)
	SunTimes(ctx context.Context, c Coordinates, date time.Time) (SunTimes, error)
	SolarRadiation(ctx context.Context, c Coordinates, hours, interval int) ([]SolarForecast, error)
}

// Geocoder looks up places by free text or provider id.
type Geocoder interface {
	Lookup(ctx context.Context, query string, limit int) ([]Place, error)
}

// CoordinateStore is the slice of the location store the resolver needs.
type CoordinateStore interface {
	LocationByRemoteID(remoteID string) (Location, error)
	UpdateCoordinates(remoteID string, c Coordinates) error
}

// LocationStore is the persisted set of saved locations.
type LocationStore interface {
	CoordinateStore
	Insert(loc Location) (Location, error)
	LocationByName(name string) (Location, error)
	Delete(name string) error
	List() ([]Location, error)
	DefaultLocation() (string, error)
	SetDefaultLocation(name string) error
}

// DashboardStore keeps the dashboards rendered per location.
type DashboardStore interface {
	BeginCycle(location, cycleID string, at time.Time)
	Update(location, cycleID string, fn func(*Dashboard)) bool
	GetLatest(location string) (Dashboard, error)
	GetRange(location string, from, to time.Time) ([]Dashboard, error)
	Forget(location string)
}
