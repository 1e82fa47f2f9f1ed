package weather_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/i474232898/weather-dashboard/internal/store"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

// stubProvider answers every endpoint with fixed data.
type stubProvider struct{}

func (stubProvider) CurrentConditions(context.Context, string) (weather.Current, error) {
	return weather.Current{Temperature: "18", Text: "Cloudy", WindDir: "E", WindScale: "2"}, nil
}

func (stubProvider) DailyForecast(context.Context, string) ([]weather.DailyForecast, error) {
	return []weather.DailyForecast{{Date: "2025-12-22", TempMin: "9", TempMax: "19"}}, nil
}

func (stubProvider) DailyForecastByCoordinates(context.Context, weather.Coordinates) ([]weather.DailyForecast, error) {
	return nil, &weather.StatusError{Code: "500", Transport: true}
}

func (stubProvider) HourlyForecast(context.Context, string) ([]weather.HourlyForecast, error) {
	return []weather.HourlyForecast{{Time: "2025-12-22T13:00+08:00", Temp: "18"}}, nil
}

func (stubProvider) HourlyForecastByCoordinates(context.Context, weather.Coordinates) ([]weather.HourlyForecast, error) {
	return nil, &weather.StatusError{Code: "500", Transport: true}
}

func (stubProvider) AirQuality(context.Context, string) (weather.AirQuality, error) {
	return weather.LegacyAirQuality{AQI: "35", Category: "Excellent"}, nil
}

func (stubProvider) AirQualityByCoordinates(context.Context, weather.Coordinates) (weather.AirQuality, error) {
	return nil, &weather.StatusError{Code: "500", Transport: true}
}

func (stubProvider) MinutelyPrecipitation(context.Context, weather.Coordinates) (weather.Precipitation, error) {
	return weather.Precipitation{Code: weather.SuccessCode}, nil
}

func (stubProvider) SunTimes(context.Context, weather.Coordinates, time.Time) (weather.SunTimes, error) {
	return weather.SunTimes{Sunrise: "2025-12-22T07:30+08:00", Sunset: "2025-12-22T16:55+08:00"}, nil
}

func (stubProvider) SolarRadiation(context.Context, weather.Coordinates, int, int) ([]weather.SolarForecast, error) {
	return nil, nil
}

func newTestService(t *testing.T, configured bool) (*weather.Service, *store.SQLiteStore) {
	t.Helper()
	svc, locations, _ := newTestServiceWithDashboards(t, configured)
	return svc, locations
}

func newTestServiceWithDashboards(t *testing.T, configured bool) (*weather.Service, *store.SQLiteStore, *store.MemoryStore) {
	t.Helper()
	locations, err := store.NewSQLite(filepath.Join(t.TempDir(), "weather.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { locations.Close() })

	dashboards := store.NewMemoryStore(10, 0)
	svc := weather.NewService(locations, dashboards, stubProvider{}, nil,
		weather.ServiceConfig{Configured: configured})
	t.Cleanup(svc.Close)
	return svc, locations, dashboards
}

var beijing = weather.Place{RemoteID: "101010100", Name: "Beijing", Latitude: "39.90", Longitude: "116.40"}

func TestServiceAddLocationRejectsDuplicates(t *testing.T) {
	svc, _ := newTestService(t, false)

	if _, err := svc.AddLocation(context.Background(), beijing); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := svc.AddLocation(context.Background(), weather.Place{RemoteID: beijing.RemoteID, Name: "Peking"})
	if !errors.Is(err, weather.ErrLocationExists) {
		t.Fatalf("expected ErrLocationExists, got %v", err)
	}

	if _, err := svc.AddLocation(context.Background(), weather.Place{Name: "No id"}); err == nil {
		t.Fatal("expected an error for a place without id")
	}
}

func TestServiceDefaultLocation(t *testing.T) {
	svc, _ := newTestService(t, false)

	if _, err := svc.DefaultLocation(); !errors.Is(err, weather.ErrNoLocation) {
		t.Fatalf("expected ErrNoLocation, got %v", err)
	}

	ctx := context.Background()
	if _, err := svc.AddLocation(ctx, beijing); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.AddLocation(ctx, weather.Place{RemoteID: "101020100", Name: "Shanghai"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	loc, err := svc.DefaultLocation()
	if err != nil || loc.Name != "Beijing" {
		t.Fatalf("expected the first saved location, got %+v, %v", loc, err)
	}

	if err := svc.SetDefault("Shanghai"); err != nil {
		t.Fatalf("set default: %v", err)
	}
	if loc, _ := svc.DefaultLocation(); loc.Name != "Shanghai" {
		t.Fatalf("expected Shanghai as default, got %q", loc.Name)
	}

	if err := svc.RemoveLocation("Shanghai"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if loc, _ := svc.DefaultLocation(); loc.Name != "Beijing" {
		t.Fatalf("expected fallback to Beijing, got %q", loc.Name)
	}
}

func TestServiceRefreshNotConfigured(t *testing.T) {
	svc, _ := newTestService(t, false)
	if _, err := svc.AddLocation(context.Background(), beijing); err != nil {
		t.Fatalf("add: %v", err)
	}

	if _, err := svc.Refresh(context.Background(), "Beijing"); !errors.Is(err, weather.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := svc.Dashboard("Beijing"); !errors.Is(err, weather.ErrNoDashboard) {
		t.Fatalf("expected no dashboard yet, got %v", err)
	}
}

func TestServiceRefreshFillsDashboard(t *testing.T) {
	svc, _ := newTestService(t, true)
	if _, err := svc.AddLocation(context.Background(), beijing); err != nil {
		t.Fatalf("add: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := svc.RefreshAndWait(ctx, "Beijing"); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	var d weather.Dashboard
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		d, _ = svc.Dashboard("Beijing")
		if d.Main != nil && d.Hourly != nil && d.AirQuality != nil && d.Precipitation != nil && d.Sun != nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if d.Main == nil || d.Main.Temperature != "18" || d.Main.Low != "9" || d.Main.High != "19" {
		t.Fatalf("unexpected main view %+v", d.Main)
	}
	if d.Refreshing {
		t.Fatal("expected the refresh indicator to be cleared")
	}
	if d.AirQuality == nil || d.AirQuality.Display != "AQI: 35 (Excellent)" {
		t.Fatalf("unexpected air quality %+v", d.AirQuality)
	}
	if d.Precipitation == nil || d.Precipitation.HasData {
		t.Fatalf("expected an empty precipitation chart, got %+v", d.Precipitation)
	}
	if d.Timestamp.Location() != time.UTC {
		t.Fatalf("expected a UTC timestamp, got %v", d.Timestamp.Location())
	}

	started, _ := svc.Stats()
	if started < 1 {
		t.Fatalf("expected at least one started cycle, got %d", started)
	}

	history, err := svc.History("Beijing", time.Now().Add(-time.Minute), time.Now().Add(time.Minute))
	if err != nil || len(history) == 0 {
		t.Fatalf("expected history entries, got %d, %v", len(history), err)
	}
}

func TestServiceRemoveLocationForgetsDashboards(t *testing.T) {
	svc, _ := newTestService(t, true)
	if _, err := svc.AddLocation(context.Background(), beijing); err != nil {
		t.Fatalf("add: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := svc.RefreshAndWait(ctx, "Beijing"); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if err := svc.RemoveLocation("Beijing"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := svc.Dashboard("Beijing"); !errors.Is(err, weather.ErrLocationNotFound) {
		t.Fatalf("expected ErrLocationNotFound, got %v", err)
	}
	if err := svc.RemoveLocation("Beijing"); !errors.Is(err, weather.ErrLocationNotFound) {
		t.Fatalf("expected ErrLocationNotFound on second removal, got %v", err)
	}
}

func TestServiceRemoveLocationDropsQueuedCycles(t *testing.T) {
	svc, _, dashboards := newTestServiceWithDashboards(t, true)
	ctx := context.Background()

	for round := 0; round < 20; round++ {
		if _, err := svc.AddLocation(ctx, beijing); err != nil {
			t.Fatalf("round %d: add: %v", round, err)
		}
		var cycles []*weather.Cycle
		for i := 0; i < 5; i++ {
			c, err := svc.Refresh(ctx, "Beijing")
			if err != nil {
				t.Fatalf("round %d: refresh: %v", round, err)
			}
			cycles = append(cycles, c)
		}

		if err := svc.RemoveLocation("Beijing"); err != nil {
			t.Fatalf("round %d: remove: %v", round, err)
		}
		for i, c := range cycles {
			select {
			case <-c.Done():
			case <-time.After(2 * time.Second):
				t.Fatalf("round %d: cycle %d still running after removal", round, i)
			}
		}

		// Give late results of the removed cycles a chance to land.
		time.Sleep(10 * time.Millisecond)
		if _, err := dashboards.GetLatest("Beijing"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("round %d: expected the history to stay forgotten, got %v", round, err)
		}
	}
}

func TestServiceSearch(t *testing.T) {
	svc, _ := newTestService(t, true)

	if _, err := svc.Search(context.Background(), "  ", 5); err == nil {
		t.Fatal("expected an error for an empty query")
	}
	if _, err := svc.Search(context.Background(), "Beijing", 5); !errors.Is(err, weather.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured without a geocoder, got %v", err)
	}
}
