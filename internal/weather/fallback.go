package weather

import (
	"context"
	"fmt"
)

// Chain fetches one category from a primary, id-keyed endpoint and falls back to
// a coordinate-keyed secondary endpoint when the primary fails at the transport
// level or reports a non-success status. There are no retries beyond the single
// secondary attempt.
type Chain[T any] struct {
	Category  Category
	Primary   func(ctx context.Context, locationID string) (T, error)
	Secondary func(ctx context.Context, c Coordinates) (T, error)
	// Validate, when set, rejects payloads that decoded fine but are unusable.
	// Rejections are treated as logical failures.
	Validate func(T) error
}

// step is one stage of the pipeline. It either finishes the chain with a value,
// or fails with an error that decides whether the next stage runs.
type step[T any] func(ctx context.Context) (T, error)

// Fetch runs the chain for locationID. The returned error wraps ErrUnavailable
// when every stage failed.
func (c Chain[T]) Fetch(ctx context.Context, coords coordinateSource, locationID string) (T, error) {
	steps := []step[T]{
		func(ctx context.Context) (T, error) {
			return c.checked(c.Primary(ctx, locationID))
		},
		func(ctx context.Context) (T, error) {
			var zero T
			if c.Secondary == nil || coords == nil {
				return zero, fmt.Errorf("%w: no secondary endpoint", ErrCoordinatesUnavailable)
			}
			loc, err := coords.Resolve(ctx, locationID)
			if err != nil {
				return zero, err
			}
			return c.checked(c.Secondary(ctx, loc))
		},
	}

	var (
		zero    T
		lastErr error
	)
	for i, s := range steps {
		v, err := s(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if i < len(steps)-1 && !shouldFallback(err) {
			break
		}
	}
	return zero, fmt.Errorf("%w: %s: %v", ErrUnavailable, c.Category, lastErr)
}

func (c Chain[T]) checked(v T, err error) (T, error) {
	if err != nil {
		return v, err
	}
	if c.Validate != nil {
		if verr := c.Validate(v); verr != nil {
			return v, fmt.Errorf("%w: %v", ErrLogical, verr)
		}
	}
	return v, nil
}

func dailyChain(p Provider) Chain[[]DailyForecast] {
	return Chain[[]DailyForecast]{
		Category:  CategoryDaily,
		Primary:   p.DailyForecast,
		Secondary: p.DailyForecastByCoordinates,
	}
}

func hourlyChain(p Provider) Chain[[]HourlyForecast] {
	return Chain[[]HourlyForecast]{
		Category:  CategoryHourly,
		Primary:   p.HourlyForecast,
		Secondary: p.HourlyForecastByCoordinates,
	}
}

func airQualityChain(p Provider) Chain[AirQuality] {
	return Chain[AirQuality]{
		Category:  CategoryAirQuality,
		Primary:   p.AirQuality,
		Secondary: p.AirQualityByCoordinates,
		Validate: func(a AirQuality) error {
			if a == nil {
				return fmt.Errorf("empty air quality payload")
			}
			return nil
		},
	}
}
