package weather

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
)

// CoordinateResolver turns a provider location id into coordinates, from the
// store when possible and by geocoding otherwise. Geocoded results are written
// back so the next call for the same id is a pure lookup.
type CoordinateResolver struct {
	store    CoordinateStore
	geocoder Geocoder
	byName   Geocoder
}

// NewCoordinateResolver creates a resolver over the given store and geocoder.
func NewCoordinateResolver(store CoordinateStore, geocoder Geocoder) *CoordinateResolver {
	return &CoordinateResolver{store: store, geocoder: geocoder}
}

// WithNameFallback sets a geocoder that is queried with the saved location
// name when geocoding by id yields nothing.
func (r *CoordinateResolver) WithNameFallback(g Geocoder) *CoordinateResolver {
	r.byName = g
	return r
}

// Resolve returns the coordinates for locationID or an error wrapping
// ErrCoordinatesUnavailable.
func (r *CoordinateResolver) Resolve(ctx context.Context, locationID string) (Coordinates, error) {
	stored, err := r.store.LocationByRemoteID(locationID)
	switch {
	case err == nil && stored.HasCoordinates():
		return stored.Coordinates(), nil
	case err != nil && !errors.Is(err, ErrLocationNotFound):
		log.Printf("WARN: resolver: store lookup for %s failed: %v", locationID, err)
	}
	known := err == nil

	c, err := geocode(ctx, r.geocoder, locationID)
	if err != nil && known && r.byName != nil && stored.Name != "" {
		log.Printf("INFO: resolver: %v; trying name %q", err, stored.Name)
		c, err = geocode(ctx, r.byName, stored.Name)
	}
	if err != nil {
		return Coordinates{}, err
	}

	if known {
		if err := r.store.UpdateCoordinates(locationID, c); err != nil {
			log.Printf("WARN: resolver: persisting coordinates for %s: %v", locationID, err)
		}
	}
	return c, nil
}

func geocode(ctx context.Context, g Geocoder, query string) (Coordinates, error) {
	if g == nil {
		return Coordinates{}, fmt.Errorf("%w: no geocoder for %s", ErrCoordinatesUnavailable, query)
	}
	places, err := g.Lookup(ctx, query, 1)
	if err != nil {
		return Coordinates{}, fmt.Errorf("%w: geocode %s: %v", ErrCoordinatesUnavailable, query, err)
	}
	if len(places) == 0 {
		return Coordinates{}, fmt.Errorf("%w: geocode %s returned no results", ErrCoordinatesUnavailable, query)
	}
	c := Coordinates{Latitude: places[0].Latitude, Longitude: places[0].Longitude}
	if !c.Valid() {
		return Coordinates{}, fmt.Errorf("%w: geocode %s returned no coordinates", ErrCoordinatesUnavailable, query)
	}
	return c, nil
}

// coordinateSource is what fallback chains and coordinate-keyed fetches resolve through.
type coordinateSource interface {
	Resolve(ctx context.Context, locationID string) (Coordinates, error)
}

// onceResolver memoizes the first resolution within a single cycle so that the
// categories needing coordinates share one lookup.
type onceResolver struct {
	next coordinateSource

	once   sync.Once
	coords Coordinates
	err    error
}

func (o *onceResolver) Resolve(ctx context.Context, locationID string) (Coordinates, error) {
	o.once.Do(func() {
		o.coords, o.err = o.next.Resolve(ctx, locationID)
	})
	return o.coords, o.err
}
