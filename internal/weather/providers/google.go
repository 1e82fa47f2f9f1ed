package providers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

// googleMu guards the package-level API key of the geocoder library.
var googleMu sync.Mutex

// GoogleGeocoder resolves city names through the Google Geocoding API. It has
// no notion of provider location ids, so it only serves name lookups.
type GoogleGeocoder struct {
	apiKey string
	lookup func(geocoder.Address) (geocoder.Location, error)
}

var _ weather.Geocoder = (*GoogleGeocoder)(nil)

// NewGoogleGeocoder creates a geocoder using apiKey.
func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	return &GoogleGeocoder{apiKey: apiKey, lookup: geocoder.Geocoding}
}

// Lookup geocodes query as a city name and returns at most one place.
func (g *GoogleGeocoder) Lookup(ctx context.Context, query string, _ int) ([]weather.Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty geocoding query")
	}
	if g.apiKey == "" {
		return nil, weather.ErrNotConfigured
	}

	type result struct {
		loc geocoder.Location
		err error
	}
	ch := make(chan result, 1)
	go func() {
		googleMu.Lock()
		defer googleMu.Unlock()
		geocoder.ApiKey = g.apiKey
		loc, err := g.lookup(geocoder.Address{City: query})
		ch <- result{loc: loc, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", weather.ErrTransport, ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("%w: google geocoding %q: %v", weather.ErrTransport, query, r.err)
		}
		if r.loc.Latitude == 0 && r.loc.Longitude == 0 {
			return nil, nil
		}
		return []weather.Place{{
			Name:      query,
			Latitude:  formatCoordinate(r.loc.Latitude),
			Longitude: formatCoordinate(r.loc.Longitude),
		}}, nil
	}
}

// formatCoordinate renders a coordinate with the 4-decimal precision the
// weather API returns.
func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
