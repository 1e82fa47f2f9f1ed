package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

// DefaultOpenMeteoGeocodingURL is the keyless Open-Meteo geocoding endpoint.
const DefaultOpenMeteoGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"

// OpenMeteoGeocoder resolves place names through the Open-Meteo geocoding API.
// It needs no API key and serves as the default name fallback.
type OpenMeteoGeocoder struct {
	baseURL  string
	language string
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
}

var _ weather.Geocoder = (*OpenMeteoGeocoder)(nil)

// NewOpenMeteoGeocoder creates a geocoder. An empty baseURL selects the public endpoint.
// Zero backoff intervals take the same defaults as the QWeather provider.
func NewOpenMeteoGeocoder(client *http.Client, baseURL, language string, backoff BackoffConfig) *OpenMeteoGeocoder {
	if baseURL == "" {
		baseURL = DefaultOpenMeteoGeocodingURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if backoff.InitialInterval <= 0 {
		backoff.InitialInterval = 500 * time.Millisecond
	}
	if backoff.MaxInterval <= 0 {
		backoff.MaxInterval = 5 * time.Second
	}
	return &OpenMeteoGeocoder{
		baseURL:  baseURL,
		language: language,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: backoff,
		},
		circuit: newBreaker("openmeteo-geocoding"),
	}
}

// Lookup searches places by name.
func (g *OpenMeteoGeocoder) Lookup(ctx context.Context, query string, limit int) ([]weather.Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty geocoding query")
	}
	if limit <= 0 {
		limit = 1
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("name", query)
		values.Set("count", strconv.Itoa(limit))
		values.Set("format", "json")
		if g.language != "" {
			values.Set("language", g.language)
		}

		u := fmt.Sprintf("%s?%s", g.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	body, err := doRequestWithResilience(ctx, g.httpCfg, g.circuit, buildRequest)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Results []struct {
			ID        int64   `json:"id"`
			Name      string  `json:"name"`
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
			Country   string  `json:"country"`
			Admin1    string  `json:"admin1"`
			Admin2    string  `json:"admin2"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode open-meteo geocoding: %v", weather.ErrLogical, err)
	}

	places := make([]weather.Place, 0, len(payload.Results))
	for _, r := range payload.Results {
		places = append(places, weather.Place{
			Name:      r.Name,
			Adm1:      r.Admin1,
			Adm2:      r.Admin2,
			Country:   r.Country,
			Latitude:  formatCoordinate(r.Latitude),
			Longitude: formatCoordinate(r.Longitude),
		})
	}
	return places, nil
}
