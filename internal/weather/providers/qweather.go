package providers

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

// DefaultQWeatherBaseURL is the public QWeather API host.
const DefaultQWeatherBaseURL = "https://api.qweather.com"

// QWeatherConfig configures a QWeatherProvider.
type QWeatherConfig struct {
	APIKey  string
	BaseURL string
	Lang    string
	Client  *http.Client
	Backoff BackoffConfig
}

// QWeatherProvider implements weather.Provider and weather.Geocoder against the
// QWeather REST API. Each endpoint family has its own circuit breaker so an
// outage of one does not short-circuit the others.
type QWeatherProvider struct {
	apiKey  string
	baseURL string
	lang    string
	httpCfg HTTPClientConfig

	breakers map[string]*gobreaker.CircuitBreaker
}

var (
	_ weather.Provider = (*QWeatherProvider)(nil)
	_ weather.Geocoder = (*QWeatherProvider)(nil)
)

const (
	breakerWeather   = "qweather-weather"
	breakerGrid      = "qweather-grid"
	breakerAir       = "qweather-air"
	breakerMinutely  = "qweather-minutely"
	breakerAstronomy = "qweather-astronomy"
	breakerSolar     = "qweather-solar"
	breakerGeo       = "qweather-geo"
)

// NewQWeatherProvider creates a provider. Backoff defaults to a single attempt.
func NewQWeatherProvider(cfg QWeatherConfig) *QWeatherProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultQWeatherBaseURL
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Backoff.InitialInterval <= 0 {
		cfg.Backoff.InitialInterval = 500 * time.Millisecond
	}
	if cfg.Backoff.MaxInterval <= 0 {
		cfg.Backoff.MaxInterval = 5 * time.Second
	}
	if cfg.Backoff.MaxRetries < 0 {
		cfg.Backoff.MaxRetries = 0
	}

	breakers := make(map[string]*gobreaker.CircuitBreaker)
	for _, name := range []string{breakerWeather, breakerGrid, breakerAir, breakerMinutely, breakerAstronomy, breakerSolar, breakerGeo} {
		breakers[name] = newBreaker(name)
	}

	return &QWeatherProvider{
		apiKey:   cfg.APIKey,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		lang:     cfg.Lang,
		httpCfg:  HTTPClientConfig{Client: cfg.Client, Backoff: cfg.Backoff},
		breakers: breakers,
	}
}

// get fetches path with the API key attached and decodes the body into out.
func (p *QWeatherProvider) get(ctx context.Context, breaker, path string, query url.Values, out interface{}) error {
	if p.apiKey == "" {
		return weather.ErrNotConfigured
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		for k, v := range query {
			values[k] = v
		}
		values.Set("key", p.apiKey)
		u := fmt.Sprintf("%s/%s?%s", p.baseURL, strings.TrimLeft(path, "/"), values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	body, err := doRequestWithResilience(ctx, p.httpCfg, p.breakers[breaker], buildRequest)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", weather.ErrLogical, path, err)
	}
	return nil
}

// checkCode turns a non-success body status into a logical failure.
func checkCode(code string) error {
	if code == weather.SuccessCode {
		return nil
	}
	if code == "" {
		return fmt.Errorf("%w: response without status code", weather.ErrLogical)
	}
	return &weather.StatusError{Code: code}
}

func (p *QWeatherProvider) withLang(v url.Values) url.Values {
	if p.lang != "" {
		v.Set("lang", p.lang)
	}
	return v
}

func (p *QWeatherProvider) CurrentConditions(ctx context.Context, locationID string) (weather.Current, error) {
	var payload struct {
		Code string          `json:"code"`
		Now  weather.Current `json:"now"`
	}
	q := p.withLang(url.Values{"location": {locationID}})
	if err := p.get(ctx, breakerWeather, "v7/weather/now", q, &payload); err != nil {
		return weather.Current{}, err
	}
	if err := checkCode(payload.Code); err != nil {
		return weather.Current{}, err
	}
	return payload.Now, nil
}

type dailyPayload struct {
	Code  string                  `json:"code"`
	Daily []weather.DailyForecast `json:"daily"`
}

func (p *QWeatherProvider) daily(ctx context.Context, breaker, path, location string) ([]weather.DailyForecast, error) {
	var payload dailyPayload
	q := p.withLang(url.Values{"location": {location}})
	if err := p.get(ctx, breaker, path, q, &payload); err != nil {
		return nil, err
	}
	if err := checkCode(payload.Code); err != nil {
		return nil, err
	}
	return payload.Daily, nil
}

func (p *QWeatherProvider) DailyForecast(ctx context.Context, locationID string) ([]weather.DailyForecast, error) {
	return p.daily(ctx, breakerWeather, "v7/weather/15d", locationID)
}

func (p *QWeatherProvider) DailyForecastByCoordinates(ctx context.Context, c weather.Coordinates) ([]weather.DailyForecast, error) {
	return p.daily(ctx, breakerGrid, "v7/grid-weather/15d", c.LatLon())
}

type hourlyPayload struct {
	Code   string                   `json:"code"`
	Hourly []weather.HourlyForecast `json:"hourly"`
}

func (p *QWeatherProvider) hourly(ctx context.Context, breaker, path, location string) ([]weather.HourlyForecast, error) {
	var payload hourlyPayload
	q := p.withLang(url.Values{"location": {location}})
	if err := p.get(ctx, breaker, path, q, &payload); err != nil {
		return nil, err
	}
	if err := checkCode(payload.Code); err != nil {
		return nil, err
	}
	return payload.Hourly, nil
}

func (p *QWeatherProvider) HourlyForecast(ctx context.Context, locationID string) ([]weather.HourlyForecast, error) {
	return p.hourly(ctx, breakerWeather, "v7/weather/24h", locationID)
}

func (p *QWeatherProvider) HourlyForecastByCoordinates(ctx context.Context, c weather.Coordinates) ([]weather.HourlyForecast, error) {
	return p.hourly(ctx, breakerGrid, "v7/grid-weather/72h", c.LatLon())
}

// airQualityPayload covers both response shapes. Exactly one of Now and
// Indexes is expected to be present.
type airQualityPayload struct {
	Code     string                    `json:"code"`
	Now      *weather.LegacyAirQuality `json:"now"`
	Metadata struct {
		Tag string `json:"tag"`
	} `json:"metadata"`
	Indexes []struct {
		Code       string   `json:"code"`
		Name       string   `json:"name"`
		AQI        *float64 `json:"aqi"`
		AQIDisplay string   `json:"aqiDisplay"`
		Level      string   `json:"level"`
		Category   string   `json:"category"`
		Health     struct {
			Effect string `json:"effect"`
			Advice struct {
				GeneralPopulation   string `json:"generalPopulation"`
				SensitivePopulation string `json:"sensitivePopulation"`
			} `json:"advice"`
		} `json:"health"`
	} `json:"indexes"`
}

// parseAirQuality resolves the payload shape once into the AirQuality union.
func parseAirQuality(payload airQualityPayload) (weather.AirQuality, error) {
	if payload.Code != "" && payload.Code != weather.SuccessCode {
		return nil, &weather.StatusError{Code: payload.Code}
	}

	if len(payload.Indexes) > 0 {
		indexes := make([]weather.IndexedAirQuality, 0, len(payload.Indexes))
		for _, raw := range payload.Indexes {
			idx := weather.IndexedAirQuality{
				Code:        raw.Code,
				Name:        raw.Name,
				AQIDisplay:  raw.AQIDisplay,
				Level:       raw.Level,
				Category:    raw.Category,
				Effect:      raw.Health.Effect,
				AdviceGen:   raw.Health.Advice.GeneralPopulation,
				AdviceSens:  raw.Health.Advice.SensitivePopulation,
				MetadataTag: payload.Metadata.Tag,
			}
			if raw.AQI != nil {
				v := int(math.Round(*raw.AQI))
				idx.AQI = &v
				if idx.AQIDisplay == "" {
					idx.AQIDisplay = strconv.Itoa(v)
				}
			}
			indexes = append(indexes, idx)
		}
		selected, _ := weather.SelectIndex(indexes)
		return selected, nil
	}

	if payload.Now != nil {
		return *payload.Now, nil
	}
	return nil, fmt.Errorf("%w: unrecognized air quality payload", weather.ErrLogical)
}

func (p *QWeatherProvider) AirQuality(ctx context.Context, locationID string) (weather.AirQuality, error) {
	var payload airQualityPayload
	q := p.withLang(url.Values{"location": {locationID}})
	if err := p.get(ctx, breakerAir, "v7/air/now", q, &payload); err != nil {
		return nil, err
	}
	return parseAirQuality(payload)
}

func (p *QWeatherProvider) AirQualityByCoordinates(ctx context.Context, c weather.Coordinates) (weather.AirQuality, error) {
	var payload airQualityPayload
	path := fmt.Sprintf("airquality/v1/current/%s/%s", url.PathEscape(c.Latitude), url.PathEscape(c.Longitude))
	if err := p.get(ctx, breakerAir, path, p.withLang(url.Values{}), &payload); err != nil {
		return nil, err
	}
	return parseAirQuality(payload)
}

// MinutelyPrecipitation returns the 2-hour nowcast. On a non-success status the
// returned value still carries the code.
func (p *QWeatherProvider) MinutelyPrecipitation(ctx context.Context, c weather.Coordinates) (weather.Precipitation, error) {
	var payload weather.Precipitation
	q := p.withLang(url.Values{"location": {c.LonLat()}})
	if err := p.get(ctx, breakerMinutely, "v7/minutely/5m", q, &payload); err != nil {
		return weather.Precipitation{}, err
	}
	if err := checkCode(payload.Code); err != nil {
		return weather.Precipitation{Code: payload.Code}, err
	}
	return payload, nil
}

func (p *QWeatherProvider) SunTimes(ctx context.Context, c weather.Coordinates, date time.Time) (weather.SunTimes, error) {
	var payload struct {
		Code    string `json:"code"`
		Sunrise string `json:"sunrise"`
		Sunset  string `json:"sunset"`
	}
	q := url.Values{
		"location": {c.LonLat()},
		"date":     {date.Format("20060102")},
	}
	if err := p.get(ctx, breakerAstronomy, "v7/astronomy/sun", q, &payload); err != nil {
		return weather.SunTimes{}, err
	}
	if err := checkCode(payload.Code); err != nil {
		return weather.SunTimes{}, err
	}
	return weather.SunTimes{Sunrise: payload.Sunrise, Sunset: payload.Sunset}, nil
}

type measurement struct {
	Value *float64 `json:"value"`
	Unit  string   `json:"unit"`
}

func (p *QWeatherProvider) SolarRadiation(ctx context.Context, c weather.Coordinates, hours, interval int) ([]weather.SolarForecast, error) {
	var payload struct {
		Forecasts []struct {
			ForecastTime string `json:"forecastTime"`
			SolarAngle   struct {
				Azimuth   *float64 `json:"azimuth"`
				Elevation *float64 `json:"elevation"`
			} `json:"solarAngle"`
			GHI measurement `json:"ghi"`
			DNI measurement `json:"dni"`
			DHI measurement `json:"dhi"`
		} `json:"forecasts"`
	}
	path := fmt.Sprintf("solarradiation/v1/forecast/%s/%s", url.PathEscape(c.Latitude), url.PathEscape(c.Longitude))
	q := url.Values{
		"hours":    {strconv.Itoa(hours)},
		"interval": {strconv.Itoa(interval)},
	}
	if err := p.get(ctx, breakerSolar, path, q, &payload); err != nil {
		return nil, err
	}

	out := make([]weather.SolarForecast, 0, len(payload.Forecasts))
	for _, f := range payload.Forecasts {
		out = append(out, weather.SolarForecast{
			ForecastTime: f.ForecastTime,
			GHI:          f.GHI.Value,
			GHIUnit:      f.GHI.Unit,
			DNI:          f.DNI.Value,
			DHI:          f.DHI.Value,
			Elevation:    f.SolarAngle.Elevation,
			Azimuth:      f.SolarAngle.Azimuth,
		})
	}
	return out, nil
}

// Lookup searches cities by name or provider id.
func (p *QWeatherProvider) Lookup(ctx context.Context, query string, limit int) ([]weather.Place, error) {
	var payload struct {
		Code     string          `json:"code"`
		Location []weather.Place `json:"location"`
	}
	q := p.withLang(url.Values{"location": {query}})
	if limit > 0 {
		q.Set("number", strconv.Itoa(limit))
	}
	if err := p.get(ctx, breakerGeo, "geo/v2/city/lookup", q, &payload); err != nil {
		return nil, err
	}
	if payload.Code == "404" {
		return nil, nil
	}
	if err := checkCode(payload.Code); err != nil {
		return nil, err
	}
	return payload.Location, nil
}
