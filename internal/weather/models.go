package weather

import (
	"time"

	"github.com/i474232898/weather-dashboard/internal/chart"
)

// Category identifies one independently fetched kind of weather data.
type Category string

const (
	CategoryCurrent       Category = "current"
	CategoryDaily         Category = "daily"
	CategoryHourly        Category = "hourly"
	CategoryAirQuality    Category = "air_quality"
	CategoryPrecipitation Category = "precipitation"
	CategorySun           Category = "sun"
	CategorySolar         Category = "solar"
)

// Location is a saved place. Latitude and Longitude are decimal strings and are
// either both set or both empty.
type Location struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	RemoteID  string    `json:"remoteId"`
	Latitude  string    `json:"latitude,omitempty"`
	Longitude string    `json:"longitude,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// HasCoordinates reports whether the location has been resolved.
func (l Location) HasCoordinates() bool {
	return l.Latitude != "" && l.Longitude != ""
}

// Coordinates returns the stored coordinates of the location.
func (l Location) Coordinates() Coordinates {
	return Coordinates{Latitude: l.Latitude, Longitude: l.Longitude}
}

// Coordinates holds a decimal latitude/longitude pair as returned by the provider.
type Coordinates struct {
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

// Valid reports whether both components are present.
func (c Coordinates) Valid() bool {
	return c.Latitude != "" && c.Longitude != ""
}

// LatLon formats the pair as "lat,lon".
func (c Coordinates) LatLon() string {
	return c.Latitude + "," + c.Longitude
}

// LonLat formats the pair as "lon,lat", the order used by the minutely and sun endpoints.
func (c Coordinates) LonLat() string {
	return c.Longitude + "," + c.Latitude
}

// Place is a single geocoding match.
type Place struct {
	RemoteID  string `json:"id"`
	Name      string `json:"name"`
	Adm1      string `json:"adm1,omitempty"`
	Adm2      string `json:"adm2,omitempty"`
	Country   string `json:"country,omitempty"`
	Latitude  string `json:"lat"`
	Longitude string `json:"lon"`
}

// Current holds the current-conditions block. Numeric values are kept as the
// provider's decimal strings.
type Current struct {
	ObservedAt  string `json:"obsTime,omitempty"`
	Temperature string `json:"temp"`
	FeelsLike   string `json:"feelsLike"`
	Text        string `json:"text"`
	Icon        string `json:"icon"`
	Humidity    string `json:"humidity"`
	WindDir     string `json:"windDir"`
	WindScale   string `json:"windScale"`
	WindSpeed   string `json:"windSpeed"`
}

// DailyForecast is one day of the daily series.
type DailyForecast struct {
	Date    string `json:"fxDate"`
	TempMax string `json:"tempMax"`
	TempMin string `json:"tempMin"`
	TextDay string `json:"textDay"`
	IconDay string `json:"iconDay"`
}

// HourlyForecast is one hour of the hourly series.
type HourlyForecast struct {
	Time      string `json:"fxTime"`
	Temp      string `json:"temp"`
	Text      string `json:"text"`
	Icon      string `json:"icon"`
	WindDir   string `json:"windDir"`
	WindScale string `json:"windScale"`
}

// MinutelySample is one 5-minute bucket of the precipitation nowcast.
type MinutelySample struct {
	Time   string `json:"fxTime"`
	Precip string `json:"precip"`
	Type   string `json:"type"`
}

// Precipitation is the minutely nowcast. Code carries the provider status; an
// empty Samples list with a success code is a valid "no data" outcome.
type Precipitation struct {
	Code       string            `json:"code"`
	UpdateTime string            `json:"updateTime,omitempty"`
	Summary    string            `json:"summary,omitempty"`
	Samples    []*MinutelySample `json:"minutely,omitempty"`
}

// SunTimes holds sunrise and sunset for one day.
type SunTimes struct {
	Sunrise string `json:"sunrise"`
	Sunset  string `json:"sunset"`
}

// SolarForecast is one entry of the solar radiation forecast.
type SolarForecast struct {
	ForecastTime string   `json:"forecastTime"`
	GHI          *float64 `json:"ghi,omitempty"`
	GHIUnit      string   `json:"ghiUnit,omitempty"`
	DNI          *float64 `json:"dni,omitempty"`
	DHI          *float64 `json:"dhi,omitempty"`
	Elevation    *float64 `json:"elevation,omitempty"`
	Azimuth      *float64 `json:"azimuth,omitempty"`
}

// Snapshot aggregates the data of one fetch cycle. It is never rendered to the
// main display until both Current and Daily are present.
type Snapshot struct {
	LocationName string           `json:"locationName"`
	Current      *Current         `json:"current,omitempty"`
	Daily        []DailyForecast  `json:"daily,omitempty"`
	Hourly       []HourlyForecast `json:"hourly,omitempty"`
}

// ArrivalState tracks which join-relevant categories have arrived in one cycle.
// Flags are only ever set, never cleared.
type ArrivalState struct {
	Current    bool
	Daily      bool
	AirQuality bool
}

// MainView is the render-ready primary display.
type MainView struct {
	LocationName string          `json:"locationName"`
	Temperature  string          `json:"temperature"`
	Text         string          `json:"text"`
	Icon         string          `json:"icon"`
	Low          string          `json:"low"`
	High         string          `json:"high"`
	Wind         string          `json:"wind"`
	Humidity     string          `json:"humidity"`
	Daily        []DailyForecast `json:"daily"`
}

// HourlyView is the render-ready hourly region.
type HourlyView struct {
	Entries      []HourlyForecast `json:"entries"`
	Temperatures []int            `json:"temperatures"`
	Labels       []string         `json:"labels"`
	Axis         chart.Axis       `json:"axis"`
}

// AirQualityView is the render-ready air quality region.
type AirQualityView struct {
	Display      string `json:"display"`
	HealthEffect string `json:"healthEffect"`
	Source       string `json:"source,omitempty"`
}

// PrecipitationView is the render-ready precipitation region.
type PrecipitationView struct {
	Message string    `json:"message"`
	Values  []float64 `json:"values"`
	Labels  []string  `json:"labels"`
	HasData bool      `json:"hasData"`
}

// SolarView is the render-ready solar region.
type SolarView struct {
	Radiation string `json:"radiation"`
	Elevation string `json:"elevation"`
	Time      string `json:"time"`
}

// Dashboard is everything rendered for one location, filled region by region.
type Dashboard struct {
	Location      string             `json:"location"`
	CycleID       string             `json:"cycleId"`
	Refreshing    bool               `json:"refreshing"`
	Main          *MainView          `json:"main,omitempty"`
	Hourly        *HourlyView        `json:"hourly,omitempty"`
	AirQuality    *AirQualityView    `json:"airQuality,omitempty"`
	Precipitation *PrecipitationView `json:"precipitation,omitempty"`
	Sun           *SunTimes          `json:"sun,omitempty"`
	Solar         *SolarView         `json:"solar,omitempty"`
	Unavailable   []Category         `json:"unavailable,omitempty"`
	LastError     string             `json:"lastError,omitempty"`
	Timestamp     time.Time          `json:"timestamp"` // always UTC
}

// Clone returns a copy that shares no slices with d.
func (d Dashboard) Clone() Dashboard {
	out := d
	if d.Unavailable != nil {
		out.Unavailable = append([]Category(nil), d.Unavailable...)
	}
	return out
}

// markUnavailable records cat once.
func (d *Dashboard) markUnavailable(cat Category) {
	for _, c := range d.Unavailable {
		if c == cat {
			return
		}
	}
	d.Unavailable = append(d.Unavailable, cat)
}

// clearUnavailable removes cat after a later successful arrival.
func (d *Dashboard) clearUnavailable(cat Category) {
	out := d.Unavailable[:0]
	for _, c := range d.Unavailable {
		if c != cat {
			out = append(out, c)
		}
	}
	d.Unavailable = out
}
