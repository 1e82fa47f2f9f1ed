package weather

import (
	"errors"
	"fmt"
	"strings"

	"github.com/i474232898/weather-dashboard/internal/chart"
	"github.com/i474232898/weather-dashboard/internal/common"
)

const (
	noPrecipitationMessage = "No precipitation expected in the next 2 hours"
	defaultGHIUnit         = "W/m²"
	placeholder            = "--"
)

// BuildMainView combines current conditions with the first daily entry into
// the primary display. The snapshot must already hold both.
func BuildMainView(snap Snapshot) MainView {
	v := MainView{
		LocationName: snap.LocationName,
		Temperature:  placeholder,
		Text:         placeholder,
		Low:          placeholder,
		High:         placeholder,
		Wind:         placeholder,
		Humidity:     placeholder,
		Daily:        snap.Daily,
	}

	if cur := snap.Current; cur != nil {
		v.Temperature = common.OrDefault(cur.Temperature, placeholder)
		v.Text = common.OrDefault(cur.Text, placeholder)
		v.Icon = cur.Icon
		v.Humidity = common.OrDefault(cur.Humidity, placeholder)
		v.Wind = formatWind(cur.WindDir, cur.WindScale, cur.WindSpeed)
	}

	if len(snap.Daily) > 0 {
		today := snap.Daily[0]
		v.Low = common.OrDefault(today.TempMin, placeholder)
		v.High = common.OrDefault(today.TempMax, placeholder)
	}
	if len(v.Daily) > maxDailyEntries {
		v.Daily = v.Daily[:maxDailyEntries]
	}
	return v
}

func formatWind(dir, scale, speed string) string {
	parts := make([]string, 0, 3)
	if dir != "" {
		parts = append(parts, dir)
	}
	if scale != "" {
		parts = append(parts, "force "+scale)
	}
	if speed != "" {
		parts = append(parts, speed+" km/h")
	}
	if len(parts) == 0 {
		return placeholder
	}
	return strings.Join(parts, " ")
}

// BuildHourlyView keeps the first chart.HourlyPoints entries and computes the
// temperature axis for them.
func BuildHourlyView(hourly []HourlyForecast) HourlyView {
	n := len(hourly)
	if n > chart.HourlyPoints {
		n = chart.HourlyPoints
	}
	points := make([]chart.HourlyPoint, 0, n)
	for _, h := range hourly[:n] {
		points = append(points, chart.HourlyPoint{Time: h.Time, Temp: h.Temp})
	}
	series := chart.BuildHourly(points)
	return HourlyView{
		Entries:      hourly[:n],
		Temperatures: series.Temperatures,
		Labels:       series.Labels,
		Axis:         series.Axis,
	}
}

// BuildAirQualityView renders either air quality shape.
func BuildAirQualityView(aq AirQuality) AirQualityView {
	if aq == nil {
		return AirQualityView{Display: placeholder, HealthEffect: noData}
	}
	v := AirQualityView{
		Display:      aq.Display(),
		HealthEffect: aq.HealthEffect(),
	}
	if idx, ok := aq.(IndexedAirQuality); ok {
		v.Source = idx.MetadataTag
	}
	return v
}

// BuildPrecipitationView densifies the nowcast, or explains why there is none.
// err is the outcome of the nowcast request.
func BuildPrecipitationView(p Precipitation, err error) PrecipitationView {
	empty := chart.Densify(nil)
	v := PrecipitationView{Values: empty.Values, Labels: empty.Labels}

	if err != nil {
		v.Message = precipitationMessage(err)
		return v
	}
	if len(p.Samples) == 0 {
		v.Message = common.FirstNonEmpty(p.Summary, noPrecipitationMessage)
		return v
	}

	samples := make([]*chart.Sample, len(p.Samples))
	for i, s := range p.Samples {
		if s != nil {
			samples[i] = &chart.Sample{Time: s.Time, Precip: s.Precip}
		}
	}
	series := chart.Densify(samples)
	v.Values = series.Values
	v.Labels = series.Labels
	v.Message = p.Summary
	v.HasData = true
	return v
}

func precipitationMessage(err error) string {
	switch code := StatusCode(err); code {
	case "204":
		return "Minute-level precipitation is not available for this region"
	case "400":
		return "Minute-level precipitation is not supported here or requires a subscription"
	case "401":
		return "Precipitation unavailable: invalid API key"
	case "404":
		return "No precipitation data for this location"
	case "":
		if errors.Is(err, ErrNotConfigured) {
			return "Precipitation unavailable: provider is not configured"
		}
		return "Precipitation data could not be loaded"
	default:
		return fmt.Sprintf("Precipitation unavailable (code %s)", code)
	}
}

// BuildSolarView formats the first solar forecast entry.
func BuildSolarView(s SolarForecast) SolarView {
	v := SolarView{Radiation: placeholder, Elevation: placeholder, Time: placeholder}
	if s.GHI != nil {
		v.Radiation = fmt.Sprintf("%.1f %s", *s.GHI, common.FirstNonEmpty(s.GHIUnit, defaultGHIUnit))
	}
	if s.Elevation != nil {
		v.Elevation = fmt.Sprintf("%.1f°", *s.Elevation)
	}
	if hm := chart.FormatMinute(s.ForecastTime); hm != "" {
		v.Time = hm
	}
	return v
}
