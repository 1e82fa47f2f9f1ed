package weather

import "fmt"

// DefaultAirQualityIndex is the index code preferred when a response carries
// several indexes.
const DefaultAirQualityIndex = "qaqi"

// AirQuality is the parsed air quality payload. The response shape is resolved
// once by the provider into one of IndexedAirQuality or LegacyAirQuality.
type AirQuality interface {
	// Display is the one-line AQI summary.
	Display() string
	// HealthEffect is the longer text shown on demand.
	HealthEffect() string
	shape() string
}

// IndexedAirQuality is the multi-pollutant index format.
type IndexedAirQuality struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	AQI         *int   `json:"aqi,omitempty"`
	AQIDisplay  string `json:"aqiDisplay"`
	Level       string `json:"level"`
	Category    string `json:"category"`
	Effect      string `json:"effect,omitempty"`
	AdviceGen   string `json:"adviceGeneral,omitempty"`
	AdviceSens  string `json:"adviceSensitive,omitempty"`
	MetadataTag string `json:"tag,omitempty"`
}

func (a IndexedAirQuality) Display() string {
	switch {
	case a.AQIDisplay != "" && a.Category != "":
		return fmt.Sprintf("AQI: %s (%s)", a.AQIDisplay, a.Category)
	case a.AQIDisplay != "":
		return "AQI: " + a.AQIDisplay
	case a.Category != "":
		return a.Category
	default:
		return "--"
	}
}

func (a IndexedAirQuality) HealthEffect() string {
	if a.Effect != "" {
		return a.Effect
	}
	return noData
}

func (IndexedAirQuality) shape() string { return "indexed" }

// LegacyAirQuality is the single-value "now" format.
type LegacyAirQuality struct {
	AQI      string `json:"aqi"`
	Level    string `json:"level"`
	Category string `json:"category"`
	Primary  string `json:"primary"`
}

func (a LegacyAirQuality) Display() string {
	switch {
	case a.AQI != "" && a.Category != "":
		return fmt.Sprintf("AQI: %s (%s)", a.AQI, a.Category)
	case a.AQI != "":
		return "AQI: " + a.AQI
	case a.Category != "":
		return a.Category
	default:
		return "--"
	}
}

func (a LegacyAirQuality) HealthEffect() string {
	switch {
	case a.Level != "":
		return "Air quality level: " + a.Level
	case a.Category != "":
		return "Air quality category: " + a.Category
	default:
		return noData
	}
}

func (LegacyAirQuality) shape() string { return "legacy" }

// SelectIndex picks the default index if present, else the first one.
// ok is false for an empty list.
func SelectIndex(indexes []IndexedAirQuality) (IndexedAirQuality, bool) {
	if len(indexes) == 0 {
		return IndexedAirQuality{}, false
	}
	for _, idx := range indexes {
		if idx.Code == DefaultAirQualityIndex {
			return idx, true
		}
	}
	return indexes[0], true
}

const noData = "No data"
