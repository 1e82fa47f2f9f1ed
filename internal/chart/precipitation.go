// Package chart holds the pure transforms that turn fetched series into
// chart-ready data.
package chart

import (
	"math"
	"strconv"
	"strings"
)

const (
	// SeriesLength is the number of one-minute bars in a two-hour nowcast.
	SeriesLength = 120
	// SampleMinutes is the width of one raw nowcast sample.
	SampleMinutes = 5
	// MaxSamples is the number of raw samples covering SeriesLength.
	MaxSamples = SeriesLength / SampleMinutes
	// LabelEvery is the spacing of time labels on the bar axis.
	LabelEvery = 10
)

// Sample is one raw nowcast bucket as delivered by the provider.
type Sample struct {
	Time   string
	Precip string
}

// PrecipitationSeries is a fixed-length one-minute bar series. Labels[i] is
// empty unless i is a multiple of LabelEvery and starts a raw sample.
type PrecipitationSeries struct {
	Values []float64 `json:"values"`
	Labels []string  `json:"labels"`
}

// Densify expands up to MaxSamples five-minute samples into exactly
// SeriesLength one-minute bars. A nil sample becomes five empty bars; an
// unparseable or negative value becomes zero.
func Densify(samples []*Sample) PrecipitationSeries {
	values := make([]float64, 0, SeriesLength+SampleMinutes)
	labels := make([]string, 0, SeriesLength+SampleMinutes)

	n := len(samples)
	if n > MaxSamples {
		n = MaxSamples
	}

	for i := 0; i < n; i++ {
		v, label := expandSample(samples[i])
		for j := 0; j < SampleMinutes; j++ {
			values = append(values, v)
			idx := i*SampleMinutes + j
			if j == 0 && idx%LabelEvery == 0 && label != "" {
				labels = append(labels, label)
			} else {
				labels = append(labels, "")
			}
		}
	}

	for len(values) < SeriesLength {
		values = append(values, 0)
		labels = append(labels, "")
	}

	return PrecipitationSeries{
		Values: values[:SeriesLength],
		Labels: labels[:SeriesLength],
	}
}

func expandSample(s *Sample) (float64, string) {
	if s == nil {
		return 0, ""
	}
	return ParsePrecip(s.Precip), FormatMinute(s.Time)
}

// ParsePrecip parses a precipitation amount, clamping bad or negative input to zero.
func ParsePrecip(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// FormatMinute extracts "HH:mm" from an ISO-8601 time such as
// "2025-12-22T03:05+08:00". It returns "" when the input has no time part.
func FormatMinute(ts string) string {
	t := strings.IndexByte(ts, 'T')
	if t <= 0 || t+6 > len(ts) {
		return ""
	}
	hm := ts[t+1 : t+6]
	if hm[2] != ':' {
		return ""
	}
	return hm
}
