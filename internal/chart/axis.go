package chart

import (
	"strconv"
	"strings"
)

const (
	// AxisPadding is the room added beyond the observed extreme for series that
	// straddle zero or stay within LowRangeLimit of it.
	AxisPadding = 5
	// WideRangePadding is used when the extreme away from zero exceeds LowRangeLimit.
	WideRangePadding = 3
	// LowRangeLimit bounds a "low" series: one that would otherwise hug the zero line.
	LowRangeLimit = 10

	defaultAxisMin = 0
	defaultAxisMax = 30

	// HourlyPoints is the number of hours drawn on the temperature chart.
	HourlyPoints = 12

	// TempLimit bounds the magnitude of a charted temperature.
	TempLimit = 200
)

// Axis is the visible temperature range. Min <= 0 <= Max always holds and
// Range is never zero.
type Axis struct {
	Min   int `json:"min"`
	Max   int `json:"max"`
	Range int `json:"range"`
}

// ComputeAxis returns the axis for temps, keeping the zero line visible.
func ComputeAxis(temps []int) Axis {
	if len(temps) == 0 {
		return Axis{Min: defaultAxisMin, Max: defaultAxisMax, Range: defaultAxisMax - defaultAxisMin}
	}

	lo, hi := clampTemp(temps[0]), clampTemp(temps[0])
	for _, t := range temps[1:] {
		t = clampTemp(t)
		if t < lo {
			lo = t
		}
		if t > hi {
			hi = t
		}
	}

	var a Axis
	switch {
	case lo >= 0:
		a.Min = 0
		a.Max = hi + padFor(hi)
	case hi <= 0:
		a.Max = 0
		a.Min = lo - padFor(-lo)
	default:
		a.Min = lo - AxisPadding
		a.Max = hi + AxisPadding
	}

	if a.Min > 0 {
		a.Min = 0
	}
	if a.Max < 0 {
		a.Max = 0
	}

	a.Range = a.Max - a.Min
	if a.Range == 0 {
		a.Range = 1
	}
	return a
}

func clampTemp(t int) int {
	switch {
	case t > TempLimit:
		return TempLimit
	case t < -TempLimit:
		return -TempLimit
	}
	return t
}

// padFor returns the padding for an extreme at distance d from zero.
func padFor(d int) int {
	if d <= LowRangeLimit {
		return AxisPadding
	}
	return WideRangePadding
}

// HourlySeries holds the temperatures and labels of the hourly chart.
type HourlySeries struct {
	Temperatures []int    `json:"temperatures"`
	Labels       []string `json:"labels"`
	Axis         Axis     `json:"axis"`
}

// HourlyPoint is one raw hour as delivered by the provider.
type HourlyPoint struct {
	Time string
	Temp string
}

// BuildHourly takes the first HourlyPoints entries. A temperature that does not
// parse is drawn as zero; a missing time is labelled "--".
func BuildHourly(points []HourlyPoint) HourlySeries {
	n := len(points)
	if n > HourlyPoints {
		n = HourlyPoints
	}
	s := HourlySeries{
		Temperatures: make([]int, 0, n),
		Labels:       make([]string, 0, n),
	}
	for _, p := range points[:n] {
		s.Temperatures = append(s.Temperatures, ParseTemp(p.Temp))
		s.Labels = append(s.Labels, FormatHour(p.Time))
	}
	s.Axis = ComputeAxis(s.Temperatures)
	return s
}

// ParseTemp parses an integer temperature, returning 0 for malformed input.
// Values beyond TempLimit are clamped to it.
func ParseTemp(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return clampTemp(v)
}

// FormatHour renders the hour of an ISO-8601 time in 12-hour form ("12am",
// "3pm"). It returns "--" when the hour cannot be read.
func FormatHour(ts string) string {
	t := strings.IndexByte(ts, 'T')
	if t <= 0 || t+4 > len(ts) {
		return "--"
	}
	h, err := strconv.Atoi(ts[t+1 : t+3])
	if err != nil || h < 0 || h > 23 {
		return "--"
	}
	switch {
	case h == 0:
		return "12am"
	case h < 12:
		return strconv.Itoa(h) + "am"
	case h == 12:
		return "12pm"
	default:
		return strconv.Itoa(h-12) + "pm"
	}
}
