package chart

import (
	"math"
	"testing"
)

func TestComputeAxis(t *testing.T) {
	tests := []struct {
		name  string
		temps []int
		want  Axis
	}{
		{name: "empty", temps: nil, want: Axis{Min: 0, Max: 30, Range: 30}},
		{name: "straddles zero", temps: []int{-3, -1, 2, 5}, want: Axis{Min: -8, Max: 10, Range: 18}},
		{name: "low positive", temps: []int{2, 4, 8}, want: Axis{Min: 0, Max: 13, Range: 13}},
		{name: "high positive", temps: []int{18, 25, 31}, want: Axis{Min: 0, Max: 34, Range: 34}},
		{name: "low negative", temps: []int{-2, -6}, want: Axis{Min: -11, Max: 0, Range: 11}},
		{name: "deep negative", temps: []int{-15, -22}, want: Axis{Min: -25, Max: 0, Range: 25}},
		{name: "all zero", temps: []int{0, 0, 0}, want: Axis{Min: 0, Max: 5, Range: 5}},
		{name: "single value", temps: []int{7}, want: Axis{Min: 0, Max: 12, Range: 12}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeAxis(tt.temps)
			if got != tt.want {
				t.Fatalf("ComputeAxis(%v) = %+v, want %+v", tt.temps, got, tt.want)
			}
		})
	}
}

func TestComputeAxisKeepsZeroVisible(t *testing.T) {
	for lo := -40; lo <= 40; lo += 3 {
		for hi := lo; hi <= 40; hi += 7 {
			a := ComputeAxis([]int{lo, hi, (lo + hi) / 2})
			if a.Min > 0 || a.Max < 0 {
				t.Fatalf("[%d,%d]: zero outside axis %+v", lo, hi, a)
			}
			if a.Max <= a.Min {
				t.Fatalf("[%d,%d]: degenerate axis %+v", lo, hi, a)
			}
			if a.Range != a.Max-a.Min {
				t.Fatalf("[%d,%d]: range mismatch %+v", lo, hi, a)
			}
		}
	}

	for _, temps := range [][]int{
		{math.MaxInt},
		{math.MinInt},
		{math.MinInt, math.MaxInt},
		{-5, math.MaxInt - 1},
	} {
		a := ComputeAxis(temps)
		if a.Min > 0 || a.Max < 0 || a.Max <= a.Min || a.Range != a.Max-a.Min {
			t.Fatalf("%v: invalid axis %+v", temps, a)
		}
	}
	if a := ComputeAxis([]int{math.MaxInt}); a != (Axis{Min: 0, Max: TempLimit + WideRangePadding, Range: TempLimit + WideRangePadding}) {
		t.Fatalf("expected the axis of a clamped series, got %+v", a)
	}
}

func TestParseTempClamps(t *testing.T) {
	tests := map[string]int{
		"21":                   21,
		" -7 ":                 -7,
		"9223372036854775807":  TempLimit,
		"-9223372036854775808": -TempLimit,
		"350":                  TempLimit,
		"n/a":                  0,
	}
	for in, want := range tests {
		if got := ParseTemp(in); got != want {
			t.Errorf("ParseTemp(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestBuildHourly(t *testing.T) {
	points := make([]HourlyPoint, 0, 24)
	for h := 0; h < 24; h++ {
		points = append(points, HourlyPoint{
			Time: "2025-12-22T" + twoDigits(h) + ":00+08:00",
			Temp: "3",
		})
	}
	points[1].Temp = "n/a"
	points[2].Time = ""

	s := BuildHourly(points)

	if len(s.Temperatures) != HourlyPoints || len(s.Labels) != HourlyPoints {
		t.Fatalf("expected %d points, got %d temps and %d labels", HourlyPoints, len(s.Temperatures), len(s.Labels))
	}
	if s.Temperatures[1] != 0 {
		t.Errorf("malformed temperature should be 0, got %d", s.Temperatures[1])
	}
	if s.Labels[0] != "12am" || s.Labels[2] != "--" || s.Labels[3] != "3am" {
		t.Errorf("unexpected labels %v", s.Labels[:4])
	}
	if s.Axis != (Axis{Min: 0, Max: 8, Range: 8}) {
		t.Errorf("unexpected axis %+v", s.Axis)
	}
}

func TestFormatHour(t *testing.T) {
	tests := map[string]string{
		"2025-12-22T00:00+08:00": "12am",
		"2025-12-22T09:00+08:00": "9am",
		"2025-12-22T12:00+08:00": "12pm",
		"2025-12-22T15:00+08:00": "3pm",
		"2025-12-22Txx:00":       "--",
		"":                       "--",
	}
	for in, want := range tests {
		if got := FormatHour(in); got != want {
			t.Errorf("FormatHour(%q) = %q, want %q", in, got, want)
		}
	}
}

func twoDigits(n int) string {
	if n < 10 {
		return "0" + string(rune('0'+n))
	}
	return string(rune('0'+n/10)) + string(rune('0'+n%10))
}
