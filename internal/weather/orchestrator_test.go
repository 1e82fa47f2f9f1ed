package weather

import (
	"context"
	"sync"
	"testing"
	"time"
)

func ptr(v float64) *float64 { return &v }

// fullProvider answers every endpoint successfully.
func fullProvider() *fakeProvider {
	return &fakeProvider{
		current: func(context.Context, string) (Current, error) {
			return Current{Temperature: "21", Text: "Sunny", Humidity: "40"}, nil
		},
		daily: func(context.Context, string) ([]DailyForecast, error) {
			out := make([]DailyForecast, 20)
			for i := range out {
				out[i] = DailyForecast{TempMin: "10", TempMax: "25"}
			}
			return out, nil
		},
		hourly: func(context.Context, string) ([]HourlyForecast, error) {
			out := make([]HourlyForecast, 30)
			for i := range out {
				out[i] = HourlyForecast{Time: "2025-12-22T03:00+08:00", Temp: "5"}
			}
			return out, nil
		},
		air: func(context.Context, string) (AirQuality, error) {
			return LegacyAirQuality{AQI: "50", Category: "Good"}, nil
		},
		minutely: func(context.Context, Coordinates) (Precipitation, error) {
			return Precipitation{Code: SuccessCode}, nil
		},
		sun: func(context.Context, Coordinates, time.Time) (SunTimes, error) {
			return SunTimes{Sunrise: "07:00", Sunset: "17:00"}, nil
		},
		solar: func(context.Context, Coordinates, int, int) ([]SolarForecast, error) {
			return []SolarForecast{{ForecastTime: "2025-12-22T12:00+08:00", GHI: ptr(300)}}, nil
		},
	}
}

func newTestOrchestrator(t *testing.T, p Provider, locs ...Location) (*Orchestrator, *recordingView) {
	t.Helper()
	loop := NewLoop(0)
	t.Cleanup(loop.Close)
	view := &recordingView{}
	resolver := NewCoordinateResolver(newMemCoordinateStore(locs...), nil)
	return NewOrchestrator(p, resolver, loop, view, OrchestratorConfig{}), view
}

// waitDelivered blocks until every category in cats has been delivered for c.
func waitDelivered(t *testing.T, o *Orchestrator, c *Cycle, cats ...Category) {
	t.Helper()
	eventually(t, "category delivery", func() bool {
		all := true
		onLoop(t, o.loop, func() {
			for _, cat := range cats {
				if !c.delivered[cat] {
					all = false
				}
			}
		})
		return all
	})
}

func waitDone(t *testing.T, c *Cycle) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("cycle did not finish in time")
	}
}

var withCoordinates = Location{RemoteID: "101010100", Name: "Beijing", Latitude: "39.90", Longitude: "116.40"}

func TestOrchestratorJoinsOnce(t *testing.T) {
	o, view := newTestOrchestrator(t, fullProvider(), withCoordinates)

	c := o.StartCycle(context.Background(), withCoordinates.RemoteID, withCoordinates.Name)
	waitDone(t, c)
	waitDelivered(t, o, c, CategoryCurrent, CategoryDaily, CategoryHourly, CategoryAirQuality,
		CategoryPrecipitation, CategorySun, CategorySolar)

	mains := view.ofKind("main")
	if len(mains) != 1 {
		t.Fatalf("expected main display rendered once, got %d", len(mains))
	}
	snap := mains[0].snap
	if snap.Current == nil || snap.Current.Temperature != "21" {
		t.Fatalf("expected current conditions in snapshot, got %+v", snap.Current)
	}
	if len(snap.Daily) != maxDailyEntries {
		t.Fatalf("expected %d daily entries, got %d", maxDailyEntries, len(snap.Daily))
	}

	hourly := view.ofKind("hourly")
	if len(hourly) != 1 || len(hourly[0].hourly) != maxHourlyEntries {
		t.Fatalf("expected one hourly render with %d entries, got %+v", maxHourlyEntries, hourly)
	}

	stops := view.ofKind("stop")
	if len(stops) != 1 || stops[0].err != nil {
		t.Fatalf("expected one successful stop, got %+v", stops)
	}
	for _, kind := range []string{"air", "precip", "sun", "solar"} {
		if n := len(view.ofKind(kind)); n != 1 {
			t.Fatalf("expected one %s render, got %d", kind, n)
		}
	}
	for _, e := range view.all() {
		if e.cycleID != c.ID {
			t.Fatalf("event %s for unexpected cycle %s", e.kind, e.cycleID)
		}
	}
	if view.all()[0].kind != "begin" {
		t.Fatalf("expected begin to be the first event, got %s", view.all()[0].kind)
	}
}

// gate blocks callers of wait until open is called. open is idempotent and
// also runs at test cleanup.
func gate(t *testing.T) (wait func(), open func()) {
	ch := make(chan struct{})
	var once sync.Once
	open = func() { once.Do(func() { close(ch) }) }
	t.Cleanup(open)
	return func() { <-ch }, open
}

func TestOrchestratorJoinWaitsForDaily(t *testing.T) {
	p := fullProvider()
	wait, open := gate(t)
	daily := p.daily
	p.daily = func(ctx context.Context, id string) ([]DailyForecast, error) {
		wait()
		return daily(ctx, id)
	}
	o, view := newTestOrchestrator(t, p, withCoordinates)

	c := o.StartCycle(context.Background(), withCoordinates.RemoteID, withCoordinates.Name)
	waitDone(t, c)
	if n := len(view.ofKind("main")); n != 0 {
		t.Fatalf("expected no main render before daily arrives, got %d", n)
	}

	open()
	waitDelivered(t, o, c, CategoryDaily)
	if n := len(view.ofKind("main")); n != 1 {
		t.Fatalf("expected one main render once daily arrives, got %d", n)
	}
}

func TestOrchestratorJoinWaitsForCurrent(t *testing.T) {
	p := fullProvider()
	wait, open := gate(t)
	current := p.current
	p.current = func(ctx context.Context, id string) (Current, error) {
		wait()
		return current(ctx, id)
	}
	o, view := newTestOrchestrator(t, p, withCoordinates)

	c := o.StartCycle(context.Background(), withCoordinates.RemoteID, withCoordinates.Name)
	waitDelivered(t, o, c, CategoryDaily)
	if n := len(view.ofKind("main")); n != 0 {
		t.Fatalf("expected no main render before current conditions arrive, got %d", n)
	}
	select {
	case <-c.Done():
		t.Fatal("expected the cycle to keep refreshing while current conditions are pending")
	default:
	}

	open()
	waitDone(t, c)
	if n := len(view.ofKind("main")); n != 1 {
		t.Fatalf("expected one main render once current conditions arrive, got %d", n)
	}
}

func TestOrchestratorCurrentFailureSkipsJoin(t *testing.T) {
	p := fullProvider()
	p.current = func(context.Context, string) (Current, error) {
		return Current{}, errFakeTransport
	}
	o, view := newTestOrchestrator(t, p, withCoordinates)

	c := o.StartCycle(context.Background(), withCoordinates.RemoteID, withCoordinates.Name)
	waitDone(t, c)
	waitDelivered(t, o, c, CategoryCurrent, CategoryDaily)

	if n := len(view.ofKind("main")); n != 0 {
		t.Fatalf("expected no main display, got %d", n)
	}
	stops := view.ofKind("stop")
	if len(stops) != 1 || stops[0].err == nil {
		t.Fatalf("expected one failed stop, got %+v", stops)
	}
}

func TestOrchestratorDailyUnavailable(t *testing.T) {
	p := fullProvider()
	p.daily = func(context.Context, string) ([]DailyForecast, error) {
		return nil, &StatusError{Code: "204"}
	}
	o, view := newTestOrchestrator(t, p, withCoordinates)

	c := o.StartCycle(context.Background(), withCoordinates.RemoteID, withCoordinates.Name)
	waitDelivered(t, o, c, CategoryCurrent, CategoryDaily)

	if n := len(view.ofKind("main")); n != 0 {
		t.Fatalf("expected no main display without daily forecast, got %d", n)
	}
	un := view.ofKind("unavailable")
	if len(un) != 1 || un[0].cat != CategoryDaily {
		t.Fatalf("expected daily to be unavailable, got %+v", un)
	}
}

func TestOrchestratorSkipsCoordinateCategoriesWithoutCoordinates(t *testing.T) {
	noCoords := Location{RemoteID: "X", Name: "Nowhere"}
	o, view := newTestOrchestrator(t, fullProvider(), noCoords)

	c := o.StartCycle(context.Background(), noCoords.RemoteID, noCoords.Name)
	waitDelivered(t, o, c, CategoryCurrent, CategoryDaily, CategoryHourly, CategoryAirQuality)

	// Give the coordinate-keyed fetches time to finish; none of them may render.
	time.Sleep(50 * time.Millisecond)
	onLoop(t, o.loop, func() {})

	for _, kind := range []string{"precip", "sun", "solar"} {
		if n := len(view.ofKind(kind)); n != 0 {
			t.Fatalf("expected %s to be skipped, got %d renders", kind, n)
		}
	}
	if n := len(view.ofKind("main")); n != 1 {
		t.Fatalf("expected main display from primary endpoints, got %d", n)
	}
}

func TestOrchestratorPrecipitationPlaceholderOnError(t *testing.T) {
	p := fullProvider()
	p.minutely = func(context.Context, Coordinates) (Precipitation, error) {
		return Precipitation{Code: "204"}, &StatusError{Code: "204"}
	}
	o, view := newTestOrchestrator(t, p, withCoordinates)

	c := o.StartCycle(context.Background(), withCoordinates.RemoteID, withCoordinates.Name)
	waitDelivered(t, o, c, CategoryPrecipitation)

	ev := view.ofKind("precip")
	if len(ev) != 1 || StatusCode(ev[0].err) != "204" {
		t.Fatalf("expected a precipitation render carrying code 204, got %+v", ev)
	}
}

func TestOrchestratorDiscardsStaleResults(t *testing.T) {
	release := make(chan struct{})
	calls := make(chan struct{}, 1)
	first := true

	p := fullProvider()
	p.current = func(ctx context.Context, id string) (Current, error) {
		if first {
			first = false
			calls <- struct{}{}
			<-release
			return Current{Temperature: "old"}, nil
		}
		return Current{Temperature: "new"}, nil
	}
	o, view := newTestOrchestrator(t, p, withCoordinates)

	a := o.StartCycle(context.Background(), withCoordinates.RemoteID, withCoordinates.Name)
	<-calls // the first cycle is now blocked inside its current-conditions fetch
	b := o.StartCycle(context.Background(), withCoordinates.RemoteID, withCoordinates.Name)

	waitDone(t, a)
	waitDone(t, b)
	close(release)

	eventually(t, "stale discard", func() bool {
		_, discarded := o.Stats()
		return discarded >= 1
	})

	for _, e := range view.ofKind("stop") {
		if e.cycleID == a.ID {
			t.Fatalf("stale cycle cleared the refresh indicator")
		}
	}
	for _, e := range view.ofKind("main") {
		if e.snap.Current != nil && e.snap.Current.Temperature == "old" {
			t.Fatalf("stale current conditions were rendered")
		}
	}
	started, _ := o.Stats()
	if started != 2 {
		t.Fatalf("expected 2 cycles started, got %d", started)
	}
}
