package weather

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// fakeProvider answers every endpoint from its function fields. Unset fields
// fail with a transport error.
type fakeProvider struct {
	current        func(ctx context.Context, id string) (Current, error)
	daily          func(ctx context.Context, id string) ([]DailyForecast, error)
	dailyByCoords  func(ctx context.Context, c Coordinates) ([]DailyForecast, error)
	hourly         func(ctx context.Context, id string) ([]HourlyForecast, error)
	hourlyByCoords func(ctx context.Context, c Coordinates) ([]HourlyForecast, error)
	air            func(ctx context.Context, id string) (AirQuality, error)
	airByCoords    func(ctx context.Context, c Coordinates) (AirQuality, error)
	minutely       func(ctx context.Context, c Coordinates) (Precipitation, error)
	sun            func(ctx context.Context, c Coordinates, date time.Time) (SunTimes, error)
	solar          func(ctx context.Context, c Coordinates, hours, interval int) ([]SolarForecast, error)
}

var errFakeTransport = &StatusError{Code: "503", Transport: true}

func (f *fakeProvider) CurrentConditions(ctx context.Context, id string) (Current, error) {
	if f.current == nil {
		return Current{}, errFakeTransport
	}
	return f.current(ctx, id)
}

func (f *fakeProvider) DailyForecast(ctx context.Context, id string) ([]DailyForecast, error) {
	if f.daily == nil {
		return nil, errFakeTransport
	}
	return f.daily(ctx, id)
}

func (f *fakeProvider) DailyForecastByCoordinates(ctx context.Context, c Coordinates) ([]DailyForecast, error) {
	if f.dailyByCoords == nil {
		return nil, errFakeTransport
	}
	return f.dailyByCoords(ctx, c)
}

func (f *fakeProvider) HourlyForecast(ctx context.Context, id string) ([]HourlyForecast, error) {
	if f.hourly == nil {
		return nil, errFakeTransport
	}
	return f.hourly(ctx, id)
}

func (f *fakeProvider) HourlyForecastByCoordinates(ctx context.Context, c Coordinates) ([]HourlyForecast, error) {
	if f.hourlyByCoords == nil {
		return nil, errFakeTransport
	}
	return f.hourlyByCoords(ctx, c)
}

func (f *fakeProvider) AirQuality(ctx context.Context, id string) (AirQuality, error) {
	if f.air == nil {
		return nil, errFakeTransport
	}
	return f.air(ctx, id)
}

func (f *fakeProvider) AirQualityByCoordinates(ctx context.Context, c Coordinates) (AirQuality, error) {
	if f.airByCoords == nil {
		return nil, errFakeTransport
	}
	return f.airByCoords(ctx, c)
}

func (f *fakeProvider) MinutelyPrecipitation(ctx context.Context, c Coordinates) (Precipitation, error) {
	if f.minutely == nil {
		return Precipitation{}, errFakeTransport
	}
	return f.minutely(ctx, c)
}

func (f *fakeProvider) SunTimes(ctx context.Context, c Coordinates, date time.Time) (SunTimes, error) {
	if f.sun == nil {
		return SunTimes{}, errFakeTransport
	}
	return f.sun(ctx, c, date)
}

func (f *fakeProvider) SolarRadiation(ctx context.Context, c Coordinates, hours, interval int) ([]SolarForecast, error) {
	if f.solar == nil {
		return nil, errFakeTransport
	}
	return f.solar(ctx, c, hours, interval)
}

// callLog records calls in order across goroutines.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) count(call string) int {
	n := 0
	for _, c := range l.snapshot() {
		if c == call {
			n++
		}
	}
	return n
}

// memCoordinateStore is an in-memory CoordinateStore keyed by remote id.
type memCoordinateStore struct {
	mu   sync.Mutex
	locs map[string]Location
	log  *callLog
}

func newMemCoordinateStore(locs ...Location) *memCoordinateStore {
	s := &memCoordinateStore{locs: make(map[string]Location), log: &callLog{}}
	for _, l := range locs {
		s.locs[l.RemoteID] = l
	}
	return s
}

func (s *memCoordinateStore) LocationByRemoteID(remoteID string) (Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locs[remoteID]
	if !ok {
		return Location{}, ErrLocationNotFound
	}
	return l, nil
}

func (s *memCoordinateStore) UpdateCoordinates(remoteID string, c Coordinates) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locs[remoteID]
	if !ok {
		return ErrLocationNotFound
	}
	l.Latitude, l.Longitude = c.Latitude, c.Longitude
	s.locs[remoteID] = l
	s.log.add("update:" + remoteID)
	return nil
}

// fakeGeocoder returns places from a fixed table keyed by query.
type fakeGeocoder struct {
	places map[string][]Place
	err    error
	log    *callLog
}

func (g *fakeGeocoder) Lookup(_ context.Context, query string, _ int) ([]Place, error) {
	if g.log != nil {
		g.log.add("geocode:" + query)
	}
	if g.err != nil {
		return nil, g.err
	}
	return g.places[query], nil
}

// viewEvent is one call received by recordingView.
type viewEvent struct {
	kind    string
	cycleID uuid.UUID
	snap    Snapshot
	err     error
	cat     Category
	hourly  []HourlyForecast
	aq      AirQuality
	precip  Precipitation
}

// recordingView records every View call. All calls arrive on the loop.
type recordingView struct {
	mu     sync.Mutex
	events []viewEvent
}

func (v *recordingView) add(e viewEvent) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.events = append(v.events, e)
}

func (v *recordingView) all() []viewEvent {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]viewEvent(nil), v.events...)
}

func (v *recordingView) ofKind(kind string) []viewEvent {
	var out []viewEvent
	for _, e := range v.all() {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (v *recordingView) BeginCycle(id uuid.UUID, _ string) {
	v.add(viewEvent{kind: "begin", cycleID: id})
}

func (v *recordingView) RenderMain(id uuid.UUID, snap Snapshot) {
	v.add(viewEvent{kind: "main", cycleID: id, snap: snap})
}

func (v *recordingView) StopRefreshing(id uuid.UUID, err error) {
	v.add(viewEvent{kind: "stop", cycleID: id, err: err})
}

func (v *recordingView) RenderHourly(id uuid.UUID, hourly []HourlyForecast) {
	v.add(viewEvent{kind: "hourly", cycleID: id, hourly: hourly})
}

func (v *recordingView) RenderAirQuality(id uuid.UUID, aq AirQuality) {
	v.add(viewEvent{kind: "air", cycleID: id, aq: aq})
}

func (v *recordingView) RenderPrecipitation(id uuid.UUID, p Precipitation, err error) {
	v.add(viewEvent{kind: "precip", cycleID: id, precip: p, err: err})
}

func (v *recordingView) RenderSun(id uuid.UUID, _ SunTimes) {
	v.add(viewEvent{kind: "sun", cycleID: id})
}

func (v *recordingView) RenderSolar(id uuid.UUID, _ SolarForecast) {
	v.add(viewEvent{kind: "solar", cycleID: id})
}

func (v *recordingView) Unavailable(id uuid.UUID, cat Category) {
	v.add(viewEvent{kind: "unavailable", cycleID: id, cat: cat})
}

// onLoop runs fn on the loop and waits for it.
func onLoop(t *testing.T, l *Loop, fn func()) {
	t.Helper()
	done := make(chan struct{})
	l.Post(func() {
		fn()
		close(done)
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not run task in time")
	}
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

var errBoom = errors.New("boom")
