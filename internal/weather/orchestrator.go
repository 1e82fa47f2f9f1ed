package weather

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
)

const (
	maxDailyEntries  = 15
	maxHourlyEntries = 24
)

// View receives the results of a fetch cycle. All methods are called on the
// orchestrator's Loop and only for the cycle that is current at that moment.
type View interface {
	BeginCycle(cycleID uuid.UUID, locationName string)
	// RenderMain fires once per cycle, when current conditions and the daily
	// forecast have both arrived.
	RenderMain(cycleID uuid.UUID, snap Snapshot)
	// StopRefreshing fires once current conditions reach a terminal outcome.
	StopRefreshing(cycleID uuid.UUID, err error)
	RenderHourly(cycleID uuid.UUID, hourly []HourlyForecast)
	RenderAirQuality(cycleID uuid.UUID, aq AirQuality)
	// RenderPrecipitation fires whenever the nowcast endpoint was consulted;
	// err is set when it failed and the region should show a placeholder.
	RenderPrecipitation(cycleID uuid.UUID, p Precipitation, err error)
	RenderSun(cycleID uuid.UUID, sun SunTimes)
	RenderSolar(cycleID uuid.UUID, solar SolarForecast)
	// Unavailable reports a category whose fallback chain was exhausted.
	Unavailable(cycleID uuid.UUID, cat Category)
}

// OrchestratorConfig tunes the coordinate-keyed enrichment requests.
type OrchestratorConfig struct {
	SolarHours    int
	SolarInterval int
	Now           func() time.Time
}

// Orchestrator fans out the category fetches for one view and reconciles
// their arrivals. A new cycle supersedes the previous one; late results of a
// superseded cycle are dropped.
type Orchestrator struct {
	provider Provider
	resolver coordinateSource
	loop     *Loop
	view     View
	cfg      OrchestratorConfig

	daily  Chain[[]DailyForecast]
	hourly Chain[[]HourlyForecast]
	air    Chain[AirQuality]

	current *Cycle // loop-owned
	retired bool   // loop-owned

	started   *atomic.Int64
	discarded *atomic.Int64
}

// NewOrchestrator creates an orchestrator that renders into view.
func NewOrchestrator(provider Provider, resolver *CoordinateResolver, loop *Loop, view View, cfg OrchestratorConfig) *Orchestrator {
	if cfg.SolarHours <= 0 {
		cfg.SolarHours = 1
	}
	if cfg.SolarInterval <= 0 {
		cfg.SolarInterval = 60
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	o := &Orchestrator{
		provider:  provider,
		loop:      loop,
		view:      view,
		cfg:       cfg,
		daily:     dailyChain(provider),
		hourly:    hourlyChain(provider),
		air:       airQualityChain(provider),
		started:   atomic.NewInt64(0),
		discarded: atomic.NewInt64(0),
	}
	if resolver != nil {
		o.resolver = resolver
	}
	return o
}

// Cycle is one fetch pass for one location.
type Cycle struct {
	ID         uuid.UUID
	LocationID string
	Name       string

	coords  coordinateSource
	arrival ArrivalState
	snap    Snapshot

	mainRendered bool
	delivered    map[Category]bool
	done         chan struct{}
	closed       bool
}

// Done is closed once the refresh indicator for this cycle is cleared, or
// when the cycle is superseded before that happens.
func (c *Cycle) Done() <-chan struct{} { return c.done }

func (c *Cycle) finish() {
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}

// StartCycle begins a fetch cycle and returns immediately.
func (o *Orchestrator) StartCycle(ctx context.Context, locationID, name string) *Cycle {
	c := &Cycle{
		ID:         uuid.New(),
		LocationID: locationID,
		Name:       name,
		snap:       Snapshot{LocationName: name},
		delivered:  make(map[Category]bool),
		done:       make(chan struct{}),
	}
	if o.resolver != nil {
		c.coords = &onceResolver{next: o.resolver}
	}
	o.started.Inc()

	// Posted before any fetch starts, so the loop sees the cycle become
	// current before any of its results.
	o.loop.Post(func() {
		if o.retired {
			c.finish()
			return
		}
		if prev := o.current; prev != nil {
			prev.finish()
		}
		o.current = c
		o.view.BeginCycle(c.ID, name)
	})

	log.Printf("DEBUG: orchestrator: cycle %s started for %s (%s)", c.ID, name, locationID)

	go o.fetchCurrent(ctx, c)
	go o.fetchDaily(ctx, c)
	go o.fetchHourly(ctx, c)
	go o.fetchAirQuality(ctx, c)
	go o.fetchPrecipitation(ctx, c)
	go o.fetchSun(ctx, c)
	go o.fetchSolar(ctx, c)

	return c
}

// retire drops the current cycle and ignores every cycle started later.
// Must run on the loop.
func (o *Orchestrator) retire() {
	o.retired = true
	if o.current != nil {
		o.current.finish()
		o.current = nil
	}
}

// Stats returns the number of cycles started and of stale results discarded.
func (o *Orchestrator) Stats() (started, discarded int64) {
	return o.started.Load(), o.discarded.Load()
}

// deliver runs fn on the loop if c is still current and cat has not been
// delivered in this cycle yet.
func (o *Orchestrator) deliver(c *Cycle, cat Category, fn func()) {
	o.loop.Post(func() {
		if o.current != c {
			o.discarded.Inc()
			log.Printf("DEBUG: orchestrator: dropping %s result of stale cycle %s", cat, c.ID)
			return
		}
		if c.delivered[cat] {
			return
		}
		c.delivered[cat] = true
		fn()
	})
}

// join renders the main display the first time current and daily are both present.
func (o *Orchestrator) join(c *Cycle) {
	if c.mainRendered || !c.arrival.Current || !c.arrival.Daily {
		return
	}
	c.mainRendered = true
	o.view.RenderMain(c.ID, c.snap)
}

func (o *Orchestrator) fetchCurrent(ctx context.Context, c *Cycle) {
	cur, err := o.provider.CurrentConditions(ctx, c.LocationID)
	if err != nil {
		log.Printf("WARN: orchestrator: current conditions for %s failed: %v", c.Name, err)
	}
	o.deliver(c, CategoryCurrent, func() {
		if err == nil {
			c.snap.Current = &cur
			c.arrival.Current = true
			o.join(c)
		}
		o.view.StopRefreshing(c.ID, err)
		c.finish()
	})
}

func (o *Orchestrator) fetchDaily(ctx context.Context, c *Cycle) {
	daily, err := o.daily.Fetch(ctx, c.coords, c.LocationID)
	if err != nil {
		log.Printf("WARN: orchestrator: %v", err)
	}
	o.deliver(c, CategoryDaily, func() {
		if err != nil {
			o.view.Unavailable(c.ID, CategoryDaily)
			return
		}
		if len(daily) > maxDailyEntries {
			daily = daily[:maxDailyEntries]
		}
		c.snap.Daily = daily
		c.arrival.Daily = true
		o.join(c)
	})
}

func (o *Orchestrator) fetchHourly(ctx context.Context, c *Cycle) {
	hourly, err := o.hourly.Fetch(ctx, c.coords, c.LocationID)
	if err != nil {
		log.Printf("WARN: orchestrator: %v", err)
	}
	o.deliver(c, CategoryHourly, func() {
		if err != nil {
			o.view.Unavailable(c.ID, CategoryHourly)
			return
		}
		if len(hourly) > maxHourlyEntries {
			hourly = hourly[:maxHourlyEntries]
		}
		c.snap.Hourly = hourly
		o.view.RenderHourly(c.ID, hourly)
	})
}

func (o *Orchestrator) fetchAirQuality(ctx context.Context, c *Cycle) {
	aq, err := o.air.Fetch(ctx, c.coords, c.LocationID)
	if err != nil {
		log.Printf("WARN: orchestrator: %v", err)
	}
	o.deliver(c, CategoryAirQuality, func() {
		if err != nil {
			o.view.Unavailable(c.ID, CategoryAirQuality)
			return
		}
		c.arrival.AirQuality = true
		o.view.RenderAirQuality(c.ID, aq)
	})
}

// coordinates resolves the cycle's coordinates for the enrichment categories.
// ok is false when they should be skipped silently.
func (o *Orchestrator) coordinates(ctx context.Context, c *Cycle, cat Category) (Coordinates, bool) {
	if c.coords == nil {
		return Coordinates{}, false
	}
	coords, err := c.coords.Resolve(ctx, c.LocationID)
	if err != nil {
		log.Printf("INFO: orchestrator: skipping %s for %s: %v", cat, c.Name, err)
		return Coordinates{}, false
	}
	return coords, true
}

func (o *Orchestrator) fetchPrecipitation(ctx context.Context, c *Cycle) {
	coords, ok := o.coordinates(ctx, c, CategoryPrecipitation)
	if !ok {
		return
	}
	p, err := o.provider.MinutelyPrecipitation(ctx, coords)
	if err != nil {
		log.Printf("WARN: orchestrator: precipitation for %s failed: %v", c.Name, err)
	}
	o.deliver(c, CategoryPrecipitation, func() {
		o.view.RenderPrecipitation(c.ID, p, err)
	})
}

func (o *Orchestrator) fetchSun(ctx context.Context, c *Cycle) {
	coords, ok := o.coordinates(ctx, c, CategorySun)
	if !ok {
		return
	}
	sun, err := o.provider.SunTimes(ctx, coords, o.cfg.Now())
	if err != nil {
		log.Printf("WARN: orchestrator: sunrise/sunset for %s failed: %v", c.Name, err)
		return
	}
	o.deliver(c, CategorySun, func() {
		o.view.RenderSun(c.ID, sun)
	})
}

func (o *Orchestrator) fetchSolar(ctx context.Context, c *Cycle) {
	coords, ok := o.coordinates(ctx, c, CategorySolar)
	if !ok {
		return
	}
	forecasts, err := o.provider.SolarRadiation(ctx, coords, o.cfg.SolarHours, o.cfg.SolarInterval)
	if err == nil && len(forecasts) == 0 {
		err = errors.New("empty solar forecast")
	}
	if err != nil {
		log.Printf("WARN: orchestrator: solar forecast for %s failed: %v", c.Name, err)
		return
	}
	o.deliver(c, CategorySolar, func() {
		o.view.RenderSolar(c.ID, forecasts[0])
	})
}
