package weather

import (
	"log"
	"time"

	"github.com/google/uuid"
)

// recorder is the View that writes rendered regions into the dashboard store.
// One recorder serves one location.
type recorder struct {
	store    DashboardStore
	location string
	now      func() time.Time
}

func newRecorder(store DashboardStore, location string, now func() time.Time) *recorder {
	if now == nil {
		now = time.Now
	}
	return &recorder{store: store, location: location, now: now}
}

func (r *recorder) update(cycleID uuid.UUID, fn func(*Dashboard)) {
	if !r.store.Update(r.location, cycleID.String(), fn) {
		log.Printf("DEBUG: recorder: no dashboard entry for %s cycle %s", r.location, cycleID)
	}
}

func (r *recorder) BeginCycle(cycleID uuid.UUID, _ string) {
	r.store.BeginCycle(r.location, cycleID.String(), r.now().UTC())
}

func (r *recorder) RenderMain(cycleID uuid.UUID, snap Snapshot) {
	v := BuildMainView(snap)
	r.update(cycleID, func(d *Dashboard) {
		d.Main = &v
		d.clearUnavailable(CategoryCurrent)
		d.clearUnavailable(CategoryDaily)
	})
}

func (r *recorder) StopRefreshing(cycleID uuid.UUID, err error) {
	r.update(cycleID, func(d *Dashboard) {
		d.Refreshing = false
		if err != nil {
			d.LastError = err.Error()
			d.markUnavailable(CategoryCurrent)
			return
		}
		d.LastError = ""
		d.clearUnavailable(CategoryCurrent)
	})
}

func (r *recorder) RenderHourly(cycleID uuid.UUID, hourly []HourlyForecast) {
	v := BuildHourlyView(hourly)
	r.update(cycleID, func(d *Dashboard) {
		d.Hourly = &v
		d.clearUnavailable(CategoryHourly)
	})
}

func (r *recorder) RenderAirQuality(cycleID uuid.UUID, aq AirQuality) {
	v := BuildAirQualityView(aq)
	r.update(cycleID, func(d *Dashboard) {
		d.AirQuality = &v
		d.clearUnavailable(CategoryAirQuality)
	})
}

func (r *recorder) RenderPrecipitation(cycleID uuid.UUID, p Precipitation, err error) {
	v := BuildPrecipitationView(p, err)
	r.update(cycleID, func(d *Dashboard) {
		d.Precipitation = &v
	})
}

func (r *recorder) RenderSun(cycleID uuid.UUID, sun SunTimes) {
	r.update(cycleID, func(d *Dashboard) {
		d.Sun = &sun
	})
}

func (r *recorder) RenderSolar(cycleID uuid.UUID, solar SolarForecast) {
	v := BuildSolarView(solar)
	r.update(cycleID, func(d *Dashboard) {
		d.Solar = &v
	})
}

func (r *recorder) Unavailable(cycleID uuid.UUID, cat Category) {
	r.update(cycleID, func(d *Dashboard) {
		d.markUnavailable(cat)
	})
}
