package weather

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultSearchLimit is the number of matches a location search returns.
	DefaultSearchLimit = 20
)

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// Configured is false when the provider has no API key; refreshes are
	// rejected with ErrNotConfigured.
	Configured bool
	// NameGeocoder, when set, resolves coordinates from the saved location
	// name if the provider cannot geocode the location id.
	NameGeocoder Geocoder
	Orchestrator OrchestratorConfig
}

// Service manages saved locations and drives one Orchestrator per location.
// All orchestrators share one Loop, so every dashboard write is serialized.
type Service struct {
	locations  LocationStore
	dashboards DashboardStore
	provider   Provider
	geocoder   Geocoder
	resolver   *CoordinateResolver
	loop       *Loop
	cfg        ServiceConfig

	mu            sync.Mutex
	orchestrators map[string]*Orchestrator // by location name
}

// NewService creates a new Service. Close releases its loop.
func NewService(locations LocationStore, dashboards DashboardStore, provider Provider, geocoder Geocoder, cfg ServiceConfig) *Service {
	var resolver *CoordinateResolver
	if locations != nil {
		resolver = NewCoordinateResolver(locations, geocoder)
		if cfg.NameGeocoder != nil {
			resolver.WithNameFallback(cfg.NameGeocoder)
		}
	}
	return &Service{
		locations:     locations,
		dashboards:    dashboards,
		provider:      provider,
		geocoder:      geocoder,
		resolver:      resolver,
		loop:          NewLoop(0),
		cfg:           cfg,
		orchestrators: make(map[string]*Orchestrator),
	}
}

// Close stops the shared loop. Results arriving afterwards are dropped.
func (s *Service) Close() {
	s.loop.Close()
}

func (s *Service) orchestrator(name string) *Orchestrator {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orchestrators[name]
	if !ok {
		view := newRecorder(s.dashboards, name, s.cfg.Orchestrator.Now)
		o = NewOrchestrator(s.provider, s.resolver, s.loop, view, s.cfg.Orchestrator)
		s.orchestrators[name] = o
	}
	return o
}

// Refresh starts a fetch cycle for the named location and returns without
// waiting for it. A refresh already in flight for the location is superseded.
func (s *Service) Refresh(ctx context.Context, name string) (*Cycle, error) {
	if !s.cfg.Configured {
		return nil, ErrNotConfigured
	}
	loc, err := s.locations.LocationByName(name)
	if err != nil {
		return nil, err
	}

	log.Printf("DEBUG: Refresh called for %s (%s)", loc.Name, loc.RemoteID)
	// The cycle outlives the caller's request.
	return s.orchestrator(loc.Name).StartCycle(context.WithoutCancel(ctx), loc.RemoteID, loc.Name), nil
}

// RefreshAndWait refreshes the named location and waits until current
// conditions have settled or ctx is done. It returns the dashboard as it
// stands at that moment.
func (s *Service) RefreshAndWait(ctx context.Context, name string) (Dashboard, error) {
	c, err := s.Refresh(ctx, name)
	if err != nil {
		return Dashboard{}, err
	}
	select {
	case <-c.Done():
	case <-ctx.Done():
		return Dashboard{}, ctx.Err()
	}
	return s.dashboards.GetLatest(name)
}

// Dashboard returns the latest dashboard of the named location.
func (s *Service) Dashboard(name string) (Dashboard, error) {
	if _, err := s.locations.LocationByName(name); err != nil {
		return Dashboard{}, err
	}
	return s.dashboards.GetLatest(name)
}

// DefaultLocation returns the preferred location: the stored default when it
// still exists, else the first saved location.
func (s *Service) DefaultLocation() (Location, error) {
	name, err := s.locations.DefaultLocation()
	if err != nil {
		return Location{}, err
	}
	if name != "" {
		loc, err := s.locations.LocationByName(name)
		switch {
		case err == nil:
			return loc, nil
		case !errors.Is(err, ErrLocationNotFound):
			return Location{}, err
		}
		log.Printf("WARN: default location %q no longer exists; using first saved location", name)
	}

	all, err := s.locations.List()
	if err != nil {
		return Location{}, err
	}
	if len(all) == 0 {
		return Location{}, ErrNoLocation
	}
	return all[0], nil
}

// DefaultDashboard returns the dashboard of the default location.
func (s *Service) DefaultDashboard() (Location, Dashboard, error) {
	loc, err := s.DefaultLocation()
	if err != nil {
		return Location{}, Dashboard{}, err
	}
	d, err := s.dashboards.GetLatest(loc.Name)
	return loc, d, err
}

// Search looks up places matching query.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty search query")
	}
	if s.geocoder == nil {
		return nil, ErrNotConfigured
	}
	if limit <= 0 || limit > DefaultSearchLimit {
		limit = DefaultSearchLimit
	}
	return s.geocoder.Lookup(ctx, query, limit)
}

// AddLocation saves place and starts its first refresh. A place whose remote id
// is already saved is rejected with ErrLocationExists.
func (s *Service) AddLocation(ctx context.Context, place Place) (Location, error) {
	if place.RemoteID == "" || place.Name == "" {
		return Location{}, fmt.Errorf("place needs an id and a name")
	}

	_, err := s.locations.LocationByRemoteID(place.RemoteID)
	switch {
	case err == nil:
		return Location{}, fmt.Errorf("%w: %s", ErrLocationExists, place.RemoteID)
	case !errors.Is(err, ErrLocationNotFound):
		return Location{}, err
	}

	loc := Location{Name: place.Name, RemoteID: place.RemoteID}
	if c := (Coordinates{Latitude: place.Latitude, Longitude: place.Longitude}); c.Valid() {
		loc.Latitude, loc.Longitude = c.Latitude, c.Longitude
	}
	loc, err = s.locations.Insert(loc)
	if err != nil {
		return Location{}, err
	}
	log.Printf("INFO: added location %s (%s)", loc.Name, loc.RemoteID)

	if _, err := s.Refresh(ctx, loc.Name); err != nil {
		log.Printf("WARN: initial refresh for %s: %v", loc.Name, err)
	}
	return loc, nil
}

// RemoveLocation deletes the named location and its dashboards.
func (s *Service) RemoveLocation(name string) error {
	if err := s.locations.Delete(name); err != nil {
		return err
	}
	s.mu.Lock()
	o := s.orchestrators[name]
	delete(s.orchestrators, name)
	s.mu.Unlock()

	// Queued behind any cycle start already posted, so none of them can
	// recreate the history after it is forgotten.
	forgotten := make(chan struct{})
	s.loop.Post(func() {
		if o != nil {
			o.retire()
		}
		s.dashboards.Forget(name)
		close(forgotten)
	})
	select {
	case <-forgotten:
	case <-s.loop.done:
		s.dashboards.Forget(name)
	}
	log.Printf("INFO: removed location %s", name)
	return nil
}

// SetDefault makes the named location the default.
func (s *Service) SetDefault(name string) error {
	if _, err := s.locations.LocationByName(name); err != nil {
		return err
	}
	return s.locations.SetDefaultLocation(name)
}

// Locations lists saved locations in creation order.
func (s *Service) Locations() ([]Location, error) {
	return s.locations.List()
}

// History returns the dashboards of the named location between from and to.
func (s *Service) History(name string, from, to time.Time) ([]Dashboard, error) {
	if _, err := s.locations.LocationByName(name); err != nil {
		return nil, err
	}
	return s.dashboards.GetRange(name, from, to)
}

// Stats sums the cycle counters of all live orchestrators.
func (s *Service) Stats() (started, discarded int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orchestrators {
		st, d := o.Stats()
		started += st
		discarded += d
	}
	return started, discarded
}
