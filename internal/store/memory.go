package store

import (
	"sync"
	"time"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

var (
	// ErrNotFound is returned when no dashboard is available for a given location.
	ErrNotFound = weather.ErrNoDashboard
)

// DashboardHistory holds a time-ordered list of dashboards for a location.
type DashboardHistory struct {
	Dashboards []weather.Dashboard
}

// MemoryStore is a concurrency-safe in-memory store of rendered dashboards.
type MemoryStore struct {
	mu sync.RWMutex

	// key: location name, value: history
	data map[string]*DashboardHistory

	// retention configuration
	maxHistory int           // max number of dashboards per location
	maxAge     time.Duration // optional max age for dashboards

	now func() time.Time
}

var _ weather.DashboardStore = (*MemoryStore)(nil)

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*DashboardHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// BeginCycle appends a new entry for cycleID. It starts as a copy of the
// previous dashboard, so regions keep showing until the new cycle replaces
// them, and is marked as refreshing.
func (s *MemoryStore) BeginCycle(location, cycleID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[location]
	if !ok {
		history = &DashboardHistory{}
		s.data[location] = history
	}

	var next weather.Dashboard
	if n := len(history.Dashboards); n > 0 {
		next = history.Dashboards[n-1].Clone()
	}
	next.Location = location
	next.CycleID = cycleID
	next.Refreshing = true
	next.LastError = ""
	next.Timestamp = at.UTC()

	history.Dashboards = append(history.Dashboards, next)
	s.enforceRetention(history)
}

func (s *MemoryStore) enforceRetention(history *DashboardHistory) {
	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Dashboards) > s.maxHistory {
		over := len(history.Dashboards) - s.maxHistory
		history.Dashboards = history.Dashboards[over:]
	}

	// Enforce retention by age. The newest entry always stays.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Dashboards)-1; i++ {
			if !history.Dashboards[i].Timestamp.Before(cutoff) {
				break
			}
		}
		if i > 0 {
			history.Dashboards = history.Dashboards[i:]
		}
	}
}

// Update applies fn to the newest dashboard of location if it belongs to
// cycleID. It reports whether fn ran.
func (s *MemoryStore) Update(location, cycleID string, fn func(*weather.Dashboard)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[location]
	if !ok || len(history.Dashboards) == 0 {
		return false
	}
	latest := &history.Dashboards[len(history.Dashboards)-1]
	if latest.CycleID != cycleID {
		return false
	}
	fn(latest)
	return true
}

// GetLatest returns the most recent dashboard for a location.
func (s *MemoryStore) GetLatest(location string) (weather.Dashboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[location]
	if !ok || len(history.Dashboards) == 0 {
		return weather.Dashboard{}, ErrNotFound
	}
	return history.Dashboards[len(history.Dashboards)-1].Clone(), nil
}

// GetRange returns all dashboards for a location started between from and to (inclusive).
func (s *MemoryStore) GetRange(location string, from, to time.Time) ([]weather.Dashboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[location]
	if !ok || len(history.Dashboards) == 0 {
		return nil, ErrNotFound
	}

	var result []weather.Dashboard
	for _, d := range history.Dashboards {
		if !d.Timestamp.Before(from) && !d.Timestamp.After(to) {
			result = append(result, d.Clone())
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}

// Forget drops every dashboard of location.
func (s *MemoryStore) Forget(location string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, location)
}
