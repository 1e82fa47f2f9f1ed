package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/weather-dashboard/internal/weather"
)

const (
	// maxConcurrentRefreshes bounds how many locations refresh at once.
	maxConcurrentRefreshes = 4
	refreshTimeout         = 30 * time.Second
)

// Refresher is the part of weather.Service the scheduler drives.
type Refresher interface {
	Locations() ([]weather.Location, error)
	RefreshAndWait(ctx context.Context, name string) (weather.Dashboard, error)
}

// Scheduler periodically refreshes every saved location.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   Refresher
	interval  time.Duration
	cronExpr  string
}

// New creates a new Scheduler. A non-empty cronExpr takes precedence over interval.
func New(service Refresher, interval time.Duration, cronExpr string) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		service:   service,
		interval:  interval,
		cronExpr:  cronExpr,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	job := func() {
		log.Println("INFO: scheduler: running refresh job")
		s.RunOnce(context.Background())
		log.Println("INFO: scheduler: completed refresh job")
	}

	var err error
	if s.cronExpr != "" {
		_, err = s.scheduler.Cron(s.cronExpr).SingletonMode().Do(job)
	} else {
		minutes := int(s.interval.Minutes())
		if minutes <= 0 {
			minutes = 15
		}
		_, err = s.scheduler.Every(minutes).Minutes().SingletonMode().Do(job)
	}
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	if s.cronExpr != "" {
		// Cron jobs wait for their first tick; refresh once right away.
		go job()
	}
	return nil
}

// RunOnce refreshes all saved locations and waits for each refresh indicator
// to clear, or for its timeout.
func (s *Scheduler) RunOnce(ctx context.Context) {
	locs, err := s.service.Locations()
	if err != nil {
		log.Printf("ERROR: scheduler: listing locations: %v", err)
		return
	}
	if len(locs) == 0 {
		log.Println("INFO: scheduler: no locations saved; nothing to refresh")
		return
	}

	var g errgroup.Group
	g.SetLimit(maxConcurrentRefreshes)
	for _, loc := range locs {
		name := loc.Name
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
			defer cancel()

			if _, err := s.service.RefreshAndWait(ctx, name); err != nil {
				log.Printf("WARN: scheduler: refresh failed for %s: %v", name, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
