// Package refresh periodically rebuilds the occurrence snapshot so the
// expansion horizon keeps moving forward even when nothing is written.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "planner/internal/log"
)

// Reloader is what gets refreshed; *service.EventService satisfies it.
type Reloader interface {
	Reload(ctx context.Context) error
}

type Scheduler struct {
	cron     *cron.Cron
	reloader Reloader
	spec     string

	mu      sync.Mutex
	ctx     context.Context
	lastRun time.Time
	lastErr error
}

// New validates spec (standard five-field cron or a descriptor such as
// "@hourly") and prepares a scheduler in loc.
func New(r Reloader, spec string, loc *time.Location) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	s := &Scheduler{
		reloader: r,
		spec:     spec,
		ctx:      context.Background(),
	}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{})),
	)
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start reloads once right away and then on every schedule tick until ctx
// is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	err := s.RunNow(ctx)
	s.cron.Start()
	appLog.Info("refresh scheduler started", "spec", s.spec)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return err
}

// Stop halts the schedule and waits for a running reload to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunNow performs one reload outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context) error {
	start := time.Now()
	err := s.reloader.Reload(ctx)

	s.mu.Lock()
	s.lastRun = start
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		appLog.Error("refresh failed", err)
		return err
	}
	appLog.Debug("refresh done", "took", time.Since(start))
	return nil
}

// Last reports when the most recent reload ran and how it ended.
func (s *Scheduler) Last() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}

// Next is the time of the next scheduled reload, zero before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	_ = s.RunNow(ctx)
}

// cronLogger routes cron's own messages through the app logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...any) {
	appLog.Error("cron: "+msg, err, kv...)
}
