// Package cron schedules periodic reconcile passes so entries whose change
// events were missed are still imported.
package cron

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fwojciec/urlkeep"
	"github.com/fwojciec/urlkeep/reconcile"
	"github.com/robfig/cron/v3"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule returns EINVALID if spec is not a five-field cron
// expression or descriptor such as @hourly.
func ValidateSchedule(spec string) error {
	if _, err := parser.Parse(spec); err != nil {
		return urlkeep.WrapError(urlkeep.EINVALID, err, "invalid sweep schedule %q", spec)
	}
	return nil
}

// Reconciler runs one reconcile pass.
type Reconciler interface {
	Reconcile(ctx context.Context) (*reconcile.Result, error)
}

// Sweeper runs reconcile passes on a cron schedule. A pass that would
// overlap a running one is skipped.
type Sweeper struct {
	reconciler Reconciler
	logger     *slog.Logger
	cron       *cron.Cron

	mu       sync.Mutex
	entryID  cron.EntryID
	running  bool
	sweeping bool
}

// NewSweeper creates a new Sweeper.
func NewSweeper(r Reconciler, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		reconciler: r,
		logger:     logger,
		cron:       cron.New(cron.WithParser(parser)),
	}
}

// Start schedules sweeps until ctx is done or Stop is called.
func (s *Sweeper) Start(ctx context.Context, spec string) error {
	if err := ValidateSchedule(spec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return urlkeep.Errorf(urlkeep.EINVALID, "sweeper already started")
	}

	id, err := s.cron.AddFunc(spec, func() { s.Sweep(ctx) })
	if err != nil {
		return urlkeep.WrapError(urlkeep.EINVALID, err, "failed to schedule sweep")
	}
	s.entryID = id
	s.cron.Start()
	s.running = true
	s.logger.Info("sweeper started", "schedule", spec, "next", s.cron.Entry(id).Next)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop stops scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("sweeper stopped")
}

// Next returns when the next sweep runs, or the zero time if stopped.
func (s *Sweeper) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// Sweep runs one reconcile pass now. It returns false without running if a
// sweep is already in progress.
func (s *Sweeper) Sweep(ctx context.Context) bool {
	s.mu.Lock()
	if s.sweeping {
		s.mu.Unlock()
		s.logger.Debug("sweep skipped, previous sweep still running")
		return false
	}
	s.sweeping = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.sweeping = false
		s.mu.Unlock()
	}()

	begin := time.Now()
	result, err := s.reconciler.Reconcile(ctx)
	if err != nil {
		s.logger.Error("sweep", "err", err)
		return true
	}
	s.logger.Info("sweep",
		"committed", result.Committed,
		"duplicates", result.Duplicates,
		"failed", result.Failed,
		"duration", time.Since(begin),
	)
	return true
}
