// Package reconcile drains the pending batch: every queued URL entry is
// claimed under a lease, pre-checked, imported and settled, one independent
// pipeline per entry.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/fwojciec/urlkeep"
	"github.com/fwojciec/urlkeep/importer"
	"github.com/fwojciec/urlkeep/merge"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency is the number of entries imported at once.
const DefaultConcurrency = 8

// DefaultLease bounds a single pipeline. An in-flight entry untouched for
// longer than its lease is treated as abandoned by Recover.
const DefaultLease = 2 * time.Minute

// Outcome is how one entry settled.
type Outcome struct {
	Slot  string
	URL   string
	State urlkeep.ImportState

	// Title is the created record's title, or the existing record's title
	// for duplicates.
	Title string

	Err error
}

// Result summarizes a reconcile pass.
type Result struct {
	Committed  int
	Duplicates int
	Failed     int
	Outcomes   []Outcome
}

func (r *Result) add(o Outcome) {
	switch o.State {
	case urlkeep.StateCommitted:
		r.Committed++
	case urlkeep.StateDuplicate:
		r.Duplicates++
	case urlkeep.StateFailed:
		r.Failed++
	}
	r.Outcomes = append(r.Outcomes, o)
}

// Reconciler imports pending URL entries into the record store.
type Reconciler struct {
	Batches  urlkeep.BatchService
	Records  urlkeep.RecordService
	Importer *importer.Importer
	Logger   *slog.Logger

	// ID is written as the owner of every entry this reconciler claims.
	// Only the owner advances or settles a claimed entry.
	ID string

	// Concurrency bounds simultaneous pipelines. Zero means
	// DefaultConcurrency.
	Concurrency int

	// Lease bounds each pipeline. Zero means DefaultLease.
	Lease time.Duration

	// RetainFailed keeps failed entries in the batch, marked failed with a
	// reason, until cleared. Otherwise they are dropped.
	RetainFailed bool

	// RetainDuplicates keeps entries whose URL was already imported, marked
	// duplicate with the existing title as reason, until cleared.
	// Otherwise they are dropped.
	RetainDuplicates bool

	// Progress, if set, is called with every state an entry enters. It is
	// called from concurrent pipelines.
	Progress func(slot string, state urlkeep.ImportState)

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time

	once sync.Once
	sem  *semaphore.Weighted
}

// NewReconciler creates a new Reconciler with a random ID that retains
// failed and duplicate entries.
func NewReconciler(batches urlkeep.BatchService, records urlkeep.RecordService, imp *importer.Importer, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		Batches:          batches,
		Records:          records,
		Importer:         imp,
		Logger:           logger,
		ID:               uuid.NewString(),
		Concurrency:      DefaultConcurrency,
		Lease:            DefaultLease,
		RetainFailed:     true,
		RetainDuplicates: true,
		Now:              time.Now,
	}
}

func (r *Reconciler) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func (r *Reconciler) lease() time.Duration {
	if r.Lease <= 0 {
		return DefaultLease
	}
	return r.Lease
}

func (r *Reconciler) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *Reconciler) slots() *semaphore.Weighted {
	r.once.Do(func() {
		n := r.Concurrency
		if n <= 0 {
			n = DefaultConcurrency
		}
		r.sem = semaphore.NewWeighted(int64(n))
	})
	return r.sem
}

// claim is a queued entry that this reconciler moved to fetching.
type claim struct {
	slot   string
	source string
	fields map[string]string
}

// Recover resets in-flight entries whose lease expired back to queued,
// whichever reconciler claimed them. Entries still within their lease are
// left to their owner.
func (r *Reconciler) Recover(ctx context.Context) (int, error) {
	now, lease := r.now(), r.lease()
	n := 0
	_, err := r.Batches.UpdateBatch(ctx, func(b *urlkeep.Batch) error {
		n = 0
		for _, e := range b.Entries {
			if !e.State.InFlight() || now.Sub(e.UpdatedAt) < lease {
				continue
			}
			e.State = urlkeep.StateQueued
			e.Reason = ""
			e.Owner = ""
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.logger().Info("recovered in-flight entries", "count", n)
	}
	return n, nil
}

// claimQueued moves up to limit queued URL entries to fetching, owned by
// r, in one atomic update and returns them.
func (r *Reconciler) claimQueued(ctx context.Context, limit int) ([]claim, error) {
	var claims []claim
	_, err := r.Batches.UpdateBatch(ctx, func(b *urlkeep.Batch) error {
		claims = claims[:0]
		for _, slot := range b.Slots() {
			if len(claims) == limit {
				break
			}
			e := b.Entries[slot]
			if !e.IsURL() || (e.State != urlkeep.StateQueued && e.State != "") {
				continue
			}
			e.State = urlkeep.StateFetching
			e.Owner = r.ID
			claims = append(claims, claim{slot: slot, source: e.SourceText, fields: e.Fields})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, c := range claims {
		r.report(c.slot, urlkeep.StateFetching)
	}
	return claims, nil
}

// start claims as many queued entries as there are free pipeline slots
// and passes each to launch. Every launched claim holds one slot until
// run returns.
func (r *Reconciler) start(ctx context.Context, launch func(claim)) (int, error) {
	sem := r.slots()
	free := 0
	for sem.TryAcquire(1) {
		free++
	}
	if free == 0 {
		return 0, nil
	}

	claims, err := r.claimQueued(ctx, free)
	if err != nil {
		sem.Release(int64(free))
		return 0, err
	}
	if unused := free - len(claims); unused > 0 {
		sem.Release(int64(unused))
	}
	for _, c := range claims {
		launch(c)
	}
	return len(claims), nil
}

// Reconcile imports queued entries concurrently until none are left and
// every claimed entry has settled. Entries queued during the pass are
// included. One entry failing never stops the others.
func (r *Reconciler) Reconcile(ctx context.Context) (*Result, error) {
	outcomes := make(chan Outcome)
	launch := func(c claim) {
		go func() { outcomes <- r.run(ctx, c) }()
	}

	result := &Result{}
	running := 0
	var claimErr error
	for {
		if claimErr == nil && ctx.Err() != nil {
			claimErr = ctx.Err()
		}
		if claimErr == nil {
			n, err := r.start(ctx, launch)
			running += n
			claimErr = err
		}
		if running == 0 {
			break
		}
		result.add(<-outcomes)
		running--
	}
	if claimErr != nil {
		return nil, claimErr
	}
	return result, nil
}

// Run imports queued entries as slots free up and the batch changes, until
// ctx is done. Entries submitted while others are in flight start without
// waiting for earlier pipelines to finish. Expired leases are recovered
// once per lease period.
func (r *Reconciler) Run(ctx context.Context) error {
	events := r.Batches.Subscribe(ctx)
	if _, err := r.Recover(ctx); err != nil {
		return err
	}

	var g errgroup.Group
	freed := make(chan struct{}, 1)
	launch := func(c claim) {
		g.Go(func() error {
			r.run(ctx, c)
			select {
			case freed <- struct{}{}:
			default:
			}
			return nil
		})
	}
	start := func() {
		if _, err := r.start(ctx, launch); err != nil && ctx.Err() == nil {
			r.logger().Error("reconcile pass", "err", err)
		}
	}

	if _, err := r.start(ctx, launch); err != nil {
		_ = g.Wait()
		return err
	}

	expiry := time.NewTicker(r.lease())
	defer expiry.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = g.Wait()
			return nil
		case _, ok := <-events:
			if !ok {
				_ = g.Wait()
				return nil
			}
			start()
		case <-freed:
			start()
		case <-expiry.C:
			if _, err := r.Recover(ctx); err != nil && ctx.Err() == nil {
				r.logger().Error("recover expired entries", "err", err)
			}
			start()
		}
	}
}

// run imports c within its lease and settles it. An entry interrupted by
// ctx ending goes back to the queue instead of failing. Settling outlives
// ctx so the batch never keeps an entry this process abandoned.
func (r *Reconciler) run(ctx context.Context, c claim) Outcome {
	defer r.slots().Release(1)

	pctx, cancel := context.WithTimeout(ctx, r.lease())
	out := r.process(pctx, c)
	cancel()

	sctx := context.WithoutCancel(ctx)
	if out.State == urlkeep.StateFailed && ctx.Err() != nil {
		return r.requeue(sctx, c, out)
	}
	return r.settle(sctx, c, out)
}

// process runs one entry's pipeline.
func (r *Reconciler) process(ctx context.Context, c claim) Outcome {
	out := Outcome{Slot: c.slot, URL: c.source}

	target, err := importer.Resolve(urlkeep.ImportRequest{URL: c.source, Fields: c.fields})
	if err != nil {
		return r.failed(out, err)
	}

	if err := importer.Precheck(ctx, r.Records, target); err != nil {
		return r.classify(out, err)
	}

	in, err := r.Importer.Extract(ctx, target, func(s urlkeep.ImportState) {
		r.advance(ctx, c, s)
	})
	if err != nil {
		return r.classify(out, err)
	}

	r.advance(ctx, c, urlkeep.StateMerging)
	rec, err := r.commit(ctx, in)
	if err != nil {
		return r.classify(out, err)
	}

	out.State = urlkeep.StateCommitted
	out.Title = rec.Title
	return out
}

// commit stages and commits the record. A title taken by a sibling pipeline
// between staging and commit is retried with a fresh stage, which picks the
// next free disambiguator.
func (r *Reconciler) commit(ctx context.Context, in *merge.Input) (*urlkeep.Record, error) {
	attempts := r.mergeAttempts()
	var err error
	for range attempts {
		stager := r.Records.Stage()
		var rec *urlkeep.Record
		rec, err = r.Importer.Merge(ctx, *in, stager)
		if err != nil {
			_ = stager.Abort()
			return nil, err
		}
		if _, err = stager.Commit(ctx); err == nil {
			return rec, nil
		}
		if urlkeep.ErrorCode(err) != urlkeep.ECOLLISION {
			return nil, err
		}
	}
	return nil, err
}

func (r *Reconciler) mergeAttempts() int {
	if m := r.Importer.Merger; m != nil && m.MaxAttempts > 0 {
		return m.MaxAttempts
	}
	return merge.DefaultMaxAttempts
}

func (r *Reconciler) classify(out Outcome, err error) Outcome {
	var dup *urlkeep.DuplicateURLError
	if errors.As(err, &dup) {
		out.State = urlkeep.StateDuplicate
		if dup.Existing != nil {
			out.Title = dup.Existing.Title
		}
		out.Err = err
		return out
	}
	return r.failed(out, err)
}

func (r *Reconciler) failed(out Outcome, err error) Outcome {
	out.State = urlkeep.StateFailed
	out.Err = err
	return out
}

// owned returns c's entry if it is still in flight under r's claim.
func (r *Reconciler) owned(b *urlkeep.Batch, c claim) *urlkeep.PendingEntry {
	e, ok := b.Entries[c.slot]
	if !ok || e.SourceText != c.source || e.Owner != r.ID || !e.State.InFlight() {
		return nil
	}
	return e
}

// advance records that c entered state s. Failures are logged; the
// pipeline keeps going.
func (r *Reconciler) advance(ctx context.Context, c claim, s urlkeep.ImportState) {
	moved := false
	_, err := r.Batches.UpdateBatch(ctx, func(b *urlkeep.Batch) error {
		e := r.owned(b, c)
		if e == nil || !e.State.CanTransition(s) {
			return nil
		}
		e.State = s
		moved = true
		return nil
	})
	if err != nil {
		r.logger().Warn("update entry state", "slot", c.slot, "state", s, "err", err)
		return
	}
	if moved {
		r.report(c.slot, s)
	}
}

// settle applies out to a fresh read of the batch, keeping everything
// submitted since the claim. Committed entries are removed. Failed and
// duplicate entries are marked with a reason when retained and removed
// otherwise.
func (r *Reconciler) settle(ctx context.Context, c claim, out Outcome) Outcome {
	log := r.logger().With("slot", c.slot, "url", c.source, "state", out.State)
	switch out.State {
	case urlkeep.StateCommitted:
		log.Info("entry committed", "title", out.Title)
	case urlkeep.StateDuplicate:
		log.Info("entry duplicate", "existing", out.Title)
	default:
		log.Error("entry failed", "code", urlkeep.ErrorCode(out.Err), "err", out.Err)
	}

	_, err := r.Batches.UpdateBatch(ctx, func(b *urlkeep.Batch) error {
		e := r.owned(b, c)
		if e == nil {
			// Removed, replaced or recovered while in flight.
			return nil
		}
		switch {
		case out.State == urlkeep.StateFailed && r.RetainFailed:
			e.Reason = urlkeep.ErrorMessage(out.Err)
		case out.State == urlkeep.StateDuplicate && r.RetainDuplicates:
			e.Reason = duplicateReason(out.Title)
		default:
			delete(b.Entries, c.slot)
			return nil
		}
		e.State = out.State
		e.Owner = ""
		return nil
	})
	if err != nil {
		log.Error("settle entry", "err", err)
		if out.Err == nil {
			out.Err = err
		}
	}
	r.report(c.slot, out.State)
	return out
}

func duplicateReason(title string) string {
	if title == "" {
		return "already imported"
	}
	return fmt.Sprintf("already imported as %q", title)
}

// requeue returns an interrupted entry to the queue for a later pass.
func (r *Reconciler) requeue(ctx context.Context, c claim, out Outcome) Outcome {
	_, err := r.Batches.UpdateBatch(ctx, func(b *urlkeep.Batch) error {
		if e := r.owned(b, c); e != nil {
			e.State = urlkeep.StateQueued
			e.Owner = ""
		}
		return nil
	})
	if err != nil {
		r.logger().Error("requeue entry", "slot", c.slot, "err", err)
	} else {
		r.logger().Info("entry interrupted", "slot", c.slot, "url", c.source)
	}
	out.State = urlkeep.StateQueued
	r.report(c.slot, urlkeep.StateQueued)
	return out
}

func (r *Reconciler) report(slot string, s urlkeep.ImportState) {
	if r.Progress != nil {
		r.Progress(slot, s)
	}
}

// Clear removes every entry in one of states and returns how many were
// removed.
func Clear(ctx context.Context, batches urlkeep.BatchService, states ...urlkeep.ImportState) (int, error) {
	n := 0
	_, err := batches.UpdateBatch(ctx, func(b *urlkeep.Batch) error {
		n = 0
		for slot, e := range b.Entries {
			if slices.Contains(states, e.State) {
				delete(b.Entries, slot)
				n++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// ClearFailed removes every entry marked failed.
func ClearFailed(ctx context.Context, batches urlkeep.BatchService) (int, error) {
	return Clear(ctx, batches, urlkeep.StateFailed)
}

// ClearDuplicates removes every entry marked duplicate.
func ClearDuplicates(ctx context.Context, batches urlkeep.BatchService) (int, error) {
	return Clear(ctx, batches, urlkeep.StateDuplicate)
}
