package cron_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/fwojciec/urlkeep"
	"github.com/fwojciec/urlkeep/cron"
	"github.com/fwojciec/urlkeep/reconcile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reconcileFunc func(ctx context.Context) (*reconcile.Result, error)

func (f reconcileFunc) Reconcile(ctx context.Context) (*reconcile.Result, error) {
	return f(ctx)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestValidateSchedule(t *testing.T) {
	t.Parallel()

	for _, spec := range []string{"*/5 * * * *", "0 3 * * 1", "@hourly"} {
		assert.NoError(t, cron.ValidateSchedule(spec), spec)
	}
	for _, spec := range []string{"", "every minute", "* * * * * *"} {
		assert.Equal(t, urlkeep.EINVALID, urlkeep.ErrorCode(cron.ValidateSchedule(spec)), spec)
	}
}

func TestSweeper_Sweep(t *testing.T) {
	t.Parallel()

	t.Run("runs a pass and logs counts", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		r := reconcileFunc(func(context.Context) (*reconcile.Result, error) {
			return &reconcile.Result{Committed: 2, Failed: 1}, nil
		})
		s := cron.NewSweeper(r, slog.New(slog.NewTextHandler(&buf, nil)))

		ran := s.Sweep(context.Background())

		assert.True(t, ran)
		assert.Contains(t, buf.String(), "committed=2")
		assert.Contains(t, buf.String(), "failed=1")
	})

	t.Run("logs pass errors", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		r := reconcileFunc(func(context.Context) (*reconcile.Result, error) {
			return nil, errors.New("database is locked")
		})
		s := cron.NewSweeper(r, slog.New(slog.NewTextHandler(&buf, nil)))

		assert.True(t, s.Sweep(context.Background()))
		assert.Contains(t, buf.String(), "level=ERROR")
	})

	t.Run("skips overlapping sweep", func(t *testing.T) {
		t.Parallel()

		entered := make(chan struct{})
		release := make(chan struct{})
		r := reconcileFunc(func(context.Context) (*reconcile.Result, error) {
			close(entered)
			<-release
			return &reconcile.Result{}, nil
		})
		s := cron.NewSweeper(r, discard())

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Sweep(context.Background())
		}()
		<-entered

		assert.False(t, s.Sweep(context.Background()))

		close(release)
		wg.Wait()
	})
}

func TestSweeper_Start(t *testing.T) {
	t.Parallel()

	t.Run("rejects invalid schedule", func(t *testing.T) {
		t.Parallel()

		s := cron.NewSweeper(reconcileFunc(nil), discard())

		err := s.Start(context.Background(), "nope")

		assert.Equal(t, urlkeep.EINVALID, urlkeep.ErrorCode(err))
	})

	t.Run("schedules and stops", func(t *testing.T) {
		t.Parallel()

		s := cron.NewSweeper(reconcileFunc(nil), discard())
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		require.NoError(t, s.Start(ctx, "@hourly"))
		assert.False(t, s.Next().IsZero())
		assert.Error(t, s.Start(ctx, "@hourly"))

		s.Stop()
		assert.True(t, s.Next().IsZero())
	})
}
