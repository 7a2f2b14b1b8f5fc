package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/fwojciec/urlkeep"
	"github.com/fwojciec/urlkeep/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(text string) *urlkeep.PendingEntry {
	return &urlkeep.PendingEntry{SourceText: text}
}

func TestBatchService_AddEntries(t *testing.T) {
	t.Parallel()

	t.Run("adds queued entries and bumps version", func(t *testing.T) {
		t.Parallel()

		svc := sqlite.NewBatchService(setupTestDB(t))
		ctx := context.Background()

		b, err := svc.AddEntries(ctx, map[string]*urlkeep.PendingEntry{
			"a": entry("https://example.com/a"),
			"b": {SourceText: "https://example.com/b", Fields: map[string]string{"tags": "x"}},
		})

		require.NoError(t, err)
		assert.Equal(t, int64(1), b.Version)
		assert.Equal(t, []string{"a", "b"}, b.Slots())

		got, err := svc.FindBatch(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Version)
		assert.Equal(t, urlkeep.StateQueued, got.Entries["a"].State)
		assert.Equal(t, map[string]string{"tags": "x"}, got.Entries["b"].Fields)
		assert.False(t, got.Entries["a"].UpdatedAt.IsZero())
	})

	t.Run("rejects invalid state", func(t *testing.T) {
		t.Parallel()

		svc := sqlite.NewBatchService(setupTestDB(t))

		_, err := svc.AddEntries(context.Background(), map[string]*urlkeep.PendingEntry{
			"a": {SourceText: "x", State: "bogus"},
		})

		assert.Equal(t, urlkeep.EINVALID, urlkeep.ErrorCode(err))
	})
}

func TestBatchService_UpdateBatch(t *testing.T) {
	t.Parallel()

	t.Run("no-op update keeps version", func(t *testing.T) {
		t.Parallel()

		svc := sqlite.NewBatchService(setupTestDB(t))
		ctx := context.Background()
		_, err := svc.AddEntries(ctx, map[string]*urlkeep.PendingEntry{"a": entry("x")})
		require.NoError(t, err)

		b, err := svc.UpdateBatch(ctx, func(b *urlkeep.Batch) error { return nil })

		require.NoError(t, err)
		assert.Equal(t, int64(1), b.Version)
	})

	t.Run("error from fn writes nothing", func(t *testing.T) {
		t.Parallel()

		svc := sqlite.NewBatchService(setupTestDB(t))
		ctx := context.Background()
		_, err := svc.AddEntries(ctx, map[string]*urlkeep.PendingEntry{"a": entry("x")})
		require.NoError(t, err)

		_, err = svc.UpdateBatch(ctx, func(b *urlkeep.Batch) error {
			delete(b.Entries, "a")
			return urlkeep.Errorf(urlkeep.EINVALID, "nope")
		})
		require.Error(t, err)

		got, err := svc.FindBatch(ctx)
		require.NoError(t, err)
		assert.Contains(t, got.Entries, "a")
		assert.Equal(t, int64(1), got.Version)
	})

	t.Run("removes and modifies entries", func(t *testing.T) {
		t.Parallel()

		svc := sqlite.NewBatchService(setupTestDB(t))
		ctx := context.Background()
		_, err := svc.AddEntries(ctx, map[string]*urlkeep.PendingEntry{"a": entry("x"), "b": entry("y")})
		require.NoError(t, err)

		b, err := svc.UpdateBatch(ctx, func(b *urlkeep.Batch) error {
			delete(b.Entries, "a")
			b.Entries["b"].State = urlkeep.StateFailed
			b.Entries["b"].Reason = "HTTP 404"
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, int64(2), b.Version)
		got, err := svc.FindBatch(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, got.Slots())
		assert.Equal(t, urlkeep.StateFailed, got.Entries["b"].State)
		assert.Equal(t, "HTTP 404", got.Entries["b"].Reason)
	})
}

func TestBatchService_Owner(t *testing.T) {
	t.Parallel()

	svc := sqlite.NewBatchService(setupTestDB(t))
	ctx := context.Background()
	_, err := svc.AddEntries(ctx, map[string]*urlkeep.PendingEntry{"a": entry("https://example.com/")})
	require.NoError(t, err)

	b, err := svc.UpdateBatch(ctx, func(b *urlkeep.Batch) error {
		b.Entries["a"].Owner = "worker-1"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), b.Version)

	got, err := svc.FindBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "worker-1", got.Entries["a"].Owner)
}

func TestBatchService_WriteBatch(t *testing.T) {
	t.Parallel()

	svc := sqlite.NewBatchService(setupTestDB(t))
	ctx := context.Background()
	_, err := svc.AddEntries(ctx, map[string]*urlkeep.PendingEntry{"a": entry("x")})
	require.NoError(t, err)

	read, err := svc.FindBatch(ctx)
	require.NoError(t, err)
	stale := read.Clone()

	read.Entries["b"] = entry("y")
	written, err := svc.WriteBatch(ctx, read)
	require.NoError(t, err)
	assert.Equal(t, int64(2), written.Version)

	stale.Entries["c"] = entry("z")
	_, err = svc.WriteBatch(ctx, stale)
	assert.Equal(t, urlkeep.ECONFLICT, urlkeep.ErrorCode(err))
}

func TestBatchService_ReplaceBatch(t *testing.T) {
	t.Parallel()

	svc := sqlite.NewBatchService(setupTestDB(t))
	ctx := context.Background()
	_, err := svc.AddEntries(ctx, map[string]*urlkeep.PendingEntry{"a": entry("x"), "b": entry("y")})
	require.NoError(t, err)

	b, err := svc.ReplaceBatch(ctx, map[string]*urlkeep.PendingEntry{"c": entry("z")})

	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, b.Slots())

	b, err = svc.ReplaceBatch(ctx, nil)
	require.NoError(t, err)
	assert.True(t, b.Drained())
}

func TestBatchService_Subscribe(t *testing.T) {
	t.Parallel()

	t.Run("delivers event after commit", func(t *testing.T) {
		t.Parallel()

		svc := sqlite.NewBatchService(setupTestDB(t))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		events := svc.Subscribe(ctx)

		_, err := svc.AddEntries(ctx, map[string]*urlkeep.PendingEntry{"a": entry("x")})
		require.NoError(t, err)

		select {
		case ev := <-events:
			assert.Equal(t, int64(1), ev.Version)
			assert.Equal(t, []string{"a"}, ev.Slots)
		case <-time.After(time.Second):
			t.Fatal("no event")
		}
	})

	t.Run("coalesces to latest event", func(t *testing.T) {
		t.Parallel()

		svc := sqlite.NewBatchService(setupTestDB(t))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		events := svc.Subscribe(ctx)

		for _, slot := range []string{"a", "b", "c"} {
			_, err := svc.AddEntries(ctx, map[string]*urlkeep.PendingEntry{slot: entry(slot)})
			require.NoError(t, err)
		}

		ev := <-events
		assert.Equal(t, int64(3), ev.Version)
	})

	t.Run("closes channel when context ends", func(t *testing.T) {
		t.Parallel()

		svc := sqlite.NewBatchService(setupTestDB(t))
		ctx, cancel := context.WithCancel(context.Background())
		events := svc.Subscribe(ctx)
		cancel()

		select {
		case _, ok := <-events:
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("channel not closed")
		}
	})

	t.Run("no event for no-op update", func(t *testing.T) {
		t.Parallel()

		svc := sqlite.NewBatchService(setupTestDB(t))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		events := svc.Subscribe(ctx)

		_, err := svc.UpdateBatch(ctx, func(*urlkeep.Batch) error { return nil })
		require.NoError(t, err)

		select {
		case ev := <-events:
			t.Fatalf("unexpected event %+v", ev)
		case <-time.After(50 * time.Millisecond):
		}
	})
}
