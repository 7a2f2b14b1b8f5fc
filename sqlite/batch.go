package sqlite

import (
	"context"
	"encoding/json"
	"maps"
	"sort"
	"sync"

	"github.com/fwojciec/urlkeep"
)

var _ urlkeep.BatchService = (*BatchService)(nil)

// BatchService implements urlkeep.BatchService using SQLite. Every change
// runs in one transaction that also bumps the batch version, and
// subscribers are told once the transaction commits. Changes that leave
// the batch as it was neither bump the version nor notify.
type BatchService struct {
	db *DB

	mu   sync.Mutex
	subs map[chan urlkeep.BatchEvent]struct{}
}

// NewBatchService creates a new BatchService.
func NewBatchService(db *DB) *BatchService {
	return &BatchService{db: db, subs: make(map[chan urlkeep.BatchEvent]struct{})}
}

// FindBatch reads the current batch.
func (s *BatchService) FindBatch(ctx context.Context) (*urlkeep.Batch, error) {
	return readBatch(ctx, s.db)
}

// ReplaceBatch replaces all entries.
func (s *BatchService) ReplaceBatch(ctx context.Context, entries map[string]*urlkeep.PendingEntry) (*urlkeep.Batch, error) {
	return s.UpdateBatch(ctx, func(b *urlkeep.Batch) error {
		b.Entries = cloneEntries(entries)
		return nil
	})
}

// AddEntries adds entries, replacing any with the same slot.
func (s *BatchService) AddEntries(ctx context.Context, entries map[string]*urlkeep.PendingEntry) (*urlkeep.Batch, error) {
	return s.UpdateBatch(ctx, func(b *urlkeep.Batch) error {
		maps.Copy(b.Entries, cloneEntries(entries))
		return nil
	})
}

// UpdateBatch applies fn to the latest batch inside a transaction. fn must
// not call back into the database: the single connection is held by the
// transaction until fn returns.
func (s *BatchService) UpdateBatch(ctx context.Context, fn func(b *urlkeep.Batch) error) (*urlkeep.Batch, error) {
	return s.update(ctx, nil, fn)
}

// WriteBatch writes b if nothing changed since b was read.
func (s *BatchService) WriteBatch(ctx context.Context, b *urlkeep.Batch) (*urlkeep.Batch, error) {
	version := b.Version
	return s.update(ctx, &version, func(cur *urlkeep.Batch) error {
		cur.Entries = cloneEntries(b.Entries)
		return nil
	})
}

func (s *BatchService) update(ctx context.Context, expect *int64, fn func(b *urlkeep.Batch) error) (*urlkeep.Batch, error) {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	before, err := readBatch(ctx, tx)
	if err != nil {
		return nil, err
	}
	if expect != nil && *expect != before.Version {
		return nil, urlkeep.Errorf(urlkeep.ECONFLICT, "batch changed: version %d, have %d", before.Version, *expect)
	}

	after := before.Clone()
	if err := fn(after); err != nil {
		return nil, err
	}
	if after.Entries == nil {
		after.Entries = make(map[string]*urlkeep.PendingEntry)
	}
	after.Version = before.Version

	changed, err := s.writeChanges(ctx, tx, before, after)
	if err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		return after, nil
	}

	after.Version++
	if _, err := tx.ExecContext(ctx, "UPDATE batch_meta SET version = ? WHERE id = 1", after.Version); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.publish(urlkeep.BatchEvent{Version: after.Version, Slots: changed})
	return after, nil
}

// writeChanges persists the difference between before and after and
// returns the affected slots in sorted order.
func (s *BatchService) writeChanges(ctx context.Context, q querier, before, after *urlkeep.Batch) ([]string, error) {
	var changed []string
	now := s.db.now()

	for slot := range before.Entries {
		if _, ok := after.Entries[slot]; ok {
			continue
		}
		if _, err := q.ExecContext(ctx, "DELETE FROM pending_entries WHERE slot = ?", slot); err != nil {
			return nil, err
		}
		changed = append(changed, slot)
	}

	for slot, e := range after.Entries {
		if slot == "" {
			return nil, urlkeep.Errorf(urlkeep.EINVALID, "pending entry slot required")
		}
		if e == nil {
			return nil, urlkeep.Errorf(urlkeep.EINVALID, "pending entry %q is nil", slot)
		}
		if e.State == "" {
			e.State = urlkeep.StateQueued
		}
		if !e.State.Valid() {
			return nil, urlkeep.Errorf(urlkeep.EINVALID, "pending entry %q: invalid state %q", slot, e.State)
		}
		if old, ok := before.Entries[slot]; ok && sameEntry(old, e) {
			continue
		}

		e.UpdatedAt = now
		fields, err := json.Marshal(e.Fields)
		if err != nil {
			return nil, urlkeep.WrapError(urlkeep.EINTERNAL, err, "failed to encode fields")
		}
		if e.Fields == nil {
			fields = []byte("{}")
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO pending_entries (slot, source_text, fields, state, reason, owner, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(slot) DO UPDATE SET
				source_text = excluded.source_text,
				fields = excluded.fields,
				state = excluded.state,
				reason = excluded.reason,
				owner = excluded.owner,
				updated_at = excluded.updated_at
		`, slot, e.SourceText, string(fields), string(e.State), e.Reason, e.Owner, formatTime(e.UpdatedAt)); err != nil {
			return nil, err
		}
		changed = append(changed, slot)
	}

	sort.Strings(changed)
	return changed, nil
}

func sameEntry(a, b *urlkeep.PendingEntry) bool {
	return a.SourceText == b.SourceText &&
		a.State == b.State &&
		a.Reason == b.Reason &&
		a.Owner == b.Owner &&
		maps.Equal(a.Fields, b.Fields)
}

func readBatch(ctx context.Context, q querier) (*urlkeep.Batch, error) {
	b := &urlkeep.Batch{Entries: make(map[string]*urlkeep.PendingEntry)}
	if err := q.QueryRowContext(ctx, "SELECT version FROM batch_meta WHERE id = 1").Scan(&b.Version); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT slot, source_text, fields, state, reason, owner, updated_at
		FROM pending_entries
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var slot, fields, state, updatedAt string
		var e urlkeep.PendingEntry
		if err := rows.Scan(&slot, &e.SourceText, &fields, &state, &e.Reason, &e.Owner, &updatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(fields), &e.Fields); err != nil {
			return nil, urlkeep.WrapError(urlkeep.EINTERNAL, err, "failed to decode fields")
		}
		if len(e.Fields) == 0 {
			e.Fields = nil
		}
		e.State = urlkeep.ImportState(state)
		if e.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
			return nil, err
		}
		b.Entries[slot] = &e
	}
	return b, rows.Err()
}

func cloneEntries(entries map[string]*urlkeep.PendingEntry) map[string]*urlkeep.PendingEntry {
	return (&urlkeep.Batch{Entries: entries}).Clone().Entries
}

// Subscribe returns a channel that receives an event after each committed
// change until ctx is done, when it is closed. A slow receiver sees only
// the latest event.
func (s *BatchService) Subscribe(ctx context.Context) <-chan urlkeep.BatchEvent {
	ch := make(chan urlkeep.BatchEvent, 1)

	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, ch)
		close(ch)
		s.mu.Unlock()
	}()
	return ch
}

func (s *BatchService) publish(ev urlkeep.BatchEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ch := range s.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		// Replace the undelivered event with the newer one.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}
