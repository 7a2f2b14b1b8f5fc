package urlkeep

import (
	"context"
	"sort"
	"time"
)

// PendingEntry is one import request waiting in the pending batch.
type PendingEntry struct {
	SourceText string            `json:"sourceText"`
	Fields     map[string]string `json:"fields,omitempty"`
	State      ImportState       `json:"state"`
	Reason     string            `json:"reason,omitempty"`

	// Owner identifies the reconciler that claimed an in-flight entry.
	Owner string `json:"owner,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// IsURL reports whether the entry is a URL import.
func (e *PendingEntry) IsURL() bool {
	return IsBareURL(e.SourceText)
}

// Batch is the durable set of pending import requests, keyed by slot.
// Version increases with every committed change.
type Batch struct {
	Version int64                    `json:"version"`
	Entries map[string]*PendingEntry `json:"entries"`
}

// Slots returns the batch's slot identifiers in sorted order.
func (b *Batch) Slots() []string {
	slots := make([]string, 0, len(b.Entries))
	for slot := range b.Entries {
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	return slots
}

// Drained reports whether no entries remain.
func (b *Batch) Drained() bool {
	return len(b.Entries) == 0
}

// Clone returns a deep copy of the batch.
func (b *Batch) Clone() *Batch {
	other := &Batch{Version: b.Version, Entries: make(map[string]*PendingEntry, len(b.Entries))}
	for slot, e := range b.Entries {
		if e == nil {
			other.Entries[slot] = nil
			continue
		}
		c := *e
		if e.Fields != nil {
			c.Fields = make(map[string]string, len(e.Fields))
			for k, v := range e.Fields {
				c.Fields[k] = v
			}
		}
		other.Entries[slot] = &c
	}
	return other
}

// BatchEvent announces a committed change to the pending batch.
type BatchEvent struct {
	Version int64
	Slots   []string
}

// BatchService represents the durable pending batch.
type BatchService interface {
	// FindBatch reads the current batch.
	FindBatch(ctx context.Context) (*Batch, error)

	// ReplaceBatch replaces all entries wholesale.
	ReplaceBatch(ctx context.Context, entries map[string]*PendingEntry) (*Batch, error)

	// AddEntries adds entries, replacing any with the same slot.
	AddEntries(ctx context.Context, entries map[string]*PendingEntry) (*Batch, error)

	// UpdateBatch atomically reads the latest batch, applies fn and writes
	// the result back. No other write interleaves between the read and the
	// write. If fn returns an error nothing is written.
	UpdateBatch(ctx context.Context, fn func(b *Batch) error) (*Batch, error)

	// WriteBatch writes b if b.Version matches the stored version.
	// Returns ECONFLICT if the batch changed since b was read.
	WriteBatch(ctx context.Context, b *Batch) (*Batch, error)

	// Subscribe delivers an event after every committed change until ctx is
	// done. Events may be coalesced; receivers should re-read the batch.
	Subscribe(ctx context.Context) <-chan BatchEvent
}
