// Package merge turns extractor output and user overrides into a stored
// record, resolving title collisions against the store.
package merge

import (
	"context"
	"fmt"
	"strings"

	"github.com/fwojciec/urlkeep"
)

// DefaultMaxAttempts bounds how often a create is retried after losing a
// title race to another writer.
const DefaultMaxAttempts = 5

// maxSuffix bounds the numeric disambiguator search.
const maxSuffix = 10000

// Input is everything the merge needs about one import.
type Input struct {
	Partial   *urlkeep.PartialRecord
	Overrides map[string]string

	// Location is the URL as requested; CanonicalURL is its dedup key.
	Location     string
	CanonicalURL string

	// Extractor is the name of the extractor that produced Partial.
	Extractor string
}

// Merger builds and creates records.
type Merger struct {
	MaxAttempts int
}

// NewMerger creates a new Merger.
func NewMerger() *Merger {
	return &Merger{MaxAttempts: DefaultMaxAttempts}
}

// Merge creates the record described by in. Overrides win over extracted
// values; a blank title override and reserved fields are ignored. If the
// title is taken, " 1", " 2", ... is appended until it is free. Returns a
// *urlkeep.DuplicateURLError if the canonical URL is already stored.
func (m *Merger) Merge(ctx context.Context, in Input, store urlkeep.RecordStore) (*urlkeep.Record, error) {
	existing, err := store.FindRecordByCanonicalURL(ctx, in.CanonicalURL)
	if err == nil {
		return nil, &urlkeep.DuplicateURLError{CanonicalURL: in.CanonicalURL, Existing: existing}
	} else if urlkeep.ErrorCode(err) != urlkeep.ENOTFOUND {
		return nil, err
	}

	rec := Build(in)
	base := rec.Title

	attempts := m.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	next := 0
	for range attempts {
		title, n, err := freeTitle(ctx, store, base, next)
		if err != nil {
			return nil, err
		}
		rec.Title = title

		err = store.CreateRecord(ctx, rec)
		if urlkeep.ErrorCode(err) != urlkeep.ECOLLISION {
			return rec, err
		}
		// Someone took the title between lookup and create.
		next = n + 1
	}
	return nil, urlkeep.Errorf(urlkeep.ECOLLISION, "could not find a free title for %q after %d attempts", base, attempts)
}

// Build assembles the record for in without touching the store.
func Build(in Input) *urlkeep.Record {
	rec := &urlkeep.Record{
		Title:        in.Location,
		Location:     in.Location,
		CanonicalURL: in.CanonicalURL,
		Text:         in.Location,
	}
	if in.Extractor != urlkeep.GenericExtractorName {
		rec.Extractor = in.Extractor
	}

	fields := make(map[string]string)
	if p := in.Partial; p != nil {
		if p.Title != nil && strings.TrimSpace(*p.Title) != "" {
			rec.Title = *p.Title
		}
		if p.BodyText != nil {
			rec.Text = *p.BodyText
		}
		for name, v := range p.ExtraFields {
			setField(rec, fields, name, v, false)
		}
		if p.Description != nil {
			fields[urlkeep.FieldDescription] = *p.Description
		}
	}
	for name, v := range in.Overrides {
		setField(rec, fields, name, v, true)
	}

	rec.Title = strings.TrimSpace(rec.Title)
	if len(fields) > 0 {
		rec.Fields = fields
	}
	return rec
}

func setField(rec *urlkeep.Record, fields map[string]string, name, value string, override bool) {
	switch {
	case urlkeep.IsReservedField(name):
	case name == urlkeep.FieldTitle:
		if override && strings.TrimSpace(value) != "" {
			rec.Title = value
		}
	case name == urlkeep.FieldText:
		if override {
			rec.Text = value
		}
	default:
		fields[name] = value
	}
}

// freeTitle returns the first free title among base, base 1, base 2, ...
// starting from suffix n, along with the suffix used.
func freeTitle(ctx context.Context, store urlkeep.RecordFinder, base string, n int) (string, int, error) {
	for ; n <= maxSuffix; n++ {
		candidate := base
		if n > 0 {
			candidate = fmt.Sprintf("%s %d", base, n)
		}
		_, err := store.FindRecordByTitle(ctx, candidate)
		if urlkeep.ErrorCode(err) == urlkeep.ENOTFOUND {
			return candidate, n, nil
		}
		if err != nil {
			return "", 0, err
		}
	}
	return "", 0, urlkeep.Errorf(urlkeep.ECOLLISION, "no free title for %q", base)
}
