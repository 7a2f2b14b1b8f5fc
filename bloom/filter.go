// Package bloom fronts a RecordService with a Bloom filter of canonical
// URLs, so lookups for never-seen URLs skip the store.
package bloom

import (
	"context"
	"errors"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/fwojciec/urlkeep"
)

// Filter is a concurrency-safe Bloom filter of strings.
type Filter struct {
	mu sync.RWMutex
	f  *bloom.BloomFilter
}

// NewFilter creates a filter sized for n expected items at the given false
// positive rate.
func NewFilter(n uint, fpRate float64) *Filter {
	return &Filter{f: bloom.NewWithEstimates(n, fpRate)}
}

// Add adds s to the filter.
func (f *Filter) Add(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.f.AddString(s)
}

// Test reports whether s might have been added. False positives are
// possible; false negatives are not.
func (f *Filter) Test(s string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.f.TestString(s)
}

// EstimatedCount returns the approximate number of items added.
func (f *Filter) EstimatedCount() uint {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return uint(f.f.ApproximatedSize())
}

var _ urlkeep.RecordService = (*RecordService)(nil)

// RecordService answers FindRecordByCanonicalURL with ENOTFOUND without a
// store round trip when the filter has never seen the URL. Warm must run
// before the filter is trusted; the store's own uniqueness check still
// catches anything the filter misses.
type RecordService struct {
	next     urlkeep.RecordService
	filter   *Filter
	capacity uint
}

// NewRecordService wraps next with a filter sized for n records.
func NewRecordService(next urlkeep.RecordService, n uint, fpRate float64) *RecordService {
	return &RecordService{next: next, filter: NewFilter(n, fpRate), capacity: n}
}

// Saturated reports whether the filter holds more URLs than it was sized
// for. Lookups stay correct, but more of them reach the store.
func (s *RecordService) Saturated() bool {
	return s.filter.EstimatedCount() > s.capacity
}

// warmPageSize is how many records Warm reads per query.
const warmPageSize = 500

// Warm loads every stored canonical URL into the filter.
func (s *RecordService) Warm(ctx context.Context) error {
	for offset := 0; ; offset += warmPageSize {
		recs, err := s.next.FindRecords(ctx, urlkeep.RecordFilter{Offset: offset, Limit: warmPageSize})
		if err != nil {
			return err
		}
		for _, rec := range recs {
			s.filter.Add(rec.CanonicalURL)
		}
		if len(recs) < warmPageSize {
			return nil
		}
	}
}

func (s *RecordService) FindRecordByCanonicalURL(ctx context.Context, canonicalURL string) (*urlkeep.Record, error) {
	if !s.filter.Test(canonicalURL) {
		return nil, urlkeep.Errorf(urlkeep.ENOTFOUND, "record not found")
	}
	return s.next.FindRecordByCanonicalURL(ctx, canonicalURL)
}

func (s *RecordService) FindRecordByTitle(ctx context.Context, title string) (*urlkeep.Record, error) {
	return s.next.FindRecordByTitle(ctx, title)
}

// CreateRecord creates the record and remembers its URL. A duplicate also
// teaches the filter, since the URL evidently exists.
func (s *RecordService) CreateRecord(ctx context.Context, rec *urlkeep.Record) error {
	err := s.next.CreateRecord(ctx, rec)
	var dup *urlkeep.DuplicateURLError
	if err == nil || errors.As(err, &dup) {
		s.filter.Add(rec.CanonicalURL)
	}
	return err
}

func (s *RecordService) FindRecords(ctx context.Context, filter urlkeep.RecordFilter) ([]*urlkeep.Record, error) {
	return s.next.FindRecords(ctx, filter)
}

// DeleteRecord deletes from the store. The URL stays in the filter and
// costs one store lookup per check from then on.
func (s *RecordService) DeleteRecord(ctx context.Context, id string) error {
	return s.next.DeleteRecord(ctx, id)
}

// Stage returns a stager that adds committed URLs to the filter.
func (s *RecordService) Stage() urlkeep.RecordStager {
	return &stager{RecordStager: s.next.Stage(), filter: s.filter}
}

type stager struct {
	urlkeep.RecordStager
	filter *Filter
}

func (s *stager) Commit(ctx context.Context) ([]*urlkeep.Record, error) {
	recs, err := s.RecordStager.Commit(ctx)
	for _, rec := range recs {
		s.filter.Add(rec.CanonicalURL)
	}
	return recs, err
}
