// Package importer runs the single-URL import pipeline: canonicalize,
// duplicate pre-check, fetch, extract and merge.
package importer

import (
	"context"
	"strings"

	"github.com/fwojciec/urlkeep"
	"github.com/fwojciec/urlkeep/merge"
)

var _ urlkeep.Importer = (*Importer)(nil)

// Importer imports URLs into a record store.
type Importer struct {
	Records  urlkeep.RecordService
	Fetcher  urlkeep.Fetcher
	Registry urlkeep.ExtractorRegistry
	Merger   *merge.Merger

	// Limiter spaces out fetches per domain. Nil means unlimited.
	Limiter *DomainLimiter
}

// NewImporter creates a new Importer with the default merger.
func NewImporter(records urlkeep.RecordService, fetcher urlkeep.Fetcher, registry urlkeep.ExtractorRegistry) *Importer {
	return &Importer{
		Records:  records,
		Fetcher:  fetcher,
		Registry: registry,
		Merger:   merge.NewMerger(),
	}
}

// Target is a validated import request.
type Target struct {
	Location     string
	CanonicalURL string
	MatchURL     string
	Fields       map[string]string
}

// Resolve validates req and computes its canonical URL without any I/O.
// Returns EINVALID for malformed URLs.
func Resolve(req urlkeep.ImportRequest) (*Target, error) {
	location := strings.TrimSpace(req.URL)
	canonical, err := urlkeep.CanonicalizeURL(location)
	if err != nil {
		return nil, err
	}

	matchURL := strings.TrimSpace(req.MatchURL)
	if matchURL != "" {
		if _, err := urlkeep.CanonicalizeURL(matchURL); err != nil {
			return nil, err
		}
	}

	return &Target{
		Location:     location,
		CanonicalURL: canonical,
		MatchURL:     matchURL,
		Fields:       req.Fields,
	}, nil
}

// Precheck returns a *urlkeep.DuplicateURLError if the target's canonical
// URL is already stored.
func Precheck(ctx context.Context, store urlkeep.RecordFinder, target *Target) error {
	existing, err := store.FindRecordByCanonicalURL(ctx, target.CanonicalURL)
	switch {
	case err == nil:
		return &urlkeep.DuplicateURLError{CanonicalURL: target.CanonicalURL, Existing: existing}
	case urlkeep.ErrorCode(err) == urlkeep.ENOTFOUND:
		return nil
	default:
		return err
	}
}

// Import fetches, extracts and merges req.URL straight into the record
// store.
func (i *Importer) Import(ctx context.Context, req urlkeep.ImportRequest) (*urlkeep.Record, error) {
	target, err := Resolve(req)
	if err != nil {
		return nil, err
	}
	if err := Precheck(ctx, i.Records, target); err != nil {
		return nil, err
	}
	return i.Run(ctx, target, i.Records, nil)
}

// Run executes the pipeline for an already pre-checked target, writing the
// record through store. observe, if set, is called as the pipeline enters
// the fetching, extracting and merging states.
func (i *Importer) Run(ctx context.Context, target *Target, store urlkeep.RecordStore, observe func(urlkeep.ImportState)) (*urlkeep.Record, error) {
	in, err := i.Extract(ctx, target, observe)
	if err != nil {
		return nil, err
	}
	if observe != nil {
		observe(urlkeep.StateMerging)
	}
	return i.Merge(ctx, *in, store)
}

// Extract fetches the target and runs the selected extractor, returning
// the merge input. No record is written.
func (i *Importer) Extract(ctx context.Context, target *Target, observe func(urlkeep.ImportState)) (*merge.Input, error) {
	if observe == nil {
		observe = func(urlkeep.ImportState) {}
	}

	observe(urlkeep.StateFetching)
	if err := i.Limiter.WaitURL(ctx, target.Location); err != nil {
		return nil, err
	}
	content, err := i.Fetcher.Fetch(ctx, target.Location)
	if err != nil {
		if urlkeep.ErrorCode(err) == urlkeep.EINTERNAL {
			return nil, urlkeep.WrapError(urlkeep.EFETCH, err, "failed to fetch %s", target.Location)
		}
		return nil, err
	}

	observe(urlkeep.StateExtracting)
	page := &urlkeep.Page{
		URL:      target.Location,
		MatchURL: target.MatchURL,
		Content:  content,
	}
	extractor := i.Registry.Select(page)
	partial, err := extractor.Extract(page)
	if err != nil {
		if urlkeep.ErrorCode(err) == urlkeep.EINTERNAL {
			return nil, urlkeep.WrapError(urlkeep.EEXTRACT, err, "%s extractor failed on %s", extractor.Name(), target.Location)
		}
		return nil, err
	}

	return &merge.Input{
		Partial:      partial,
		Overrides:    target.Fields,
		Location:     target.Location,
		CanonicalURL: target.CanonicalURL,
		Extractor:    extractor.Name(),
	}, nil
}

// Merge writes the record for in through store.
func (i *Importer) Merge(ctx context.Context, in merge.Input, store urlkeep.RecordStore) (*urlkeep.Record, error) {
	merger := i.Merger
	if merger == nil {
		merger = merge.NewMerger()
	}
	return merger.Merge(ctx, in, store)
}
