package sqlite

import (
	"context"
	"sync"

	"github.com/fwojciec/urlkeep"
)

var _ urlkeep.RecordStager = (*RecordStager)(nil)

// RecordStager buffers records in memory and writes them in one
// transaction on Commit. Lookups consult staged records first.
type RecordStager struct {
	svc *RecordService

	mu       sync.Mutex
	staged   []*urlkeep.Record
	finished bool
}

func (s *RecordStager) FindRecordByCanonicalURL(ctx context.Context, canonicalURL string) (*urlkeep.Record, error) {
	s.mu.Lock()
	for _, rec := range s.staged {
		if rec.CanonicalURL == canonicalURL {
			s.mu.Unlock()
			return rec, nil
		}
	}
	s.mu.Unlock()
	return s.svc.FindRecordByCanonicalURL(ctx, canonicalURL)
}

func (s *RecordStager) FindRecordByTitle(ctx context.Context, title string) (*urlkeep.Record, error) {
	s.mu.Lock()
	for _, rec := range s.staged {
		if rec.Title == title {
			s.mu.Unlock()
			return rec, nil
		}
	}
	s.mu.Unlock()
	return s.svc.FindRecordByTitle(ctx, title)
}

// CreateRecord stages rec, applying the same uniqueness rules as the store
// against both staged and stored records.
func (s *RecordStager) CreateRecord(ctx context.Context, rec *urlkeep.Record) error {
	if err := s.svc.db.prepareRecord(rec); err != nil {
		return err
	}

	if existing, err := s.FindRecordByCanonicalURL(ctx, rec.CanonicalURL); err == nil {
		return &urlkeep.DuplicateURLError{CanonicalURL: rec.CanonicalURL, Existing: existing}
	} else if urlkeep.ErrorCode(err) != urlkeep.ENOTFOUND {
		return err
	}
	if _, err := s.FindRecordByTitle(ctx, rec.Title); err == nil {
		return urlkeep.Errorf(urlkeep.ECOLLISION, "title %q already exists", rec.Title)
	} else if urlkeep.ErrorCode(err) != urlkeep.ENOTFOUND {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return urlkeep.Errorf(urlkeep.EINVALID, "stager already committed or aborted")
	}
	s.staged = append(s.staged, rec)
	return nil
}

// Commit writes all staged records or none. Uniqueness is checked again
// inside the transaction, since other writers may have run since staging.
func (s *RecordStager) Commit(ctx context.Context) ([]*urlkeep.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return nil, urlkeep.Errorf(urlkeep.EINVALID, "stager already committed or aborted")
	}
	s.finished = true

	if len(s.staged) == 0 {
		return nil, nil
	}

	tx, err := s.svc.db.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	for _, rec := range s.staged {
		if err := insertRecord(ctx, tx, rec); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	recs := s.staged
	s.staged = nil
	return recs, nil
}

// Abort discards staged records.
func (s *RecordStager) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = nil
	s.finished = true
	return nil
}
