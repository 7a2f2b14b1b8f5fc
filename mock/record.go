package mock

import (
	"context"

	"github.com/fwojciec/urlkeep"
)

var _ urlkeep.RecordService = (*RecordService)(nil)

// RecordService is a mock implementation of urlkeep.RecordService.
type RecordService struct {
	FindRecordByCanonicalURLFn func(ctx context.Context, canonicalURL string) (*urlkeep.Record, error)
	FindRecordByTitleFn        func(ctx context.Context, title string) (*urlkeep.Record, error)
	CreateRecordFn             func(ctx context.Context, rec *urlkeep.Record) error
	FindRecordsFn              func(ctx context.Context, filter urlkeep.RecordFilter) ([]*urlkeep.Record, error)
	DeleteRecordFn             func(ctx context.Context, id string) error
	StageFn                    func() urlkeep.RecordStager
}

func (s *RecordService) FindRecordByCanonicalURL(ctx context.Context, canonicalURL string) (*urlkeep.Record, error) {
	return s.FindRecordByCanonicalURLFn(ctx, canonicalURL)
}

func (s *RecordService) FindRecordByTitle(ctx context.Context, title string) (*urlkeep.Record, error) {
	return s.FindRecordByTitleFn(ctx, title)
}

func (s *RecordService) CreateRecord(ctx context.Context, rec *urlkeep.Record) error {
	return s.CreateRecordFn(ctx, rec)
}

func (s *RecordService) FindRecords(ctx context.Context, filter urlkeep.RecordFilter) ([]*urlkeep.Record, error) {
	return s.FindRecordsFn(ctx, filter)
}

func (s *RecordService) DeleteRecord(ctx context.Context, id string) error {
	return s.DeleteRecordFn(ctx, id)
}

func (s *RecordService) Stage() urlkeep.RecordStager {
	return s.StageFn()
}

var _ urlkeep.RecordStager = (*RecordStager)(nil)

// RecordStager is a mock implementation of urlkeep.RecordStager.
type RecordStager struct {
	FindRecordByCanonicalURLFn func(ctx context.Context, canonicalURL string) (*urlkeep.Record, error)
	FindRecordByTitleFn        func(ctx context.Context, title string) (*urlkeep.Record, error)
	CreateRecordFn             func(ctx context.Context, rec *urlkeep.Record) error
	CommitFn                   func(ctx context.Context) ([]*urlkeep.Record, error)
	AbortFn                    func() error
}

func (s *RecordStager) FindRecordByCanonicalURL(ctx context.Context, canonicalURL string) (*urlkeep.Record, error) {
	return s.FindRecordByCanonicalURLFn(ctx, canonicalURL)
}

func (s *RecordStager) FindRecordByTitle(ctx context.Context, title string) (*urlkeep.Record, error) {
	return s.FindRecordByTitleFn(ctx, title)
}

func (s *RecordStager) CreateRecord(ctx context.Context, rec *urlkeep.Record) error {
	return s.CreateRecordFn(ctx, rec)
}

func (s *RecordStager) Commit(ctx context.Context) ([]*urlkeep.Record, error) {
	return s.CommitFn(ctx)
}

func (s *RecordStager) Abort() error {
	return s.AbortFn()
}

var _ urlkeep.RecordExporter = (*RecordExporter)(nil)

// RecordExporter is a mock implementation of urlkeep.RecordExporter.
type RecordExporter struct {
	SaveFn   func(ctx context.Context, rec *urlkeep.Record) error
	CommitFn func() error
	AbortFn  func() error
}

func (e *RecordExporter) Save(ctx context.Context, rec *urlkeep.Record) error {
	return e.SaveFn(ctx, rec)
}

func (e *RecordExporter) Commit() error {
	return e.CommitFn()
}

func (e *RecordExporter) Abort() error {
	return e.AbortFn()
}
