package mock

import (
	"context"

	"github.com/fwojciec/urlkeep"
)

var _ urlkeep.BatchService = (*BatchService)(nil)

// BatchService is a mock implementation of urlkeep.BatchService.
type BatchService struct {
	FindBatchFn    func(ctx context.Context) (*urlkeep.Batch, error)
	ReplaceBatchFn func(ctx context.Context, entries map[string]*urlkeep.PendingEntry) (*urlkeep.Batch, error)
	AddEntriesFn   func(ctx context.Context, entries map[string]*urlkeep.PendingEntry) (*urlkeep.Batch, error)
	UpdateBatchFn  func(ctx context.Context, fn func(b *urlkeep.Batch) error) (*urlkeep.Batch, error)
	WriteBatchFn   func(ctx context.Context, b *urlkeep.Batch) (*urlkeep.Batch, error)
	SubscribeFn    func(ctx context.Context) <-chan urlkeep.BatchEvent
}

func (s *BatchService) FindBatch(ctx context.Context) (*urlkeep.Batch, error) {
	return s.FindBatchFn(ctx)
}

func (s *BatchService) ReplaceBatch(ctx context.Context, entries map[string]*urlkeep.PendingEntry) (*urlkeep.Batch, error) {
	return s.ReplaceBatchFn(ctx, entries)
}

func (s *BatchService) AddEntries(ctx context.Context, entries map[string]*urlkeep.PendingEntry) (*urlkeep.Batch, error) {
	return s.AddEntriesFn(ctx, entries)
}

func (s *BatchService) UpdateBatch(ctx context.Context, fn func(b *urlkeep.Batch) error) (*urlkeep.Batch, error) {
	return s.UpdateBatchFn(ctx, fn)
}

func (s *BatchService) WriteBatch(ctx context.Context, b *urlkeep.Batch) (*urlkeep.Batch, error) {
	return s.WriteBatchFn(ctx, b)
}

func (s *BatchService) Subscribe(ctx context.Context) <-chan urlkeep.BatchEvent {
	return s.SubscribeFn(ctx)
}
