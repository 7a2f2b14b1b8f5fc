package mock

import (
	"context"

	"github.com/fwojciec/urlkeep"
)

var _ urlkeep.Importer = (*Importer)(nil)

// Importer is a mock implementation of urlkeep.Importer.
type Importer struct {
	ImportFn func(ctx context.Context, req urlkeep.ImportRequest) (*urlkeep.Record, error)
}

func (i *Importer) Import(ctx context.Context, req urlkeep.ImportRequest) (*urlkeep.Record, error) {
	return i.ImportFn(ctx, req)
}
