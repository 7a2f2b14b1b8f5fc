package mock

import "github.com/fwojciec/urlkeep"

var _ urlkeep.Extractor = (*Extractor)(nil)

// Extractor is a mock implementation of urlkeep.Extractor.
type Extractor struct {
	NameFn    func() string
	MatchFn   func(page *urlkeep.Page) bool
	ExtractFn func(page *urlkeep.Page) (*urlkeep.PartialRecord, error)
}

func (e *Extractor) Name() string {
	return e.NameFn()
}

func (e *Extractor) Match(page *urlkeep.Page) bool {
	return e.MatchFn(page)
}

func (e *Extractor) Extract(page *urlkeep.Page) (*urlkeep.PartialRecord, error) {
	return e.ExtractFn(page)
}

var _ urlkeep.ExtractorRegistry = (*ExtractorRegistry)(nil)

// ExtractorRegistry is a mock implementation of urlkeep.ExtractorRegistry.
type ExtractorRegistry struct {
	RegisterFn func(extractor urlkeep.Extractor)
	SelectFn   func(page *urlkeep.Page) urlkeep.Extractor
	ListFn     func() []string
}

func (r *ExtractorRegistry) Register(extractor urlkeep.Extractor) {
	r.RegisterFn(extractor)
}

func (r *ExtractorRegistry) Select(page *urlkeep.Page) urlkeep.Extractor {
	return r.SelectFn(page)
}

func (r *ExtractorRegistry) List() []string {
	return r.ListFn()
}
