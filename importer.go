package urlkeep

import "context"

// ImportRequest asks for one URL to be imported.
type ImportRequest struct {
	URL string `json:"url"`

	// MatchURL overrides the URL used to pick an extractor.
	MatchURL string `json:"matchUrl,omitempty"`

	// Fields override extracted values, including title.
	Fields map[string]string `json:"fields,omitempty"`
}

// Importer imports single URLs into the record store.
type Importer interface {
	// Import fetches, extracts and merges req.URL into a new record.
	// Returns a *DuplicateURLError if the URL was already imported.
	Import(ctx context.Context, req ImportRequest) (*Record, error)
}
