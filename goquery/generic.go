package goquery

import "github.com/fwojciec/urlkeep"

var _ urlkeep.Extractor = (*GenericExtractor)(nil)

// GenericExtractor reads OpenGraph, Twitter Card and plain HTML metadata.
// It matches every page and is meant to be the registry fallback.
type GenericExtractor struct{}

// NewGenericExtractor creates a new GenericExtractor.
func NewGenericExtractor() *GenericExtractor {
	return &GenericExtractor{}
}

// Name returns the extractor's identifier.
func (e *GenericExtractor) Name() string {
	return urlkeep.GenericExtractorName
}

// Match always returns true.
func (e *GenericExtractor) Match(page *urlkeep.Page) bool {
	return true
}

// Extract reads title and description, each in priority order OpenGraph,
// Twitter Card, then <title> or meta description. The title falls back to
// the requested URL. Text is the URL followed by the description, if any.
func (e *GenericExtractor) Extract(page *urlkeep.Page) (*urlkeep.PartialRecord, error) {
	doc, err := parseDocument(page)
	if err != nil {
		return nil, err
	}

	title := pageTitle(doc)
	if title == nil {
		title = stringPtr(page.URL)
	}
	description := pageDescription(doc)

	return &urlkeep.PartialRecord{
		Title:       title,
		Description: description,
		BodyText:    bodyText(page.URL, description),
	}, nil
}
