package goquery

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/urlkeep"
)

var _ urlkeep.Extractor = (*GoodreadsExtractor)(nil)

// Goodreads has shipped two page layouts; both are tried, newest first.
const (
	goodreadsTitleSelector  = `h1[data-testid="bookTitle"], h1#bookTitle`
	goodreadsAuthorSelector = `.ContributorLinksList .ContributorLink__name, #bookAuthors .authorName span[itemprop="name"], .authorName span[itemprop="name"]`
)

// GoodreadsExtractor handles book pages on goodreads.com.
type GoodreadsExtractor struct{}

// NewGoodreadsExtractor creates a new GoodreadsExtractor.
func NewGoodreadsExtractor() *GoodreadsExtractor {
	return &GoodreadsExtractor{}
}

// Name returns the extractor's identifier.
func (e *GoodreadsExtractor) Name() string {
	return "goodreads"
}

// Match returns true for goodreads.com/book/show/... URLs.
func (e *GoodreadsExtractor) Match(page *urlkeep.Page) bool {
	u := page.SelectURL()
	if registrableDomain(u) != "goodreads.com" {
		return false
	}
	segments := pathSegments(u)
	return len(segments) >= 3 && segments[0] == "book" && segments[1] == "show"
}

// Extract reads the book title and its authors. Authors are stored as a
// title list so each one links to its own record.
func (e *GoodreadsExtractor) Extract(page *urlkeep.Page) (*urlkeep.PartialRecord, error) {
	doc, err := parseDocument(page)
	if err != nil {
		return nil, err
	}

	title := selectionText(doc.Find(goodreadsTitleSelector).First())
	if title == "" {
		if og, ok := metaContent(doc, "og:title"); ok {
			title = og
		}
	}
	if title == "" {
		return nil, urlkeep.Errorf(urlkeep.EEXTRACT, "goodreads page has no book title")
	}

	description := pageDescription(doc)
	rec := &urlkeep.PartialRecord{
		Title:       stringPtr(title),
		Description: description,
		BodyText:    bodyText(page.URL, description),
	}

	if authors := goodreadsAuthors(doc); len(authors) > 0 {
		rec.ExtraFields = map[string]string{
			"goodreads_authors": urlkeep.FormatTitleList(authors),
		}
	}
	return rec, nil
}

func goodreadsAuthors(doc *goquery.Document) []string {
	seen := make(map[string]bool)
	var authors []string
	doc.Find(goodreadsAuthorSelector).Each(func(_ int, s *goquery.Selection) {
		name := selectionText(s)
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		authors = append(authors, name)
	})
	return authors
}
