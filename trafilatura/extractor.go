// Package trafilatura extracts article metadata and main content using
// go-trafilatura.
package trafilatura

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/urlkeep"
	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"
)

var _ urlkeep.Extractor = (*ArticleExtractor)(nil)

// Extra field names written by ArticleExtractor.
const (
	FieldAuthor    = "article_author"
	FieldSitename  = "article_sitename"
	FieldPublished = "article_published"
	FieldBody      = "article_body"
)

// ArticleExtractor handles pages that declare themselves articles, either
// with og:type=article or an <article> element.
type ArticleExtractor struct {
	// Converter renders the main content into the article_body field.
	// Nil leaves the field out.
	Converter urlkeep.Converter
}

// NewArticleExtractor creates a new ArticleExtractor.
func NewArticleExtractor(conv urlkeep.Converter) *ArticleExtractor {
	return &ArticleExtractor{Converter: conv}
}

// Name returns the extractor's identifier.
func (e *ArticleExtractor) Name() string {
	return "article"
}

// Match reports whether the page looks like an article.
func (e *ArticleExtractor) Match(page *urlkeep.Page) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML()))
	if err != nil {
		return false
	}
	if t, ok := doc.Find(`meta[property="og:type"]`).First().Attr("content"); ok && strings.EqualFold(strings.TrimSpace(t), "article") {
		return true
	}
	return doc.Find("article").Length() > 0
}

// Extract runs trafilatura over the page.
func (e *ArticleExtractor) Extract(page *urlkeep.Page) (*urlkeep.PartialRecord, error) {
	if strings.TrimSpace(page.HTML()) == "" {
		return nil, urlkeep.Errorf(urlkeep.EEXTRACT, "empty HTML input")
	}

	opts := trafilatura.Options{
		EnableFallback: true,
	}
	if u, err := url.Parse(page.SelectURL()); err == nil {
		opts.OriginalURL = u
	}

	result, err := trafilatura.Extract(strings.NewReader(page.HTML()), opts)
	if err != nil {
		return nil, urlkeep.WrapError(urlkeep.EEXTRACT, err, "failed to extract article")
	}

	meta := result.Metadata
	rec := &urlkeep.PartialRecord{}
	if title := strings.TrimSpace(meta.Title); title != "" {
		rec.Title = &title
	}
	text := page.URL
	if desc := strings.TrimSpace(meta.Description); desc != "" {
		rec.Description = &desc
		text += "\n\n" + desc
	}
	rec.BodyText = &text

	fields := make(map[string]string)
	if v := strings.TrimSpace(meta.Author); v != "" {
		fields[FieldAuthor] = v
	}
	if v := strings.TrimSpace(meta.Sitename); v != "" {
		fields[FieldSitename] = v
	}
	if !meta.Date.IsZero() {
		fields[FieldPublished] = meta.Date.Format("2006-01-02")
	}
	if e.Converter != nil && result.ContentNode != nil {
		contentHTML, err := renderNode(result.ContentNode)
		if err != nil {
			return nil, urlkeep.WrapError(urlkeep.EEXTRACT, err, "failed to render article content")
		}
		if strings.TrimSpace(contentHTML) != "" {
			body, err := e.Converter.Convert(contentHTML, page.BaseURL())
			if err != nil {
				return nil, err
			}
			fields[FieldBody] = body
		}
	}
	if len(fields) > 0 {
		rec.ExtraFields = fields
	}
	return rec, nil
}

// renderNode converts an html.Node to a string.
func renderNode(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}
