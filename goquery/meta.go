// Package goquery implements page metadata extractors using goquery: the
// generic OpenGraph/Twitter Card fallback, site-specific extractors and
// YAML-configured rule extractors, plus the registry that selects among them.
package goquery

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/urlkeep"
	"golang.org/x/net/publicsuffix"
)

// parseDocument parses the page body.
func parseDocument(page *urlkeep.Page) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML()))
	if err != nil {
		return nil, urlkeep.WrapError(urlkeep.EEXTRACT, err, "failed to parse HTML")
	}
	return doc, nil
}

// metaContent returns the trimmed content of the first meta tag whose
// property or name attribute equals key. Empty content counts as absent.
func metaContent(doc *goquery.Document, key string) (string, bool) {
	sel := doc.Find(`meta[property="` + key + `"], meta[name="` + key + `"]`).First()
	content, ok := sel.Attr("content")
	if !ok {
		return "", false
	}
	content = strings.TrimSpace(content)
	return content, content != ""
}

// firstMeta returns the first present value among keys.
func firstMeta(doc *goquery.Document, keys ...string) *string {
	for _, key := range keys {
		if v, ok := metaContent(doc, key); ok {
			return &v
		}
	}
	return nil
}

// pageTitle reads the title by priority: OpenGraph, Twitter Card, <title>.
func pageTitle(doc *goquery.Document) *string {
	if v := firstMeta(doc, "og:title", "twitter:title"); v != nil {
		return v
	}
	if title := selectionText(doc.Find("title").First()); title != "" {
		return &title
	}
	return nil
}

// pageDescription reads the description by priority: OpenGraph, Twitter
// Card, meta description.
func pageDescription(doc *goquery.Document) *string {
	return firstMeta(doc, "og:description", "twitter:description", "description")
}

// bodyText builds a record's text: the location, followed by the
// description when there is one.
func bodyText(location string, description *string) *string {
	text := location
	if description != nil {
		text = location + "\n\n" + *description
	}
	return &text
}

// selectionText returns the whitespace-collapsed text of sel.
func selectionText(sel *goquery.Selection) string {
	return strings.Join(strings.Fields(sel.Text()), " ")
}

// registrableDomain returns the eTLD+1 of rawURL's host, or the bare host
// for hosts publicsuffix cannot classify (localhost, IPs).
func registrableDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}

// pathSegments splits rawURL's path into its non-empty segments.
func pathSegments(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	var segments []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

func stringPtr(s string) *string {
	return &s
}
