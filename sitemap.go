package urlkeep

import (
	"context"
	"regexp"
)

// SitemapService discovers page URLs from a site's sitemaps, for bulk
// submission into the pending batch.
type SitemapService interface {
	// DiscoverURLs finds all URLs listed in a site's sitemaps. robots.txt
	// Sitemap directives are preferred over /sitemap.xml, and sitemap
	// indexes are resolved recursively. A nil filter keeps every URL.
	DiscoverURLs(ctx context.Context, baseURL string, filter *URLFilter) ([]string, error)
}

// URLFilter keeps or drops URLs by pattern.
type URLFilter struct {
	// Include patterns; when set, a URL must match at least one.
	Include []*regexp.Regexp

	// Exclude patterns are applied after Include.
	Exclude []*regexp.Regexp
}

// Match returns true if the URL passes the filter.
// A nil filter passes everything.
func (f *URLFilter) Match(url string) bool {
	if f == nil {
		return true
	}
	if len(f.Include) > 0 && !anyMatch(f.Include, url) {
		return false
	}
	return !anyMatch(f.Exclude, url)
}

func anyMatch(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
