package http

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/beevik/etree"
	"github.com/fwojciec/urlkeep"
)

// MaxSitemaps bounds how many sitemap documents one discovery reads,
// counting index files.
const MaxSitemaps = 1000

var _ urlkeep.SitemapService = (*SitemapService)(nil)

// SitemapService discovers page URLs from robots.txt and sitemap XML.
type SitemapService struct {
	client    *http.Client
	userAgent string
}

// NewSitemapService creates a new SitemapService. A nil client means
// http.DefaultClient.
func NewSitemapService(client *http.Client) *SitemapService {
	if client == nil {
		client = http.DefaultClient
	}
	return &SitemapService{client: client, userAgent: DefaultUserAgent}
}

// DiscoverURLs returns the canonical form of every page URL in baseURL's
// sitemaps, deduplicated, in document order. If baseURL has a path, only
// URLs below it are kept. No sitemap at all is an empty result, not an
// error.
func (s *SitemapService) DiscoverURLs(ctx context.Context, baseURL string, filter *urlkeep.URLFilter) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return nil, urlkeep.Errorf(urlkeep.EINVALID, "invalid base URL %q", baseURL)
	}
	prefix := strings.TrimSuffix(base.Path, "/")
	root := &url.URL{Scheme: base.Scheme, Host: base.Host}

	sitemaps, err := s.locateSitemaps(ctx, root)
	if err != nil {
		return nil, err
	}

	w := &sitemapWalk{svc: s, seen: make(map[string]bool)}
	for _, sm := range sitemaps {
		if err := w.visit(ctx, sm); err != nil {
			return nil, err
		}
	}

	urls := []string{}
	kept := make(map[string]bool)
	for _, loc := range w.locs {
		canonical, err := urlkeep.CanonicalizeURL(loc)
		if err != nil || kept[canonical] {
			continue
		}
		if prefix != "" && !underPath(canonical, prefix) {
			continue
		}
		if !filter.Match(canonical) {
			continue
		}
		kept[canonical] = true
		urls = append(urls, canonical)
	}
	return urls, nil
}

// underPath reports whether rawURL's path is prefix or lies below it.
// /docs covers /docs and /docs/intro but not /documentation.
func underPath(rawURL, prefix string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Path == prefix || strings.HasPrefix(u.Path, prefix+"/")
}

// locateSitemaps prefers robots.txt Sitemap directives and falls back to
// /sitemap.xml when there are none.
func (s *SitemapService) locateSitemaps(ctx context.Context, root *url.URL) ([]string, error) {
	robots := root.ResolveReference(&url.URL{Path: "/robots.txt"}).String()
	if body, err := s.get(ctx, robots); err == nil {
		sitemaps := robotsSitemaps(body)
		if len(sitemaps) > 0 {
			return sitemaps, nil
		}
	} else if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	fallback := root.ResolveReference(&url.URL{Path: "/sitemap.xml"}).String()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, fallback, nil)
	if err != nil {
		return nil, urlkeep.WrapError(urlkeep.EINVALID, err, "invalid sitemap URL")
	}
	req.Header.Set("User-Agent", s.userAgent)
	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, nil
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}
	return []string{fallback}, nil
}

func robotsSitemaps(body []byte) []string {
	var sitemaps []string
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "sitemap") {
			continue
		}
		if value = strings.TrimSpace(value); value != "" {
			sitemaps = append(sitemaps, value)
		}
	}
	return sitemaps
}

// sitemapWalk collects <loc> values across a tree of sitemap indexes.
type sitemapWalk struct {
	svc  *SitemapService
	seen map[string]bool
	locs []string
}

func (w *sitemapWalk) visit(ctx context.Context, sitemapURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.seen[sitemapURL] {
		return nil
	}
	if len(w.seen) >= MaxSitemaps {
		return urlkeep.Errorf(urlkeep.EFETCH, "more than %d sitemaps", MaxSitemaps)
	}
	w.seen[sitemapURL] = true

	body, err := w.svc.get(ctx, sitemapURL)
	if err != nil {
		return err
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return urlkeep.WrapError(urlkeep.EFETCH, err, "invalid sitemap XML at %s", sitemapURL)
	}
	root := doc.Root()
	if root == nil {
		return urlkeep.Errorf(urlkeep.EFETCH, "empty sitemap XML at %s", sitemapURL)
	}

	if root.Tag == "sitemapindex" {
		for _, child := range locs(root, "sitemap") {
			if err := w.visit(ctx, child); err != nil {
				return err
			}
		}
		return nil
	}
	w.locs = append(w.locs, locs(root, "url")...)
	return nil
}

// locs returns the trimmed <loc> text of each tag child of root.
func locs(root *etree.Element, tag string) []string {
	var out []string
	for _, el := range root.SelectElements(tag) {
		loc := el.SelectElement("loc")
		if loc == nil {
			continue
		}
		if v := strings.TrimSpace(loc.Text()); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// get fetches targetURL and returns its body. Gzipped sitemaps
// (sitemap.xml.gz) are inflated.
func (s *SitemapService) get(ctx context.Context, targetURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, urlkeep.WrapError(urlkeep.EINVALID, err, "invalid URL %s", targetURL)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, urlkeep.WrapError(urlkeep.EFETCH, err, "failed to fetch %s", targetURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, urlkeep.Errorf(urlkeep.EFETCH, "HTTP %d for %s", resp.StatusCode, targetURL)
	}

	r, err := decodeReader(resp.Body, resp.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(io.LimitReader(r, DefaultMaxBodySize*5))
	if err != nil {
		return nil, urlkeep.WrapError(urlkeep.EFETCH, err, "failed to read %s", targetURL)
	}

	if len(body) > 2 && body[0] == 0x1f && body[1] == 0x8b {
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, urlkeep.WrapError(urlkeep.EFETCH, err, "invalid gzip sitemap %s", targetURL)
		}
		defer zr.Close()
		if body, err = io.ReadAll(io.LimitReader(zr, DefaultMaxBodySize*5)); err != nil {
			return nil, urlkeep.WrapError(urlkeep.EFETCH, err, "failed to inflate %s", targetURL)
		}
	}
	return body, nil
}
