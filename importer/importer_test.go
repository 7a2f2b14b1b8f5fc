package importer_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/fwojciec/urlkeep"
	"github.com/fwojciec/urlkeep/goquery"
	urlhttp "github.com/fwojciec/urlkeep/http"
	"github.com/fwojciec/urlkeep/importer"
	"github.com/fwojciec/urlkeep/mock"
	"github.com/fwojciec/urlkeep/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blogHTML = `<html><head><title>Blog</title></head><body><p>hello</p></body></html>`

const ogHTML = `<html><head>
<meta property="og:title" content="OG Title">
<meta property="og:description" content="OG Description">
</head><body></body></html>`

func setupRecords(t *testing.T) *sqlite.RecordService {
	t.Helper()
	db := sqlite.NewDB(":memory:")
	require.NoError(t, db.Open())
	t.Cleanup(func() { db.Close() })
	return sqlite.NewRecordService(db)
}

// htmlFetcher serves body for every URL and counts fetches.
func htmlFetcher(body string, calls *atomic.Int32) *mock.Fetcher {
	return &mock.Fetcher{
		FetchFn: func(_ context.Context, url string) (*urlkeep.Content, error) {
			if calls != nil {
				calls.Add(1)
			}
			return &urlkeep.Content{
				URL:        url,
				FinalURL:   url,
				StatusCode: http.StatusOK,
				MediaType:  "text/html",
				Body:       []byte(body),
			}, nil
		},
		CloseFn: func() error { return nil },
	}
}

func newImporter(t *testing.T, fetcher urlkeep.Fetcher) (*importer.Importer, *sqlite.RecordService) {
	t.Helper()
	records := setupRecords(t)
	registry := goquery.NewRegistry(nil)
	registry.Register(goquery.NewGitHubExtractor())
	return importer.NewImporter(records, fetcher, registry), records
}

func TestResolve(t *testing.T) {
	t.Parallel()

	t.Run("canonicalizes and trims", func(t *testing.T) {
		t.Parallel()

		target, err := importer.Resolve(urlkeep.ImportRequest{URL: "  HTTP://Example.COM:80/  "})

		require.NoError(t, err)
		assert.Equal(t, "HTTP://Example.COM:80/", target.Location)
		assert.Equal(t, "http://example.com", target.CanonicalURL)
	})

	t.Run("rejects malformed URL", func(t *testing.T) {
		t.Parallel()

		_, err := importer.Resolve(urlkeep.ImportRequest{URL: "not a url"})

		assert.Equal(t, urlkeep.EINVALID, urlkeep.ErrorCode(err))
	})

	t.Run("rejects malformed match URL", func(t *testing.T) {
		t.Parallel()

		_, err := importer.Resolve(urlkeep.ImportRequest{URL: "https://example.com/", MatchURL: "github.com/x"})

		assert.Equal(t, urlkeep.EINVALID, urlkeep.ErrorCode(err))
	})
}

func TestImporter_Import(t *testing.T) {
	t.Parallel()

	t.Run("creates record located at requested URL", func(t *testing.T) {
		t.Parallel()

		imp, records := newImporter(t, htmlFetcher(ogHTML, nil))
		ctx := context.Background()
		url := "http://localhost:8080/og.html"

		rec, err := imp.Import(ctx, urlkeep.ImportRequest{URL: url})

		require.NoError(t, err)
		assert.Equal(t, "OG Title", rec.Title)
		assert.Equal(t, url, rec.Location)
		assert.Equal(t, "OG Description", rec.Fields["description"])
		assert.Equal(t, url+"\n\nOG Description", rec.Text)
		assert.Empty(t, rec.Extractor)

		stored, err := records.FindRecordByCanonicalURL(ctx, url)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, stored.ID)
	})

	t.Run("second import of same URL is a duplicate without fetching", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		imp, records := newImporter(t, htmlFetcher(blogHTML, &calls))
		ctx := context.Background()

		first, err := imp.Import(ctx, urlkeep.ImportRequest{URL: "https://example.com/post"})
		require.NoError(t, err)

		_, err = imp.Import(ctx, urlkeep.ImportRequest{URL: "HTTPS://EXAMPLE.com:443/post"})

		var dup *urlkeep.DuplicateURLError
		require.True(t, errors.As(err, &dup))
		assert.Equal(t, first.Title, dup.Existing.Title)
		assert.Equal(t, urlkeep.ECONFLICT, urlkeep.ErrorCode(err))
		assert.Equal(t, int32(1), calls.Load())

		all, err := records.FindRecords(ctx, urlkeep.RecordFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("disambiguates colliding titles", func(t *testing.T) {
		t.Parallel()

		imp, _ := newImporter(t, htmlFetcher(blogHTML, nil))
		ctx := context.Background()

		a, err := imp.Import(ctx, urlkeep.ImportRequest{URL: "https://a.example/"})
		require.NoError(t, err)
		b, err := imp.Import(ctx, urlkeep.ImportRequest{URL: "https://b.example/"})
		require.NoError(t, err)

		assert.Equal(t, "Blog", a.Title)
		assert.Equal(t, "Blog 1", b.Title)
	})

	t.Run("match URL selects site extractor", func(t *testing.T) {
		t.Parallel()

		imp, _ := newImporter(t, htmlFetcher(ogHTML, nil))

		rec, err := imp.Import(context.Background(), urlkeep.ImportRequest{
			URL:      "http://localhost:8080/github.html",
			MatchURL: "https://github.com/hoelzro/tiddlywiki-first-class-urls",
		})

		require.NoError(t, err)
		assert.Equal(t, "github", rec.Extractor)
		assert.Equal(t, "tiddlywiki-first-class-urls", rec.Title)
		assert.Equal(t, "hoelzro", rec.Fields["github_author"])
		assert.Equal(t, "http://localhost:8080/github.html", rec.Location)
	})

	t.Run("override fields win", func(t *testing.T) {
		t.Parallel()

		imp, _ := newImporter(t, htmlFetcher(blogHTML, nil))

		rec, err := imp.Import(context.Background(), urlkeep.ImportRequest{
			URL:    "https://example.com/",
			Fields: map[string]string{"title": "Mine", "tags": "Reading"},
		})

		require.NoError(t, err)
		assert.Equal(t, "Mine", rec.Title)
		assert.Equal(t, "Reading", rec.Fields["tags"])
	})

	t.Run("invalid URL is rejected before fetch", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		imp, _ := newImporter(t, htmlFetcher(blogHTML, &calls))

		_, err := imp.Import(context.Background(), urlkeep.ImportRequest{URL: "example.com/nope"})

		assert.Equal(t, urlkeep.EINVALID, urlkeep.ErrorCode(err))
		assert.Zero(t, calls.Load())
	})

	t.Run("wraps uncoded fetch errors", func(t *testing.T) {
		t.Parallel()

		fetcher := &mock.Fetcher{
			FetchFn: func(context.Context, string) (*urlkeep.Content, error) {
				return nil, errors.New("connection reset")
			},
		}
		imp, _ := newImporter(t, fetcher)

		_, err := imp.Import(context.Background(), urlkeep.ImportRequest{URL: "https://example.com/"})

		assert.Equal(t, urlkeep.EFETCH, urlkeep.ErrorCode(err))
	})

	t.Run("wraps uncoded extractor errors", func(t *testing.T) {
		t.Parallel()

		records := setupRecords(t)
		registry := &mock.ExtractorRegistry{
			SelectFn: func(*urlkeep.Page) urlkeep.Extractor {
				return &mock.Extractor{
					NameFn: func() string { return "broken" },
					ExtractFn: func(*urlkeep.Page) (*urlkeep.PartialRecord, error) {
						return nil, errors.New("boom")
					},
				}
			},
		}
		imp := importer.NewImporter(records, htmlFetcher(blogHTML, nil), registry)

		_, err := imp.Import(context.Background(), urlkeep.ImportRequest{URL: "https://example.com/"})

		assert.Equal(t, urlkeep.EEXTRACT, urlkeep.ErrorCode(err))
	})
}

func TestImporter_Import_HTTP(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><title>Final Page</title></head></html>`)
	})
	mux.HandleFunc("/doc.pdf", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF-1.4")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	t.Run("redirect imports final content at requested location", func(t *testing.T) {
		t.Parallel()

		imp, _ := newImporter(t, urlhttp.NewFetcher())

		rec, err := imp.Import(context.Background(), urlkeep.ImportRequest{URL: srv.URL + "/old"})

		require.NoError(t, err)
		assert.Equal(t, "Final Page", rec.Title)
		assert.Equal(t, srv.URL+"/old", rec.Location)
	})

	t.Run("unsupported content type creates no record", func(t *testing.T) {
		t.Parallel()

		imp, records := newImporter(t, urlhttp.NewFetcher())
		ctx := context.Background()

		_, err := imp.Import(ctx, urlkeep.ImportRequest{URL: srv.URL + "/doc.pdf"})

		assert.Equal(t, urlkeep.EUNSUPPORTED, urlkeep.ErrorCode(err))
		all, err := records.FindRecords(ctx, urlkeep.RecordFilter{})
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}

func TestImporter_Run(t *testing.T) {
	t.Parallel()

	t.Run("reports states in order and writes through store", func(t *testing.T) {
		t.Parallel()

		imp, records := newImporter(t, htmlFetcher(blogHTML, nil))
		ctx := context.Background()
		target, err := importer.Resolve(urlkeep.ImportRequest{URL: "https://example.com/"})
		require.NoError(t, err)

		stager := records.Stage()
		var states []urlkeep.ImportState
		rec, err := imp.Run(ctx, target, stager, func(s urlkeep.ImportState) {
			states = append(states, s)
		})
		require.NoError(t, err)

		assert.Equal(t, []urlkeep.ImportState{urlkeep.StateFetching, urlkeep.StateExtracting, urlkeep.StateMerging}, states)

		_, err = records.FindRecordByTitle(ctx, rec.Title)
		assert.Equal(t, urlkeep.ENOTFOUND, urlkeep.ErrorCode(err), "staged record is not stored before commit")

		_, err = stager.Commit(ctx)
		require.NoError(t, err)
		_, err = records.FindRecordByTitle(ctx, rec.Title)
		assert.NoError(t, err)
	})
}
