package goquery_test

import (
	"testing"

	"github.com/fwojciec/urlkeep"
	"github.com/fwojciec/urlkeep/goquery"
	"github.com/fwojciec/urlkeep/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func namedExtractor(name string, match bool) *mock.Extractor {
	return &mock.Extractor{
		NameFn:  func() string { return name },
		MatchFn: func(*urlkeep.Page) bool { return match },
	}
}

func TestRegistry_Select(t *testing.T) {
	t.Parallel()

	t.Run("returns first matching extractor", func(t *testing.T) {
		t.Parallel()

		registry := goquery.NewRegistry(nil)
		registry.Register(namedExtractor("first", false))
		registry.Register(namedExtractor("second", true))
		registry.Register(namedExtractor("third", true))

		got := registry.Select(&urlkeep.Page{URL: "https://example.com/"})

		require.NotNil(t, got)
		assert.Equal(t, "second", got.Name())
	})

	t.Run("returns fallback when nothing matches", func(t *testing.T) {
		t.Parallel()

		registry := goquery.NewRegistry(nil)
		registry.Register(namedExtractor("site", false))

		got := registry.Select(&urlkeep.Page{URL: "https://example.com/"})

		require.NotNil(t, got)
		assert.Equal(t, urlkeep.GenericExtractorName, got.Name())
	})

	t.Run("uses provided fallback", func(t *testing.T) {
		t.Parallel()

		registry := goquery.NewRegistry(namedExtractor("custom", true))

		got := registry.Select(&urlkeep.Page{URL: "https://example.com/"})

		assert.Equal(t, "custom", got.Name())
	})

	t.Run("selects by match URL", func(t *testing.T) {
		t.Parallel()

		registry := goquery.NewRegistry(nil)
		registry.Register(goquery.NewGitHubExtractor())

		got := registry.Select(&urlkeep.Page{
			URL:      "http://localhost:8080/github.html",
			MatchURL: "https://github.com/hoelzro/tiddlywiki-first-class-urls",
		})

		assert.Equal(t, "github", got.Name())
	})
}

func TestRegistry_List(t *testing.T) {
	t.Parallel()

	registry := goquery.NewRegistry(nil)
	registry.Register(goquery.NewGitHubExtractor())
	registry.Register(goquery.NewGoodreadsExtractor())

	assert.Equal(t, []string{"github", "goodreads", "generic"}, registry.List())
}
