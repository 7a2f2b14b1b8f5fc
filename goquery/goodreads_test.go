package goquery_test

import (
	"testing"

	"github.com/fwojciec/urlkeep"
	"github.com/fwojciec/urlkeep/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodreadsHTML = `<!DOCTYPE html>
<html><head>
<title>Random Title by Robert Hoelz | Goodreads</title>
<meta property="og:title" content="Random Title by Robert Hoelz">
<meta name="description" content="foo bar baz">
</head><body>
<h1 data-testid="bookTitle">Random Title</h1>
<div class="ContributorLinksList">
	<a class="ContributorLink" href="/author/show/1"><span class="ContributorLink__name">Robert Hoelz</span></a>
</div>
</body></html>`

func TestGoodreadsExtractor_Match(t *testing.T) {
	t.Parallel()

	e := goquery.NewGoodreadsExtractor()

	assert.True(t, e.Match(&urlkeep.Page{URL: "https://www.goodreads.com/book/show/12345.Random_Title"}))
	assert.False(t, e.Match(&urlkeep.Page{URL: "https://www.goodreads.com/author/show/1"}))
	assert.False(t, e.Match(&urlkeep.Page{URL: "https://example.com/book/show/12345"}))
}

func TestGoodreadsExtractor_Extract(t *testing.T) {
	t.Parallel()

	t.Run("extracts title authors and description", func(t *testing.T) {
		t.Parallel()

		page := htmlPage("http://localhost:8080/goodreads.html", goodreadsHTML)
		page.MatchURL = "https://www.goodreads.com/book/show/12345.Random_Title"

		got, err := goquery.NewGoodreadsExtractor().Extract(page)

		require.NoError(t, err)
		assert.Equal(t, "Random Title", *got.Title)
		assert.Equal(t, "foo bar baz", *got.Description)
		assert.Equal(t, "http://localhost:8080/goodreads.html\n\nfoo bar baz", *got.BodyText)
		assert.Equal(t, "[[Robert Hoelz]]", got.ExtraFields["goodreads_authors"])
	})

	t.Run("reads legacy layout and dedupes authors", func(t *testing.T) {
		t.Parallel()

		html := `<html><body>
<h1 id="bookTitle">
	Old Book
</h1>
<div id="bookAuthors">
	<a class="authorName"><span itemprop="name">Ann Author</span></a>
	<a class="authorName"><span itemprop="name">Plato</span></a>
	<a class="authorName"><span itemprop="name">Ann Author</span></a>
</div>
</body></html>`

		got, err := goquery.NewGoodreadsExtractor().Extract(htmlPage("https://www.goodreads.com/book/show/1", html))

		require.NoError(t, err)
		assert.Equal(t, "Old Book", *got.Title)
		assert.Equal(t, "[[Ann Author]] Plato", got.ExtraFields["goodreads_authors"])
		assert.Nil(t, got.Description)
	})

	t.Run("fails without a title", func(t *testing.T) {
		t.Parallel()

		_, err := goquery.NewGoodreadsExtractor().Extract(htmlPage("https://www.goodreads.com/book/show/1", `<html></html>`))

		assert.Equal(t, urlkeep.EEXTRACT, urlkeep.ErrorCode(err))
	})
}
