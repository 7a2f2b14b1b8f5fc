package goquery_test

import (
	"testing"

	"github.com/fwojciec/urlkeep"
	"github.com/fwojciec/urlkeep/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func htmlPage(url, html string) *urlkeep.Page {
	return &urlkeep.Page{
		URL: url,
		Content: &urlkeep.Content{
			URL:        url,
			FinalURL:   url,
			StatusCode: 200,
			MediaType:  "text/html",
			Body:       []byte(html),
		},
	}
}

func TestGenericExtractor_Extract(t *testing.T) {
	t.Parallel()

	const url = "https://example.com/post"

	t.Run("prefers OpenGraph over Twitter and title", func(t *testing.T) {
		t.Parallel()

		html := `<html><head>
<title>Page Title</title>
<meta name="twitter:title" content="Twitter Title">
<meta property="og:title" content="OG Title">
<meta name="twitter:description" content="Twitter description">
<meta property="og:description" content="OG description">
<meta name="description" content="Meta description">
</head><body></body></html>`

		got, err := goquery.NewGenericExtractor().Extract(htmlPage(url, html))

		require.NoError(t, err)
		require.NotNil(t, got.Title)
		assert.Equal(t, "OG Title", *got.Title)
		require.NotNil(t, got.Description)
		assert.Equal(t, "OG description", *got.Description)
		require.NotNil(t, got.BodyText)
		assert.Equal(t, url+"\n\nOG description", *got.BodyText)
	})

	t.Run("falls back to Twitter Card", func(t *testing.T) {
		t.Parallel()

		html := `<html><head>
<title>Page Title</title>
<meta name="twitter:title" content="Twitter Title">
<meta name="twitter:description" content="Twitter description">
</head></html>`

		got, err := goquery.NewGenericExtractor().Extract(htmlPage(url, html))

		require.NoError(t, err)
		assert.Equal(t, "Twitter Title", *got.Title)
		assert.Equal(t, "Twitter description", *got.Description)
	})

	t.Run("uses title element and meta description", func(t *testing.T) {
		t.Parallel()

		html := `<html><head>
<title>  Blog
</title>
<meta name="description" content="All about things">
</head></html>`

		got, err := goquery.NewGenericExtractor().Extract(htmlPage(url, html))

		require.NoError(t, err)
		assert.Equal(t, "Blog", *got.Title)
		assert.Equal(t, "All about things", *got.Description)
	})

	t.Run("text is the URL alone without a description", func(t *testing.T) {
		t.Parallel()

		html := `<html><head><title>Blog</title></head><body><p>Hello</p></body></html>`

		got, err := goquery.NewGenericExtractor().Extract(htmlPage(url, html))

		require.NoError(t, err)
		assert.Nil(t, got.Description)
		assert.Equal(t, url, *got.BodyText)
	})

	t.Run("ignores empty meta content", func(t *testing.T) {
		t.Parallel()

		html := `<html><head>
<meta property="og:title" content="  ">
<title>Real Title</title>
</head></html>`

		got, err := goquery.NewGenericExtractor().Extract(htmlPage(url, html))

		require.NoError(t, err)
		assert.Equal(t, "Real Title", *got.Title)
	})

	t.Run("falls back to URL without any title", func(t *testing.T) {
		t.Parallel()

		got, err := goquery.NewGenericExtractor().Extract(htmlPage(url, `<html><body>no head</body></html>`))

		require.NoError(t, err)
		assert.Equal(t, url, *got.Title)
	})
}

func TestGenericExtractor_Match(t *testing.T) {
	t.Parallel()

	e := goquery.NewGenericExtractor()
	assert.Equal(t, "generic", e.Name())
	assert.True(t, e.Match(&urlkeep.Page{URL: "https://anything.example/"}))
}
