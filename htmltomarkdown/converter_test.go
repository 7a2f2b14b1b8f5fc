package htmltomarkdown_test

import (
	"testing"

	"github.com/fwojciec/urlkeep"
	"github.com/fwojciec/urlkeep/htmltomarkdown"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConverter_Convert(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		html string
		want []string
	}{
		{"paragraph", `<p>Hello, world!</p>`, []string{"Hello, world!"}},
		{"headings", `<h1>Title</h1><h2>Subtitle</h2>`, []string{"# Title", "## Subtitle"}},
		{"links", `<p>Visit <a href="https://example.com">Example</a>.</p>`, []string{"[Example](https://example.com)"}},
		{"lists", `<ul><li>First</li><li>Second</li></ul>`, []string{"- First", "- Second"}},
		{"emphasis", `<p><strong>Bold</strong> and <em>italic</em></p>`, []string{"**Bold**", "*italic*"}},
		{"blockquote", `<blockquote><p>Quoted.</p></blockquote>`, []string{"> Quoted."}},
		{"table", `<table><thead><tr><th>Name</th></tr></thead><tbody><tr><td>Alice</td></tr></tbody></table>`, []string{"Name", "Alice", "|"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			md, err := htmltomarkdown.NewConverter().Convert(tt.html, "")

			require.NoError(t, err)
			for _, want := range tt.want {
				assert.Contains(t, md, want)
			}
		})
	}

	t.Run("trims surrounding whitespace", func(t *testing.T) {
		t.Parallel()

		md, err := htmltomarkdown.NewConverter().Convert("\n<p>Body</p>\n\n", "")

		require.NoError(t, err)
		assert.Equal(t, "Body", md)
	})

	t.Run("returns error for empty input", func(t *testing.T) {
		t.Parallel()

		_, err := htmltomarkdown.NewConverter().Convert("  ", "")

		assert.Equal(t, urlkeep.EINVALID, urlkeep.ErrorCode(err))
	})
}

func TestConverter_Convert_ResolvesRelativeLinks(t *testing.T) {
	t.Parallel()

	md, err := htmltomarkdown.NewConverter().Convert(`<p><a href="/about">About</a></p>`, "https://example.com/blog/post")

	require.NoError(t, err)
	assert.Contains(t, md, "(https://example.com/about)")
}
