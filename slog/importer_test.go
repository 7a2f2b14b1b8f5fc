package slog_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/fwojciec/urlkeep"
	"github.com/fwojciec/urlkeep/mock"
	keepslog "github.com/fwojciec/urlkeep/slog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggingImporter_Import(t *testing.T) {
	t.Parallel()

	t.Run("logs created title", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		inner := &mock.Importer{
			ImportFn: func(context.Context, urlkeep.ImportRequest) (*urlkeep.Record, error) {
				return &urlkeep.Record{Title: "Blog 1", Extractor: "github"}, nil
			},
		}

		imp := keepslog.NewLoggingImporter(inner, newLogger(&buf))
		rec, err := imp.Import(context.Background(), urlkeep.ImportRequest{URL: "https://github.com/a/b"})

		require.NoError(t, err)
		assert.Equal(t, "Blog 1", rec.Title)
		output := buf.String()
		assert.Contains(t, output, "msg=import")
		assert.Contains(t, output, `title="Blog 1"`)
		assert.Contains(t, output, "extractor=github")
	})

	t.Run("logs duplicate with existing title", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		inner := &mock.Importer{
			ImportFn: func(context.Context, urlkeep.ImportRequest) (*urlkeep.Record, error) {
				return nil, &urlkeep.DuplicateURLError{
					CanonicalURL: "https://example.com",
					Existing:     &urlkeep.Record{Title: "Example"},
				}
			},
		}

		imp := keepslog.NewLoggingImporter(inner, newLogger(&buf))
		_, err := imp.Import(context.Background(), urlkeep.ImportRequest{URL: "https://example.com/"})

		require.Error(t, err)
		output := buf.String()
		assert.Contains(t, output, "level=INFO")
		assert.Contains(t, output, `msg="import duplicate"`)
		assert.Contains(t, output, "existing=Example")
	})

	t.Run("logs failures at error", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		inner := &mock.Importer{
			ImportFn: func(context.Context, urlkeep.ImportRequest) (*urlkeep.Record, error) {
				return nil, urlkeep.WrapError(urlkeep.EFETCH, errors.New("timeout"), "failed to fetch")
			},
		}

		imp := keepslog.NewLoggingImporter(inner, newLogger(&buf))
		_, err := imp.Import(context.Background(), urlkeep.ImportRequest{URL: "https://example.com/"})

		require.Error(t, err)
		output := buf.String()
		assert.Contains(t, output, "level=ERROR")
		assert.Contains(t, output, "code=fetch")
	})
}
