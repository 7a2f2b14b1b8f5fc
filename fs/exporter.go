package fs

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fwojciec/urlkeep"
)

// Ensure Exporter implements urlkeep.RecordExporter at compile time.
var _ urlkeep.RecordExporter = (*Exporter)(nil)

// Exporter implements urlkeep.RecordExporter with atomic update semantics.
// Records are saved to a temporary directory, then moved atomically on Commit.
type Exporter struct {
	baseDir string
	name    string

	// used file names, lowercased, for case-insensitive filesystems
	used map[string]bool

	// prepared is set once the temp directory has been emptied for this
	// export.
	prepared bool
}

// NewExporter creates a new Exporter.
// Files are saved to baseDir/name.tmp and moved to baseDir/name on Commit.
func NewExporter(baseDir, name string) *Exporter {
	return &Exporter{
		baseDir: baseDir,
		name:    name,
		used:    make(map[string]bool),
	}
}

func (e *Exporter) tempDir() string {
	return filepath.Join(e.baseDir, e.name+".tmp")
}

func (e *Exporter) finalDir() string {
	return filepath.Join(e.baseDir, e.name)
}

// Save writes one record. Titles that map to the same file name get a
// numeric suffix.
func (e *Exporter) Save(ctx context.Context, rec *urlkeep.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.Title == "" {
		return urlkeep.Errorf(urlkeep.EINVALID, "record title required")
	}

	if err := e.prepare(); err != nil {
		return err
	}

	name := e.claim(TiddlerFilename(rec.Title))
	return os.WriteFile(filepath.Join(e.tempDir(), name), []byte(FormatTiddler(rec)), 0644)
}

// prepare empties the temp directory on first use, so files left by an
// interrupted export are never published.
func (e *Exporter) prepare() error {
	if e.prepared {
		return nil
	}
	if err := os.RemoveAll(e.tempDir()); err != nil {
		return err
	}
	if err := os.MkdirAll(e.tempDir(), 0755); err != nil {
		return err
	}
	e.prepared = true
	return nil
}

func (e *Exporter) claim(name string) string {
	base := strings.TrimSuffix(name, TiddlerExt)
	for n := 1; ; n++ {
		if !e.used[strings.ToLower(name)] {
			e.used[strings.ToLower(name)] = true
			return name
		}
		name = base + " (" + strconv.Itoa(n) + ")" + TiddlerExt
	}
}

// Commit replaces the final directory with the saved records.
func (e *Exporter) Commit() error {
	// An export with no records still produces an empty directory.
	if err := e.prepare(); err != nil {
		return err
	}
	if err := os.RemoveAll(e.finalDir()); err != nil {
		return err
	}
	if err := os.Rename(e.tempDir(), e.finalDir()); err != nil {
		return err
	}
	e.prepared = false
	clear(e.used)
	return nil
}

// Abort discards everything saved since the exporter was created.
func (e *Exporter) Abort() error {
	clear(e.used)
	e.prepared = false
	return os.RemoveAll(e.tempDir())
}

// Export saves every record and commits. On failure nothing is left behind
// and any previous export at the destination is untouched.
func Export(ctx context.Context, exporter urlkeep.RecordExporter, records []*urlkeep.Record) error {
	for _, rec := range records {
		if err := exporter.Save(ctx, rec); err != nil {
			_ = exporter.Abort()
			return err
		}
	}
	if err := exporter.Commit(); err != nil {
		_ = exporter.Abort()
		return err
	}
	return nil
}
