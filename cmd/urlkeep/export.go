package main

import (
	"fmt"
	"path/filepath"

	"github.com/fwojciec/urlkeep"
	"github.com/fwojciec/urlkeep/fs"
)

// Run executes the export command.
func (c *ExportCmd) Run(deps *Dependencies) error {
	records, err := deps.Records.FindRecords(deps.Ctx, urlkeep.RecordFilter{})
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", urlkeep.ErrorMessage(err))
		return err
	}

	dir := filepath.Clean(c.Dir)
	exporter := fs.NewExporter(filepath.Dir(dir), filepath.Base(dir))
	if err := fs.Export(deps.Ctx, exporter, records); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", urlkeep.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Exported %d records to %s\n", len(records), dir)
	return nil
}
