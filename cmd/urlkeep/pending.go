package main

import (
	"fmt"

	"github.com/fwojciec/urlkeep"
	"github.com/fwojciec/urlkeep/reconcile"
)

// Run executes the pending command.
func (c *PendingCmd) Run(deps *Dependencies) error {
	var clear []urlkeep.ImportState
	if c.ClearFailed {
		clear = append(clear, urlkeep.StateFailed)
	}
	if c.ClearDuplicates {
		clear = append(clear, urlkeep.StateDuplicate)
	}
	if len(clear) > 0 {
		n, err := reconcile.Clear(deps.Ctx, deps.Batches, clear...)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", urlkeep.ErrorMessage(err))
			return err
		}
		fmt.Fprintf(deps.Stdout, "Removed %d entries\n", n)
		return nil
	}

	b, err := deps.Batches.FindBatch(deps.Ctx)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", urlkeep.ErrorMessage(err))
		return err
	}

	if b.Drained() {
		fmt.Fprintln(deps.Stdout, "No pending entries.")
		return nil
	}

	for _, slot := range b.Slots() {
		e := b.Entries[slot]
		fmt.Fprintf(deps.Stdout, "%s  %-10s  %s", slot, e.State, e.SourceText)
		if e.Reason != "" {
			fmt.Fprintf(deps.Stdout, "  (%s)", e.Reason)
		}
		fmt.Fprintln(deps.Stdout)
	}
	return nil
}
