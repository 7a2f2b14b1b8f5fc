package main

import (
	"fmt"

	"github.com/fwojciec/urlkeep"
	"github.com/fwojciec/urlkeep/cron"
	"github.com/fwojciec/urlkeep/reconcile"
)

// Run executes the reconcile command.
func (c *ReconcileCmd) Run(deps *Dependencies) error {
	if c.Watch {
		if spec := deps.Config.Reconcile.Sweep; spec != "" {
			sweeper := cron.NewSweeper(deps.Reconciler, deps.Logger)
			if err := sweeper.Start(deps.Ctx, spec); err != nil {
				fmt.Fprintf(deps.Stderr, "error: %s\n", urlkeep.ErrorMessage(err))
				return err
			}
			defer sweeper.Stop()
		}
		fmt.Fprintln(deps.Stdout, "Watching pending batch. Press Ctrl+C to stop.")
		return deps.Reconciler.Run(deps.Ctx)
	}

	if _, err := deps.Reconciler.Recover(deps.Ctx); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", urlkeep.ErrorMessage(err))
		return err
	}

	result, err := deps.Reconciler.Reconcile(deps.Ctx)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", urlkeep.ErrorMessage(err))
		return err
	}

	printOutcomes(deps, result)
	return nil
}

func printOutcomes(deps *Dependencies, result *reconcile.Result) {
	if len(result.Outcomes) == 0 {
		fmt.Fprintln(deps.Stdout, "Nothing to import.")
		return
	}

	for _, o := range result.Outcomes {
		switch o.State {
		case urlkeep.StateCommitted:
			fmt.Fprintf(deps.Stdout, "  ✓ %s -> %q\n", o.URL, o.Title)
		case urlkeep.StateDuplicate:
			fmt.Fprintf(deps.Stdout, "  = %s already imported as %q\n", o.URL, o.Title)
		case urlkeep.StateQueued:
			fmt.Fprintf(deps.Stdout, "  - %s interrupted, queued again\n", o.URL)
		default:
			fmt.Fprintf(deps.Stdout, "  ✗ %s: %s\n", o.URL, urlkeep.ErrorMessage(o.Err))
		}
	}
	fmt.Fprintf(deps.Stdout, "Imported %d, duplicates %d, failed %d\n", result.Committed, result.Duplicates, result.Failed)
}
