package main

import (
	"fmt"

	"github.com/fwojciec/urlkeep"
	"github.com/fwojciec/urlkeep/cron"
	keepgin "github.com/fwojciec/urlkeep/gin"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// Run executes the serve command. Unless disabled, pending entries are
// imported in the background while serving.
func (c *ServeCmd) Run(deps *Dependencies) error {
	gin.SetMode(gin.ReleaseMode)
	srv := keepgin.NewServer(deps.Importer, deps.Records, deps.Batches, deps.Logger)

	g, ctx := errgroup.WithContext(deps.Ctx)

	if !c.NoReconcile && deps.Config.Reconcile.Sweep != "" {
		sweeper := cron.NewSweeper(deps.Reconciler, deps.Logger)
		if err := sweeper.Start(ctx, deps.Config.Reconcile.Sweep); err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", urlkeep.ErrorMessage(err))
			return err
		}
		defer sweeper.Stop()
	}

	g.Go(func() error {
		return srv.Serve(ctx, deps.Config.Server.Addr)
	})
	if !c.NoReconcile {
		g.Go(func() error {
			return deps.Reconciler.Run(ctx)
		})
	}

	return g.Wait()
}
