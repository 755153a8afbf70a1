package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ryosukesatoh/arxiv-push/internal/scheduler"
	"github.com/ryosukesatoh/arxiv-push/internal/server"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string
	var withSchedule bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search API",
		Long: `Serve exposes the search runner over HTTP:

  POST /api/search            start a search
  GET  /api/status            current progress and results
  POST /api/stop              stop the active search
  GET  /api/download/:format  download the last report (html, markdown)
  GET  /api/history           recent runs

With --schedule the daily trigger runs in the same process and shares the
runner, so a scheduled search and an API search never overlap.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := setup(root, cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if !cfg.Log.Development {
				gin.SetMode(gin.ReleaseMode)
			}

			a, err := newApp(cfg, l)
			if err != nil {
				return err
			}
			defer a.shutdown()

			srvOpts := []server.Option{server.WithLogger(l.Named("server"))}
			if a.history != nil {
				srvOpts = append(srvOpts, server.WithHistory(a.history))
			}
			srv := server.New(a.runner, a.defaultRequest(), srvOpts...)

			var sched *scheduler.Scheduler
			if withSchedule {
				sched, err = scheduler.New(a.runner, a.defaultRequest(), cfg.Schedule, l)
				if err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.Run(ctx, cfg.Server.Addr)
			})
			if sched != nil {
				g.Go(func() error {
					if cfg.RunOnStart {
						sched.Trigger()
					}
					sched.Start()
					<-ctx.Done()
					<-sched.Stop().Done()
					return nil
				})
			}

			err = g.Wait()
			l.Info("Shutting down", zap.Error(err))
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address; defaults to the config server.addr")
	cmd.Flags().BoolVar(&withSchedule, "schedule", false, "also run the configured daily schedule")
	return cmd
}
