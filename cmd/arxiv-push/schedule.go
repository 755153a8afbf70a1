package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ryosukesatoh/arxiv-push/internal/scheduler"
)

func newScheduleCmd(root *rootOptions) *cobra.Command {
	var at string
	var runOnStart bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the configured search every day",
		Long: `Schedule runs the search from the config file at a fixed time every day
and delivers it to the configured publishers. It runs until interrupted.

--at takes a local time such as 09:00 or a five-field cron expression.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, l, err := setup(root, cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("at") {
				cfg.Schedule = at
			}
			if cmd.Flags().Changed("run-on-start") {
				cfg.RunOnStart = runOnStart
			}

			a, err := newApp(cfg, l)
			if err != nil {
				return err
			}
			defer a.shutdown()

			sched, err := scheduler.New(a.runner, a.defaultRequest(), cfg.Schedule, l)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.RunOnStart {
				sched.Trigger()
			}
			sched.Start()

			<-ctx.Done()
			l.Info("Shutting down", zap.Error(context.Cause(ctx)))
			<-sched.Stop().Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "daily run time (HH:MM) or cron expression; defaults to the config schedule")
	cmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "run once immediately before the first scheduled time")
	return cmd
}
