package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/booking-api/internal/app"
	"github.com/jwalitptl/booking-api/internal/repository/postgres"
	"github.com/jwalitptl/booking-api/internal/worker"
)

func newHoldsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "holds",
		Short: "Manage reservation holds",
	}
	cmd.AddCommand(newHoldsCleanupCmd(opts))
	return cmd
}

func newHoldsCleanupCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired holds once, for cron-style schedulers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			db, err := postgres.NewDB(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			a, err := app.New(cfg, db, log)
			if err != nil {
				return err
			}

			n, err := worker.NewHoldCleanupWorker(a.Holds, cfg.Holds.CleanupInterval, log).RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired holds\n", n)
			return nil
		},
	}
}
