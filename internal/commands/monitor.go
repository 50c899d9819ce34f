package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bcaldwell/moneymanager/internal/monitor"
	"github.com/bcaldwell/moneymanager/pkg/transactions"
)

func newMonitorCommand(opts *rootOptions) *cobra.Command {
	var singleRun bool

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Periodically check that every linked account still answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, secrets, err := opts.load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, db, err := openStore(ctx, cfg, secrets, false)
			if err != nil {
				return err
			}
			defer db.Close()

			c, err := buildClients(cfg, secrets)
			if err != nil {
				return err
			}

			writer, closeWriter, err := monitor.OpenWriter(secrets.Influx, cfg.Monitor.InfluxDatabase)
			if err != nil {
				return err
			}
			defer closeWriter()

			m := monitor.New(cfg, store, transactions.NewFetcher(cfg.Fetch.MaxConcurrent, c.adapters...), writer)
			return m.Run(ctx, singleRun)
		},
	}

	cmd.Flags().BoolVar(&singleRun, "single-run", false, "check once and exit (disable cron)")

	return cmd
}
