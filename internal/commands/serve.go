package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bcaldwell/moneymanager/internal/server"
	"github.com/bcaldwell/moneymanager/pkg/transactions"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var skipMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, secrets, err := opts.load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, db, err := openStore(ctx, cfg, secrets, !skipMigrate)
			if err != nil {
				return err
			}
			defer db.Close()

			c, err := buildClients(cfg, secrets)
			if err != nil {
				return err
			}

			srvOpts := server.Options{
				Config:  cfg,
				Store:   store,
				Fetcher: transactions.NewFetcher(cfg.Fetch.MaxConcurrent, c.adapters...),
				Linkers: c.linkers,
			}
			if c.plaid != nil {
				srvOpts.LinkTokens = c.plaid
			}

			return server.New(srvOpts).Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not create the credentials table on startup")

	return cmd
}
