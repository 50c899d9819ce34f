package commands

import (
	"github.com/spf13/cobra"
	"k8s.io/klog"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the credentials table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, secrets, err := opts.load()
			if err != nil {
				return err
			}

			_, db, err := openStore(cmd.Context(), cfg, secrets, true)
			if err != nil {
				return err
			}
			defer db.Close()

			klog.Infof("Credentials table is up to date in %s\n", cfg.SQL.Driver)
			return nil
		},
	}
}
