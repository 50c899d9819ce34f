package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bcaldwell/moneymanager/pkg/config"
)

type rootOptions struct {
	configFile  string
	secretsFile string
	envFile     string
}

func (o *rootOptions) load() (*config.Config, *config.Secrets, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load(o.envFile)

	return config.ReadConfig(o.configFile, o.secretsFile)
}

// NewRootCommand creates the root CLI command with all subcommands registered
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "moneymanager",
		Short: "Bank account dashboard backed by Plaid and Teller",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "./config.yml", "configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.secretsFile, "secrets", "./secrets.ejson", "ejson secrets file")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the config")

	rootCmd.AddCommand(newServeCommand(opts))
	rootCmd.AddCommand(newMonitorCommand(opts))
	rootCmd.AddCommand(newMigrateCommand(opts))

	return rootCmd
}
