package commands

import (
	"context"
	"fmt"
	"net/http"

	"github.com/uptrace/bun"

	"github.com/bcaldwell/moneymanager/pkg/config"
	"github.com/bcaldwell/moneymanager/pkg/credentials"
	"github.com/bcaldwell/moneymanager/pkg/dbutils"
	"github.com/bcaldwell/moneymanager/pkg/providers"
	"github.com/bcaldwell/moneymanager/pkg/providers/plaid"
	"github.com/bcaldwell/moneymanager/pkg/providers/teller"
)

// clients holds the aggregator clients enabled in the config
type clients struct {
	adapters []providers.Adapter
	linkers  map[credentials.Provider]providers.Linker
	plaid    *plaid.Client
}

func buildClients(cfg *config.Config, secrets *config.Secrets) (*clients, error) {
	c := &clients{linkers: map[credentials.Provider]providers.Linker{}}

	if cfg.Plaid.Enabled {
		httpClient := &http.Client{Timeout: cfg.FetchTimeout()}
		c.plaid = plaid.NewClient(plaid.OptionsFromConfig(cfg, secrets, httpClient))
		c.adapters = append(c.adapters, c.plaid)
		c.linkers[credentials.Plaid] = c.plaid
	}

	if cfg.Teller.Enabled {
		tellerClient, err := teller.NewClientFromConfig(cfg, secrets)
		if err != nil {
			return nil, err
		}
		c.adapters = append(c.adapters, tellerClient)
		c.linkers[credentials.Teller] = tellerClient
	}

	return c, nil
}

func openStore(ctx context.Context, cfg *config.Config, secrets *config.Secrets, migrate bool) (*credentials.Store, *bun.DB, error) {
	db, err := dbutils.CreateClient(cfg, secrets)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := credentials.NewStore(db)
	if migrate {
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
	}

	return store, db, nil
}
