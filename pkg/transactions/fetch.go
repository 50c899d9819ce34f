package transactions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/bcaldwell/moneymanager/pkg/credentials"
	"github.com/bcaldwell/moneymanager/pkg/providers"
)

var ErrUnknownProvider = errors.New("no adapter for provider")

// AccountScoped is implemented by adapters that list transactions one account at a time.
// The Fetcher fans out over the accounts of those credentials.
type AccountScoped interface {
	AccountScoped() bool
}

// Fetcher pulls and normalizes the transactions of many credentials at once
type Fetcher struct {
	adapters      map[credentials.Provider]providers.Adapter
	maxConcurrent int
}

func NewFetcher(maxConcurrent int, adapters ...providers.Adapter) *Fetcher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	f := &Fetcher{
		adapters:      make(map[credentials.Provider]providers.Adapter, len(adapters)),
		maxConcurrent: maxConcurrent,
	}
	for _, a := range adapters {
		f.adapters[a.Provider()] = a
	}

	return f
}

// Adapter returns the adapter registered for p
func (f *Fetcher) Adapter(p credentials.Provider) (providers.Adapter, error) {
	a, ok := f.adapters[p]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownProvider, p)
	}
	return a, nil
}

// Fetch returns the normalized transactions of every credential inside r. A failing
// credential or account only loses its own transactions: the failure is logged and returned
// in the error slice. When everything fails the result is empty, never nil.
func (f *Fetcher) Fetch(ctx context.Context, creds []credentials.Credential, r providers.DateRange) ([]Transaction, []error) {
	results := make([][]Transaction, len(creds))
	failures := make([][]error, len(creds))

	var g errgroup.Group
	g.SetLimit(f.maxConcurrent)

	for i, cred := range creds {
		g.Go(func() error {
			results[i], failures[i] = f.fetchCredential(ctx, cred, r)
			for _, err := range failures[i] {
				slog.Error("failed to fetch transactions", "credential_id", cred.ID, "provider", cred.ServiceProvider, "error", err)
			}
			return nil
		})
	}

	// tasks never return an error
	_ = g.Wait()

	transactions := []Transaction{}
	errs := []error{}
	for i := range creds {
		transactions = append(transactions, results[i]...)
		errs = append(errs, failures[i]...)
	}

	return transactions, errs
}

func (f *Fetcher) fetchCredential(ctx context.Context, cred credentials.Credential, r providers.DateRange) ([]Transaction, []error) {
	adapter, err := f.Adapter(cred.ServiceProvider)
	if err != nil {
		return nil, []error{fmt.Errorf("credential %s: %w", cred.ID, err)}
	}

	accounts, err := adapter.ListAccounts(ctx, cred)
	if err != nil {
		return nil, []error{err}
	}

	accountsByID := make(map[string]*providers.Account, len(accounts))
	for i := range accounts {
		accountsByID[accounts[i].ID] = &accounts[i]
	}

	normalize := func(raw []providers.Transaction) []Transaction {
		txns := make([]Transaction, 0, len(raw))
		for _, t := range raw {
			if !r.Contains(t.Date()) {
				continue
			}
			txns = append(txns, Normalize(cred.ServiceProvider, t, accountsByID[t.AccountID()]))
		}
		return txns
	}

	if scoped, ok := adapter.(AccountScoped); !ok || !scoped.AccountScoped() {
		raw, err := adapter.ListTransactions(ctx, cred, "", r)
		if err != nil {
			return nil, []error{err}
		}
		return normalize(raw), nil
	}

	perAccount := make([][]Transaction, len(accounts))
	perAccountErrs := make([]error, len(accounts))

	var g errgroup.Group
	g.SetLimit(f.maxConcurrent)
	for i, account := range accounts {
		g.Go(func() error {
			raw, err := adapter.ListTransactions(ctx, cred, account.ID, r)
			if err != nil {
				perAccountErrs[i] = err
				return nil
			}
			perAccount[i] = normalize(raw)
			return nil
		})
	}
	_ = g.Wait()

	txns := []Transaction{}
	errs := []error{}
	for i := range accounts {
		txns = append(txns, perAccount[i]...)
		if perAccountErrs[i] != nil {
			errs = append(errs, perAccountErrs[i])
		}
	}

	return txns, errs
}
