package teller

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bcaldwell/moneymanager/pkg/credentials"
	"github.com/bcaldwell/moneymanager/pkg/providers"
)

const pageSize = 250

type transaction struct {
	TransactionID        string              `json:"id"`
	TransactionAccountID string              `json:"account_id"`
	RawAmount            decimal.Decimal     `json:"amount"`
	RawDate              string              `json:"date"`
	RawDescription       string              `json:"description"`
	RawRunningBalance    decimal.NullDecimal `json:"running_balance"`
	Status               string              `json:"status"`
	Type                 string              `json:"type"`
	Details              struct {
		Category     string `json:"category"`
		Counterparty struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"counterparty"`
	} `json:"details"`

	date time.Time
}

func (t *transaction) ID() string {
	return t.TransactionID
}

func (t *transaction) Date() time.Time {
	return t.date
}

func (t *transaction) Datetime() time.Time {
	return time.Time{}
}

// Amount is already negative for money leaving the account
func (t *transaction) Amount() decimal.Decimal {
	return t.RawAmount
}

func (t *transaction) Description() string {
	return t.RawDescription
}

func (t *transaction) MerchantName() string {
	return t.Details.Counterparty.Name
}

func (t *transaction) Category() []string {
	if t.Details.Category == "" {
		return []string{}
	}
	return []string{t.Details.Category}
}

func (t *transaction) AccountID() string {
	return t.TransactionAccountID
}

func (t *transaction) RunningBalance() decimal.NullDecimal {
	return t.RawRunningBalance
}

// ListTransactions pages through the account's transactions newest first. Teller does not
// filter by date, so records outside r are dropped here and paging stops once a page reaches
// past the start of the range. An empty accountID walks every account of the enrollment.
func (c *Client) ListTransactions(ctx context.Context, cred credentials.Credential, accountID string, r providers.DateRange) ([]providers.Transaction, error) {
	if accountID != "" {
		return c.accountTransactions(ctx, cred, accountID, r)
	}

	accounts, err := c.accounts(ctx, cred.ID, cred.AccessToken)
	if err != nil {
		return nil, err
	}

	transactions := []providers.Transaction{}
	for _, a := range accounts {
		txns, err := c.accountTransactions(ctx, cred, a.ID, r)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, txns...)
	}

	return transactions, nil
}

func (c *Client) accountTransactions(ctx context.Context, cred credentials.Credential, accountID string, r providers.DateRange) ([]providers.Transaction, error) {
	path := fmt.Sprintf("/accounts/%s/transactions", url.PathEscape(accountID))
	transactions := []providers.Transaction{}
	fromID := ""

	for {
		query := url.Values{}
		query.Set("count", strconv.Itoa(pageSize))
		if fromID != "" {
			query.Set("from_id", fromID)
		}

		page := []transaction{}
		if err := c.get(ctx, cred.ID, cred.AccessToken, "transactions", path, query, &page); err != nil {
			return nil, err
		}
		fullPage := len(page) == pageSize

		// from_id may be echoed back as the first record of the next page
		if fromID != "" && len(page) > 0 && page[0].TransactionID == fromID {
			page = page[1:]
		}

		reachedStart := false
		for i := range page {
			t := &page[i]
			date, err := providers.ParseDay(t.RawDate)
			if err != nil {
				return nil, &providers.UpstreamError{
					Provider:     credentials.Teller,
					CredentialID: cred.ID,
					Op:           "transactions",
					Err:          fmt.Errorf("transaction %s has invalid date %q: %w", t.TransactionID, t.RawDate, err),
				}
			}
			t.date = date

			if date.Before(r.Start) {
				reachedStart = true
				continue
			}
			if date.After(r.End) {
				continue
			}
			if t.TransactionAccountID == "" {
				t.TransactionAccountID = accountID
			}
			transactions = append(transactions, t)
		}

		if reachedStart || !fullPage || len(page) == 0 {
			break
		}
		fromID = page[len(page)-1].TransactionID
	}

	return transactions, nil
}
