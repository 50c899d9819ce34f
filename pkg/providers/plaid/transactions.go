package plaid

import (
	"context"
	"fmt"
	"time"

	"github.com/plaid/plaid-go/v29/plaid"
	"github.com/shopspring/decimal"

	"github.com/bcaldwell/moneymanager/pkg/credentials"
	"github.com/bcaldwell/moneymanager/pkg/providers"
)

type transaction struct {
	raw  plaid.Transaction
	date time.Time
}

func (t *transaction) ID() string {
	return t.raw.GetTransactionId()
}

func (t *transaction) Date() time.Time {
	return t.date
}

func (t *transaction) Datetime() time.Time {
	return t.raw.GetDatetime()
}

// Amount flips Plaid's sign, which reports money leaving the account as positive
func (t *transaction) Amount() decimal.Decimal {
	return decimal.NewFromFloat(t.raw.GetAmount()).Neg()
}

func (t *transaction) Description() string {
	return t.raw.GetName()
}

func (t *transaction) MerchantName() string {
	return t.raw.GetMerchantName()
}

func (t *transaction) Category() []string {
	if legacy := t.raw.GetCategory(); len(legacy) > 0 {
		return legacy
	}

	pfc := t.raw.GetPersonalFinanceCategory()
	if pfc.GetPrimary() != "" {
		category := []string{pfc.GetPrimary()}
		if pfc.GetDetailed() != "" {
			category = append(category, pfc.GetDetailed())
		}
		return category
	}

	return []string{}
}

func (t *transaction) AccountID() string {
	return t.raw.GetAccountId()
}

// RunningBalance is never supplied by Plaid
func (t *transaction) RunningBalance() decimal.NullDecimal {
	return decimal.NullDecimal{}
}

// ListTransactions pages through transactions/get for the whole date range. An empty
// accountID returns the transactions of every account of the item.
func (c *Client) ListTransactions(ctx context.Context, cred credentials.Credential, accountID string, r providers.DateRange) ([]providers.Transaction, error) {
	options := plaid.NewTransactionsGetRequestOptions()
	options.SetCount(maxPageSize)
	if accountID != "" {
		options.SetAccountIds([]string{accountID})
	}

	req := plaid.NewTransactionsGetRequest(
		cred.AccessToken,
		r.Start.Format(providers.DateFormat),
		r.End.Format(providers.DateFormat),
	)

	transactions := []providers.Transaction{}
	offset := int32(0)
	for {
		options.SetOffset(offset)
		req.SetOptions(*options)

		rs, httpResp, err := c.api.TransactionsGet(ctx).TransactionsGetRequest(*req).Execute()
		if err != nil {
			return nil, upstreamError(cred.ID, "/transactions/get", httpResp, err)
		}

		page := rs.GetTransactions()
		for _, raw := range page {
			date, err := providers.ParseDay(raw.GetDate())
			if err != nil {
				return nil, &providers.UpstreamError{
					Provider:     credentials.Plaid,
					CredentialID: cred.ID,
					Op:           "/transactions/get",
					Err:          fmt.Errorf("transaction %s has invalid date %q: %w", raw.GetTransactionId(), raw.GetDate(), err),
				}
			}
			transactions = append(transactions, &transaction{raw: raw, date: date})
		}

		offset += int32(len(page))
		if len(page) == 0 || offset >= rs.GetTotalTransactions() {
			break
		}
	}

	return transactions, nil
}
