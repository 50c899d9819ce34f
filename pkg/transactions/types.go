package transactions

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bcaldwell/moneymanager/pkg/credentials"
	"github.com/bcaldwell/moneymanager/pkg/providers"
)

// Transaction is the provider independent shape served to the dashboard. Amount is negative
// for expenses and positive for income whatever the source aggregator.
type Transaction struct {
	TransactionID   string               `json:"transaction_id"`
	Date            time.Time            `json:"date"`
	Datetime        time.Time            `json:"-"`
	Amount          decimal.Decimal      `json:"amount"`
	Description     string               `json:"description"`
	MerchantName    string               `json:"merchant_name,omitempty"`
	Category        []string             `json:"category"`
	AccountID       string               `json:"account_id"`
	AccountName     string               `json:"account_name"`
	AccountType     string               `json:"account_type"`
	InstitutionName string               `json:"institution_name"`
	RunningBalance  decimal.NullDecimal  `json:"running_balance"`
	Provider        credentials.Provider `json:"provider"`
}

// number writes a decimal as a bare JSON number instead of decimal's default quoted string
type number decimal.Decimal

func (n number) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(n).String()), nil
}

func nullableNumber(d decimal.NullDecimal) *number {
	if !d.Valid {
		return nil
	}
	n := number(d.Decimal)
	return &n
}

func (t Transaction) MarshalJSON() ([]byte, error) {
	type alias Transaction
	return json.Marshal(struct {
		alias
		Date           string  `json:"date"`
		Amount         number  `json:"amount"`
		RunningBalance *number `json:"running_balance"`
	}{alias(t), t.Date.Format(providers.DateFormat), number(t.Amount), nullableNumber(t.RunningBalance)})
}

// Normalize copies a provider record into a Transaction, filling the account fields from
// account when it is known.
func Normalize(provider credentials.Provider, t providers.Transaction, account *providers.Account) Transaction {
	category := t.Category()
	if category == nil {
		category = []string{}
	}

	txn := Transaction{
		TransactionID:  t.ID(),
		Date:           providers.Day(t.Date()),
		Datetime:       t.Datetime(),
		Amount:         t.Amount(),
		Description:    t.Description(),
		MerchantName:   t.MerchantName(),
		Category:       category,
		AccountID:      t.AccountID(),
		RunningBalance: t.RunningBalance(),
		Provider:       provider,
	}

	if account != nil {
		txn.AccountName = account.Name
		txn.AccountType = account.Type
		txn.InstitutionName = account.InstitutionName
	}

	return txn
}

// Stats are the monthly totals. Expenses is a magnitude, Net is Income minus Expenses.
type Stats struct {
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Net      decimal.Decimal `json:"net"`
}

func (s Stats) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Income   number `json:"income"`
		Expenses number `json:"expenses"`
		Net      number `json:"net"`
	}{number(s.Income), number(s.Expenses), number(s.Net)})
}

type MonthAggregate struct {
	Transactions []Transaction `json:"transactions"`
	Stats        Stats         `json:"stats"`
}

// BalancePoint is the sum of every account's latest known balance at the end of Date
type BalancePoint struct {
	Date     time.Time       `json:"date"`
	NetWorth decimal.Decimal `json:"net_worth"`
}

func (p BalancePoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date     string `json:"date"`
		NetWorth number `json:"net_worth"`
	}{p.Date.Format(providers.DateFormat), number(p.NetWorth)})
}
