package transactions

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcaldwell/moneymanager/pkg/config"
	"github.com/bcaldwell/moneymanager/pkg/credentials"
	"github.com/bcaldwell/moneymanager/pkg/providers"
)

func day(s string) time.Time {
	t, err := providers.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func balance(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(amount(s))
}

type fakeTransaction struct {
	id             string
	date           time.Time
	amount         decimal.Decimal
	accountID      string
	runningBalance decimal.NullDecimal
}

func (t fakeTransaction) ID() string { return t.id }
func (t fakeTransaction) Date() time.Time { return t.date }
func (t fakeTransaction) Datetime() time.Time { return time.Time{} }
func (t fakeTransaction) Amount() decimal.Decimal { return t.amount }
func (t fakeTransaction) Description() string { return "txn " + t.id }
func (t fakeTransaction) MerchantName() string { return "" }
func (t fakeTransaction) Category() []string { return nil }
func (t fakeTransaction) AccountID() string { return t.accountID }
func (t fakeTransaction) RunningBalance() decimal.NullDecimal { return t.runningBalance }

type fakeAdapter struct {
	provider     credentials.Provider
	scoped       bool
	accounts     map[string][]providers.Account
	transactions map[string][]providers.Transaction
	failFor      map[string]error

	mu    sync.Mutex
	calls []string
}

func (a *fakeAdapter) Provider() credentials.Provider { return a.provider }
func (a *fakeAdapter) AccountScoped() bool { return a.scoped }

func (a *fakeAdapter) ListAccounts(ctx context.Context, cred credentials.Credential) ([]providers.Account, error) {
	if err := a.failFor[cred.ID]; err != nil {
		return nil, err
	}
	return a.accounts[cred.ID], nil
}

func (a *fakeAdapter) ListTransactions(ctx context.Context, cred credentials.Credential, accountID string, r providers.DateRange) ([]providers.Transaction, error) {
	a.mu.Lock()
	a.calls = append(a.calls, cred.ID+"/"+accountID)
	a.mu.Unlock()

	if err := a.failFor[cred.ID+"/"+accountID]; err != nil {
		return nil, err
	}
	if accountID == "" {
		return a.transactions[cred.ID], nil
	}

	txns := []providers.Transaction{}
	for _, t := range a.transactions[cred.ID] {
		if t.AccountID() == accountID {
			txns = append(txns, t)
		}
	}
	return txns, nil
}

func cred(id string, provider credentials.Provider) credentials.Credential {
	return credentials.Credential{ID: id, UserID: "user", AccessToken: "token-" + id, ServiceProvider: provider, Environment: config.Sandbox}
}

var january = Month{Year: 2024, Month: time.January}

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2024-02")
	require.NoError(t, err)
	assert.Equal(t, Month{Year: 2024, Month: time.February}, m)
	assert.Equal(t, "2024-02", m.String())
	assert.Equal(t, day("2024-02-01"), m.Range().Start)
	assert.Equal(t, day("2024-02-29"), m.Range().End)

	for _, bad := range []string{"", "2024", "2024-1", "24-01", "2024-13", "2024-00", "2024-01-01", "abcd-ef"} {
		_, err := ParseMonth(bad)
		assert.ErrorIs(t, err, ErrInvalidMonth, bad)
	}
}

func TestFetchPartialFailure(t *testing.T) {
	plaid := &fakeAdapter{
		provider: credentials.Plaid,
		accounts: map[string][]providers.Account{
			"good": {{ID: "acc-good", Name: "Checking", Type: "depository", InstitutionName: "Good Bank"}},
		},
		transactions: map[string][]providers.Transaction{
			"good": {
				fakeTransaction{id: "t1", date: day("2024-01-10"), amount: amount("-20"), accountID: "acc-good"},
				fakeTransaction{id: "t-out-of-range", date: day("2024-02-01"), amount: amount("-5"), accountID: "acc-good"},
			},
		},
		failFor: map[string]error{
			"bad": &providers.UpstreamError{Provider: credentials.Plaid, CredentialID: "bad", Op: "/accounts/get", StatusCode: 500},
		},
	}

	f := NewFetcher(4, plaid)
	txns, errs := f.Fetch(context.Background(), []credentials.Credential{cred("bad", credentials.Plaid), cred("good", credentials.Plaid)}, january.Range())

	require.Len(t, txns, 1)
	assert.Equal(t, "t1", txns[0].TransactionID)
	assert.Equal(t, "Checking", txns[0].AccountName)
	assert.Equal(t, "depository", txns[0].AccountType)
	assert.Equal(t, "Good Bank", txns[0].InstitutionName)
	assert.Equal(t, credentials.Plaid, txns[0].Provider)
	assert.Equal(t, []string{}, txns[0].Category)

	require.Len(t, errs, 1)
	var upstream *providers.UpstreamError
	require.True(t, errors.As(errs[0], &upstream))
	assert.Equal(t, "bad", upstream.CredentialID)
}

func TestFetchAllFailIsEmptyNotNil(t *testing.T) {
	plaid := &fakeAdapter{provider: credentials.Plaid, failFor: map[string]error{"a": errors.New("boom"), "b": errors.New("boom")}}

	txns, errs := NewFetcher(2, plaid).Fetch(context.Background(), []credentials.Credential{cred("a", credentials.Plaid), cred("b", credentials.Plaid)}, january.Range())
	assert.NotNil(t, txns)
	assert.Empty(t, txns)
	assert.Len(t, errs, 2)
}

func TestFetchUnknownProvider(t *testing.T) {
	txns, errs := NewFetcher(1).Fetch(context.Background(), []credentials.Credential{cred("a", credentials.Teller)}, january.Range())
	assert.Empty(t, txns)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrUnknownProvider)
}

func TestFetchAccountScopedToleratesAccountFailure(t *testing.T) {
	teller := &fakeAdapter{
		provider: credentials.Teller,
		scoped:   true,
		accounts: map[string][]providers.Account{
			"enr": {{ID: "acc_1", Name: "Checking"}, {ID: "acc_2", Name: "Savings"}},
		},
		transactions: map[string][]providers.Transaction{
			"enr": {
				fakeTransaction{id: "t1", date: day("2024-01-03"), amount: amount("15.25"), accountID: "acc_1", runningBalance: balance("115.25")},
				fakeTransaction{id: "t2", date: day("2024-01-04"), amount: amount("-1"), accountID: "acc_2"},
			},
		},
		failFor: map[string]error{"enr/acc_2": errors.New("timeout")},
	}

	txns, errs := NewFetcher(8, teller).Fetch(context.Background(), []credentials.Credential{cred("enr", credentials.Teller)}, january.Range())
	require.Len(t, txns, 1)
	assert.Equal(t, "t1", txns[0].TransactionID)
	assert.Equal(t, "Checking", txns[0].AccountName)
	assert.True(t, txns[0].RunningBalance.Valid)
	require.Len(t, errs, 1)

	assert.ElementsMatch(t, []string{"enr/acc_1", "enr/acc_2"}, teller.calls)
}

func TestAggregateMonthSortsNewestFirst(t *testing.T) {
	txns := []Transaction{
		{TransactionID: "a", Date: day("2024-01-05"), Amount: amount("-10")},
		{TransactionID: "b", Date: day("2024-01-20"), Amount: amount("100")},
		{TransactionID: "c", Date: day("2024-01-01"), Amount: amount("-2.5")},
		{TransactionID: "d", Date: day("2024-01-05"), Amount: amount("-1")},
		{TransactionID: "feb", Date: day("2024-02-01"), Amount: amount("-1000")},
	}

	agg := AggregateMonth(txns, january)
	ids := []string{}
	for _, t := range agg.Transactions {
		ids = append(ids, t.TransactionID)
	}
	assert.Equal(t, []string{"b", "a", "d", "c"}, ids)

	assert.True(t, amount("100").Equal(agg.Stats.Income))
	assert.True(t, amount("13.5").Equal(agg.Stats.Expenses))
	assert.True(t, amount("86.5").Equal(agg.Stats.Net))
}

func TestStatsNetIsIncomeMinusExpenses(t *testing.T) {
	sets := [][]string{
		{},
		{"0.1", "0.2", "-0.3"},
		{"-19.99", "-0.01", "2500", "-1200.50", "0"},
		{"-1", "-2", "-3"},
		{"1234567.89", "-0.07"},
	}

	for _, set := range sets {
		txns := []Transaction{}
		for _, a := range set {
			txns = append(txns, Transaction{Amount: amount(a)})
		}
		stats := ComputeStats(txns)
		assert.True(t, stats.Income.Sub(stats.Expenses).Equal(stats.Net), "%v", set)
		assert.False(t, stats.Income.IsNegative())
		assert.False(t, stats.Expenses.IsNegative())
	}
}

func TestSignIsCanonicalAcrossProviders(t *testing.T) {
	// a coffee purchase seen through both aggregators
	plaidRecord := fakeTransaction{id: "p", date: day("2024-01-02"), amount: amount("-4.5"), accountID: "a"}
	tellerRecord := fakeTransaction{id: "t", date: day("2024-01-02"), amount: amount("-4.5"), accountID: "b"}

	txns := []Transaction{
		Normalize(credentials.Plaid, plaidRecord, nil),
		Normalize(credentials.Teller, tellerRecord, nil),
	}
	stats := ComputeStats(txns)
	assert.True(t, stats.Income.IsZero())
	assert.True(t, amount("9").Equal(stats.Expenses))
}

func TestAggregateEmptyMonth(t *testing.T) {
	agg := AggregateMonth(nil, january)
	assert.NotNil(t, agg.Transactions)
	assert.Empty(t, agg.Transactions)
	assert.True(t, agg.Stats.Income.IsZero())
	assert.True(t, agg.Stats.Expenses.IsZero())
	assert.True(t, agg.Stats.Net.IsZero())

	series := DailyBalanceSeries(nil)
	assert.NotNil(t, series)
	assert.Empty(t, series)
}

func TestDailyBalanceCarryForward(t *testing.T) {
	txns := []Transaction{
		{TransactionID: "b1", AccountID: "B", Date: day("2024-01-02"), Amount: amount("0"), RunningBalance: balance("0")},
		{TransactionID: "a1", AccountID: "A", Date: day("2024-01-01"), Amount: amount("100"), RunningBalance: balance("100")},
	}

	series := DailyBalanceSeries(txns)
	require.Len(t, series, 2)
	assert.Equal(t, day("2024-01-01"), series[0].Date)
	assert.True(t, amount("100").Equal(series[0].NetWorth))
	assert.Equal(t, day("2024-01-02"), series[1].Date)
	assert.True(t, amount("100").Equal(series[1].NetWorth))
}

func TestDailyBalanceLastTransactionOfDay(t *testing.T) {
	// newest first, the way aggregators list them
	txns := []Transaction{
		{TransactionID: "a3", AccountID: "A", Date: day("2024-01-02"), Amount: amount("-5"), RunningBalance: balance("80")},
		{TransactionID: "a2", AccountID: "A", Date: day("2024-01-02"), Amount: amount("-15"), RunningBalance: balance("85")},
		{TransactionID: "a1", AccountID: "A", Date: day("2024-01-01"), Amount: amount("100"), RunningBalance: balance("100")},
	}

	series := DailyBalanceSeries(txns)
	require.Len(t, series, 2)
	assert.True(t, amount("100").Equal(series[0].NetWorth))
	assert.True(t, amount("80").Equal(series[1].NetWorth))
}

func TestDailyBalanceUsesTimestamps(t *testing.T) {
	morning := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)
	txns := []Transaction{
		{TransactionID: "early", AccountID: "A", Date: day("2024-01-01"), Datetime: morning, Amount: amount("-1"), RunningBalance: balance("50")},
		{TransactionID: "late", AccountID: "A", Date: day("2024-01-01"), Datetime: evening, Amount: amount("-1"), RunningBalance: balance("49")},
	}

	series := DailyBalanceSeries(txns)
	require.Len(t, series, 1)
	assert.True(t, amount("49").Equal(series[0].NetWorth))
}

func TestDailyBalanceMixedTimestampsIsOrderIndependent(t *testing.T) {
	morning := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)
	a := Transaction{TransactionID: "a", AccountID: "A", Date: day("2024-01-01"), Datetime: morning, Amount: amount("-1"), RunningBalance: balance("20")}
	b := Transaction{TransactionID: "b", AccountID: "A", Date: day("2024-01-01"), Amount: amount("-1"), RunningBalance: balance("30")}
	c := Transaction{TransactionID: "c", AccountID: "A", Date: day("2024-01-01"), Datetime: evening, Amount: amount("-1"), RunningBalance: balance("10")}

	orders := [][]Transaction{
		{a, b, c},
		{a, c, b},
		{b, a, c},
		{b, c, a},
		{c, a, b},
		{c, b, a},
	}
	for _, txns := range orders {
		series := DailyBalanceSeries(txns)
		require.Len(t, series, 1)
		assert.True(t, amount("10").Equal(series[0].NetWorth), "order %s%s%s", txns[0].TransactionID, txns[1].TransactionID, txns[2].TransactionID)
	}
}

func TestDailyBalanceDerivedWithoutRunningBalance(t *testing.T) {
	txns := []Transaction{
		{TransactionID: "p3", AccountID: "P", Date: day("2024-01-03"), Amount: amount("-30")},
		{TransactionID: "t2", AccountID: "T", Date: day("2024-01-02"), Amount: amount("-10")},
		{TransactionID: "p2", AccountID: "P", Date: day("2024-01-02"), Amount: amount("1000")},
		{TransactionID: "t1", AccountID: "T", Date: day("2024-01-01"), Amount: amount("-10"), RunningBalance: balance("500")},
	}

	series := DailyBalanceSeries(txns)
	require.Len(t, series, 3)
	// T: 500, P: nothing yet
	assert.True(t, amount("500").Equal(series[0].NetWorth))
	// T: 500 - 10, P: 0 + 1000
	assert.True(t, amount("1490").Equal(series[1].NetWorth))
	// T carried forward, P: 1000 - 30
	assert.True(t, amount("1460").Equal(series[2].NetWorth))
}

func TestJSONShape(t *testing.T) {
	raw, err := json.Marshal(Transaction{
		TransactionID: "t1",
		Date:          day("2024-01-05"),
		Amount:        amount("-12.5"),
		Category:      []string{"Food"},
		AccountID:     "a1",
		Provider:      credentials.Teller,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"transaction_id": "t1",
		"date": "2024-01-05",
		"amount": -12.5,
		"description": "",
		"category": ["Food"],
		"account_id": "a1",
		"account_name": "",
		"account_type": "",
		"institution_name": "",
		"running_balance": null,
		"provider": "teller"
	}`, string(raw))

	raw, err = json.Marshal(BalancePoint{Date: day("2024-01-05"), NetWorth: amount("100")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"date": "2024-01-05", "net_worth": 100}`, string(raw))

	raw, err = json.Marshal(Stats{Income: amount("1000.5"), Expenses: amount("20"), Net: amount("980.5")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"income": 1000.5, "expenses": 20, "net": 980.5}`, string(raw))

	raw, err = json.Marshal(Transaction{Date: day("2024-01-05"), Amount: amount("3"), RunningBalance: balance("41.25")})
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, 41.25, decoded["running_balance"])
	assert.Equal(t, 3.0, decoded["amount"])
}
