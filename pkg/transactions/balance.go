package transactions

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bcaldwell/moneymanager/pkg/providers"
)

type accountEntry struct {
	index int
	txn   *Transaction
}

// DailyBalanceSeries returns one point per calendar day that has transactions, oldest first.
//
// An account's balance for a day comes from its last transaction of that day: the reported
// running balance when the aggregator supplies one, otherwise a balance derived by adding the
// signed amounts in chronological order, starting from 0 or from the latest reported running
// balance. Accounts without transactions on a day carry their last known balance forward.
func DailyBalanceSeries(txns []Transaction) []BalancePoint {
	points := []BalancePoint{}
	if len(txns) == 0 {
		return points
	}

	byAccount := map[string][]accountEntry{}
	accountOrder := []string{}
	daySet := map[time.Time]bool{}

	for i := range txns {
		t := &txns[i]
		if _, ok := byAccount[t.AccountID]; !ok {
			accountOrder = append(accountOrder, t.AccountID)
		}
		byAccount[t.AccountID] = append(byAccount[t.AccountID], accountEntry{index: i, txn: t})
		daySet[providers.Day(t.Date)] = true
	}

	days := make([]time.Time, 0, len(daySet))
	for d := range daySet {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	endOfDay := make(map[string]map[time.Time]decimal.Decimal, len(byAccount))
	for _, accountID := range accountOrder {
		endOfDay[accountID] = accountEndOfDayBalances(byAccount[accountID])
	}

	lastKnown := map[string]decimal.Decimal{}
	for _, day := range days {
		netWorth := decimal.Zero
		for _, accountID := range accountOrder {
			if balance, ok := endOfDay[accountID][day]; ok {
				lastKnown[accountID] = balance
			}
			if balance, ok := lastKnown[accountID]; ok {
				netWorth = netWorth.Add(balance)
			}
		}
		points = append(points, BalancePoint{Date: day, NetWorth: netWorth})
	}

	return points
}

// accountEndOfDayBalances walks one account's transactions oldest first and records the
// balance after the last transaction of each day.
func accountEndOfDayBalances(entries []accountEntry) map[time.Time]decimal.Decimal {
	sort.SliceStable(entries, func(i, j int) bool {
		return chronologicallyBefore(entries[i], entries[j])
	})

	balances := make(map[time.Time]decimal.Decimal)
	running := decimal.Zero
	for _, e := range entries {
		if e.txn.RunningBalance.Valid {
			running = e.txn.RunningBalance.Decimal
		} else {
			running = running.Add(e.txn.Amount)
		}
		// entries are chronological so the last write for a day wins
		balances[providers.Day(e.txn.Date)] = running
	}

	return balances
}

// chronologicallyBefore orders by day, then untimed entries before timed ones, then by
// timestamp. Inputs are newest first, so any remaining tie goes to the entry listed later in
// the input as the earlier one.
func chronologicallyBefore(a, b accountEntry) bool {
	if !a.txn.Date.Equal(b.txn.Date) {
		return a.txn.Date.Before(b.txn.Date)
	}

	aTimed, bTimed := !a.txn.Datetime.IsZero(), !b.txn.Datetime.IsZero()
	if aTimed != bTimed {
		return bTimed
	}

	if aTimed && !a.txn.Datetime.Equal(b.txn.Datetime) {
		return a.txn.Datetime.Before(b.txn.Datetime)
	}

	return a.index > b.index
}
