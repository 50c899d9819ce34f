package transactions

import (
	"sort"

	"github.com/shopspring/decimal"
)

// AggregateMonth keeps the transactions of month m, newest day first, and totals them.
// Transactions on the same day keep their input order.
func AggregateMonth(txns []Transaction, m Month) MonthAggregate {
	r := m.Range()

	inMonth := make([]Transaction, 0, len(txns))
	for _, t := range txns {
		if r.Contains(t.Date) {
			inMonth = append(inMonth, t)
		}
	}

	sort.SliceStable(inMonth, func(i, j int) bool {
		return inMonth[i].Date.After(inMonth[j].Date)
	})

	return MonthAggregate{
		Transactions: inMonth,
		Stats:        ComputeStats(inMonth),
	}
}

func ComputeStats(txns []Transaction) Stats {
	income := decimal.Zero
	expenses := decimal.Zero

	for _, t := range txns {
		switch t.Amount.Sign() {
		case 1:
			income = income.Add(t.Amount)
		case -1:
			expenses = expenses.Add(t.Amount.Abs())
		}
	}

	return Stats{
		Income:   income,
		Expenses: expenses,
		Net:      income.Sub(expenses),
	}
}
