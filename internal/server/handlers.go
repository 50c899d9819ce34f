package server

import (
	"log/slog"
	"net/http"

	"github.com/bcaldwell/moneymanager/pkg/transactions"
)

const invalidMonthMessage = "Invalid month format. Use YYYY-MM"

type transactionsResponse struct {
	Transactions []transactions.Transaction  `json:"transactions"`
	Stats        transactions.Stats          `json:"stats"`
	Balances     []transactions.BalancePoint `json:"balances"`
}

// handleTransactions serves one month of transactions across every link of the user. Failing
// links are left out of the result, they never fail the request.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFrom(r.Context())

	month, err := transactions.ParseMonth(r.URL.Query().Get("month"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, invalidMonthMessage)
		return
	}

	creds, err := s.store.ListForUser(r.Context(), userID, s.cfg.Environment)
	if err != nil {
		slog.Error("failed to list credentials", "user_id", userID, "error", err)
		WriteError(w, http.StatusInternalServerError, "Failed to fetch transactions")
		return
	}

	txns, errs := s.fetcher.Fetch(r.Context(), creds, month.Range())
	if len(errs) > 0 {
		slog.Warn("some links failed, serving partial transactions",
			"user_id", userID,
			"month", month.String(),
			"links", len(creds),
			"failures", len(errs),
			"request_id", RequestIDFrom(r.Context()),
		)
	}

	agg := transactions.AggregateMonth(txns, month)
	WriteJSON(w, http.StatusOK, transactionsResponse{
		Transactions: agg.Transactions,
		Stats:        agg.Stats,
		Balances:     transactions.DailyBalanceSeries(agg.Transactions),
	})
}
