package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"yieldwallet/internal/domain"
)

// Drift is a wallet whose stored balance differs from the sum of its
// applied transactions.
type Drift struct {
	WalletID uuid.UUID       `json:"wallet_id"`
	Balance  decimal.Decimal `json:"balance"`
	Expected decimal.Decimal `json:"expected"`
}

type ReconcileReport struct {
	GeneratedAt time.Time                  `json:"generated_at"`
	Liabilities map[domain.Currency]string `json:"liabilities"`
	Negative    []uuid.UUID                `json:"negative_wallets"`
	Drifted     []Drift                    `json:"drifted_wallets"`
	Stuck       []*domain.Transaction      `json:"stuck_transactions"`
}

// Healthy reports whether no invariant was violated. Stuck transactions are
// a warning only.
func (r *ReconcileReport) Healthy() bool {
	return len(r.Negative) == 0 && len(r.Drifted) == 0
}

// Reconcile checks every wallet against its history: balances must be non
// negative and equal the signed sum of applied transactions. Pending
// transactions older than stuckAfter are listed.
func (s *Service) Reconcile(ctx context.Context, stuckAfter time.Duration) (*ReconcileReport, error) {
	views, err := s.store.ListWalletViews(ctx)
	if err != nil {
		return nil, err
	}
	txs, err := s.store.ListTransactions(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	expected := make(map[uuid.UUID]decimal.Decimal, len(views))
	report := &ReconcileReport{
		GeneratedAt: now,
		Liabilities: make(map[domain.Currency]string),
	}
	for _, t := range txs {
		if t.Applied() {
			expected[t.WalletID] = expected[t.WalletID].Add(t.Type.Delta(t.Amount))
		}
		if t.Status == domain.TransactionStatusPending && now.Sub(t.CreatedAt) > stuckAfter {
			report.Stuck = append(report.Stuck, t)
		}
	}

	totals := make(map[domain.Currency]decimal.Decimal)
	for _, v := range views {
		totals[v.Currency] = totals[v.Currency].Add(v.Balance)
		if v.Balance.IsNegative() {
			report.Negative = append(report.Negative, v.ID)
		}
		if want := expected[v.ID]; !want.Equal(v.Balance) {
			report.Drifted = append(report.Drifted, Drift{WalletID: v.ID, Balance: v.Balance, Expected: want})
		}
	}
	for cur, total := range totals {
		report.Liabilities[cur] = domain.RoundMoney(total).StringFixed(domain.MoneyScale)
	}

	if !report.Healthy() {
		s.logger.Error("Ledger reconciliation found violations", map[string]interface{}{
			"negative": len(report.Negative),
			"drifted":  len(report.Drifted),
		})
	}
	return report, nil
}
