package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yieldwallet/internal/domain"
)

func TestReconcile(t *testing.T) {
	f := newFixture(t, "100")
	w := f.record(t, domain.TransactionTypeWithdrawal, "30")
	_, err := f.ledger.Approve(f.ctx, w.ID)
	require.NoError(t, err)

	// applied, then reset: still counted
	_, err = f.ledger.ResetToPending(f.ctx, w.ID)
	require.NoError(t, err)
	pending := f.record(t, domain.TransactionTypeDeposit, "500")

	report, err := f.ledger.Reconcile(f.ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, report.Healthy())
	assert.Equal(t, "70.000000", report.Liabilities[domain.DefaultCurrency])
	assert.Empty(t, report.Stuck)

	t.Run("stuck pending", func(t *testing.T) {
		f.ledger.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
		defer func() { f.ledger.now = time.Now }()

		report, err := f.ledger.Reconcile(f.ctx, 24*time.Hour)
		require.NoError(t, err)
		ids := make([]string, 0, len(report.Stuck))
		for _, s := range report.Stuck {
			ids = append(ids, s.ID.String())
		}
		assert.ElementsMatch(t, []string{w.ID.String(), pending.ID.String()}, ids)
		assert.True(t, report.Healthy())
	})

	t.Run("drift", func(t *testing.T) {
		stored, err := f.store.GetWallet(f.ctx, f.wallet.ID)
		require.NoError(t, err)
		stored.Balance = dec("75")
		require.NoError(t, f.store.UpdateWallet(f.ctx, stored))

		report, err := f.ledger.Reconcile(f.ctx, 24*time.Hour)
		require.NoError(t, err)
		assert.False(t, report.Healthy())
		require.Len(t, report.Drifted, 1)
		assert.True(t, report.Drifted[0].Expected.Equal(dec("70")))
		assert.True(t, report.Drifted[0].Balance.Equal(dec("75")))
	})
}
