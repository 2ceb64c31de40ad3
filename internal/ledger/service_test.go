package ledger

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yieldwallet/internal/domain"
	"yieldwallet/internal/repository/memory"
	"yieldwallet/internal/store"
	"yieldwallet/pkg/errors"
	"yieldwallet/pkg/logger"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	ctx    context.Context
	store  *memory.Store
	ledger *Service
	wallet *domain.Wallet
}

// newFixture creates an active wallet funded through an approved deposit so
// the balance always matches the transaction history.
func newFixture(t *testing.T, opening string) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.NewStore()
	w := domain.NewWallet(uuid.New(), "", time.Now())
	w.Status = domain.WalletStatusActive
	require.NoError(t, st.CreateWallet(ctx, w))

	f := &fixture{ctx: ctx, store: st, ledger: NewService(st, logger.NewNop()), wallet: w}
	if !dec(opening).IsZero() {
		txn := f.record(t, domain.TransactionTypeDeposit, opening)
		_, err := f.ledger.Approve(ctx, txn.ID)
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) record(t *testing.T, typ domain.TransactionType, amount string) *domain.Transaction {
	t.Helper()
	txn, err := f.ledger.Record(f.ctx, RecordRequest{WalletID: f.wallet.ID, Type: typ, Amount: dec(amount)})
	require.NoError(t, err)
	return txn
}

func (f *fixture) balance(t *testing.T) decimal.Decimal {
	t.Helper()
	w, err := f.store.GetWallet(f.ctx, f.wallet.ID)
	require.NoError(t, err)
	return w.Balance
}

func (f *fixture) assertBalance(t *testing.T, want string) {
	t.Helper()
	got := f.balance(t)
	assert.True(t, dec(want).Equal(got), "balance = %s, want %s", got, want)
}

// appliedSum recomputes the balance from the transaction history.
func (f *fixture) appliedSum(t *testing.T) decimal.Decimal {
	t.Helper()
	txs, err := f.ledger.List(f.ctx, f.wallet.ID)
	require.NoError(t, err)
	sum := decimal.Zero
	for _, txn := range txs {
		if txn.Applied() {
			sum = sum.Add(txn.Type.Delta(txn.Amount))
		}
	}
	return sum
}

func TestLedger_DepositWithdrawalScenario(t *testing.T) {
	f := newFixture(t, "1000")

	dep := f.record(t, domain.TransactionTypeDeposit, "200")
	assert.Equal(t, domain.TransactionStatusPending, dep.Status)
	f.assertBalance(t, "1000")

	approved, err := f.ledger.Approve(f.ctx, dep.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusApproved, approved.Status)
	assert.True(t, approved.Applied())
	f.assertBalance(t, "1200")

	wd := f.record(t, domain.TransactionTypeWithdrawal, "500")
	rejected, err := f.ledger.Reject(f.ctx, wd.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusRejected, rejected.Status)
	f.assertBalance(t, "1200")
}

func TestLedger_ApproveTwice(t *testing.T) {
	f := newFixture(t, "100")
	dep := f.record(t, domain.TransactionTypeDeposit, "50")

	_, err := f.ledger.Approve(f.ctx, dep.ID)
	require.NoError(t, err)
	_, err = f.ledger.Approve(f.ctx, dep.ID)
	assert.ErrorIs(t, err, errors.ErrInvalidStateTransition)

	f.assertBalance(t, "150")
}

func TestLedger_ConcurrentApprove(t *testing.T) {
	f := newFixture(t, "100")
	dep := f.record(t, domain.TransactionTypeDeposit, "50")

	const callers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.ledger.Approve(f.ctx, dep.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, errors.ErrInvalidStateTransition):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, callers-1, conflicts)
	f.assertBalance(t, "150")
}

func TestLedger_InsufficientBalanceKeepsPending(t *testing.T) {
	f := newFixture(t, "100")
	wd := f.record(t, domain.TransactionTypeWithdrawal, "100.000001")

	_, err := f.ledger.Approve(f.ctx, wd.ID)
	assert.ErrorIs(t, err, errors.ErrInsufficientBalance)

	got, err := f.ledger.Get(f.ctx, wd.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, got.Status)
	assert.False(t, got.Applied())
	f.assertBalance(t, "100")

	exact := f.record(t, domain.TransactionTypeWithdrawal, "100")
	_, err = f.ledger.Approve(f.ctx, exact.ID)
	require.NoError(t, err)
	f.assertBalance(t, "0")
}

func TestLedger_PurchaseDebits(t *testing.T) {
	f := newFixture(t, "300")
	p := f.record(t, domain.TransactionTypePurchase, "120.5")

	_, err := f.ledger.Approve(f.ctx, p.ID)
	require.NoError(t, err)
	f.assertBalance(t, "179.5")
}

func TestLedger_RejectOnlyFromPending(t *testing.T) {
	f := newFixture(t, "100")
	dep := f.record(t, domain.TransactionTypeDeposit, "10")
	_, err := f.ledger.Approve(f.ctx, dep.ID)
	require.NoError(t, err)

	_, err = f.ledger.Reject(f.ctx, dep.ID)
	assert.ErrorIs(t, err, errors.ErrInvalidStateTransition)

	wd := f.record(t, domain.TransactionTypeWithdrawal, "10")
	_, err = f.ledger.Reject(f.ctx, wd.ID)
	require.NoError(t, err)
	_, err = f.ledger.Approve(f.ctx, wd.ID)
	assert.ErrorIs(t, err, errors.ErrInvalidStateTransition)

	f.assertBalance(t, "110")
}

func TestLedger_ResetToPendingNeverDoubleApplies(t *testing.T) {
	f := newFixture(t, "100")
	dep := f.record(t, domain.TransactionTypeDeposit, "50")
	_, err := f.ledger.Approve(f.ctx, dep.ID)
	require.NoError(t, err)
	f.assertBalance(t, "150")

	reset, err := f.ledger.ResetToPending(f.ctx, dep.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, reset.Status)
	assert.True(t, reset.Applied())
	f.assertBalance(t, "150")

	_, err = f.ledger.Reject(f.ctx, dep.ID)
	assert.ErrorIs(t, err, errors.ErrInvalidStateTransition)

	again, err := f.ledger.Approve(f.ctx, dep.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusApproved, again.Status)
	f.assertBalance(t, "150")
}

func TestLedger_ResetRejectedThenApprove(t *testing.T) {
	f := newFixture(t, "0")
	dep := f.record(t, domain.TransactionTypeDeposit, "75")
	_, err := f.ledger.Reject(f.ctx, dep.ID)
	require.NoError(t, err)

	_, err = f.ledger.ResetToPending(f.ctx, dep.ID)
	require.NoError(t, err)
	f.assertBalance(t, "0")

	_, err = f.ledger.Approve(f.ctx, dep.ID)
	require.NoError(t, err)
	f.assertBalance(t, "75")
}

func TestLedger_RecordValidation(t *testing.T) {
	f := newFixture(t, "0")

	tests := []struct {
		name   string
		req    RecordRequest
		target error
	}{
		{"zero amount", RecordRequest{WalletID: f.wallet.ID, Type: domain.TransactionTypeDeposit, Amount: decimal.Zero}, errors.ErrAmountInvalid},
		{"negative amount", RecordRequest{WalletID: f.wallet.ID, Type: domain.TransactionTypeDeposit, Amount: dec("-5")}, errors.ErrAmountInvalid},
		{"too precise", RecordRequest{WalletID: f.wallet.ID, Type: domain.TransactionTypeDeposit, Amount: dec("1.0000001")}, errors.ErrAmountInvalid},
		{"unknown type", RecordRequest{WalletID: f.wallet.ID, Type: "refund", Amount: dec("5")}, errors.ErrInvalidTransactionType},
		{"unknown wallet", RecordRequest{WalletID: uuid.New(), Type: domain.TransactionTypeDeposit, Amount: dec("5")}, errors.ErrWalletNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.Record(f.ctx, tt.req)
			assert.ErrorIs(t, err, tt.target)
		})
	}

	all, err := f.ledger.ListAll(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestLedger_RecordRespectsGate(t *testing.T) {
	f := newFixture(t, "100")
	w, err := f.store.GetWallet(f.ctx, f.wallet.ID)
	require.NoError(t, err)
	w.AllowWithdrawals = false
	require.NoError(t, f.store.UpdateWallet(f.ctx, w))

	before, err := f.ledger.List(f.ctx, f.wallet.ID)
	require.NoError(t, err)

	_, err = f.ledger.Record(f.ctx, RecordRequest{WalletID: f.wallet.ID, Type: domain.TransactionTypeWithdrawal, Amount: dec("10")})
	assert.ErrorIs(t, err, errors.ErrPermissionDenied)

	after, err := f.ledger.List(f.ctx, f.wallet.ID)
	require.NoError(t, err)
	assert.Len(t, after, len(before))

	w.Status = domain.WalletStatusFrozen
	require.NoError(t, f.store.UpdateWallet(f.ctx, w))
	_, err = f.ledger.Record(f.ctx, RecordRequest{WalletID: f.wallet.ID, Type: domain.TransactionTypeEarning, Amount: dec("1")})
	assert.ErrorIs(t, err, errors.ErrPermissionDenied)
}

func TestLedger_ApproveIgnoresLaterGateChanges(t *testing.T) {
	f := newFixture(t, "0")
	dep := f.record(t, domain.TransactionTypeDeposit, "40")

	w, err := f.store.GetWallet(f.ctx, f.wallet.ID)
	require.NoError(t, err)
	w.Status = domain.WalletStatusFrozen
	require.NoError(t, f.store.UpdateWallet(f.ctx, w))

	_, err = f.ledger.Approve(f.ctx, dep.ID)
	require.NoError(t, err)
	f.assertBalance(t, "40")
}

func TestLedger_RecordSanitizesText(t *testing.T) {
	f := newFixture(t, "0")
	ref := "  <b>bank-42</b> "
	blank := "   "

	txn, err := f.ledger.Record(f.ctx, RecordRequest{
		WalletID:  f.wallet.ID,
		Type:      domain.TransactionTypeDeposit,
		Amount:    dec("1"),
		Reference: &ref,
		Note:      &blank,
	})
	require.NoError(t, err)
	require.NotNil(t, txn.Reference)
	assert.Equal(t, "&lt;b&gt;bank-42&lt;/b&gt;", *txn.Reference)
	assert.Nil(t, txn.Note)
}

func TestLedger_ListNewestFirst(t *testing.T) {
	f := newFixture(t, "0")
	first := f.record(t, domain.TransactionTypeDeposit, "1")
	second := f.record(t, domain.TransactionTypeDeposit, "2")
	third := f.record(t, domain.TransactionTypeWithdrawal, "3")

	txs, err := f.ledger.List(f.ctx, f.wallet.ID)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, []uuid.UUID{third.ID, second.ID, first.ID}, []uuid.UUID{txs[0].ID, txs[1].ID, txs[2].ID})

	_, err = f.ledger.List(f.ctx, uuid.New())
	assert.ErrorIs(t, err, errors.ErrWalletNotFound)
}

func TestLedger_UnknownTransaction(t *testing.T) {
	f := newFixture(t, "0")
	id := uuid.New()

	_, err := f.ledger.Approve(f.ctx, id)
	assert.ErrorIs(t, err, errors.ErrTransactionNotFound)
	_, err = f.ledger.Reject(f.ctx, id)
	assert.ErrorIs(t, err, errors.ErrTransactionNotFound)
	_, err = f.ledger.ResetToPending(f.ctx, id)
	assert.ErrorIs(t, err, errors.ErrTransactionNotFound)
}

func TestLedger_PostInsideUnitOfWork(t *testing.T) {
	f := newFixture(t, "100")

	var posted *domain.Transaction
	err := f.store.InTx(f.ctx, func(r store.Repos) error {
		w, err := r.LockWallet(f.ctx, f.wallet.ID)
		if err != nil {
			return err
		}
		posted, err = f.ledger.Post(f.ctx, r, w, Posting{Type: domain.TransactionTypeEarning, Amount: dec("2.5"), Reference: "investment:x:earning"})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusApproved, posted.Status)
	assert.True(t, posted.Applied())
	f.assertBalance(t, "102.5")

	err = f.store.InTx(f.ctx, func(r store.Repos) error {
		w, err := r.LockWallet(f.ctx, f.wallet.ID)
		if err != nil {
			return err
		}
		_, err = f.ledger.Post(f.ctx, r, w, Posting{Type: domain.TransactionTypePurchase, Amount: dec("500")})
		return err
	})
	assert.ErrorIs(t, err, errors.ErrInsufficientBalance)
	f.assertBalance(t, "102.5")
}

// Random operation sequences must keep the balance equal to the sum of the
// applied transaction deltas.
func TestLedger_BalanceMatchesHistory(t *testing.T) {
	f := newFixture(t, "500")
	rng := rand.New(rand.NewSource(42))
	types := []domain.TransactionType{
		domain.TransactionTypeDeposit,
		domain.TransactionTypeWithdrawal,
		domain.TransactionTypePurchase,
		domain.TransactionTypeEarning,
	}

	var ids []uuid.UUID
	for i := 0; i < 300; i++ {
		switch op := rng.Intn(4); {
		case op == 0 || len(ids) == 0:
			amount := decimal.NewFromInt(int64(rng.Intn(200) + 1))
			txn, err := f.ledger.Record(f.ctx, RecordRequest{WalletID: f.wallet.ID, Type: types[rng.Intn(len(types))], Amount: amount})
			require.NoError(t, err)
			ids = append(ids, txn.ID)
		case op == 1:
			_, _ = f.ledger.Approve(f.ctx, ids[rng.Intn(len(ids))])
		case op == 2:
			_, _ = f.ledger.Reject(f.ctx, ids[rng.Intn(len(ids))])
		default:
			_, _ = f.ledger.ResetToPending(f.ctx, ids[rng.Intn(len(ids))])
		}

		bal := f.balance(t)
		require.True(t, bal.Equal(f.appliedSum(t)), "step %d: balance %s drifted from history", i, bal)
		require.False(t, bal.IsNegative(), "step %d: negative balance", i)
	}
}
