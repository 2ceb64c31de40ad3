package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yieldwallet/internal/domain"
	"yieldwallet/internal/store"
	"yieldwallet/pkg/errors"
)

var walletCols = []string{
	"id", "user_id", "balance", "currency", "status",
	"allow_deposits", "allow_withdrawals", "allow_purchases",
	"version", "created_at", "updated_at",
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(sqlx.NewDb(db, "postgres")), mock
}

func walletRow(id, userID uuid.UUID, balance string, version int64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(walletCols).
		AddRow(id.String(), userID.String(), balance, "USD", "active", true, true, true, version, now, now)
}

func TestWalletRepository_GetWallet(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		id, owner := uuid.New(), uuid.New()
		mock.ExpectQuery("SELECT (.+) FROM wallets WHERE id = \\$1").
			WithArgs(id).
			WillReturnRows(walletRow(id, owner, "150.000000", 3))

		w, err := s.GetWallet(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, owner, w.UserID)
		assert.True(t, w.Balance.Equal(decimal.NewFromInt(150)))
		assert.Equal(t, domain.WalletStatusActive, w.Status)
		assert.Equal(t, int64(3), w.Version)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New()
		mock.ExpectQuery("SELECT (.+) FROM wallets WHERE id = \\$1").
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(walletCols))

		_, err := s.GetWallet(ctx, id)
		assert.ErrorIs(t, err, errors.ErrWalletNotFound)
	})

	t.Run("driver failure", func(t *testing.T) {
		id := uuid.New()
		mock.ExpectQuery("SELECT (.+) FROM wallets WHERE id = \\$1").
			WithArgs(id).
			WillReturnError(sql.ErrConnDone)

		_, err := s.GetWallet(ctx, id)
		assert.ErrorIs(t, err, errors.ErrStorageUnavailable)
		assert.NotErrorIs(t, err, errors.ErrWalletNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepository_CreateWalletDuplicateOwner(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO wallets").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "wallets_user_id_key"})

	err := s.CreateWallet(context.Background(), domain.NewWallet(uuid.New(), "", time.Now()))
	assert.ErrorIs(t, err, errors.ErrWalletAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepository_UpdateWalletVersion(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	w := domain.NewWallet(uuid.New(), "", time.Now())
	w.Version = 4

	t.Run("applies and bumps version", func(t *testing.T) {
		mock.ExpectExec("UPDATE wallets SET (.+) WHERE id = \\$7 AND version = \\$8").
			WithArgs(sqlmock.AnyArg(), "not_activated", true, true, true, sqlmock.AnyArg(), w.ID, int64(4)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.UpdateWallet(ctx, w))
		assert.Equal(t, int64(5), w.Version)
	})

	t.Run("stale version", func(t *testing.T) {
		mock.ExpectExec("UPDATE wallets SET (.+) WHERE id = \\$7 AND version = \\$8").
			WithArgs(sqlmock.AnyArg(), "not_activated", true, true, true, sqlmock.AnyArg(), w.ID, int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := s.UpdateWallet(ctx, w)
		assert.ErrorIs(t, err, errors.ErrConcurrentUpdate)
		assert.Equal(t, int64(5), w.Version)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_InTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits with row lock", func(t *testing.T) {
		s, mock := newMockStore(t)
		id, owner := uuid.New(), uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM wallets WHERE id = \\$1 FOR UPDATE").
			WithArgs(id).
			WillReturnRows(walletRow(id, owner, "100", 1))
		mock.ExpectExec("UPDATE wallets SET").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := s.InTx(ctx, func(r store.Repos) error {
			w, err := r.LockWallet(ctx, id)
			if err != nil {
				return err
			}
			w.Balance = w.Balance.Add(decimal.NewFromInt(50))
			return r.UpdateWallet(ctx, w)
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		s, mock := newMockStore(t)
		id := uuid.New()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) FROM wallets WHERE id = \\$1 FOR UPDATE").
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(walletCols))
		mock.ExpectRollback()

		err := s.InTx(ctx, func(r store.Repos) error {
			_, err := r.LockWallet(ctx, id)
			return err
		})
		assert.ErrorIs(t, err, errors.ErrWalletNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure is a storage error", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectBegin().WillReturnError(sql.ErrConnDone)

		err := s.InTx(ctx, func(store.Repos) error { return nil })
		assert.ErrorIs(t, err, errors.ErrStorageUnavailable)
	})
}

func TestTransactionRepository_UpdateAndList(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Now()
	walletID := uuid.New()

	tx := &domain.Transaction{ID: uuid.New(), Status: domain.TransactionStatusApproved, AppliedAt: &now}
	mock.ExpectExec("UPDATE transactions SET status = \\$1, applied_at = \\$2, updated_at = \\$3 WHERE id = \\$4").
		WithArgs("approved", now, sqlmock.AnyArg(), tx.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, s.UpdateTransaction(ctx, tx))

	missing := &domain.Transaction{ID: uuid.New(), Status: domain.TransactionStatusRejected}
	mock.ExpectExec("UPDATE transactions SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, s.UpdateTransaction(ctx, missing), errors.ErrTransactionNotFound)

	cols := []string{"id", "wallet_id", "type", "amount", "status", "reference", "note", "applied_at", "created_at", "updated_at"}
	newer, older := uuid.New(), uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM transactions WHERE wallet_id = \\$1 ORDER BY created_at DESC").
		WithArgs(walletID).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(newer.String(), walletID.String(), "withdrawal", "50", "pending", nil, nil, nil, now, now).
			AddRow(older.String(), walletID.String(), "deposit", "200", "approved", "bank-1", nil, now, now.Add(-time.Hour), now))

	txs, err := s.ListTransactionsByWallet(ctx, walletID)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, newer, txs[0].ID)
	assert.False(t, txs[0].Applied())
	assert.Equal(t, domain.TransactionTypeDeposit, txs[1].Type)
	require.NotNil(t, txs[1].Reference)
	assert.Equal(t, "bank-1", *txs[1].Reference)
	assert.True(t, txs[1].Applied())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepository_ListWalletViews(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()
	id, owner := uuid.New(), uuid.New()

	cols := append(append([]string{}, walletCols...), "owner_email", "owner_name")
	mock.ExpectQuery("SELECT (.+) FROM wallets w LEFT JOIN users u ON u.id = w.user_id").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(id.String(), owner.String(), "10", "USD", "frozen", true, false, true, 2, now, now, "ada@example.com", "Ada Lovelace"))

	views, err := s.ListWalletViews(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, domain.WalletStatusFrozen, views[0].Status)
	assert.False(t, views[0].AllowWithdrawals)
	require.NotNil(t, views[0].OwnerName)
	assert.Equal(t, "Ada Lovelace", *views[0].OwnerName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvestmentRepository_GetPackageNullableMax(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()
	id := uuid.New()

	cols := []string{"id", "name", "description", "min_amount", "max_amount", "daily_return", "duration_days", "is_active", "created_at", "updated_at"}
	mock.ExpectQuery("SELECT (.+) FROM investment_packages WHERE id = \\$1").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(id.String(), "Open ended", nil, "100", nil, "0.010000", 30, true, now, now))

	p, err := s.GetPackage(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, p.MaxAmount)
	assert.True(t, p.InRange(decimal.NewFromInt(1_000_000)))
	assert.NoError(t, mock.ExpectationsWereMet())
}
