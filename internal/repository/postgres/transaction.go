package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"yieldwallet/internal/domain"
	"yieldwallet/pkg/errors"
)

const transactionColumns = `id, wallet_id, type, amount, status, reference, note, applied_at, created_at, updated_at`

type TransactionRepository struct {
	db sqlx.ExtContext
}

func NewTransactionRepository(db sqlx.ExtContext) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (
			id, wallet_id, type, amount, status, reference, note, applied_at, created_at, updated_at
		) VALUES (
			:id, :wallet_id, :type, :amount, :status, :reference, :note, :applied_at, :created_at, :updated_at
		)
	`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, tx); err != nil {
		return errors.Storage(err, "failed to create transaction")
	}
	return nil
}

func (r *TransactionRepository) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	tx := &domain.Transaction{}
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	if err := sqlx.GetContext(ctx, r.db, tx, query, id); err != nil {
		return nil, notFoundOr(err, errors.ErrTransactionNotFound, "failed to find transaction")
	}
	return tx, nil
}

func (r *TransactionRepository) LockTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	tx := &domain.Transaction{}
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`
	if err := sqlx.GetContext(ctx, r.db, tx, query, id); err != nil {
		return nil, notFoundOr(err, errors.ErrTransactionNotFound, "failed to lock transaction")
	}
	return tx, nil
}

// UpdateTransaction persists the status and the applied marker. Amount,
// type and wallet never change after creation.
func (r *TransactionRepository) UpdateTransaction(ctx context.Context, tx *domain.Transaction) error {
	now := time.Now().UTC()
	query := `UPDATE transactions SET status = $1, applied_at = $2, updated_at = $3 WHERE id = $4`
	res, err := r.db.ExecContext(ctx, query, tx.Status, tx.AppliedAt, now, tx.ID)
	if err != nil {
		return errors.Storage(err, "failed to update transaction")
	}
	if err := checkAffected(res, errors.ErrTransactionNotFound, "failed to update transaction"); err != nil {
		return err
	}
	tx.UpdatedAt = now
	return nil
}

func (r *TransactionRepository) ListTransactionsByWallet(ctx context.Context, walletID uuid.UUID) ([]*domain.Transaction, error) {
	var txs []*domain.Transaction
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE wallet_id = $1 ORDER BY created_at DESC, id DESC`
	if err := sqlx.SelectContext(ctx, r.db, &txs, query, walletID); err != nil {
		return nil, errors.Storage(err, "failed to list wallet transactions")
	}
	return txs, nil
}

func (r *TransactionRepository) ListTransactions(ctx context.Context) ([]*domain.Transaction, error) {
	var txs []*domain.Transaction
	query := `SELECT ` + transactionColumns + ` FROM transactions ORDER BY created_at DESC, id DESC`
	if err := sqlx.SelectContext(ctx, r.db, &txs, query); err != nil {
		return nil, errors.Storage(err, "failed to list transactions")
	}
	return txs, nil
}
