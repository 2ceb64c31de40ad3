package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"yieldwallet/internal/domain"
	"yieldwallet/pkg/errors"
)

const walletColumns = `id, user_id, balance, currency, status, allow_deposits, allow_withdrawals, allow_purchases, version, created_at, updated_at`

type WalletRepository struct {
	db sqlx.ExtContext
}

func NewWalletRepository(db sqlx.ExtContext) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) CreateWallet(ctx context.Context, wallet *domain.Wallet) error {
	query := `
		INSERT INTO wallets (
			id, user_id, balance, currency, status, allow_deposits, allow_withdrawals, allow_purchases, version, created_at, updated_at
		) VALUES (
			:id, :user_id, :balance, :currency, :status, :allow_deposits, :allow_withdrawals, :allow_purchases, :version, :created_at, :updated_at
		)
	`
	_, err := sqlx.NamedExecContext(ctx, r.db, query, wallet)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.ErrWalletAlreadyExists
		}
		return errors.Storage(err, "failed to create wallet")
	}
	return nil
}

func (r *WalletRepository) GetWallet(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	wallet := &domain.Wallet{}
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`
	if err := sqlx.GetContext(ctx, r.db, wallet, query, id); err != nil {
		return nil, notFoundOr(err, errors.ErrWalletNotFound, "failed to find wallet by id")
	}
	return wallet, nil
}

func (r *WalletRepository) GetWalletByUser(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	wallet := &domain.Wallet{}
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`
	if err := sqlx.GetContext(ctx, r.db, wallet, query, userID); err != nil {
		return nil, notFoundOr(err, errors.ErrWalletNotFound, "failed to find wallet by user id")
	}
	return wallet, nil
}

// LockWallet reads the wallet with a row lock held until the surrounding
// transaction ends.
func (r *WalletRepository) LockWallet(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	wallet := &domain.Wallet{}
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 FOR UPDATE`
	if err := sqlx.GetContext(ctx, r.db, wallet, query, id); err != nil {
		return nil, notFoundOr(err, errors.ErrWalletNotFound, "failed to lock wallet")
	}
	return wallet, nil
}

// UpdateWallet writes balance, status and flags if the stored version still
// matches wallet.Version.
func (r *WalletRepository) UpdateWallet(ctx context.Context, wallet *domain.Wallet) error {
	now := time.Now().UTC()
	query := `
		UPDATE wallets SET
			balance = $1,
			status = $2,
			allow_deposits = $3,
			allow_withdrawals = $4,
			allow_purchases = $5,
			version = version + 1,
			updated_at = $6
		WHERE id = $7 AND version = $8
	`
	res, err := r.db.ExecContext(ctx, query,
		wallet.Balance, wallet.Status, wallet.AllowDeposits, wallet.AllowWithdrawals, wallet.AllowPurchases,
		now, wallet.ID, wallet.Version,
	)
	if err != nil {
		return errors.Storage(err, "failed to update wallet")
	}
	if err := checkAffected(res, errors.ErrConcurrentUpdate, "failed to update wallet"); err != nil {
		return err
	}
	wallet.Version++
	wallet.UpdatedAt = now
	return nil
}

// ListWalletViews joins every wallet with its owner for the admin listing.
func (r *WalletRepository) ListWalletViews(ctx context.Context) ([]*domain.WalletView, error) {
	var views []*domain.WalletView
	query := `
		SELECT
			w.id, w.user_id, w.balance, w.currency, w.status,
			w.allow_deposits, w.allow_withdrawals, w.allow_purchases,
			w.version, w.created_at, w.updated_at,
			u.email AS owner_email,
			NULLIF(TRIM(CONCAT_WS(' ', u.first_name, u.last_name)), '') AS owner_name
		FROM wallets w
		LEFT JOIN users u ON u.id = w.user_id
		ORDER BY w.created_at DESC
	`
	if err := sqlx.SelectContext(ctx, r.db, &views, query); err != nil {
		return nil, errors.Storage(err, "failed to list wallets")
	}
	return views, nil
}
