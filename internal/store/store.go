// Package store declares the persistence contract shared by the wallet,
// ledger and investment services. Implementations live under
// internal/repository.
package store

import (
	"context"

	"github.com/google/uuid"

	"yieldwallet/internal/domain"
)

// Wallets persists wallet rows. UpdateWallet is a compare-and-swap on
// Version: it fails with ErrConcurrentUpdate when the stored version differs
// and increments w.Version on success.
type Wallets interface {
	CreateWallet(ctx context.Context, w *domain.Wallet) error
	GetWallet(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetWalletByUser(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	LockWallet(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	UpdateWallet(ctx context.Context, w *domain.Wallet) error
	ListWalletViews(ctx context.Context) ([]*domain.WalletView, error)
}

type Transactions interface {
	CreateTransaction(ctx context.Context, t *domain.Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	LockTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	UpdateTransaction(ctx context.Context, t *domain.Transaction) error
	// ListTransactionsByWallet returns newest first.
	ListTransactionsByWallet(ctx context.Context, walletID uuid.UUID) ([]*domain.Transaction, error)
	ListTransactions(ctx context.Context) ([]*domain.Transaction, error)
}

type Investments interface {
	CreatePackage(ctx context.Context, p *domain.InvestmentPackage) error
	GetPackage(ctx context.Context, id uuid.UUID) (*domain.InvestmentPackage, error)
	UpdatePackage(ctx context.Context, p *domain.InvestmentPackage) error
	ListPackages(ctx context.Context, activeOnly bool) ([]*domain.InvestmentPackage, error)

	CreatePosition(ctx context.Context, i *domain.UserInvestment) error
	GetPosition(ctx context.Context, id uuid.UUID) (*domain.UserInvestment, error)
	LockPosition(ctx context.Context, id uuid.UUID) (*domain.UserInvestment, error)
	UpdatePosition(ctx context.Context, i *domain.UserInvestment) error
	ListPositionsByUser(ctx context.Context, userID uuid.UUID) ([]*domain.UserInvestment, error)
	ListPositions(ctx context.Context) ([]*domain.UserInvestment, error)
	ListActivePositions(ctx context.Context) ([]*domain.UserInvestment, error)
}

// Repos is the full set of repositories, either bound to the connection
// pool or to a single unit of work.
type Repos interface {
	Wallets
	Transactions
	Investments
}

// Store hands out units of work. InTx commits only if fn returns nil; any
// error leaves persisted state unchanged. Lock methods are only meaningful
// inside InTx.
type Store interface {
	Repos
	InTx(ctx context.Context, fn func(r Repos) error) error
	Ping(ctx context.Context) error
}
