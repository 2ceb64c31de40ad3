// Package admin is the operator surface over wallets, the ledger and the
// investment engine.
package admin

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"yieldwallet/internal/domain"
	"yieldwallet/internal/investment"
	"yieldwallet/internal/ledger"
	"yieldwallet/internal/wallet"
	"yieldwallet/pkg/logger"
)

// WalletViews produces the denormalized wallet listing.
type WalletViews interface {
	ListWalletViews(ctx context.Context) ([]*domain.WalletView, error)
}

type Service struct {
	views       WalletViews
	wallets     *wallet.Service
	ledger      *ledger.Service
	investments *investment.Service
	logger      logger.Logger
}

func NewService(views WalletViews, wallets *wallet.Service, led *ledger.Service, inv *investment.Service, log logger.Logger) *Service {
	return &Service{
		views:       views,
		wallets:     wallets,
		ledger:      led,
		investments: inv,
		logger:      log,
	}
}

// TransactionRequest is an operator-entered transaction for a user's wallet.
type TransactionRequest struct {
	UserID    uuid.UUID              `json:"user_id" validate:"required"`
	Type      domain.TransactionType `json:"type" validate:"required,oneof=deposit withdrawal purchase earning"`
	Amount    decimal.Decimal        `json:"amount" validate:"required,gt=0"`
	Reference *string                `json:"reference,omitempty" validate:"omitempty,max=255"`
	Note      *string                `json:"note,omitempty" validate:"omitempty,max=1000"`
}

func (s *Service) ListWallets(ctx context.Context) ([]*domain.WalletView, error) {
	return s.views.ListWalletViews(ctx)
}

func (s *Service) SetWalletStatus(ctx context.Context, walletID uuid.UUID, status domain.WalletStatus) (*domain.Wallet, error) {
	return s.wallets.SetStatus(ctx, walletID, status)
}

func (s *Service) SetWalletPermission(ctx context.Context, walletID uuid.UUID, kind domain.PermissionKind, enabled bool) (*domain.Wallet, error) {
	return s.wallets.SetPermission(ctx, walletID, kind, enabled)
}

func (s *Service) UpdateWalletControls(ctx context.Context, walletID uuid.UUID, patch domain.ControlsPatch) (*domain.Wallet, error) {
	return s.wallets.UpdateControls(ctx, walletID, patch)
}

// autoApproved lists the types an operator entry applies immediately.
// Purchases stay pending because they normally come from the investment
// engine.
func autoApproved(t domain.TransactionType) bool {
	switch t {
	case domain.TransactionTypeDeposit, domain.TransactionTypeEarning, domain.TransactionTypeWithdrawal:
		return true
	}
	return false
}

// RecordTransaction records a transaction on the user's wallet through the
// permission gate and approves it straight away for the auto-approved
// types. If the approval fails the transaction is left pending and the
// error is returned alongside it.
func (s *Service) RecordTransaction(ctx context.Context, req TransactionRequest) (*domain.Transaction, error) {
	w, err := s.wallets.Get(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	txn, err := s.ledger.Record(ctx, ledger.RecordRequest{
		WalletID:  w.ID,
		Type:      req.Type,
		Amount:    req.Amount,
		Reference: req.Reference,
		Note:      req.Note,
	})
	if err != nil {
		return nil, err
	}
	if !autoApproved(txn.Type) {
		return txn, nil
	}

	approved, err := s.ledger.Approve(ctx, txn.ID)
	if err != nil {
		s.logger.Warn("Auto-approval failed, transaction left pending", map[string]interface{}{
			"transaction_id": txn.ID,
			"error":          err.Error(),
		})
		return txn, fmt.Errorf("auto-approve: %w", err)
	}
	return approved, nil
}

func (s *Service) ApproveTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return s.ledger.Approve(ctx, id)
}

func (s *Service) RejectTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return s.ledger.Reject(ctx, id)
}

func (s *Service) PendTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return s.ledger.ResetToPending(ctx, id)
}

func (s *Service) ListTransactions(ctx context.Context) ([]*domain.Transaction, error) {
	return s.ledger.ListAll(ctx)
}

// ListPackages includes inactive packages.
func (s *Service) ListPackages(ctx context.Context) ([]*domain.InvestmentPackage, error) {
	return s.investments.ListPackages(ctx, false)
}

func (s *Service) CreatePackage(ctx context.Context, req investment.CreatePackageRequest) (*domain.InvestmentPackage, error) {
	return s.investments.CreatePackage(ctx, req)
}

func (s *Service) UpdatePackage(ctx context.Context, id uuid.UUID, patch domain.PackagePatch) (*domain.InvestmentPackage, error) {
	return s.investments.UpdatePackage(ctx, id, patch)
}

func (s *Service) ListPositions(ctx context.Context) ([]*domain.UserInvestment, error) {
	return s.investments.ListAllPositions(ctx)
}

func (s *Service) UpdatePosition(ctx context.Context, id uuid.UUID, patch domain.PositionPatch) (*domain.UserInvestment, error) {
	return s.investments.UpdatePosition(ctx, id, patch)
}

func (s *Service) MaturePosition(ctx context.Context, id uuid.UUID) (*domain.UserInvestment, error) {
	return s.investments.Mature(ctx, id)
}
