// Package ledger owns the transaction state machine and is the only code
// path that changes a wallet balance.
//
//	pending --approve--> approved   (delta applied once)
//	pending --reject---> rejected
//	any     --reset----> pending    (admin override, no reversal)
//
// A transaction's AppliedAt marker is set when its delta reaches the
// balance and is never cleared, so approving a reset transaction again
// relabels it without moving money twice.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"yieldwallet/internal/domain"
	"yieldwallet/internal/permission"
	"yieldwallet/internal/store"
	"yieldwallet/pkg/errors"
	"yieldwallet/pkg/logger"
	"yieldwallet/pkg/metrics"
	"yieldwallet/pkg/validator"
)

type Service struct {
	store  store.Store
	logger logger.Logger
	now    func() time.Time
}

func NewService(st store.Store, log logger.Logger) *Service {
	return &Service{
		store:  st,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RecordRequest describes a new pending transaction.
type RecordRequest struct {
	WalletID  uuid.UUID              `json:"wallet_id"`
	Type      domain.TransactionType `json:"type" validate:"required"`
	Amount    decimal.Decimal        `json:"amount" validate:"required"`
	Reference *string                `json:"reference,omitempty" validate:"omitempty,max=255"`
	Note      *string                `json:"note,omitempty" validate:"omitempty,max=1000"`
}

// Posting is a transaction created and applied inside the caller's unit of
// work.
type Posting struct {
	Type      domain.TransactionType
	Amount    decimal.Decimal
	Reference string
	Note      string
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.ErrAmountInvalid
	}
	if !domain.RoundMoney(amount).Equal(amount) {
		return fmt.Errorf("%w: at most %d decimal places", errors.ErrAmountInvalid, domain.MoneyScale)
	}
	return nil
}

func sanitized(s *string) *string {
	if s == nil {
		return nil
	}
	clean := validator.Sanitize(*s)
	if clean == "" {
		return nil
	}
	return &clean
}

// Record creates a pending transaction after the permission gate accepts
// the wallet. It has no balance effect.
func (s *Service) Record(ctx context.Context, req RecordRequest) (*domain.Transaction, error) {
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", errors.ErrInvalidTransactionType, req.Type)
	}
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}

	wallet, err := s.store.GetWallet(ctx, req.WalletID)
	if err != nil {
		return nil, err
	}
	if err := permission.Check(wallet, req.Type); err != nil {
		s.logger.Warn("Transaction refused by permission gate", map[string]interface{}{
			"wallet_id": wallet.ID,
			"type":      req.Type,
			"reason":    err.Error(),
		})
		return nil, err
	}

	now := s.now()
	txn := &domain.Transaction{
		ID:        uuid.New(),
		WalletID:  wallet.ID,
		Type:      req.Type,
		Amount:    req.Amount,
		Status:    domain.TransactionStatusPending,
		Reference: sanitized(req.Reference),
		Note:      sanitized(req.Note),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateTransaction(ctx, txn); err != nil {
		return nil, err
	}

	metrics.LedgerTransitions.WithLabelValues(string(txn.Type), string(txn.Status)).Inc()
	s.logger.Info("Transaction recorded", map[string]interface{}{
		"transaction_id": txn.ID,
		"wallet_id":      txn.WalletID,
		"type":           txn.Type,
		"amount":         txn.Amount.String(),
	})
	return txn, nil
}

// Approve applies the transaction to its wallet and marks it approved, in
// one unit of work. Only pending transactions can be approved. A debit that
// would take the balance below zero fails with ErrInsufficientBalance and
// leaves the transaction pending.
func (s *Service) Approve(ctx context.Context, txnID uuid.UUID) (*domain.Transaction, error) {
	var (
		txn     *domain.Transaction
		applied bool
	)
	err := s.store.InTx(ctx, func(r store.Repos) error {
		t, err := r.LockTransaction(ctx, txnID)
		if err != nil {
			return err
		}
		if t.Status != domain.TransactionStatusPending {
			return fmt.Errorf("%w: cannot approve %s transaction", errors.ErrInvalidStateTransition, t.Status)
		}

		if !t.Applied() {
			w, err := r.LockWallet(ctx, t.WalletID)
			if err != nil {
				return err
			}
			if err := s.apply(ctx, r, w, t.Type, t.Amount); err != nil {
				return err
			}
			now := s.now()
			t.AppliedAt = &now
			applied = true
		}

		t.Status = domain.TransactionStatusApproved
		if err := r.UpdateTransaction(ctx, t); err != nil {
			return err
		}
		txn = t
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "approve transaction")
	}

	metrics.LedgerTransitions.WithLabelValues(string(txn.Type), string(txn.Status)).Inc()
	if applied {
		metrics.BalanceApplied.WithLabelValues(string(txn.Type)).Add(txn.Amount.InexactFloat64())
	}
	s.logger.Info("Transaction approved", map[string]interface{}{
		"transaction_id": txn.ID,
		"wallet_id":      txn.WalletID,
		"type":           txn.Type,
		"amount":         txn.Amount.String(),
		"applied":        applied,
	})
	return txn, nil
}

// Reject marks a pending transaction rejected. A pending transaction whose
// delta was already applied (approved, then reset) cannot be rejected
// because that would leave the balance out of step with its history.
func (s *Service) Reject(ctx context.Context, txnID uuid.UUID) (*domain.Transaction, error) {
	var txn *domain.Transaction
	err := s.store.InTx(ctx, func(r store.Repos) error {
		t, err := r.LockTransaction(ctx, txnID)
		if err != nil {
			return err
		}
		if t.Status != domain.TransactionStatusPending {
			return fmt.Errorf("%w: cannot reject %s transaction", errors.ErrInvalidStateTransition, t.Status)
		}
		if t.Applied() {
			return fmt.Errorf("%w: transaction was already applied to the balance", errors.ErrInvalidStateTransition)
		}
		t.Status = domain.TransactionStatusRejected
		if err := r.UpdateTransaction(ctx, t); err != nil {
			return err
		}
		txn = t
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "reject transaction")
	}

	metrics.LedgerTransitions.WithLabelValues(string(txn.Type), string(txn.Status)).Inc()
	s.logger.Info("Transaction rejected", map[string]interface{}{
		"transaction_id": txn.ID,
		"wallet_id":      txn.WalletID,
	})
	return txn, nil
}

// ResetToPending force-sets the status to pending from any state. The
// balance is not reversed.
func (s *Service) ResetToPending(ctx context.Context, txnID uuid.UUID) (*domain.Transaction, error) {
	var (
		txn  *domain.Transaction
		from domain.TransactionStatus
	)
	err := s.store.InTx(ctx, func(r store.Repos) error {
		t, err := r.LockTransaction(ctx, txnID)
		if err != nil {
			return err
		}
		from = t.Status
		if t.Status == domain.TransactionStatusPending {
			txn = t
			return nil
		}
		t.Status = domain.TransactionStatusPending
		if err := r.UpdateTransaction(ctx, t); err != nil {
			return err
		}
		txn = t
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "reset transaction")
	}

	metrics.LedgerTransitions.WithLabelValues(string(txn.Type), string(txn.Status)).Inc()
	s.logger.Warn("Transaction reset to pending", map[string]interface{}{
		"transaction_id": txn.ID,
		"wallet_id":      txn.WalletID,
		"from_status":    from,
		"applied":        txn.Applied(),
	})
	return txn, nil
}

// Post creates an approved transaction and applies it to w inside the
// caller's unit of work. w must have been read with LockWallet through r.
// The permission gate is the caller's responsibility.
func (s *Service) Post(ctx context.Context, r store.Repos, w *domain.Wallet, p Posting) (*domain.Transaction, error) {
	if !p.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", errors.ErrInvalidTransactionType, p.Type)
	}
	if err := validateAmount(p.Amount); err != nil {
		return nil, err
	}
	if err := s.apply(ctx, r, w, p.Type, p.Amount); err != nil {
		return nil, err
	}

	now := s.now()
	txn := &domain.Transaction{
		ID:        uuid.New(),
		WalletID:  w.ID,
		Type:      p.Type,
		Amount:    p.Amount,
		Status:    domain.TransactionStatusApproved,
		Reference: optional(p.Reference),
		Note:      optional(p.Note),
		AppliedAt: &now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.CreateTransaction(ctx, txn); err != nil {
		return nil, err
	}

	metrics.LedgerTransitions.WithLabelValues(string(txn.Type), string(txn.Status)).Inc()
	metrics.BalanceApplied.WithLabelValues(string(txn.Type)).Add(txn.Amount.InexactFloat64())
	return txn, nil
}

// apply moves the wallet balance by the signed delta of typ and persists
// the wallet.
func (s *Service) apply(ctx context.Context, r store.Repos, w *domain.Wallet, typ domain.TransactionType, amount decimal.Decimal) error {
	next := w.Balance.Add(typ.Delta(amount))
	if next.IsNegative() {
		return fmt.Errorf("%w: balance %s, requested %s", errors.ErrInsufficientBalance, w.Balance.String(), amount.String())
	}
	w.Balance = next
	return r.UpdateWallet(ctx, w)
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func (s *Service) Get(ctx context.Context, txnID uuid.UUID) (*domain.Transaction, error) {
	return s.store.GetTransaction(ctx, txnID)
}

// List returns the wallet's transactions, newest first.
func (s *Service) List(ctx context.Context, walletID uuid.UUID) ([]*domain.Transaction, error) {
	if _, err := s.store.GetWallet(ctx, walletID); err != nil {
		return nil, err
	}
	return s.store.ListTransactionsByWallet(ctx, walletID)
}

// ListAll returns every transaction, newest first.
func (s *Service) ListAll(ctx context.Context) ([]*domain.Transaction, error) {
	return s.store.ListTransactions(ctx)
}
