package wallet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"yieldwallet/internal/domain"
	"yieldwallet/internal/store"
	"yieldwallet/pkg/errors"
	"yieldwallet/pkg/logger"
	"yieldwallet/pkg/metrics"
)

// Repository is the part of the store the wallet service needs.
type Repository interface {
	CreateWallet(ctx context.Context, w *domain.Wallet) error
	GetWallet(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetWalletByUser(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	InTx(ctx context.Context, fn func(r store.Repos) error) error
}

type Service struct {
	repo   Repository
	logger logger.Logger
	now    func() time.Time
}

func NewService(repo Repository, log logger.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create opens the single wallet of ownerID with zero balance, status
// not_activated and every capability enabled.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, currency domain.Currency) (*domain.Wallet, error) {
	if ownerID == uuid.Nil {
		return nil, fmt.Errorf("%w: owner id is required", errors.ErrInvalidArgument)
	}
	currency = domain.Currency(strings.ToUpper(strings.TrimSpace(string(currency))))

	wallet := domain.NewWallet(ownerID, currency, s.now())
	if err := s.repo.CreateWallet(ctx, wallet); err != nil {
		return nil, err
	}

	s.logger.Info("Wallet created", map[string]interface{}{
		"wallet_id": wallet.ID,
		"user_id":   ownerID,
		"currency":  wallet.Currency,
	})
	return wallet, nil
}

// Get returns the wallet owned by ownerID.
func (s *Service) Get(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error) {
	return s.repo.GetWalletByUser(ctx, ownerID)
}

func (s *Service) GetByID(ctx context.Context, walletID uuid.UUID) (*domain.Wallet, error) {
	return s.repo.GetWallet(ctx, walletID)
}

// SetStatus moves the wallet to any known status. Pending transactions are
// not touched.
func (s *Service) SetStatus(ctx context.Context, walletID uuid.UUID, status domain.WalletStatus) (*domain.Wallet, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown wallet status %q", errors.ErrInvalidStateTransition, status)
	}

	w, err := s.mutate(ctx, walletID, func(w *domain.Wallet) { w.Status = status })
	if err != nil {
		return nil, err
	}

	metrics.WalletUpdates.WithLabelValues("status").Inc()
	s.logger.Info("Wallet status changed", map[string]interface{}{
		"wallet_id": walletID,
		"status":    status,
	})
	return w, nil
}

// SetPermission toggles one capability flag.
func (s *Service) SetPermission(ctx context.Context, walletID uuid.UUID, kind domain.PermissionKind, enabled bool) (*domain.Wallet, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown permission %q", errors.ErrInvalidArgument, kind)
	}

	w, err := s.mutate(ctx, walletID, func(w *domain.Wallet) { w.SetAllowed(kind, enabled) })
	if err != nil {
		return nil, err
	}

	metrics.WalletUpdates.WithLabelValues(string(kind)).Inc()
	s.logger.Info("Wallet permission changed", map[string]interface{}{
		"wallet_id":  walletID,
		"permission": kind,
		"enabled":    enabled,
	})
	return w, nil
}

// UpdateControls applies a partial update of the capability flags.
func (s *Service) UpdateControls(ctx context.Context, walletID uuid.UUID, patch domain.ControlsPatch) (*domain.Wallet, error) {
	if patch.Empty() {
		return s.repo.GetWallet(ctx, walletID)
	}

	w, err := s.mutate(ctx, walletID, patch.Apply)
	if err != nil {
		return nil, err
	}

	metrics.WalletUpdates.WithLabelValues("controls").Inc()
	s.logger.Info("Wallet controls updated", map[string]interface{}{
		"wallet_id":         walletID,
		"allow_deposits":    w.AllowDeposits,
		"allow_withdrawals": w.AllowWithdrawals,
		"allow_purchases":   w.AllowPurchases,
	})
	return w, nil
}

func (s *Service) mutate(ctx context.Context, walletID uuid.UUID, change func(w *domain.Wallet)) (*domain.Wallet, error) {
	var out *domain.Wallet
	err := s.repo.InTx(ctx, func(r store.Repos) error {
		w, err := r.LockWallet(ctx, walletID)
		if err != nil {
			return err
		}
		change(w)
		if err := r.UpdateWallet(ctx, w); err != nil {
			return err
		}
		out = w
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "update wallet")
	}
	return out, nil
}
