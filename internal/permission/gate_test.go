package permission

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"yieldwallet/internal/domain"
	"yieldwallet/pkg/errors"
)

func activeWallet() *domain.Wallet {
	w := domain.NewWallet(uuid.New(), "", time.Now())
	w.Status = domain.WalletStatusActive
	return w
}

func TestCheck_StatusMustBeActive(t *testing.T) {
	for _, status := range []domain.WalletStatus{
		domain.WalletStatusNotActivated,
		domain.WalletStatusFrozen,
		domain.WalletStatusDisabled,
	} {
		t.Run(string(status), func(t *testing.T) {
			w := activeWallet()
			w.Status = status

			for _, typ := range []domain.TransactionType{
				domain.TransactionTypeDeposit,
				domain.TransactionTypeWithdrawal,
				domain.TransactionTypePurchase,
				domain.TransactionTypeEarning,
			} {
				err := Check(w, typ)
				assert.ErrorIs(t, err, errors.ErrPermissionDenied)
				assert.Contains(t, err.Error(), string(status))
			}
		})
	}
}

func TestCheck_Flags(t *testing.T) {
	tests := []struct {
		name    string
		disable domain.PermissionKind
		typ     domain.TransactionType
		allowed bool
	}{
		{"deposit allowed", "", domain.TransactionTypeDeposit, true},
		{"deposits disabled", domain.PermissionDeposits, domain.TransactionTypeDeposit, false},
		{"withdrawals disabled", domain.PermissionWithdrawals, domain.TransactionTypeWithdrawal, false},
		{"purchases disabled", domain.PermissionPurchases, domain.TransactionTypePurchase, false},
		{"other flag does not matter", domain.PermissionDeposits, domain.TransactionTypeWithdrawal, true},
		{"earning ignores flags", domain.PermissionDeposits, domain.TransactionTypeEarning, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := activeWallet()
			if tt.disable != "" {
				w.SetAllowed(tt.disable, false)
			}
			err := Check(w, tt.typ)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, errors.ErrPermissionDenied)
			}
		})
	}
}

func TestCheck_EarningWithAllFlagsOff(t *testing.T) {
	w := activeWallet()
	w.AllowDeposits, w.AllowWithdrawals, w.AllowPurchases = false, false, false

	assert.NoError(t, Check(w, domain.TransactionTypeEarning))
}
