// Package permission decides whether a wallet may take part in a
// transaction of a given type. It reads no storage and has no side effects.
package permission

import (
	"fmt"

	"yieldwallet/internal/domain"
	"yieldwallet/pkg/errors"
)

// Check returns nil if wallet may initiate a txnType transaction, or an
// error wrapping ErrPermissionDenied that names the reason.
//
// The wallet must be active. Deposits, withdrawals and purchases also need
// their capability flag; earnings are system credits and skip the flags.
func Check(wallet *domain.Wallet, txnType domain.TransactionType) error {
	if wallet.Status != domain.WalletStatusActive {
		return fmt.Errorf("%w: wallet is %s", errors.ErrPermissionDenied, wallet.Status)
	}

	kind, guarded := txnType.Permission()
	if !guarded {
		return nil
	}
	if !wallet.Allows(kind) {
		return fmt.Errorf("%w: %s are disabled for this wallet", errors.ErrPermissionDenied, kind)
	}
	return nil
}
