package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits kept for stored amounts.
const MoneyScale int32 = 6

// Currency represents ISO 4217 currency codes
type Currency string

const DefaultCurrency Currency = "USD"

type WalletStatus string

const (
	WalletStatusNotActivated WalletStatus = "not_activated"
	WalletStatusActive       WalletStatus = "active"
	WalletStatusFrozen       WalletStatus = "frozen"
	WalletStatusDisabled     WalletStatus = "disabled"
)

func (s WalletStatus) Valid() bool {
	switch s {
	case WalletStatusNotActivated, WalletStatusActive, WalletStatusFrozen, WalletStatusDisabled:
		return true
	}
	return false
}

// PermissionKind names one of the per-wallet capability flags.
type PermissionKind string

const (
	PermissionDeposits    PermissionKind = "deposits"
	PermissionWithdrawals PermissionKind = "withdrawals"
	PermissionPurchases   PermissionKind = "purchases"
)

func (k PermissionKind) Valid() bool {
	switch k {
	case PermissionDeposits, PermissionWithdrawals, PermissionPurchases:
		return true
	}
	return false
}

// Wallet holds the single balance of one owner.
type Wallet struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	UserID           uuid.UUID       `json:"user_id" db:"user_id"`
	Balance          decimal.Decimal `json:"balance" db:"balance"`
	Currency         Currency        `json:"currency" db:"currency"`
	Status           WalletStatus    `json:"status" db:"status"`
	AllowDeposits    bool            `json:"allow_deposits" db:"allow_deposits"`
	AllowWithdrawals bool            `json:"allow_withdrawals" db:"allow_withdrawals"`
	AllowPurchases   bool            `json:"allow_purchases" db:"allow_purchases"`
	Version          int64           `json:"version" db:"version"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// NewWallet returns a wallet with the defaults every new owner starts with.
func NewWallet(userID uuid.UUID, currency Currency, now time.Time) *Wallet {
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Wallet{
		ID:               uuid.New(),
		UserID:           userID,
		Balance:          decimal.Zero,
		Currency:         currency,
		Status:           WalletStatusNotActivated,
		AllowDeposits:    true,
		AllowWithdrawals: true,
		AllowPurchases:   true,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (w *Wallet) Allows(kind PermissionKind) bool {
	switch kind {
	case PermissionDeposits:
		return w.AllowDeposits
	case PermissionWithdrawals:
		return w.AllowWithdrawals
	case PermissionPurchases:
		return w.AllowPurchases
	}
	return false
}

func (w *Wallet) SetAllowed(kind PermissionKind, enabled bool) {
	switch kind {
	case PermissionDeposits:
		w.AllowDeposits = enabled
	case PermissionWithdrawals:
		w.AllowWithdrawals = enabled
	case PermissionPurchases:
		w.AllowPurchases = enabled
	}
}

// ControlsPatch is a partial update of the wallet capability flags.
// Nil fields are left untouched.
type ControlsPatch struct {
	AllowDeposits    *bool `json:"allow_deposits,omitempty"`
	AllowWithdrawals *bool `json:"allow_withdrawals,omitempty"`
	AllowPurchases   *bool `json:"allow_purchases,omitempty"`
}

func (p ControlsPatch) Empty() bool {
	return p.AllowDeposits == nil && p.AllowWithdrawals == nil && p.AllowPurchases == nil
}

func (p ControlsPatch) Apply(w *Wallet) {
	if p.AllowDeposits != nil {
		w.AllowDeposits = *p.AllowDeposits
	}
	if p.AllowWithdrawals != nil {
		w.AllowWithdrawals = *p.AllowWithdrawals
	}
	if p.AllowPurchases != nil {
		w.AllowPurchases = *p.AllowPurchases
	}
}

// WalletView is the admin read-model: a wallet joined with its owner.
type WalletView struct {
	Wallet
	OwnerEmail *string `json:"owner_email,omitempty" db:"owner_email"`
	OwnerName  *string `json:"owner_name,omitempty" db:"owner_name"`
}

type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypePurchase   TransactionType = "purchase"
	TransactionTypeEarning    TransactionType = "earning"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypePurchase, TransactionTypeEarning:
		return true
	}
	return false
}

// IsCredit reports whether approving the type adds to the balance.
func (t TransactionType) IsCredit() bool {
	return t == TransactionTypeDeposit || t == TransactionTypeEarning
}

// Permission returns the wallet flag guarding the type. Earnings are
// system generated and have no flag.
func (t TransactionType) Permission() (PermissionKind, bool) {
	switch t {
	case TransactionTypeDeposit:
		return PermissionDeposits, true
	case TransactionTypeWithdrawal:
		return PermissionWithdrawals, true
	case TransactionTypePurchase:
		return PermissionPurchases, true
	}
	return "", false
}

// Delta is the signed balance change for amount.
func (t TransactionType) Delta(amount decimal.Decimal) decimal.Decimal {
	if t.IsCredit() {
		return amount
	}
	return amount.Neg()
}

type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "pending"
	TransactionStatusApproved TransactionStatus = "approved"
	TransactionStatusRejected TransactionStatus = "rejected"
)

// Transaction is a requested balance movement. AppliedAt is set once, when
// the delta reaches the wallet balance, and is never cleared.
type Transaction struct {
	ID        uuid.UUID         `json:"id" db:"id"`
	WalletID  uuid.UUID         `json:"wallet_id" db:"wallet_id"`
	Type      TransactionType   `json:"type" db:"type"`
	Amount    decimal.Decimal   `json:"amount" db:"amount"`
	Status    TransactionStatus `json:"status" db:"status"`
	Reference *string           `json:"reference,omitempty" db:"reference"`
	Note      *string           `json:"note,omitempty" db:"note"`
	AppliedAt *time.Time        `json:"applied_at,omitempty" db:"applied_at"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" db:"updated_at"`
}

func (t *Transaction) Applied() bool {
	return t.AppliedAt != nil
}

// RoundMoney rounds to the stored scale.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}
