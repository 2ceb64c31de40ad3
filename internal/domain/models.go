// Package domain re-exports core domain types so internal code can import
// `yieldwallet/internal/domain` while using definitions from `yieldwallet/pkg/domain`.
package domain

import pkg "yieldwallet/pkg/domain"

// Currency represents a currency code.
type Currency = pkg.Currency

// Wallet represents a user's wallet.
type Wallet = pkg.Wallet

// WalletStatus represents the status of a wallet.
type WalletStatus = pkg.WalletStatus

// WalletView is a wallet joined with its owner details.
type WalletView = pkg.WalletView

// PermissionKind names a wallet capability flag.
type PermissionKind = pkg.PermissionKind

// ControlsPatch is a partial update of wallet flags.
type ControlsPatch = pkg.ControlsPatch

// Transaction represents a ledger transaction.
type Transaction = pkg.Transaction

// TransactionStatus represents transaction lifecycle states.
type TransactionStatus = pkg.TransactionStatus

// TransactionType represents categories of transactions.
type TransactionType = pkg.TransactionType

type InvestmentPackage = pkg.InvestmentPackage

type PackagePatch = pkg.PackagePatch

type UserInvestment = pkg.UserInvestment

type InvestmentStatus = pkg.InvestmentStatus

type PositionPatch = pkg.PositionPatch

type PositionDetail = pkg.PositionDetail

const (
	MoneyScale      = pkg.MoneyScale
	DefaultCurrency = pkg.DefaultCurrency

	WalletStatusNotActivated = pkg.WalletStatusNotActivated
	WalletStatusActive       = pkg.WalletStatusActive
	WalletStatusFrozen       = pkg.WalletStatusFrozen
	WalletStatusDisabled     = pkg.WalletStatusDisabled

	PermissionDeposits    = pkg.PermissionDeposits
	PermissionWithdrawals = pkg.PermissionWithdrawals
	PermissionPurchases   = pkg.PermissionPurchases

	TransactionTypeDeposit    = pkg.TransactionTypeDeposit
	TransactionTypeWithdrawal = pkg.TransactionTypeWithdrawal
	TransactionTypePurchase   = pkg.TransactionTypePurchase
	TransactionTypeEarning    = pkg.TransactionTypeEarning

	TransactionStatusPending  = pkg.TransactionStatusPending
	TransactionStatusApproved = pkg.TransactionStatusApproved
	TransactionStatusRejected = pkg.TransactionStatusRejected

	InvestmentStatusActive    = pkg.InvestmentStatusActive
	InvestmentStatusMatured   = pkg.InvestmentStatusMatured
	InvestmentStatusCancelled = pkg.InvestmentStatusCancelled
)

var (
	NewWallet  = pkg.NewWallet
	RoundMoney = pkg.RoundMoney
)
