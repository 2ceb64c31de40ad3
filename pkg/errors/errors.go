// Package errors provides the error kinds shared by the wallet, ledger and
// investment components, and helpers for attaching context to them.
package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrWalletNotFound         = errors.New("wallet not found")
	ErrWalletAlreadyExists    = errors.New("wallet already exists")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrInvestmentNotFound     = errors.New("investment not found")
	ErrPackageNotFound        = errors.New("investment package not found")
	ErrAmountInvalid          = errors.New("amount must be greater than zero")
	ErrAmountOutOfRange       = errors.New("amount outside package range")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrPermissionDenied       = errors.New("permission denied")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrInvalidArgument        = errors.New("invalid argument")
)

// Infrastructure errors
var (
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrConcurrentUpdate   = errors.New("concurrent update detected")
	ErrDuplicateRequest   = errors.New("duplicate request in progress")
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Storage marks a driver or connection failure so callers can tell it apart
// from domain errors. The original error stays reachable through errors.Is/As.
func Storage(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", message, ErrStorageUnavailable, err)
}

// Is, As and New re-export the standard helpers so callers need one import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target interface{}) bool { return errors.As(err, target) }

func New(text string) error { return errors.New(text) }
