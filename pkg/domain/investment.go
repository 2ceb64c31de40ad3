package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"yieldwallet/pkg/errors"
)

const day = 24 * time.Hour

// InvestmentPackage is a catalog entry users can open positions against.
// A nil MaxAmount means there is no upper bound.
type InvestmentPackage struct {
	ID           uuid.UUID        `json:"id" db:"id"`
	Name         string           `json:"name" db:"name"`
	Description  *string          `json:"description,omitempty" db:"description"`
	MinAmount    decimal.Decimal  `json:"min_amount" db:"min_amount"`
	MaxAmount    *decimal.Decimal `json:"max_amount,omitempty" db:"max_amount"`
	DailyReturn  decimal.Decimal  `json:"daily_return" db:"daily_return"`
	DurationDays int              `json:"duration_days" db:"duration_days"`
	IsActive     bool             `json:"is_active" db:"is_active"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at" db:"updated_at"`
}

// Validate checks the package terms.
func (p *InvestmentPackage) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: package name is required", errors.ErrInvalidArgument)
	}
	if !p.MinAmount.IsPositive() {
		return fmt.Errorf("%w: min_amount must be greater than zero", errors.ErrInvalidArgument)
	}
	if p.MaxAmount != nil && p.MaxAmount.LessThan(p.MinAmount) {
		return fmt.Errorf("%w: max_amount must not be below min_amount", errors.ErrInvalidArgument)
	}
	if p.DailyReturn.IsNegative() {
		return fmt.Errorf("%w: daily_return must not be negative", errors.ErrInvalidArgument)
	}
	if p.DurationDays <= 0 {
		return fmt.Errorf("%w: duration_days must be greater than zero", errors.ErrInvalidArgument)
	}
	return nil
}

// InRange reports whether amount falls within [MinAmount, MaxAmount].
func (p *InvestmentPackage) InRange(amount decimal.Decimal) bool {
	if amount.LessThan(p.MinAmount) {
		return false
	}
	return p.MaxAmount == nil || !amount.GreaterThan(*p.MaxAmount)
}

// PackagePatch is a partial update of a package. ClearMaxAmount removes the
// upper bound and wins over MaxAmount.
type PackagePatch struct {
	Name           *string          `json:"name,omitempty"`
	Description    *string          `json:"description,omitempty"`
	MinAmount      *decimal.Decimal `json:"min_amount,omitempty"`
	MaxAmount      *decimal.Decimal `json:"max_amount,omitempty"`
	ClearMaxAmount bool             `json:"clear_max_amount,omitempty"`
	DailyReturn    *decimal.Decimal `json:"daily_return,omitempty"`
	DurationDays   *int             `json:"duration_days,omitempty"`
	IsActive       *bool            `json:"is_active,omitempty"`
}

// ApplyTo returns a copy of p with the patch applied, or an error if the
// result would be invalid. The input is never modified.
func (patch PackagePatch) ApplyTo(p InvestmentPackage) (InvestmentPackage, error) {
	if patch.Name != nil {
		p.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		d := *patch.Description
		p.Description = &d
	}
	if patch.MinAmount != nil {
		p.MinAmount = *patch.MinAmount
	}
	if patch.MaxAmount != nil {
		m := *patch.MaxAmount
		p.MaxAmount = &m
	}
	if patch.ClearMaxAmount {
		p.MaxAmount = nil
	}
	if patch.DailyReturn != nil {
		p.DailyReturn = *patch.DailyReturn
	}
	if patch.DurationDays != nil {
		p.DurationDays = *patch.DurationDays
	}
	if patch.IsActive != nil {
		p.IsActive = *patch.IsActive
	}
	if err := p.Validate(); err != nil {
		return InvestmentPackage{}, err
	}
	return p, nil
}

type InvestmentStatus string

const (
	InvestmentStatusActive    InvestmentStatus = "active"
	InvestmentStatusMatured   InvestmentStatus = "matured"
	InvestmentStatusCancelled InvestmentStatus = "cancelled"
)

func (s InvestmentStatus) Valid() bool {
	switch s {
	case InvestmentStatusActive, InvestmentStatusMatured, InvestmentStatusCancelled:
		return true
	}
	return false
}

// CanBecome reports whether a position may move from s to next.
// Matured and cancelled are terminal.
func (s InvestmentStatus) CanBecome(next InvestmentStatus) bool {
	if !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	return s == InvestmentStatusActive
}

// UserInvestment is one open or closed position. DailyReturn and
// DurationDays are copied from the package when the position opens.
type UserInvestment struct {
	ID             uuid.UUID        `json:"id" db:"id"`
	UserID         uuid.UUID        `json:"user_id" db:"user_id"`
	PackageID      uuid.UUID        `json:"package_id" db:"package_id"`
	AmountInvested decimal.Decimal  `json:"amount_invested" db:"amount_invested"`
	DailyReturn    decimal.Decimal  `json:"daily_return" db:"daily_return"`
	DurationDays   int              `json:"duration_days" db:"duration_days"`
	StartDate      time.Time        `json:"start_date" db:"start_date"`
	EndDate        time.Time        `json:"end_date" db:"end_date"`
	Status         InvestmentStatus `json:"status" db:"status"`
	TotalEarnings  decimal.Decimal  `json:"total_earnings" db:"total_earnings"`
	LastAccruedAt  *time.Time       `json:"last_accrued_at,omitempty" db:"last_accrued_at"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`
}

// EarnedDays is the number of whole days elapsed between the start date and
// asOf, capped at the end date and at DurationDays. A later end date set by
// an admin does not extend the paid term.
func (i *UserInvestment) EarnedDays(asOf time.Time) int {
	if asOf.After(i.EndDate) {
		asOf = i.EndDate
	}
	if !asOf.After(i.StartDate) {
		return 0
	}
	return min(int(asOf.Sub(i.StartDate)/day), i.DurationDays)
}

// EarningsAt is the cumulative yield owed at asOf:
// amount_invested * daily_return * earned_days, rounded to MoneyScale.
func (i *UserInvestment) EarningsAt(asOf time.Time) decimal.Decimal {
	days := decimal.NewFromInt(int64(i.EarnedDays(asOf)))
	return RoundMoney(i.AmountInvested.Mul(i.DailyReturn).Mul(days))
}

// PositionPatch is the admin correction of a position. It never touches
// balances.
type PositionPatch struct {
	AmountInvested *decimal.Decimal  `json:"amount_invested,omitempty"`
	Status         *InvestmentStatus `json:"status,omitempty"`
	EndDate        *time.Time        `json:"end_date,omitempty"`
}

func (patch PositionPatch) ApplyTo(i UserInvestment) (UserInvestment, error) {
	if patch.AmountInvested != nil {
		if !patch.AmountInvested.IsPositive() {
			return UserInvestment{}, errors.ErrAmountInvalid
		}
		i.AmountInvested = *patch.AmountInvested
	}
	if patch.Status != nil {
		if !i.Status.CanBecome(*patch.Status) {
			return UserInvestment{}, fmt.Errorf("%w: %s -> %s", errors.ErrInvalidStateTransition, i.Status, *patch.Status)
		}
		i.Status = *patch.Status
	}
	if patch.EndDate != nil {
		if !patch.EndDate.After(i.StartDate) {
			return UserInvestment{}, fmt.Errorf("%w: end_date must be after start_date", errors.ErrInvalidArgument)
		}
		i.EndDate = *patch.EndDate
	}
	return i, nil
}

// PositionDetail is a position together with the package it was opened on.
type PositionDetail struct {
	UserInvestment
	Package *InvestmentPackage `json:"package,omitempty"`
}
