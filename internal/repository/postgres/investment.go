package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"yieldwallet/internal/domain"
	"yieldwallet/pkg/errors"
)

const (
	packageColumns  = `id, name, description, min_amount, max_amount, daily_return, duration_days, is_active, created_at, updated_at`
	positionColumns = `id, user_id, package_id, amount_invested, daily_return, duration_days, start_date, end_date, status, total_earnings, last_accrued_at, created_at, updated_at`
)

type InvestmentRepository struct {
	db sqlx.ExtContext
}

func NewInvestmentRepository(db sqlx.ExtContext) *InvestmentRepository {
	return &InvestmentRepository{db: db}
}

func (r *InvestmentRepository) CreatePackage(ctx context.Context, p *domain.InvestmentPackage) error {
	query := `
		INSERT INTO investment_packages (
			id, name, description, min_amount, max_amount, daily_return, duration_days, is_active, created_at, updated_at
		) VALUES (
			:id, :name, :description, :min_amount, :max_amount, :daily_return, :duration_days, :is_active, :created_at, :updated_at
		)
	`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, p); err != nil {
		return errors.Storage(err, "failed to create investment package")
	}
	return nil
}

func (r *InvestmentRepository) GetPackage(ctx context.Context, id uuid.UUID) (*domain.InvestmentPackage, error) {
	p := &domain.InvestmentPackage{}
	query := `SELECT ` + packageColumns + ` FROM investment_packages WHERE id = $1`
	if err := sqlx.GetContext(ctx, r.db, p, query, id); err != nil {
		return nil, notFoundOr(err, errors.ErrPackageNotFound, "failed to find investment package")
	}
	return p, nil
}

func (r *InvestmentRepository) UpdatePackage(ctx context.Context, p *domain.InvestmentPackage) error {
	p.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE investment_packages SET
			name = :name,
			description = :description,
			min_amount = :min_amount,
			max_amount = :max_amount,
			daily_return = :daily_return,
			duration_days = :duration_days,
			is_active = :is_active,
			updated_at = :updated_at
		WHERE id = :id
	`
	res, err := sqlx.NamedExecContext(ctx, r.db, query, p)
	if err != nil {
		return errors.Storage(err, "failed to update investment package")
	}
	return checkAffected(res, errors.ErrPackageNotFound, "failed to update investment package")
}

func (r *InvestmentRepository) ListPackages(ctx context.Context, activeOnly bool) ([]*domain.InvestmentPackage, error) {
	var pkgs []*domain.InvestmentPackage
	query := `SELECT ` + packageColumns + ` FROM investment_packages`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY min_amount ASC, name ASC`
	if err := sqlx.SelectContext(ctx, r.db, &pkgs, query); err != nil {
		return nil, errors.Storage(err, "failed to list investment packages")
	}
	return pkgs, nil
}

func (r *InvestmentRepository) CreatePosition(ctx context.Context, i *domain.UserInvestment) error {
	query := `
		INSERT INTO user_investments (
			id, user_id, package_id, amount_invested, daily_return, duration_days, start_date, end_date,
			status, total_earnings, last_accrued_at, created_at, updated_at
		) VALUES (
			:id, :user_id, :package_id, :amount_invested, :daily_return, :duration_days, :start_date, :end_date,
			:status, :total_earnings, :last_accrued_at, :created_at, :updated_at
		)
	`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, i); err != nil {
		return errors.Storage(err, "failed to create investment")
	}
	return nil
}

func (r *InvestmentRepository) GetPosition(ctx context.Context, id uuid.UUID) (*domain.UserInvestment, error) {
	i := &domain.UserInvestment{}
	query := `SELECT ` + positionColumns + ` FROM user_investments WHERE id = $1`
	if err := sqlx.GetContext(ctx, r.db, i, query, id); err != nil {
		return nil, notFoundOr(err, errors.ErrInvestmentNotFound, "failed to find investment")
	}
	return i, nil
}

func (r *InvestmentRepository) LockPosition(ctx context.Context, id uuid.UUID) (*domain.UserInvestment, error) {
	i := &domain.UserInvestment{}
	query := `SELECT ` + positionColumns + ` FROM user_investments WHERE id = $1 FOR UPDATE`
	if err := sqlx.GetContext(ctx, r.db, i, query, id); err != nil {
		return nil, notFoundOr(err, errors.ErrInvestmentNotFound, "failed to lock investment")
	}
	return i, nil
}

func (r *InvestmentRepository) UpdatePosition(ctx context.Context, i *domain.UserInvestment) error {
	i.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE user_investments SET
			amount_invested = :amount_invested,
			end_date = :end_date,
			status = :status,
			total_earnings = :total_earnings,
			last_accrued_at = :last_accrued_at,
			updated_at = :updated_at
		WHERE id = :id
	`
	res, err := sqlx.NamedExecContext(ctx, r.db, query, i)
	if err != nil {
		return errors.Storage(err, "failed to update investment")
	}
	return checkAffected(res, errors.ErrInvestmentNotFound, "failed to update investment")
}

func (r *InvestmentRepository) ListPositionsByUser(ctx context.Context, userID uuid.UUID) ([]*domain.UserInvestment, error) {
	var out []*domain.UserInvestment
	query := `SELECT ` + positionColumns + ` FROM user_investments WHERE user_id = $1 ORDER BY created_at DESC`
	if err := sqlx.SelectContext(ctx, r.db, &out, query, userID); err != nil {
		return nil, errors.Storage(err, "failed to list user investments")
	}
	return out, nil
}

func (r *InvestmentRepository) ListPositions(ctx context.Context) ([]*domain.UserInvestment, error) {
	var out []*domain.UserInvestment
	query := `SELECT ` + positionColumns + ` FROM user_investments ORDER BY created_at DESC`
	if err := sqlx.SelectContext(ctx, r.db, &out, query); err != nil {
		return nil, errors.Storage(err, "failed to list investments")
	}
	return out, nil
}

func (r *InvestmentRepository) ListActivePositions(ctx context.Context) ([]*domain.UserInvestment, error) {
	var out []*domain.UserInvestment
	query := `SELECT ` + positionColumns + ` FROM user_investments WHERE status = 'active' ORDER BY end_date ASC`
	if err := sqlx.SelectContext(ctx, r.db, &out, query); err != nil {
		return nil, errors.Storage(err, "failed to list active investments")
	}
	return out, nil
}
