// Package investment runs the package catalog and the lifecycle of user
// positions: opening against the wallet balance, accruing daily yield and
// maturing.
package investment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"yieldwallet/internal/domain"
	"yieldwallet/internal/ledger"
	"yieldwallet/internal/permission"
	"yieldwallet/internal/store"
	"yieldwallet/pkg/errors"
	"yieldwallet/pkg/logger"
	"yieldwallet/pkg/metrics"
)

const activePackagesKey = "investment:packages:active"

// Poster applies a ledger posting inside an open unit of work.
type Poster interface {
	Post(ctx context.Context, r store.Repos, w *domain.Wallet, p ledger.Posting) (*domain.Transaction, error)
}

// PackageCache is the read-through cache for the active catalog.
type PackageCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type Service struct {
	store    store.Store
	ledger   Poster
	cache    PackageCache
	cacheTTL time.Duration
	logger   logger.Logger
	now      func() time.Time
}

func NewService(st store.Store, poster Poster, log logger.Logger) *Service {
	return &Service{
		store:  st,
		ledger: poster,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithPackageCache enables caching of the active package listing.
func (s *Service) WithPackageCache(c PackageCache, ttl time.Duration) *Service {
	s.cache = c
	s.cacheTTL = ttl
	return s
}

type CreatePackageRequest struct {
	Name         string           `json:"name" validate:"required,max=100"`
	Description  *string          `json:"description,omitempty" validate:"omitempty,max=1000"`
	MinAmount    decimal.Decimal  `json:"min_amount" validate:"required,gt=0"`
	MaxAmount    *decimal.Decimal `json:"max_amount,omitempty"`
	DailyReturn  decimal.Decimal  `json:"daily_return" validate:"gte=0"`
	DurationDays int              `json:"duration_days" validate:"required,gt=0"`
	IsActive     *bool            `json:"is_active,omitempty"`
}

func (s *Service) CreatePackage(ctx context.Context, req CreatePackageRequest) (*domain.InvestmentPackage, error) {
	now := s.now()
	p := &domain.InvestmentPackage{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
		MinAmount:    req.MinAmount,
		MaxAmount:    req.MaxAmount,
		DailyReturn:  req.DailyReturn,
		DurationDays: req.DurationDays,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.CreatePackage(ctx, p); err != nil {
		return nil, err
	}
	s.invalidatePackages(ctx)

	s.logger.Info("Investment package created", map[string]interface{}{
		"package_id":    p.ID,
		"name":          p.Name,
		"daily_return":  p.DailyReturn.String(),
		"duration_days": p.DurationDays,
	})
	return p, nil
}

// UpdatePackage validates the patched package before anything is stored.
// Open positions keep the terms they were opened with.
func (s *Service) UpdatePackage(ctx context.Context, id uuid.UUID, patch domain.PackagePatch) (*domain.InvestmentPackage, error) {
	cur, err := s.store.GetPackage(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := patch.ApplyTo(*cur)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdatePackage(ctx, &next); err != nil {
		return nil, err
	}
	s.invalidatePackages(ctx)

	s.logger.Info("Investment package updated", map[string]interface{}{
		"package_id": id,
		"is_active":  next.IsActive,
	})
	return &next, nil
}

func (s *Service) GetPackage(ctx context.Context, id uuid.UUID) (*domain.InvestmentPackage, error) {
	return s.store.GetPackage(ctx, id)
}

// ListPackages returns the catalog. The active listing is served from the
// cache when one is configured; cache failures fall back to the store.
func (s *Service) ListPackages(ctx context.Context, activeOnly bool) ([]*domain.InvestmentPackage, error) {
	if !activeOnly || s.cache == nil {
		return s.store.ListPackages(ctx, activeOnly)
	}

	var cached []*domain.InvestmentPackage
	if err := s.cache.Get(ctx, activePackagesKey, &cached); err == nil {
		return cached, nil
	}

	pkgs, err := s.store.ListPackages(ctx, true)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, activePackagesKey, pkgs, s.cacheTTL); err != nil {
		s.logger.Warn("Failed to cache package listing", map[string]interface{}{"error": err.Error()})
	}
	return pkgs, nil
}

func (s *Service) invalidatePackages(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, activePackagesKey); err != nil {
		s.logger.Warn("Failed to invalidate package cache", map[string]interface{}{"error": err.Error()})
	}
}

// OpenPosition debits amount from the owner's wallet and opens an active
// position, in one unit of work. The debit is recorded as an approved
// purchase transaction referencing the position.
func (s *Service) OpenPosition(ctx context.Context, userID, packageID uuid.UUID, amount decimal.Decimal) (*domain.UserInvestment, error) {
	pkg, err := s.store.GetPackage(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if !pkg.IsActive {
		return nil, fmt.Errorf("%w: package is not active", errors.ErrPackageNotFound)
	}
	if !amount.IsPositive() {
		return nil, errors.ErrAmountInvalid
	}
	if !pkg.InRange(amount) {
		return nil, fmt.Errorf("%w: %s", errors.ErrAmountOutOfRange, describeRange(pkg))
	}

	var position *domain.UserInvestment
	err = s.store.InTx(ctx, func(r store.Repos) error {
		owned, err := r.GetWalletByUser(ctx, userID)
		if err != nil {
			return err
		}
		w, err := r.LockWallet(ctx, owned.ID)
		if err != nil {
			return err
		}
		if err := permission.Check(w, domain.TransactionTypePurchase); err != nil {
			return err
		}

		now := s.now()
		pos := &domain.UserInvestment{
			ID:             uuid.New(),
			UserID:         userID,
			PackageID:      pkg.ID,
			AmountInvested: amount,
			DailyReturn:    pkg.DailyReturn,
			DurationDays:   pkg.DurationDays,
			StartDate:      now,
			EndDate:        now.AddDate(0, 0, pkg.DurationDays),
			Status:         domain.InvestmentStatusActive,
			TotalEarnings:  decimal.Zero,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if _, err := s.ledger.Post(ctx, r, w, ledger.Posting{
			Type:      domain.TransactionTypePurchase,
			Amount:    amount,
			Reference: "investment:" + pos.ID.String(),
			Note:      "Investment in " + pkg.Name,
		}); err != nil {
			return err
		}
		if err := r.CreatePosition(ctx, pos); err != nil {
			return err
		}
		position = pos
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "open position")
	}

	metrics.PositionsOpened.Inc()
	s.logger.Info("Investment position opened", map[string]interface{}{
		"investment_id": position.ID,
		"user_id":       userID,
		"package_id":    pkg.ID,
		"amount":        amount.String(),
		"end_date":      position.EndDate,
	})
	return position, nil
}

func describeRange(p *domain.InvestmentPackage) string {
	if p.MaxAmount == nil {
		return "minimum is " + p.MinAmount.String()
	}
	return fmt.Sprintf("allowed range is %s to %s", p.MinAmount.String(), p.MaxAmount.String())
}

// Accrue credits the yield earned by the position up to asOf that has not
// been credited yet. Calling it again for the same or an earlier asOf
// credits nothing. Positions that are not active are left untouched.
func (s *Service) Accrue(ctx context.Context, investmentID uuid.UUID, asOf time.Time) (*domain.UserInvestment, decimal.Decimal, error) {
	var (
		position *domain.UserInvestment
		credited decimal.Decimal
	)
	err := s.store.InTx(ctx, func(r store.Repos) error {
		pos, err := r.LockPosition(ctx, investmentID)
		if err != nil {
			return err
		}
		position = pos
		if pos.Status != domain.InvestmentStatusActive {
			return nil
		}
		credited, err = s.accrueLocked(ctx, r, pos, asOf)
		return err
	})
	if err != nil {
		return nil, decimal.Zero, errors.Wrap(err, "accrue investment")
	}
	return position, credited, nil
}

// Mature accrues outstanding yield up to the earlier of now and the end date
// and closes the position.
func (s *Service) Mature(ctx context.Context, investmentID uuid.UUID) (*domain.UserInvestment, error) {
	return s.matureAt(ctx, investmentID, s.now())
}

func (s *Service) matureAt(ctx context.Context, investmentID uuid.UUID, asOf time.Time) (*domain.UserInvestment, error) {
	var position *domain.UserInvestment
	err := s.store.InTx(ctx, func(r store.Repos) error {
		pos, err := r.LockPosition(ctx, investmentID)
		if err != nil {
			return err
		}
		if pos.Status != domain.InvestmentStatusActive {
			return fmt.Errorf("%w: cannot mature %s investment", errors.ErrInvalidStateTransition, pos.Status)
		}
		if asOf.After(pos.EndDate) {
			asOf = pos.EndDate
		}
		if _, err := s.accrueLocked(ctx, r, pos, asOf); err != nil {
			return err
		}
		pos.Status = domain.InvestmentStatusMatured
		if err := r.UpdatePosition(ctx, pos); err != nil {
			return err
		}
		position = pos
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "mature investment")
	}

	metrics.PositionsMatured.Inc()
	s.logger.Info("Investment matured", map[string]interface{}{
		"investment_id":  position.ID,
		"user_id":        position.UserID,
		"total_earnings": position.TotalEarnings.String(),
	})
	return position, nil
}

// accrueLocked credits the difference between the scheduled earnings at
// asOf and what was already credited. pos must be locked through r. The
// wallet is locked after the position.
func (s *Service) accrueLocked(ctx context.Context, r store.Repos, pos *domain.UserInvestment, asOf time.Time) (decimal.Decimal, error) {
	target := pos.EarningsAt(asOf)
	delta := target.Sub(pos.TotalEarnings)
	if !delta.IsPositive() {
		return decimal.Zero, nil
	}

	owned, err := r.GetWalletByUser(ctx, pos.UserID)
	if err != nil {
		return decimal.Zero, err
	}
	w, err := r.LockWallet(ctx, owned.ID)
	if err != nil {
		return decimal.Zero, err
	}
	if _, err := s.ledger.Post(ctx, r, w, ledger.Posting{
		Type:      domain.TransactionTypeEarning,
		Amount:    delta,
		Reference: "investment:" + pos.ID.String() + ":earning",
		Note:      fmt.Sprintf("Earnings for %d day(s)", pos.EarnedDays(asOf)),
	}); err != nil {
		return decimal.Zero, err
	}

	accruedAt := asOf
	pos.TotalEarnings = target
	pos.LastAccruedAt = &accruedAt
	if err := r.UpdatePosition(ctx, pos); err != nil {
		return decimal.Zero, err
	}

	metrics.EarningsCredited.Add(delta.InexactFloat64())
	s.logger.Debug("Investment earnings credited", map[string]interface{}{
		"investment_id": pos.ID,
		"amount":        delta.String(),
		"total":         target.String(),
	})
	return delta, nil
}

// UpdatePosition applies an admin correction. Balances are not touched.
func (s *Service) UpdatePosition(ctx context.Context, investmentID uuid.UUID, patch domain.PositionPatch) (*domain.UserInvestment, error) {
	var position *domain.UserInvestment
	err := s.store.InTx(ctx, func(r store.Repos) error {
		cur, err := r.LockPosition(ctx, investmentID)
		if err != nil {
			return err
		}
		next, err := patch.ApplyTo(*cur)
		if err != nil {
			return err
		}
		if err := r.UpdatePosition(ctx, &next); err != nil {
			return err
		}
		position = &next
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "update investment")
	}

	s.logger.Info("Investment updated", map[string]interface{}{
		"investment_id": position.ID,
		"status":        position.Status,
		"amount":        position.AmountInvested.String(),
		"end_date":      position.EndDate,
	})
	return position, nil
}

func (s *Service) GetPosition(ctx context.Context, investmentID uuid.UUID) (*domain.UserInvestment, error) {
	return s.store.GetPosition(ctx, investmentID)
}

// ListPositions returns the user's positions, newest first, each with its
// package attached.
func (s *Service) ListPositions(ctx context.Context, userID uuid.UUID) ([]*domain.PositionDetail, error) {
	positions, err := s.store.ListPositionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	pkgs := make(map[uuid.UUID]*domain.InvestmentPackage)
	out := make([]*domain.PositionDetail, 0, len(positions))
	for _, pos := range positions {
		pkg, ok := pkgs[pos.PackageID]
		if !ok {
			pkg, err = s.store.GetPackage(ctx, pos.PackageID)
			if err != nil && !errors.Is(err, errors.ErrPackageNotFound) {
				return nil, err
			}
			pkgs[pos.PackageID] = pkg
		}
		out = append(out, &domain.PositionDetail{UserInvestment: *pos, Package: pkg})
	}
	return out, nil
}

func (s *Service) ListAllPositions(ctx context.Context) ([]*domain.UserInvestment, error) {
	return s.store.ListPositions(ctx)
}
