package investment

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"yieldwallet/internal/domain"
)

// SweepResult summarizes one ProcessDue run.
type SweepResult struct {
	Scanned  int             `json:"scanned"`
	Accrued  int             `json:"accrued"`
	Matured  int             `json:"matured"`
	Failed   int             `json:"failed"`
	Credited decimal.Decimal `json:"credited"`
}

// ProcessDue walks every active position: those whose end date has passed
// are matured, the rest accrue up to asOf. Positions are processed by up to
// workers goroutines. A failure on one position is logged and counted and
// does not stop the sweep; only a listing failure or a cancelled context is
// returned as an error.
func (s *Service) ProcessDue(ctx context.Context, asOf time.Time, workers int) (SweepResult, error) {
	var res SweepResult

	positions, err := s.store.ListActivePositions(ctx)
	if err != nil {
		return res, err
	}
	res.Scanned = len(positions)
	res.Credited = decimal.Zero

	if workers < 1 {
		workers = 1
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, pos := range positions {
		pos := pos
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			matured, credited, err := s.processOne(gctx, pos, asOf)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				res.Failed++
				s.logger.Error("Accrual failed for investment", map[string]interface{}{
					"investment_id": pos.ID,
					"error":         err.Error(),
				})
			case matured:
				res.Matured++
				res.Credited = res.Credited.Add(credited)
			case credited.IsPositive():
				res.Accrued++
				res.Credited = res.Credited.Add(credited)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, ctx.Err()
}

func (s *Service) processOne(ctx context.Context, pos *domain.UserInvestment, asOf time.Time) (bool, decimal.Decimal, error) {
	if !asOf.Before(pos.EndDate) {
		before := pos.TotalEarnings
		matured, err := s.matureAt(ctx, pos.ID, asOf)
		if err != nil {
			return false, decimal.Zero, err
		}
		return true, matured.TotalEarnings.Sub(before), nil
	}

	_, credited, err := s.Accrue(ctx, pos.ID, asOf)
	return false, credited, err
}
