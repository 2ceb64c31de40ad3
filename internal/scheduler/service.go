// Package scheduler drives the periodic accrual sweep over active
// investment positions.
package scheduler

import (
	"context"
	"sync"
	"time"

	"yieldwallet/internal/investment"
	"yieldwallet/pkg/logger"
	"yieldwallet/pkg/metrics"
)

// Sweeper is the work run on every tick.
type Sweeper interface {
	ProcessDue(ctx context.Context, asOf time.Time, workers int) (investment.SweepResult, error)
}

type Scheduler struct {
	sweeper  Sweeper
	interval time.Duration
	workers  int
	timeout  time.Duration
	logger   logger.Logger
	now      func() time.Time

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

func NewScheduler(sw Sweeper, interval time.Duration, workers int, log logger.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		sweeper:  sw,
		interval: interval,
		workers:  workers,
		timeout:  interval,
		logger:   log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start runs one sweep immediately and then one per interval until Stop.
// Calling Start on a running scheduler does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(s.stop, s.done)
	s.logger.Info("Accrual scheduler started", map[string]interface{}{
		"interval": s.interval.String(),
		"workers":  s.workers,
	})
}

// Stop ends the loop and waits for an in-flight sweep to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done
	s.logger.Info("Accrual scheduler stopped", nil)
}

func (s *Scheduler) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-stop:
			return
		}
	}
}

// RunOnce performs a single sweep as of the current time.
func (s *Scheduler) RunOnce(ctx context.Context) investment.SweepResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	res, err := s.sweeper.ProcessDue(ctx, s.now(), s.workers)
	metrics.AccrualSweepDuration.Observe(time.Since(started).Seconds())

	fields := map[string]interface{}{
		"scanned":  res.Scanned,
		"accrued":  res.Accrued,
		"matured":  res.Matured,
		"failed":   res.Failed,
		"credited": res.Credited.String(),
		"duration": time.Since(started).String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		s.logger.Error("Accrual sweep aborted", fields)
		return res
	}
	if res.Failed > 0 {
		s.logger.Warn("Accrual sweep finished with failures", fields)
		return res
	}
	s.logger.Info("Accrual sweep finished", fields)
	return res
}
