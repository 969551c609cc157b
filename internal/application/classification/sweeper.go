package classification

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically re-scores every customer so segment and tier
// assignments track order history as it accumulates
type Sweeper struct {
	service  *Service
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	stats   SweeperStats
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
}

// SweeperStats tracks what the sweeper has done since startup
type SweeperStats struct {
	Runs         int       `json:"runs"`
	TotalChanged int       `json:"total_changed"`
	LastRunAt    time.Time `json:"last_run_at"`
	LastChanged  int       `json:"last_changed"`
	LastError    string    `json:"last_error,omitempty"`
}

// NewSweeper creates a classification sweeper
func NewSweeper(service *Service, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		service:  service,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the sweep loop
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.run(ctx)
	s.logger.Info("classification sweeper started",
		zap.Duration("interval", s.interval))
}

// Stop stops the sweep loop and waits for the current pass to finish
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh
	s.logger.Info("classification sweeper stopped")
}

// Stats returns a snapshot of the sweeper's counters
func (s *Sweeper) Stats() SweeperStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// RunOnce performs a single re-scoring pass over all customers
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	changed, err := s.service.ReclassifyAll(ctx)

	s.mu.Lock()
	s.stats.Runs++
	s.stats.LastRunAt = time.Now()
	s.stats.LastChanged = changed
	s.stats.TotalChanged += changed
	if err != nil {
		s.stats.LastError = err.Error()
	} else {
		s.stats.LastError = ""
	}
	s.mu.Unlock()

	return changed, err
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			changed, err := s.RunOnce(ctx)
			if err != nil {
				s.logger.Error("classification sweep failed", zap.Error(err))
				continue
			}
			if changed > 0 {
				s.logger.Info("customers reclassified", zap.Int("count", changed))
			}
		}
	}
}
