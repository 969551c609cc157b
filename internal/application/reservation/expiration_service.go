package reservation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ExpirationService periodically releases reservations whose expiry has
// passed, returning their held stock to open capacity
type ExpirationService struct {
	service   *Service
	interval  time.Duration
	batchSize int
	logger    *zap.Logger

	mu      sync.Mutex
	stats   ExpirationStats
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
}

// ExpirationStats tracks what the sweeper has done since startup
type ExpirationStats struct {
	Runs          int       `json:"runs"`
	TotalReleased int       `json:"total_released"`
	LastRunAt     time.Time `json:"last_run_at"`
	LastReleased  int       `json:"last_released"`
	LastError     string    `json:"last_error,omitempty"`
}

// NewExpirationService creates a reservation expiration sweeper
func NewExpirationService(service *Service, interval time.Duration, batchSize int, logger *zap.Logger) *ExpirationService {
	if batchSize < 1 {
		batchSize = 100
	}
	return &ExpirationService{
		service:   service,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start launches the sweep loop
func (s *ExpirationService) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.run(ctx)
	s.logger.Info("reservation expiration sweeper started",
		zap.Duration("interval", s.interval),
		zap.Int("batch_size", s.batchSize))
}

// Stop stops the sweep loop and waits for the current pass to finish
func (s *ExpirationService) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh
	s.logger.Info("reservation expiration sweeper stopped")
}

// Stats returns a snapshot of the sweeper's counters
func (s *ExpirationService) Stats() ExpirationStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// RunOnce performs a single sweep pass
func (s *ExpirationService) RunOnce(ctx context.Context) (int, error) {
	released, err := s.service.ExpireDue(ctx, time.Now(), s.batchSize)

	s.mu.Lock()
	s.stats.Runs++
	s.stats.LastRunAt = time.Now()
	s.stats.LastReleased = released
	s.stats.TotalReleased += released
	if err != nil {
		s.stats.LastError = err.Error()
	} else {
		s.stats.LastError = ""
	}
	s.mu.Unlock()

	return released, err
}

func (s *ExpirationService) run(ctx context.Context) {
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
			released, err := s.RunOnce(ctx)
			if err != nil {
				s.logger.Error("reservation sweep failed", zap.Error(err))
				continue
			}
			if released > 0 {
				s.logger.Info("expired reservations released", zap.Int("count", released))
			}
		}
	}
}
