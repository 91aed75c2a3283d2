// Package janitor periodically sweeps expired reservations out of the store.
package janitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultInterval is how often the sweep runs when no interval is configured.
const DefaultInterval = time.Minute

// Cleaner removes expired reservations and reports how many it removed.
type Cleaner interface {
	CleanupExpiredReservations(ctx context.Context) int
}

// Config holds configuration for the janitor.
type Config struct {
	// Interval between sweeps.
	Interval time.Duration
	// RunOnStart sweeps once immediately when the loop starts.
	RunOnStart bool
}

// DefaultConfig returns the default janitor configuration.
func DefaultConfig() Config {
	return Config{
		Interval:   DefaultInterval,
		RunOnStart: true,
	}
}

// Scheduler runs the cleaner on a fixed interval.
type Scheduler struct {
	config  Config
	cleaner Cleaner
	logger  *zerolog.Logger

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	lastRun   time.Time
	lastSwept int
}

// NewScheduler creates a janitor for cleaner.
func NewScheduler(config Config, cleaner Cleaner, logger *zerolog.Logger) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Scheduler{
		config:  config,
		cleaner: cleaner,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

// Start runs the sweep loop until ctx is cancelled or Stop is called. It blocks.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	stopCh := s.stopCh
	s.mu.Unlock()

	s.logger.Info().Dur("interval", s.config.Interval).Msg("janitor started")

	if s.config.RunOnStart {
		s.sweep(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.markStopped()
			s.logger.Info().Msg("janitor stopped by context")
			return
		case <-stopCh:
			s.logger.Info().Msg("janitor stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Stop stops the loop. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.running = false
		close(s.stopCh)
		s.stopCh = make(chan struct{})
	}
}

func (s *Scheduler) markStopped() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// RunNow sweeps immediately and returns the number of reservations removed.
func (s *Scheduler) RunNow(ctx context.Context) int {
	s.logger.Info().Msg("manual cleanup triggered")
	return s.sweep(ctx)
}

func (s *Scheduler) sweep(ctx context.Context) int {
	start := time.Now()
	cleaned := s.cleaner.CleanupExpiredReservations(ctx)

	s.mu.Lock()
	s.lastRun = start
	s.lastSwept = cleaned
	s.mu.Unlock()

	s.logger.Debug().Int("cleaned", cleaned).Dur("duration", time.Since(start)).Msg("janitor sweep finished")
	return cleaned
}

// IsRunning returns whether the loop is currently running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// LastRun returns when the last sweep started and how many reservations it removed.
func (s *Scheduler) LastRun() (time.Time, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastSwept
}
