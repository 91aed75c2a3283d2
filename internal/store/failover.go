package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const defaultRecoveryInterval = time.Minute

// FailoverStore serves from primary and falls back to a secondary store while primary is failing.
// The primary is retried once per recovery interval.
//
// A process-local fallback only excludes concurrent reservations within this process.
type FailoverStore struct {
	primary  Store
	fallback Store
	logger   *zerolog.Logger

	isDown           atomic.Bool
	mu               sync.Mutex
	lastCheck        time.Time
	recoveryInterval time.Duration
}

// NewFailoverStore combines primary and fallback.
func NewFailoverStore(primary, fallback Store, logger *zerolog.Logger) *FailoverStore {
	return &FailoverStore{
		primary:          primary,
		fallback:         fallback,
		logger:           logger,
		recoveryInterval: defaultRecoveryInterval,
	}
}

// Degraded reports whether requests are currently served by the fallback.
func (s *FailoverStore) Degraded() bool {
	return s.isDown.Load()
}

func (s *FailoverStore) usePrimary() bool {
	if !s.isDown.Load() {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if time.Since(s.lastCheck) < s.recoveryInterval {
		return false
	}
	s.lastCheck = time.Now()
	return true
}

func (s *FailoverStore) markDown(op string, err error) {
	if !s.isDown.Swap(true) {
		s.logger.Error().Err(err).Str("op", op).Msg("primary store failed, switching to fallback")
	}
	s.mu.Lock()
	s.lastCheck = time.Now()
	s.mu.Unlock()
}

func (s *FailoverStore) markUp() {
	if s.isDown.Swap(false) {
		s.logger.Info().Msg("primary store recovered")
	}
}

// failover runs fn on the primary, or on the fallback while the primary is down. A request the
// caller has abandoned is never retried on the fallback and says nothing about primary health.
func failover[T any](ctx context.Context, s *FailoverStore, op string, fn func(Store) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if s.usePrimary() {
		v, err := fn(s.primary)
		if err == nil || errors.Is(err, ErrNotFound) {
			s.markUp()
			return v, err
		}
		if isCallerCancel(ctx, err) {
			return v, err
		}
		s.markDown(op, err)
	}
	return fn(s.fallback)
}

func isCallerCancel(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (s *FailoverStore) Get(ctx context.Context, key string) (string, error) {
	return failover(ctx, s, "get", func(st Store) (string, error) {
		return st.Get(ctx, key)
	})
}

func (s *FailoverStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := failover(ctx, s, "set", func(st Store) (struct{}, error) {
		return struct{}{}, st.Set(ctx, key, value, ttl)
	})
	return err
}

func (s *FailoverStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return failover(ctx, s, "setnx", func(st Store) (bool, error) {
		return st.SetNX(ctx, key, value, ttl)
	})
}

func (s *FailoverStore) CompareAndSwap(ctx context.Context, key, prev, next string, ttl time.Duration) (bool, error) {
	return failover(ctx, s, "cas", func(st Store) (bool, error) {
		return st.CompareAndSwap(ctx, key, prev, next, ttl)
	})
}

func (s *FailoverStore) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	return failover(ctx, s, "cad", func(st Store) (bool, error) {
		return st.CompareAndDelete(ctx, key, value)
	})
}

func (s *FailoverStore) Del(ctx context.Context, keys ...string) error {
	_, err := failover(ctx, s, "del", func(st Store) (struct{}, error) {
		return struct{}{}, st.Del(ctx, keys...)
	})
	return err
}

func (s *FailoverStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	return failover(ctx, s, "scan", func(st Store) ([]string, error) {
		return st.Scan(ctx, pattern)
	})
}

// Ping reports the primary's health; the fallback is always considered reachable.
func (s *FailoverStore) Ping(ctx context.Context) error {
	return s.primary.Ping(ctx)
}
