package reservation

import (
	"context"
	"errors"
	"time"

	"slothold/internal/store"
)

// CleanupExpiredReservations deletes expired, unconverted reservations with their secondary
// keys and returns how many were removed. It is best-effort: failures are logged, a failed scan
// returns 0, and a record changed mid-sweep is left alone.
func (e *Engine) CleanupExpiredReservations(ctx context.Context) int {
	defer e.observe("cleanup", time.Now())

	keys, err := e.store.Scan(ctx, reservationKeyPattern)
	if err != nil {
		e.metrics.IncStoreError("scan")
		e.logger.Error().Err(err).Msg("failed to scan reservations for cleanup")
		return 0
	}

	now := e.now()
	cleaned := 0
	for _, key := range keys {
		if ctx.Err() != nil {
			break
		}

		raw, err := e.store.Get(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			e.metrics.IncStoreError("get")
			e.logger.Warn().Err(err).Str("key", key).Msg("failed to read reservation during cleanup")
			continue
		}

		r, err := Decode(raw)
		if err != nil {
			e.logger.Warn().Err(err).Str("reservation_id", idFromReservationKey(key)).Msg("removing corrupt reservation record")
			if _, err := e.store.CompareAndDelete(ctx, key, raw); err != nil {
				e.metrics.IncStoreError("cad")
			}
			continue
		}
		if r.IsConverted() || !r.IsExpired(now) {
			continue
		}

		deleted, err := e.store.CompareAndDelete(ctx, key, raw)
		if err != nil {
			e.metrics.IncStoreError("cad")
			e.logger.Warn().Err(err).Str("key", key).Msg("failed to delete expired reservation")
			continue
		}
		if !deleted {
			continue
		}
		e.deleteSecondaryKeys(ctx, r)
		e.publish(ctx, r, true)
		cleaned++
	}

	if cleaned > 0 {
		e.logger.Info().Int("count", cleaned).Msg("cleaned up expired reservations")
	}
	e.metrics.AddCleaned(cleaned)
	return cleaned
}
