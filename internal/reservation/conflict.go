package reservation

import (
	"context"
	"errors"
	"time"

	"slothold/internal/models"
	"slothold/internal/store"
)

// HasSlotConflict reports whether a live reservation occupies the slot. Expiry is judged by
// the engine clock rather than store TTL, so a hold that outlived its reservation is ignored.
// When the store cannot be read the slot is reported as taken.
func (e *Engine) HasSlotConflict(ctx context.Context, datetime time.Time, serviceType models.ServiceType) bool {
	_, holder, err := e.resolveHold(ctx, slotKey(datetime, serviceType))
	if err != nil {
		e.metrics.IncStoreError("conflict")
		e.logger.Error().Err(err).
			Str("datetime", formatSlotTime(datetime)).
			Str("service_type", string(serviceType)).
			Msg("failed to check slot conflict")
		return true
	}
	return holder != nil
}

// IsSlotAvailable is the negation of HasSlotConflict.
func (e *Engine) IsSlotAvailable(ctx context.Context, datetime time.Time, serviceType models.ServiceType) bool {
	return !e.HasSlotConflict(ctx, datetime, serviceType)
}

// resolveHold returns the id stored in the hold key and, when that reservation is still live,
// the reservation itself. A hold pointing at a missing, corrupt or expired record yields a nil
// reservation with the stale id.
func (e *Engine) resolveHold(ctx context.Context, hold string) (string, *models.SlotReservation, error) {
	id, err := e.store.Get(ctx, hold)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, err
	}

	r, err := e.load(ctx, id)
	if err != nil {
		return id, nil, err
	}
	if r == nil || !r.IsLive(e.now()) {
		return id, nil, nil
	}
	return id, r, nil
}
