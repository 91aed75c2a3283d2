package reservation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slothold/internal/metrics"
)

func TestCleanupExpiredReservations(t *testing.T) {
	ctx := context.Background()
	m := metrics.New("test", prometheus.NewRegistry())
	env := newTestEnv(t, WithMetrics(m))

	var reserved []string
	for i := 0; i < 4; i++ {
		req := reserveRequest(fmt.Sprintf("customer%d@example.com", i))
		req.Datetime = fmt.Sprintf("2025-03-01T1%d:00:00Z", i)
		req.UserID = fmt.Sprintf("user-%d", i)
		reserved = append(reserved, mustReserve(t, env.engine, req).ID)
	}
	res, err := env.engine.ConvertToBooking(ctx, reserved[3], "bk_1")
	require.NoError(t, err)
	require.True(t, res.Success)

	require.NoError(t, env.store.Set(ctx, reservationKey("res_corrupt"), "{not json", time.Hour))

	assert.Zero(t, env.engine.CleanupExpiredReservations(ctx), "nothing has expired yet")

	env.clock.Advance(20 * time.Minute)
	assert.Equal(t, 3, env.engine.CleanupExpiredReservations(ctx))

	for _, id := range reserved[:3] {
		_, err := env.store.Get(ctx, reservationKey(id))
		assert.Error(t, err, id)
	}
	_, err = env.store.Get(ctx, reservationKey("res_corrupt"))
	assert.Error(t, err)

	// Only the converted reservation's record, hold and indexes remain.
	assert.Equal(t, 4, env.store.Len())
	assert.NotNil(t, env.engine.GetReservation(ctx, reserved[3]))

	assert.Zero(t, env.engine.CleanupExpiredReservations(ctx))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Cleaned))

	var freed int
	for _, update := range env.publisher.Updates() {
		if update.Available {
			freed++
		}
	}
	assert.Equal(t, 3, freed)
}

func TestCleanupKeepsRewrittenRecord(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	r := mustReserve(t, env.engine, reserveRequest("alice@example.com"))
	env.clock.Advance(20 * time.Minute)

	// Another writer pushed the expiry forward after the lease ran out.
	stale, err := env.store.Get(ctx, reservationKey(r.ID))
	require.NoError(t, err)
	replaced := *r
	replaced.ExpiresAt = env.clock.Now().Add(time.Minute)
	encoded, err := Encode(&replaced)
	require.NoError(t, err)
	require.NoError(t, env.store.Set(ctx, reservationKey(r.ID), encoded, time.Hour))
	require.NotEqual(t, stale, encoded)

	assert.Zero(t, env.engine.CleanupExpiredReservations(ctx))
	assert.NotNil(t, env.engine.GetReservation(ctx, r.ID))
}
