package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"slothold/internal/events"
	"slothold/internal/metrics"
	"slothold/internal/models"
	"slothold/internal/store"
)

const testSlot = "2025-03-01T14:00:00Z"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 2, 28, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("res_%d", n.Add(1))
	}
}

type recordingPublisher struct {
	mu      sync.Mutex
	updates []events.SlotUpdate
}

func (p *recordingPublisher) Publish(_ context.Context, update events.SlotUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, update)
}

func (p *recordingPublisher) Updates() []events.SlotUpdate {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.SlotUpdate(nil), p.updates...)
}

// testEnv gives the engine and the store separate clocks. Advancing only the engine clock leaves
// records in the store after their lease ends, the way a lagging TTL would.
type testEnv struct {
	engine     *Engine
	store      *store.MemoryStore
	clock      *testClock
	storeClock *testClock
	publisher  *recordingPublisher
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	env := &testEnv{
		clock:      newTestClock(),
		storeClock: newTestClock(),
		publisher:  &recordingPublisher{},
	}
	env.store = store.NewMemoryStore(store.WithMemoryClock(env.storeClock.Now))
	base := []Option{
		WithClock(env.clock.Now),
		WithIDGenerator(sequentialIDs()),
		WithPublisher(env.publisher),
	}
	env.engine = NewEngine(env.store, nil, append(base, opts...)...)
	return env
}

// advance moves both clocks so the store evicts along with the engine.
func (env *testEnv) advance(d time.Duration) {
	env.clock.Advance(d)
	env.storeClock.Advance(d)
}

func reserveRequest(email string) ReserveRequest {
	return ReserveRequest{
		Datetime:          testSlot,
		ServiceType:       models.ServiceStandardNotary,
		CustomerEmail:     email,
		EstimatedDuration: 60,
	}
}

func mustReserve(t *testing.T, e *Engine, req ReserveRequest) *models.SlotReservation {
	t.Helper()
	res, err := e.ReserveSlot(context.Background(), req)
	require.NoError(t, err)
	require.True(t, res.Success, "reserve failed: %s %s", res.Reason, res.Message)
	require.NotNil(t, res.Reservation)
	return res.Reservation
}

func slotTime(t *testing.T) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, testSlot)
	require.NoError(t, err)
	return ts
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *mockStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}

func (m *mockStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, value, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) CompareAndSwap(ctx context.Context, key, prev, next string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, prev, next, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	args := m.Called(ctx, key, value)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) Del(ctx context.Context, keys ...string) error {
	return m.Called(ctx, keys).Error(0)
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	args := m.Called(ctx, pattern)
	keys, _ := args.Get(0).([]string)
	return keys, args.Error(1)
}

func (m *mockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestReserveSlot(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		env := newTestEnv(t)
		req := reserveRequest("Alice@Example.com")
		req.UserID = "user-1"
		req.Metadata = map[string]any{"source": "web"}

		res, err := env.engine.ReserveSlot(ctx, req)
		require.NoError(t, err)
		require.True(t, res.Success)
		assert.Equal(t, models.ReasonNone, res.Reason)
		assert.Equal(t, 900, res.TimeRemaining)
		assert.Contains(t, res.Message, "15 minutes")

		r := res.Reservation
		assert.Equal(t, "res_1", r.ID)
		assert.Equal(t, slotTime(t), r.Datetime)
		assert.Equal(t, models.ServiceStandardNotary, r.ServiceType)
		assert.Equal(t, "alice@example.com", r.CustomerEmail)
		assert.Equal(t, "user-1", r.UserID)
		assert.Equal(t, env.clock.Now(), r.ReservedAt)
		assert.Equal(t, env.clock.Now().Add(15*time.Minute), r.ExpiresAt)
		assert.False(t, r.Extended)
		assert.Zero(t, r.ExtensionCount)
		assert.Empty(t, r.BookingID)
		assert.Equal(t, "web", r.Metadata["source"])

		hold, err := env.store.Get(ctx, slotKey(r.Datetime, r.ServiceType))
		require.NoError(t, err)
		assert.Equal(t, r.ID, hold)
		byUser, err := env.store.Get(ctx, userKey("user-1"))
		require.NoError(t, err)
		assert.Equal(t, r.ID, byUser)
		byEmail, err := env.store.Get(ctx, emailKey("alice@example.com"))
		require.NoError(t, err)
		assert.Equal(t, r.ID, byEmail)

		assert.Equal(t, r, env.engine.GetReservation(ctx, r.ID))

		updates := env.publisher.Updates()
		require.Len(t, updates, 1)
		assert.False(t, updates[0].Available)
		assert.Equal(t, r.ID, updates[0].ReservationID)
	})

	t.Run("SlotTakenByAnotherCustomer", func(t *testing.T) {
		env := newTestEnv(t)
		first := mustReserve(t, env.engine, reserveRequest("alice@example.com"))

		res, err := env.engine.ReserveSlot(ctx, reserveRequest("bob@example.com"))
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, models.ReasonSlotTaken, res.Reason)
		require.NotNil(t, res.ConflictingReservation)
		assert.Equal(t, first.ID, res.ConflictingReservation.ID)
		assert.Nil(t, res.Reservation)
	})

	t.Run("SameInstantDifferentOffset", func(t *testing.T) {
		env := newTestEnv(t)
		mustReserve(t, env.engine, reserveRequest("alice@example.com"))

		req := reserveRequest("bob@example.com")
		req.Datetime = "2025-03-01T16:00:00+02:00"
		res, err := env.engine.ReserveSlot(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, models.ReasonSlotTaken, res.Reason)
	})

	t.Run("DifferentServiceTypeIsIndependent", func(t *testing.T) {
		env := newTestEnv(t)
		mustReserve(t, env.engine, reserveRequest("alice@example.com"))

		req := reserveRequest("bob@example.com")
		req.ServiceType = models.ServiceLoanSigning
		mustReserve(t, env.engine, req)
	})

	t.Run("SameOwnerIsIdempotent", func(t *testing.T) {
		env := newTestEnv(t)
		first := mustReserve(t, env.engine, reserveRequest("alice@example.com"))
		env.clock.Advance(time.Minute)

		res, err := env.engine.ReserveSlot(ctx, reserveRequest("ALICE@example.com"))
		require.NoError(t, err)
		require.True(t, res.Success)
		assert.Equal(t, first.ID, res.Reservation.ID)
		assert.Equal(t, 840, res.TimeRemaining)

		keys, err := env.store.Scan(ctx, reservationKeyPattern)
		require.NoError(t, err)
		assert.Len(t, keys, 1)
	})

	t.Run("ExpiredHoldIsTakenOver", func(t *testing.T) {
		env := newTestEnv(t)
		first := mustReserve(t, env.engine, reserveRequest("alice@example.com"))

		// The store still has both keys; only the lease has run out.
		env.clock.Advance(16 * time.Minute)
		assert.False(t, env.engine.HasSlotConflict(ctx, slotTime(t), models.ServiceStandardNotary))

		second := mustReserve(t, env.engine, reserveRequest("bob@example.com"))
		assert.NotEqual(t, first.ID, second.ID)

		hold, err := env.store.Get(ctx, slotKey(slotTime(t), models.ServiceStandardNotary))
		require.NoError(t, err)
		assert.Equal(t, second.ID, hold)
	})

	t.Run("HoldWithoutRecordIsTakenOver", func(t *testing.T) {
		env := newTestEnv(t)
		hold := slotKey(slotTime(t), models.ServiceStandardNotary)
		require.NoError(t, env.store.Set(ctx, hold, "res_ghost", time.Hour))

		r := mustReserve(t, env.engine, reserveRequest("alice@example.com"))
		got, err := env.store.Get(ctx, hold)
		require.NoError(t, err)
		assert.Equal(t, r.ID, got)
	})

	t.Run("ConvertedSlotStaysBooked", func(t *testing.T) {
		env := newTestEnv(t)
		r := mustReserve(t, env.engine, reserveRequest("alice@example.com"))
		res, err := env.engine.ConvertToBooking(ctx, r.ID, "bk_1")
		require.NoError(t, err)
		require.True(t, res.Success)

		for _, email := range []string{"alice@example.com", "bob@example.com"} {
			res, err := env.engine.ReserveSlot(ctx, reserveRequest(email))
			require.NoError(t, err)
			assert.Equal(t, models.ReasonSlotTaken, res.Reason, email)
			require.NotNil(t, res.ConflictingReservation)
			assert.Equal(t, "bk_1", res.ConflictingReservation.BookingID)
		}
	})

	t.Run("OneLiveReservationPerUser", func(t *testing.T) {
		env := newTestEnv(t)
		req := reserveRequest("alice@example.com")
		req.UserID = "user-1"
		first := mustReserve(t, env.engine, req)

		req.Datetime = "2025-03-01T15:00:00Z"
		second := mustReserve(t, env.engine, req)

		assert.Nil(t, env.engine.GetReservation(ctx, first.ID))
		assert.True(t, env.engine.IsSlotAvailable(ctx, slotTime(t), models.ServiceStandardNotary))
		assert.Equal(t, second.ID, env.engine.UserCurrentReservation(ctx, "user-1").ID)
		assert.Equal(t, second.ID, env.engine.ReservationByEmail(ctx, "alice@example.com").ID)

		updates := env.publisher.Updates()
		require.Len(t, updates, 3)
		assert.True(t, updates[1].Available)
		assert.Equal(t, slotTime(t), updates[1].Datetime)
	})
}

// failingStore breaks writes to keys with a given prefix while armed.
type failingStore struct {
	*store.MemoryStore
	armed  atomic.Bool
	prefix string
}

func (s *failingStore) fails(key string) bool {
	return s.armed.Load() && strings.HasPrefix(key, s.prefix)
}

func (s *failingStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if s.fails(key) {
		return errors.New("write timeout")
	}
	return s.MemoryStore.Set(ctx, key, value, ttl)
}

func (s *failingStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if s.fails(key) {
		return false, errors.New("write timeout")
	}
	return s.MemoryStore.SetNX(ctx, key, value, ttl)
}

func TestReserveSlotFailureKeepsUserReservation(t *testing.T) {
	for name, prefix := range map[string]string{
		"RecordWriteFails": reservationKeyPrefix,
		"HoldWriteFails":   slotKeyPrefix,
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := newTestClock()
			st := &failingStore{MemoryStore: store.NewMemoryStore(store.WithMemoryClock(clock.Now)), prefix: prefix}
			e := NewEngine(st, nil, WithClock(clock.Now), WithIDGenerator(sequentialIDs()))

			req := reserveRequest("alice@example.com")
			req.UserID = "user-1"
			first := mustReserve(t, e, req)

			st.armed.Store(true)
			req.Datetime = "2025-03-01T15:00:00Z"
			res, err := e.ReserveSlot(ctx, req)
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, models.ReasonStoreFailure, res.Reason)
			st.armed.Store(false)

			kept := e.GetReservation(ctx, first.ID)
			require.NotNil(t, kept, "failed reserve dropped the user's existing reservation")
			assert.Equal(t, first.ID, e.UserCurrentReservation(ctx, "user-1").ID)
			assert.True(t, e.HasSlotConflict(ctx, first.Datetime, first.ServiceType))

			keys, err := st.Scan(ctx, reservationKeyPattern)
			require.NoError(t, err)
			assert.Equal(t, []string{reservationKey(first.ID)}, keys)
		})
	}
}

func TestReserveSlotConcurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const contenders = 16
	results := make([]*models.Result, contenders)

	var wg sync.WaitGroup
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := env.engine.ReserveSlot(ctx, reserveRequest(fmt.Sprintf("customer%d@example.com", i)))
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	var winner *models.SlotReservation
	for _, res := range results {
		require.NotNil(t, res)
		if res.Success {
			require.Nil(t, winner, "more than one reservation succeeded")
			winner = res.Reservation
		}
	}
	require.NotNil(t, winner)

	for _, res := range results {
		if res.Success {
			continue
		}
		assert.Equal(t, models.ReasonSlotTaken, res.Reason)
		require.NotNil(t, res.ConflictingReservation)
		assert.Equal(t, winner.ID, res.ConflictingReservation.ID)
	}

	keys, err := env.store.Scan(ctx, reservationKeyPattern)
	require.NoError(t, err)
	assert.Equal(t, []string{reservationKey(winner.ID)}, keys)
}

func TestReserveSlotValidation(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(*ReserveRequest)
		field string
	}{
		{"MissingDatetime", func(r *ReserveRequest) { r.Datetime = "" }, "datetime"},
		{"MalformedDatetime", func(r *ReserveRequest) { r.Datetime = "tomorrow at 2" }, "datetime"},
		{"UnknownServiceType", func(r *ReserveRequest) { r.ServiceType = "PIZZA" }, "serviceType"},
		{"MissingEmail", func(r *ReserveRequest) { r.CustomerEmail = "" }, "customerEmail"},
		{"MalformedEmail", func(r *ReserveRequest) { r.CustomerEmail = "not-an-email" }, "customerEmail"},
		{"ZeroDuration", func(r *ReserveRequest) { r.EstimatedDuration = 0 }, "estimatedDuration"},
		{"DurationOverMax", func(r *ReserveRequest) { r.EstimatedDuration = 181 }, "estimatedDuration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := new(mockStore)
			e := NewEngine(st, nil)

			req := reserveRequest("alice@example.com")
			tt.mut(&req)

			res, err := e.ReserveSlot(context.Background(), req)
			assert.Nil(t, res)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			require.NotEmpty(t, verrs)
			assert.Equal(t, tt.field, verrs[0].Field)

			st.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
			st.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			st.AssertNotCalled(t, "SetNX", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestEngineStoreFailures(t *testing.T) {
	ctx := context.Background()
	errDown := errors.New("connection refused")

	newFailingEngine := func() (*Engine, *mockStore, *metrics.Metrics) {
		st := new(mockStore)
		st.On("Get", mock.Anything, mock.Anything).Return("", errDown)
		st.On("Scan", mock.Anything, mock.Anything).Return(nil, errDown)
		m := metrics.New("test", prometheus.NewRegistry())
		return NewEngine(st, nil, WithMetrics(m)), st, m
	}

	t.Run("Reserve", func(t *testing.T) {
		e, _, m := newFailingEngine()
		res, err := e.ReserveSlot(ctx, reserveRequest("alice@example.com"))
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, models.ReasonStoreFailure, res.Reason)
		assert.NotContains(t, res.Message, errDown.Error())
		assert.Equal(t, 1.0, testutil.ToFloat64(m.Reservations.WithLabelValues(string(models.ReasonStoreFailure))))
	})

	t.Run("ConflictFailsClosed", func(t *testing.T) {
		e, _, _ := newFailingEngine()
		assert.True(t, e.HasSlotConflict(ctx, time.Now(), models.ServiceStandardNotary))
		assert.False(t, e.IsSlotAvailable(ctx, time.Now(), models.ServiceStandardNotary))
	})

	t.Run("StatusIsInactive", func(t *testing.T) {
		e, _, _ := newFailingEngine()
		assert.Equal(t, models.Status{}, e.GetReservationStatus(ctx, "res_1"))
		assert.Nil(t, e.GetReservation(ctx, "res_1"))
	})

	t.Run("MutationsReportStoreFailure", func(t *testing.T) {
		e, _, _ := newFailingEngine()

		res, err := e.ExtendReservation(ctx, ExtendRequest{ReservationID: "res_1", CustomerEmail: "a@example.com"})
		require.NoError(t, err)
		assert.Equal(t, models.ReasonStoreFailure, res.Reason)

		res, err = e.CancelReservation(ctx, "res_1")
		require.NoError(t, err)
		assert.Equal(t, models.ReasonStoreFailure, res.Reason)

		res, err = e.ConvertToBooking(ctx, "res_1", "bk_1")
		require.NoError(t, err)
		assert.Equal(t, models.ReasonStoreFailure, res.Reason)
	})

	t.Run("CleanupScanFailure", func(t *testing.T) {
		e, st, m := newFailingEngine()
		assert.Zero(t, e.CleanupExpiredReservations(ctx))
		st.AssertNotCalled(t, "Del", mock.Anything, mock.Anything)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreErrors.WithLabelValues("scan")))
	})
}

func TestEngineMetrics(t *testing.T) {
	m := metrics.New("test", prometheus.NewRegistry())
	env := newTestEnv(t, WithMetrics(m))
	ctx := context.Background()

	r := mustReserve(t, env.engine, reserveRequest("alice@example.com"))
	_, err := env.engine.ReserveSlot(ctx, reserveRequest("bob@example.com"))
	require.NoError(t, err)
	_, err = env.engine.CancelReservation(ctx, r.ID)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reservations.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reservations.WithLabelValues(string(models.ReasonSlotTaken))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Cancellations.WithLabelValues("success")))
}
