// Package reservation implements short-lived slot holds that keep a time slot exclusive while a
// customer completes checkout.
//
// The engine is stateless: every reservation lives in the store under three kinds of keys.
//
//	slot_reservation:{id}                   encoded reservation record
//	slot_hold:{datetime}:{serviceType}      id of the reservation occupying the slot
//	user_reservation:{userId}               id of the user's latest reservation
//	user_reservation:email:{email}          id of the customer's latest reservation
//
// The record is always written before the hold, so a hold whose record is missing or expired
// is dead and may be taken over.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"slothold/internal/events"
	"slothold/internal/metrics"
	"slothold/internal/models"
	"slothold/internal/store"
)

const (
	maxHoldAttempts   = 3
	maxUpdateAttempts = 2

	msgSlotTaken        = "This time slot was just reserved by another customer. Please select a different time."
	msgSlotBooked       = "This time slot has already been booked. Please select a different time."
	msgAlreadyHeld      = "You already hold this time slot."
	msgNotFound         = "Reservation not found or has expired"
	msgNotAuthorized    = "You can only extend your own reservations"
	msgExpired          = "Reservation has expired"
	msgAlreadyExtended  = "Maximum extensions reached. Please complete your booking soon."
	msgAlreadyConverted = "Reservation has already been converted to a booking"
	msgReleased         = "Reservation released"
	msgConverted        = "Reservation converted to booking"
)

var errHoldContended = errors.New("slot hold contended")

// Publisher receives slot availability changes.
type Publisher interface {
	Publish(ctx context.Context, update events.SlotUpdate)
}

// Engine creates, extends, cancels and converts slot reservations.
type Engine struct {
	store     store.Store
	policy    Policy
	now       func() time.Time
	newID     func() string
	logger    *zerolog.Logger
	metrics   *metrics.Metrics
	publisher Publisher
	validate  *validator.Validate
}

// Option configures an Engine.
type Option func(*Engine)

// WithPolicy overrides lease durations. Zero fields keep their defaults.
func WithPolicy(p Policy) Option {
	return func(e *Engine) {
		e.policy = p.withDefaults()
	}
}

// WithClock sets the clock used for reservedAt/expiresAt and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides reservation id generation.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithPublisher(p Publisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

// NewEngine builds an engine over st. A nil logger discards output.
func NewEngine(st store.Store, logger *zerolog.Logger, opts ...Option) *Engine {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	e := &Engine{
		store:    st,
		policy:   DefaultPolicy(),
		now:      time.Now,
		newID:    newReservationID,
		logger:   logger,
		validate: newValidator(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func newReservationID() string {
	return "res_" + uuid.NewString()
}

// Policy returns the lease rules in effect.
func (e *Engine) Policy() Policy {
	return e.policy
}

// ReserveSlot places a hold on the requested slot. Malformed requests return ValidationErrors
// without touching the store; every other failure is reported in the Result.
func (e *Engine) ReserveSlot(ctx context.Context, req ReserveRequest) (*models.Result, error) {
	defer e.observe("reserve", time.Now())

	slot, err := e.validateReserve(req)
	if err != nil {
		return nil, err
	}
	email := normalizeEmail(req.CustomerEmail)
	hold := slotKey(slot, req.ServiceType)

	_, holder, err := e.resolveHold(ctx, hold)
	if err != nil {
		return e.reserveFailure(req, err), nil
	}
	if holder != nil {
		return e.reserveConflict(holder, email, req.UserID), nil
	}

	now := e.now()
	lease := e.policy.LeaseDuration
	r := &models.SlotReservation{
		ID:                e.newID(),
		Datetime:          slot,
		ServiceType:       req.ServiceType,
		CustomerEmail:     email,
		UserID:            req.UserID,
		EstimatedDuration: req.EstimatedDuration,
		ReservedAt:        now,
		ExpiresAt:         now.Add(lease),
		Metadata:          maps.Clone(req.Metadata),
	}

	encoded, err := Encode(r)
	if err != nil {
		return e.reserveFailure(req, err), nil
	}
	if err := e.store.Set(ctx, reservationKey(r.ID), encoded, lease); err != nil {
		return e.reserveFailure(req, err), nil
	}

	holder, err = e.acquireHold(ctx, hold, r.ID, lease)
	if err != nil || holder != nil {
		if delErr := e.store.Del(ctx, reservationKey(r.ID)); delErr != nil {
			e.logger.Warn().Err(delErr).Str("reservation_id", r.ID).Msg("failed to remove unheld reservation record")
		}
		switch {
		case holder != nil:
			return e.reserveConflict(holder, email, req.UserID), nil
		case errors.Is(err, errHoldContended):
			e.metrics.IncReservation(string(models.ReasonSlotTaken))
			return &models.Result{Reason: models.ReasonSlotTaken, Message: msgSlotTaken}, nil
		default:
			return e.reserveFailure(req, err), nil
		}
	}

	if r.UserID != "" {
		e.releaseUserReservation(ctx, r.UserID, r.ID)
	}
	e.writeIndexes(ctx, r, lease)
	e.publish(ctx, r, false)

	e.logger.Info().
		Str("reservation_id", r.ID).
		Str("datetime", formatSlotTime(r.Datetime)).
		Str("service_type", string(r.ServiceType)).
		Str("user_id", r.UserID).
		Str("customer_email", maskEmail(r.CustomerEmail)).
		Msg("slot reserved")
	e.metrics.IncReservation("")

	return &models.Result{
		Success:       true,
		Reservation:   r,
		Message:       fmt.Sprintf("Slot reserved for %d minutes while you complete booking", int(lease/time.Minute)),
		TimeRemaining: seconds(lease),
	}, nil
}

func (e *Engine) validateReserve(req ReserveRequest) (time.Time, error) {
	if err := e.validateStruct(req); err != nil {
		return time.Time{}, err
	}
	slot, err := time.Parse(time.RFC3339, req.Datetime)
	if err != nil {
		return time.Time{}, ValidationErrors{{Field: "datetime", Message: "datetime must be an ISO-8601 instant"}}
	}
	if req.EstimatedDuration > e.policy.MaxEstimatedDuration {
		return time.Time{}, ValidationErrors{{
			Field:   "estimatedDuration",
			Message: fmt.Sprintf("estimatedDuration must be at most %d minutes", e.policy.MaxEstimatedDuration),
		}}
	}
	return slot.UTC().Truncate(time.Second), nil
}

// reserveConflict answers a reserve request for a slot held by holder. A customer asking again
// for a slot they already hold gets their reservation back.
func (e *Engine) reserveConflict(holder *models.SlotReservation, email, userID string) *models.Result {
	if holder.IsConverted() {
		e.metrics.IncReservation(string(models.ReasonSlotTaken))
		return &models.Result{
			Reason:                 models.ReasonSlotTaken,
			Message:                msgSlotBooked,
			ConflictingReservation: holder,
		}
	}
	if ownedBy(holder, email, userID) {
		e.metrics.IncReservation("")
		return &models.Result{
			Success:       true,
			Reservation:   holder,
			Message:       msgAlreadyHeld,
			TimeRemaining: seconds(holder.Remaining(e.now())),
		}
	}

	e.logger.Info().
		Str("conflicting_id", holder.ID).
		Str("datetime", formatSlotTime(holder.Datetime)).
		Str("service_type", string(holder.ServiceType)).
		Msg("slot already reserved")
	e.metrics.IncReservation(string(models.ReasonSlotTaken))
	return &models.Result{
		Reason:                 models.ReasonSlotTaken,
		Message:                msgSlotTaken,
		ConflictingReservation: holder,
	}
}

func (e *Engine) reserveFailure(req ReserveRequest, err error) *models.Result {
	e.logger.Error().Err(err).
		Str("datetime", req.Datetime).
		Str("service_type", string(req.ServiceType)).
		Str("customer_email", maskEmail(req.CustomerEmail)).
		Msg("slot reservation failed")
	e.metrics.IncStoreError("reserve")
	e.metrics.IncReservation(string(models.ReasonStoreFailure))
	return &models.Result{
		Reason:  models.ReasonStoreFailure,
		Message: "Unable to reserve slot. Please try again.",
	}
}

// acquireHold points the slot's hold at id. It returns the live holder when the slot is taken.
func (e *Engine) acquireHold(ctx context.Context, hold, id string, ttl time.Duration) (*models.SlotReservation, error) {
	for attempt := 0; attempt < maxHoldAttempts; attempt++ {
		ok, err := e.store.SetNX(ctx, hold, id, ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			return nil, nil
		}

		holderID, holder, err := e.resolveHold(ctx, hold)
		if err != nil {
			return nil, err
		}
		if holder != nil {
			return holder, nil
		}
		if holderID == "" {
			continue
		}

		swapped, err := e.store.CompareAndSwap(ctx, hold, holderID, id, ttl)
		if err != nil {
			return nil, err
		}
		if swapped {
			e.logger.Debug().Str("hold", hold).Str("stale_id", holderID).Str("reservation_id", id).
				Msg("took over dead slot hold")
			return nil, nil
		}
	}
	return nil, errHoldContended
}

// releaseUserReservation drops the user's previous unconverted reservation so a user holds at
// most one slot at a time. It runs only once keepID holds its slot, and never touches keepID.
func (e *Engine) releaseUserReservation(ctx context.Context, userID, keepID string) {
	prevID, err := e.store.Get(ctx, userKey(userID))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to look up user reservation")
		}
		return
	}
	if prevID == keepID {
		return
	}
	prev, err := e.load(ctx, prevID)
	if err != nil {
		e.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to load previous user reservation")
		return
	}
	if prev == nil || prev.IsConverted() {
		return
	}
	if err := e.deleteReservation(ctx, prev); err != nil {
		e.logger.Warn().Err(err).Str("reservation_id", prev.ID).Msg("failed to release previous user reservation")
		return
	}
	e.publish(ctx, prev, true)
	e.logger.Info().Str("reservation_id", prev.ID).Str("user_id", userID).Msg("released previous reservation for user")
}

func (e *Engine) writeIndexes(ctx context.Context, r *models.SlotReservation, ttl time.Duration) {
	keys := []string{emailKey(r.CustomerEmail)}
	if r.UserID != "" {
		keys = append(keys, userKey(r.UserID))
	}
	for _, key := range keys {
		if err := e.store.Set(ctx, key, r.ID, ttl); err != nil {
			e.metrics.IncStoreError("set")
			e.logger.Warn().Err(err).Str("key", key).Str("reservation_id", r.ID).Msg("failed to write reservation index")
		}
	}
}

// GetReservation returns the stored reservation, or nil when it is absent, corrupt or the
// store cannot be read.
func (e *Engine) GetReservation(ctx context.Context, id string) *models.SlotReservation {
	if id == "" {
		return nil
	}
	r, err := e.load(ctx, id)
	if err != nil {
		e.metrics.IncStoreError("get")
		e.logger.Error().Err(err).Str("reservation_id", id).Msg("failed to get reservation")
		return nil
	}
	return r
}

// GetReservationStatus projects a reservation into the view polled by checkout pages.
func (e *Engine) GetReservationStatus(ctx context.Context, id string) models.Status {
	r := e.GetReservation(ctx, id)
	if r == nil {
		return models.Status{}
	}

	now := e.now()
	status := models.Status{Reservation: r}
	if !r.IsActive(now) {
		return status
	}

	remaining := r.Remaining(now)
	status.Active = true
	status.TimeRemaining = seconds(remaining)
	status.WarningZone = remaining < e.policy.WarningThreshold
	status.CanExtend = !r.Extended
	return status
}

// ExtendReservation pushes expiresAt forward once by the extension duration.
func (e *Engine) ExtendReservation(ctx context.Context, req ExtendRequest) (*models.Result, error) {
	defer e.observe("extend", time.Now())

	if err := e.validateStruct(req); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		r, raw, err := e.loadRaw(ctx, req.ReservationID)
		if err != nil {
			return e.operationFailure("extend", req.ReservationID, err), nil
		}
		if result := e.checkExtend(r, req.CustomerEmail); result != nil {
			e.metrics.IncExtension(string(result.Reason))
			return result, nil
		}

		now := e.now()
		updated := cloneReservation(r)
		updated.ExpiresAt = r.ExpiresAt.Add(e.policy.ExtensionDuration)
		updated.Extended = true
		updated.ExtensionCount = r.ExtensionCount + 1
		updated.Metadata["extendedAt"] = now.Format(time.RFC3339)
		if req.Reason != "" {
			updated.Metadata["extensionReason"] = req.Reason
		}
		ttl := updated.ExpiresAt.Sub(now)

		held, err := e.refreshHold(ctx, updated, ttl)
		if err != nil {
			return e.operationFailure("extend", r.ID, err), nil
		}
		if !held {
			e.metrics.IncExtension(string(models.ReasonExpired))
			return &models.Result{Reason: models.ReasonExpired, Message: msgExpired}, nil
		}

		encoded, err := Encode(updated)
		if err != nil {
			return e.operationFailure("extend", r.ID, err), nil
		}
		swapped, err := e.store.CompareAndSwap(ctx, reservationKey(r.ID), raw, encoded, ttl)
		if err != nil {
			return e.operationFailure("extend", r.ID, err), nil
		}
		if !swapped {
			// Changed underneath us; re-evaluate against the fresh record.
			continue
		}

		e.refreshIndexes(ctx, updated, ttl)

		e.logger.Info().
			Str("reservation_id", r.ID).
			Int("extension_count", updated.ExtensionCount).
			Str("reason", req.Reason).
			Time("expires_at", updated.ExpiresAt).
			Msg("reservation extended")
		e.metrics.IncExtension("")

		return &models.Result{
			Success:       true,
			Reservation:   updated,
			Message:       fmt.Sprintf("Reservation extended for %d more minutes", int(e.policy.ExtensionDuration/time.Minute)),
			TimeRemaining: seconds(ttl),
		}, nil
	}

	e.metrics.IncExtension(string(models.ReasonAlreadyExtended))
	return &models.Result{Reason: models.ReasonAlreadyExtended, Message: msgAlreadyExtended}, nil
}

func (e *Engine) checkExtend(r *models.SlotReservation, email string) *models.Result {
	switch {
	case r == nil:
		return &models.Result{Reason: models.ReasonNotFound, Message: msgNotFound}
	case normalizeEmail(r.CustomerEmail) != normalizeEmail(email):
		return &models.Result{Reason: models.ReasonNotAuthorized, Message: msgNotAuthorized}
	case r.IsConverted():
		return &models.Result{Reason: models.ReasonAlreadyConverted, Message: msgAlreadyConverted}
	case r.IsExpired(e.now()):
		return &models.Result{Reason: models.ReasonExpired, Message: msgExpired}
	case r.Extended || r.ExtensionCount >= DefaultMaxExtensions:
		return &models.Result{Reason: models.ReasonAlreadyExtended, Message: msgAlreadyExtended}
	}
	return nil
}

// refreshHold renews the slot hold for r, reclaiming it if the store already evicted it.
// It reports false when another reservation now owns the slot.
func (e *Engine) refreshHold(ctx context.Context, r *models.SlotReservation, ttl time.Duration) (bool, error) {
	hold := slotKey(r.Datetime, r.ServiceType)
	ok, err := e.store.CompareAndSwap(ctx, hold, r.ID, r.ID, ttl)
	if err != nil || ok {
		return ok, err
	}
	return e.store.SetNX(ctx, hold, r.ID, ttl)
}

func (e *Engine) refreshIndexes(ctx context.Context, r *models.SlotReservation, ttl time.Duration) {
	keys := []string{emailKey(r.CustomerEmail)}
	if r.UserID != "" {
		keys = append(keys, userKey(r.UserID))
	}
	for _, key := range keys {
		if _, err := e.store.CompareAndSwap(ctx, key, r.ID, r.ID, ttl); err != nil {
			e.metrics.IncStoreError("cas")
			e.logger.Warn().Err(err).Str("key", key).Msg("failed to refresh reservation index")
		}
	}
}

// CancelReservation deletes an unconverted reservation and frees its slot immediately.
func (e *Engine) CancelReservation(ctx context.Context, id string) (*models.Result, error) {
	defer e.observe("cancel", time.Now())

	if id == "" {
		return nil, ValidationErrors{{Field: "reservationId", Message: "reservationId is required"}}
	}

	r, err := e.load(ctx, id)
	if err != nil {
		return e.operationFailure("cancel", id, err), nil
	}
	if r == nil {
		e.metrics.IncCancellation(string(models.ReasonNotFound))
		return &models.Result{Reason: models.ReasonNotFound, Message: msgNotFound}, nil
	}
	if r.IsConverted() {
		e.metrics.IncCancellation(string(models.ReasonAlreadyConverted))
		return &models.Result{Reason: models.ReasonAlreadyConverted, Message: msgAlreadyConverted}, nil
	}

	if err := e.deleteReservation(ctx, r); err != nil {
		return e.operationFailure("cancel", id, err), nil
	}
	e.publish(ctx, r, true)

	e.logger.Info().Str("reservation_id", id).Msg("reservation released")
	e.metrics.IncCancellation("")
	return &models.Result{Success: true, Reservation: r, Message: msgReleased}, nil
}

// ConvertToBooking marks the reservation as booked. The record and hold stay in place until the
// lease runs out so duplicate submissions see the slot as booked rather than free.
func (e *Engine) ConvertToBooking(ctx context.Context, id, bookingID string) (*models.Result, error) {
	defer e.observe("convert", time.Now())

	var verrs ValidationErrors
	if id == "" {
		verrs = append(verrs, ValidationError{Field: "reservationId", Message: "reservationId is required"})
	}
	if bookingID == "" {
		verrs = append(verrs, ValidationError{Field: "bookingId", Message: "bookingId is required"})
	}
	if len(verrs) > 0 {
		return nil, verrs
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		r, raw, err := e.loadRaw(ctx, id)
		if err != nil {
			return e.operationFailure("convert", id, err), nil
		}

		now := e.now()
		var failed *models.Result
		switch {
		case r == nil:
			failed = &models.Result{Reason: models.ReasonNotFound, Message: msgNotFound}
		case r.IsExpired(now):
			failed = &models.Result{Reason: models.ReasonExpired, Message: msgExpired}
		case r.IsConverted():
			failed = &models.Result{Reason: models.ReasonAlreadyConverted, Message: msgAlreadyConverted, Reservation: r}
		}
		if failed != nil {
			e.logger.Warn().Str("reservation_id", id).Str("booking_id", bookingID).Str("reason", string(failed.Reason)).
				Msg("reservation conversion rejected")
			e.metrics.IncConversion(string(failed.Reason))
			return failed, nil
		}

		updated := cloneReservation(r)
		updated.BookingID = bookingID
		updated.Metadata["convertedAt"] = now.Format(time.RFC3339)

		encoded, err := Encode(updated)
		if err != nil {
			return e.operationFailure("convert", id, err), nil
		}
		swapped, err := e.store.CompareAndSwap(ctx, reservationKey(id), raw, encoded, updated.Remaining(now))
		if err != nil {
			return e.operationFailure("convert", id, err), nil
		}
		if !swapped {
			continue
		}

		e.logger.Info().Str("reservation_id", id).Str("booking_id", bookingID).Msg("reservation converted to booking")
		e.metrics.IncConversion("")
		return &models.Result{
			Success:       true,
			Reservation:   updated,
			Message:       msgConverted,
			TimeRemaining: seconds(updated.Remaining(now)),
		}, nil
	}

	e.metrics.IncConversion(string(models.ReasonAlreadyConverted))
	return &models.Result{Reason: models.ReasonAlreadyConverted, Message: msgAlreadyConverted}, nil
}

// UserCurrentReservation returns the user's latest reservation while its lease runs.
func (e *Engine) UserCurrentReservation(ctx context.Context, userID string) *models.SlotReservation {
	if userID == "" {
		return nil
	}
	return e.resolveIndex(ctx, userKey(userID))
}

// ReservationByEmail returns the customer's latest reservation while its lease runs.
func (e *Engine) ReservationByEmail(ctx context.Context, email string) *models.SlotReservation {
	if email == "" {
		return nil
	}
	return e.resolveIndex(ctx, emailKey(email))
}

func (e *Engine) resolveIndex(ctx context.Context, key string) *models.SlotReservation {
	id, err := e.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.metrics.IncStoreError("get")
			e.logger.Error().Err(err).Str("key", key).Msg("failed to resolve reservation index")
		}
		return nil
	}
	r := e.GetReservation(ctx, id)
	if r == nil || r.IsExpired(e.now()) {
		return nil
	}
	return r
}

// load reads and decodes a reservation. Absent and corrupt records both yield nil.
func (e *Engine) load(ctx context.Context, id string) (*models.SlotReservation, error) {
	r, _, err := e.loadRaw(ctx, id)
	return r, err
}

func (e *Engine) loadRaw(ctx context.Context, id string) (*models.SlotReservation, string, error) {
	raw, err := e.store.Get(ctx, reservationKey(id))
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	r, err := Decode(raw)
	if err != nil {
		e.logger.Warn().Err(err).Str("reservation_id", id).Msg("corrupt reservation record")
		return nil, "", nil
	}
	return r, raw, nil
}

// deleteReservation removes the record, then every secondary key still pointing at it.
func (e *Engine) deleteReservation(ctx context.Context, r *models.SlotReservation) error {
	if err := e.store.Del(ctx, reservationKey(r.ID)); err != nil {
		return err
	}
	e.deleteSecondaryKeys(ctx, r)
	return nil
}

func (e *Engine) deleteSecondaryKeys(ctx context.Context, r *models.SlotReservation) {
	keys := []string{slotKey(r.Datetime, r.ServiceType)}
	if r.CustomerEmail != "" {
		keys = append(keys, emailKey(r.CustomerEmail))
	}
	if r.UserID != "" {
		keys = append(keys, userKey(r.UserID))
	}
	for _, key := range keys {
		if _, err := e.store.CompareAndDelete(ctx, key, r.ID); err != nil {
			// A dangling hold is harmless: its record is gone, so the slot reads as free.
			e.metrics.IncStoreError("cad")
			e.logger.Warn().Err(err).Str("key", key).Str("reservation_id", r.ID).Msg("failed to delete secondary key")
		}
	}
}

func (e *Engine) operationFailure(op, id string, err error) *models.Result {
	e.logger.Error().Err(err).Str("op", op).Str("reservation_id", id).Msg("reservation operation failed")
	e.metrics.IncStoreError(op)
	result := &models.Result{
		Reason:  models.ReasonStoreFailure,
		Message: fmt.Sprintf("Unable to %s reservation. Please try again.", op),
	}
	switch op {
	case "extend":
		e.metrics.IncExtension(string(result.Reason))
	case "cancel":
		e.metrics.IncCancellation(string(result.Reason))
	case "convert":
		e.metrics.IncConversion(string(result.Reason))
	}
	return result
}

func (e *Engine) publish(ctx context.Context, r *models.SlotReservation, available bool) {
	if e.publisher == nil {
		return
	}
	update := events.SlotUpdate{
		Datetime:    r.Datetime,
		ServiceType: string(r.ServiceType),
		Available:   available,
		Timestamp:   e.now().UTC(),
	}
	if !available {
		update.ReservationID = r.ID
	}
	e.publisher.Publish(ctx, update)
}

func (e *Engine) observe(op string, start time.Time) {
	e.metrics.ObserveDuration(op, time.Since(start).Seconds())
}

func ownedBy(r *models.SlotReservation, email, userID string) bool {
	if userID != "" && r.UserID == userID {
		return true
	}
	return normalizeEmail(r.CustomerEmail) == email
}

func cloneReservation(r *models.SlotReservation) *models.SlotReservation {
	c := *r
	c.Metadata = maps.Clone(r.Metadata)
	if c.Metadata == nil {
		c.Metadata = make(map[string]any)
	}
	return &c
}

func seconds(d time.Duration) int {
	return int(d / time.Second)
}
