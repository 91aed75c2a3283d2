package models

import "time"

// ServiceType identifies the kind of appointment a slot is held for.
type ServiceType string

const (
	ServiceQuickStampLocal    ServiceType = "QUICK_STAMP_LOCAL"
	ServiceStandardNotary     ServiceType = "STANDARD_NOTARY"
	ServiceExtendedHours      ServiceType = "EXTENDED_HOURS"
	ServiceLoanSigning        ServiceType = "LOAN_SIGNING"
	ServiceRONServices        ServiceType = "RON_SERVICES"
	ServiceBusinessEssentials ServiceType = "BUSINESS_ESSENTIALS"
	ServiceBusinessGrowth     ServiceType = "BUSINESS_GROWTH"
)

// ServiceTypes lists every known service type.
var ServiceTypes = []ServiceType{
	ServiceQuickStampLocal,
	ServiceStandardNotary,
	ServiceExtendedHours,
	ServiceLoanSigning,
	ServiceRONServices,
	ServiceBusinessEssentials,
	ServiceBusinessGrowth,
}

// Valid reports whether s is a known service type.
func (s ServiceType) Valid() bool {
	for _, known := range ServiceTypes {
		if s == known {
			return true
		}
	}
	return false
}

// SlotReservation is a time-bounded hold on (Datetime, ServiceType).
type SlotReservation struct {
	ID                string         `json:"id"`
	Datetime          time.Time      `json:"datetime"`
	ServiceType       ServiceType    `json:"serviceType"`
	CustomerEmail     string         `json:"customerEmail"`
	UserID            string         `json:"userId,omitempty"`
	EstimatedDuration int            `json:"estimatedDuration"` // minutes
	ReservedAt        time.Time      `json:"reservedAt"`
	ExpiresAt         time.Time      `json:"expiresAt"`
	Extended          bool           `json:"extended"`
	ExtensionCount    int            `json:"extensionCount"`
	BookingID         string         `json:"bookingId,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// IsExpired reports whether the lease has run out at now.
func (r *SlotReservation) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// IsConverted reports whether the reservation has become a booking.
// Converted reservations are terminal.
func (r *SlotReservation) IsConverted() bool {
	return r.BookingID != ""
}

// IsLive reports whether the reservation still occupies its slot.
// A converted reservation keeps occupying the slot until its lease ends.
func (r *SlotReservation) IsLive(now time.Time) bool {
	return !r.IsExpired(now)
}

// IsActive reports whether the reservation can still be acted on by its owner.
func (r *SlotReservation) IsActive(now time.Time) bool {
	return !r.IsExpired(now) && !r.IsConverted()
}

// Remaining returns the lease time left at now, never negative.
func (r *SlotReservation) Remaining(now time.Time) time.Duration {
	d := r.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Reason classifies a failed Result so callers can branch without parsing messages.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonSlotTaken        Reason = "SLOT_TAKEN"
	ReasonNotFound         Reason = "NOT_FOUND"
	ReasonNotAuthorized    Reason = "NOT_AUTHORIZED"
	ReasonExpired          Reason = "EXPIRED"
	ReasonAlreadyExtended  Reason = "ALREADY_EXTENDED"
	ReasonAlreadyConverted Reason = "ALREADY_CONVERTED"
	ReasonStoreFailure     Reason = "STORE_FAILURE"
)

// Result is the outcome of a mutating reservation operation.
type Result struct {
	Success                bool             `json:"success"`
	Reason                 Reason           `json:"reason,omitempty"`
	Message                string           `json:"message,omitempty"`
	Reservation            *SlotReservation `json:"reservation,omitempty"`
	ConflictingReservation *SlotReservation `json:"conflictingReservation,omitempty"`
	TimeRemaining          int              `json:"timeRemaining,omitempty"` // seconds
}

// Status is a read-only projection of a reservation for polling clients.
type Status struct {
	Active        bool             `json:"active"`
	TimeRemaining int              `json:"timeRemaining"` // seconds
	WarningZone   bool             `json:"warningZone"`
	CanExtend     bool             `json:"canExtend"`
	Reservation   *SlotReservation `json:"reservation,omitempty"`
}

// MetadataString returns a string metadata value, or "" when absent or of another type.
func (r *SlotReservation) MetadataString(key string) string {
	if v, ok := r.Metadata[key].(string); ok {
		return v
	}
	return ""
}

// MetadataTime parses an RFC 3339 metadata value such as extendedAt or convertedAt.
func (r *SlotReservation) MetadataTime(key string) time.Time {
	t, err := time.Parse(time.RFC3339, r.MetadataString(key))
	if err != nil {
		return time.Time{}
	}
	return t
}
