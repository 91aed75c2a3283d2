package reservation

import (
	"strings"
	"time"

	"slothold/internal/models"
)

const (
	reservationKeyPrefix = "slot_reservation:"
	slotKeyPrefix        = "slot_hold:"
	userKeyPrefix        = "user_reservation:"
	emailKeyPrefix       = userKeyPrefix + "email:"

	reservationKeyPattern = reservationKeyPrefix + "*"
)

func reservationKey(id string) string {
	return reservationKeyPrefix + id
}

// slotKey identifies a slot. Datetimes are normalised to UTC seconds so equal instants
// written with different offsets share one hold.
func slotKey(datetime time.Time, serviceType models.ServiceType) string {
	return slotKeyPrefix + formatSlotTime(datetime) + ":" + string(serviceType)
}

func userKey(userID string) string {
	return userKeyPrefix + userID
}

func emailKey(email string) string {
	return emailKeyPrefix + normalizeEmail(email)
}

func idFromReservationKey(key string) string {
	return strings.TrimPrefix(key, reservationKeyPrefix)
}

func formatSlotTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// maskEmail keeps the first two characters of the local part for log correlation.
func maskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return "***"
	}
	if len(local) > 2 {
		local = local[:2]
	}
	return local + "***@" + domain
}
