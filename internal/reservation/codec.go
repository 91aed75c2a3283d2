package reservation

import (
	"encoding/json"
	"fmt"

	"slothold/internal/models"
)

// Encode serialises a reservation into the string form kept in the store.
func Encode(r *models.SlotReservation) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode reservation %s: %w", r.ID, err)
	}
	return string(data), nil
}

// Decode parses a stored value. Values without an id or expiry are rejected as corrupt.
// Metadata goes through plain JSON, so numeric values come back as float64.
func Decode(value string) (*models.SlotReservation, error) {
	var r models.SlotReservation
	if err := json.Unmarshal([]byte(value), &r); err != nil {
		return nil, fmt.Errorf("decode reservation: %w", err)
	}
	if r.ID == "" || r.ExpiresAt.IsZero() {
		return nil, fmt.Errorf("decode reservation: missing id or expiry")
	}
	return &r, nil
}
