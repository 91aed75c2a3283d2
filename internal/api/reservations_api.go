package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"slothold/internal/models"
	"slothold/internal/reservation"
)

// ExtendBody is the request body for POST /api/v1/reservations/:id/extend.
type ExtendBody struct {
	CustomerEmail string `json:"customerEmail"`
	Reason        string `json:"reason,omitempty"`
}

// ConvertBody is the request body for POST /api/v1/reservations/:id/convert.
type ConvertBody struct {
	BookingID string `json:"bookingId"`
}

// AvailabilityResponse is the response for GET /api/v1/slots/availability.
type AvailabilityResponse struct {
	Datetime    string             `json:"datetime"`
	ServiceType models.ServiceType `json:"serviceType"`
	Available   bool               `json:"available"`
}

// CleanupResponse is the response for POST /api/v1/maintenance/cleanup.
type CleanupResponse struct {
	Cleaned int `json:"cleaned"`
}

// handleReserve creates a reservation.
// POST /api/v1/reservations
func (s *HTTPServer) handleReserve(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.metrics.IncHTTP("reserve")
	var req reservation.ReserveRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.engine.ReserveSlot(r.Context(), req)
	if err != nil {
		s.writeEngineError(w, "reserve", err)
		return
	}
	s.writeResult(w, http.StatusCreated, result)
}

// handleGetReservation returns a reservation.
// GET /api/v1/reservations/:id
func (s *HTTPServer) handleGetReservation(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.metrics.IncHTTP("get_reservation")
	res := s.engine.GetReservation(r.Context(), ps.ByName("id"))
	if res == nil {
		writeError(w, http.StatusNotFound, "reservation not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleStatus returns the countdown view of a reservation.
// GET /api/v1/reservations/:id/status
func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.metrics.IncHTTP("reservation_status")
	writeJSON(w, http.StatusOK, s.engine.GetReservationStatus(r.Context(), ps.ByName("id")))
}

// handleExtend grants the single extension.
// POST /api/v1/reservations/:id/extend
func (s *HTTPServer) handleExtend(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.metrics.IncHTTP("extend_reservation")
	var body ExtendBody
	if !decodeBody(w, r, &body) {
		return
	}

	result, err := s.engine.ExtendReservation(r.Context(), reservation.ExtendRequest{
		ReservationID: ps.ByName("id"),
		CustomerEmail: body.CustomerEmail,
		Reason:        body.Reason,
	})
	if err != nil {
		s.writeEngineError(w, "extend", err)
		return
	}
	s.writeResult(w, http.StatusOK, result)
}

// handleConvert marks the reservation as booked.
// POST /api/v1/reservations/:id/convert
func (s *HTTPServer) handleConvert(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.metrics.IncHTTP("convert_reservation")
	var body ConvertBody
	if !decodeBody(w, r, &body) {
		return
	}

	result, err := s.engine.ConvertToBooking(r.Context(), ps.ByName("id"), body.BookingID)
	if err != nil {
		s.writeEngineError(w, "convert", err)
		return
	}
	s.writeResult(w, http.StatusOK, result)
}

// handleCancel releases a reservation.
// DELETE /api/v1/reservations/:id
func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.metrics.IncHTTP("cancel_reservation")
	result, err := s.engine.CancelReservation(r.Context(), ps.ByName("id"))
	if err != nil {
		s.writeEngineError(w, "cancel", err)
		return
	}
	s.writeResult(w, http.StatusOK, result)
}

// handleAvailability reports whether a slot is free.
// GET /api/v1/slots/availability?datetime=...&service_type=...
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.metrics.IncHTTP("slot_availability")
	query := r.URL.Query()
	datetimeStr := query.Get("datetime")
	serviceType := models.ServiceType(query.Get("service_type"))

	if datetimeStr == "" || serviceType == "" {
		writeError(w, http.StatusBadRequest, "datetime and service_type are required")
		return
	}
	datetime, err := time.Parse(time.RFC3339, datetimeStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid datetime format; expected RFC3339")
		return
	}
	if !serviceType.Valid() {
		writeError(w, http.StatusBadRequest, "unknown service_type")
		return
	}

	writeJSON(w, http.StatusOK, AvailabilityResponse{
		Datetime:    datetime.UTC().Format(time.RFC3339),
		ServiceType: serviceType,
		Available:   s.engine.IsSlotAvailable(r.Context(), datetime, serviceType),
	})
}

// handleUserReservation returns the user's current reservation.
// GET /api/v1/users/:userId/reservation
func (s *HTTPServer) handleUserReservation(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	s.metrics.IncHTTP("user_reservation")
	res := s.engine.UserCurrentReservation(r.Context(), ps.ByName("userId"))
	if res == nil {
		writeError(w, http.StatusNotFound, "no current reservation")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleCleanup runs a janitor sweep.
// POST /api/v1/maintenance/cleanup
func (s *HTTPServer) handleCleanup(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.metrics.IncHTTP("cleanup")
	writeJSON(w, http.StatusOK, CleanupResponse{Cleaned: s.engine.CleanupExpiredReservations(r.Context())})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *HTTPServer) writeResult(w http.ResponseWriter, okStatus int, result *models.Result) {
	if result.Success {
		writeJSON(w, okStatus, result)
		return
	}
	writeJSON(w, statusForReason(result.Reason), result)
}

func (s *HTTPServer) writeEngineError(w http.ResponseWriter, op string, err error) {
	var verrs reservation.ValidationErrors
	if errors.As(err, &verrs) {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "validation failed", Details: verrs})
		return
	}
	s.logger.Error().Err(err).Str("op", op).Msg("unexpected engine error")
	writeError(w, http.StatusInternalServerError, "internal server error")
}
