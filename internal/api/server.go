// Package api exposes the reservation engine over HTTP/JSON.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"slothold/internal/metrics"
	"slothold/internal/models"
	"slothold/internal/reservation"
)

// Engine is the reservation surface served over HTTP.
type Engine interface {
	ReserveSlot(ctx context.Context, req reservation.ReserveRequest) (*models.Result, error)
	GetReservation(ctx context.Context, id string) *models.SlotReservation
	GetReservationStatus(ctx context.Context, id string) models.Status
	ExtendReservation(ctx context.Context, req reservation.ExtendRequest) (*models.Result, error)
	CancelReservation(ctx context.Context, id string) (*models.Result, error)
	ConvertToBooking(ctx context.Context, id, bookingID string) (*models.Result, error)
	IsSlotAvailable(ctx context.Context, datetime time.Time, serviceType models.ServiceType) bool
	UserCurrentReservation(ctx context.Context, userID string) *models.SlotReservation
	CleanupExpiredReservations(ctx context.Context) int
}

// Options tunes the HTTP server.
type Options struct {
	// RateLimitRPS and RateLimitBurst bound mutating requests. Zero RPS disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int

	// Metrics is optional.
	Metrics *metrics.Metrics
}

// HTTPServer routes reservation requests to the engine.
type HTTPServer struct {
	engine  Engine
	logger  *zerolog.Logger
	limiter *rate.Limiter
	metrics *metrics.Metrics
	router  *httprouter.Router
}

// NewHTTPServer builds the router for engine.
func NewHTTPServer(engine Engine, opts Options, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s := &HTTPServer{
		engine:  engine,
		logger:  logger,
		metrics: opts.Metrics,
		router:  httprouter.New(),
	}
	if opts.RateLimitRPS > 0 {
		burst := opts.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), burst)
	}
	s.registerRoutes()
	return s
}

func (s *HTTPServer) registerRoutes() {
	s.router.POST("/api/v1/reservations", s.limited(s.handleReserve))
	s.router.GET("/api/v1/reservations/:id", s.handleGetReservation)
	s.router.DELETE("/api/v1/reservations/:id", s.limited(s.handleCancel))
	s.router.GET("/api/v1/reservations/:id/status", s.handleStatus)
	s.router.POST("/api/v1/reservations/:id/extend", s.limited(s.handleExtend))
	s.router.POST("/api/v1/reservations/:id/convert", s.limited(s.handleConvert))
	s.router.GET("/api/v1/slots/availability", s.handleAvailability)
	s.router.GET("/api/v1/users/:userId/reservation", s.handleUserReservation)
	s.router.POST("/api/v1/maintenance/cleanup", s.handleCleanup)
}

// Handler returns the root handler with panic recovery applied.
func (s *HTTPServer) Handler() http.Handler {
	return s.recovery(s.router)
}

// Serve listens on port until ctx is cancelled.
func (s *HTTPServer) Serve(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	s.logger.Info().Int("port", port).Msg("reservation API listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) limited(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if s.limiter != nil && !s.limiter.Allow() {
			s.logger.Warn().Str("method", r.Method).Str("path", r.URL.Path).Msg("rate limit exceeded")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r, ps)
	}
}

func (s *HTTPServer) recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error().
					Interface("panic", err).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// statusForReason maps a failed result to its HTTP status.
func statusForReason(reason models.Reason) int {
	switch reason {
	case models.ReasonNotFound:
		return http.StatusNotFound
	case models.ReasonNotAuthorized:
		return http.StatusForbidden
	case models.ReasonSlotTaken, models.ReasonAlreadyExtended, models.ReasonAlreadyConverted:
		return http.StatusConflict
	case models.ReasonExpired:
		return http.StatusGone
	case models.ReasonStoreFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
