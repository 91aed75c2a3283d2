package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultChannel is the Redis pub/sub channel slot updates are published on.
const DefaultChannel = "slot_updates"

// SlotUpdate announces that a slot became available or unavailable.
type SlotUpdate struct {
	Datetime      time.Time `json:"datetime"`
	ServiceType   string    `json:"serviceType"`
	Available     bool      `json:"available"`
	ReservationID string    `json:"reservationId,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Handler reacts to a slot update.
type Handler func(ctx context.Context, update SlotUpdate) error

// Bus provides in-process fan-out of slot updates.
type Bus struct {
	subscribers []Handler
	mu          sync.RWMutex
	logger      *zerolog.Logger
}

// NewBus constructs an empty bus.
func NewBus(logger *zerolog.Logger) *Bus {
	return &Bus{logger: logger}
}

// Subscribe registers a handler for every update.
func (b *Bus) Subscribe(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, handler)
}

// Publish notifies subscribers. Handler errors are logged and never returned.
func (b *Bus) Publish(ctx context.Context, update SlotUpdate) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers...)
	b.mu.RUnlock()

	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now().UTC()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(ctx, update); err != nil && b.logger != nil {
			b.logger.Warn().Err(err).
				Str("service_type", update.ServiceType).
				Time("datetime", update.Datetime).
				Msg("slot update handler failed")
		}
	}
}

// RedisSink returns a handler that publishes updates as JSON on a Redis channel.
func RedisSink(client redis.UniversalClient, channel string) Handler {
	if channel == "" {
		channel = DefaultChannel
	}
	return func(ctx context.Context, update SlotUpdate) error {
		data, err := json.Marshal(update)
		if err != nil {
			return err
		}
		return client.Publish(ctx, channel, data).Err()
	}
}
