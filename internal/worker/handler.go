package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flicky/flashmart-api/internal/model"
	"github.com/flicky/flashmart-api/internal/repository"
)

const idempotencyTTL = 24 * time.Hour

// ErrIdempotencyUnavailable marks a failure to reach the idempotency store. The event is worth retrying.
var ErrIdempotencyUnavailable = errors.New("idempotency store unavailable")

// Broadcaster pushes a recorded event to live listeners.
type Broadcaster interface {
	Broadcast(event model.OrderEvent)
}

// EventHandler records an order event on the order timeline and forwards it to live listeners.
// A nil redis client disables the idempotency shortcut; the timeline store still rejects
// duplicate event IDs.
type EventHandler struct {
	orderRepo   repository.OrderRepository
	redisClient *redis.Client
	broadcaster Broadcaster
	log         *slog.Logger
}

func NewEventHandler(
	orderRepo repository.OrderRepository,
	redisClient *redis.Client,
	broadcaster Broadcaster,
	log *slog.Logger,
) *EventHandler {
	return &EventHandler{
		orderRepo:   orderRepo,
		redisClient: redisClient,
		broadcaster: broadcaster,
		log:         log,
	}
}

func idempotencyKey(eventID string) string { return "order_event:" + eventID }

// Handle is safe to call more than once for the same event.
func (h *EventHandler) Handle(ctx context.Context, event model.OrderEvent) error {
	if event.ID == "" || event.OrderID == "" {
		return fmt.Errorf("malformed event: id=%q order_id=%q", event.ID, event.OrderID)
	}
	log := h.log.With("event_id", event.ID, "order_id", event.OrderID, "type", event.Type)

	if h.redisClient != nil {
		exists, err := h.redisClient.Exists(ctx, idempotencyKey(event.ID)).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrIdempotencyUnavailable, err)
		}
		if exists > 0 {
			log.Info("event already processed, skipping")
			return nil
		}
	}

	if err := h.orderRepo.AppendEvent(ctx, &event); err != nil {
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return fmt.Errorf("append event: %w", err)
		}
		log.Info("event already on timeline")
	} else if h.broadcaster != nil {
		h.broadcaster.Broadcast(event)
	}

	if h.redisClient != nil {
		if err := h.redisClient.Set(ctx, idempotencyKey(event.ID), "1", idempotencyTTL).Err(); err != nil {
			log.Error("set idempotency key", "error", err)
		}
	}
	return nil
}
