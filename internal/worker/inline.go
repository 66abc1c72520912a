package worker

import (
	"context"

	"github.com/flicky/flashmart-api/internal/model"
)

// InlinePublisher hands events straight to the handler when no broker is configured.
type InlinePublisher struct {
	handler *EventHandler
}

func NewInlinePublisher(handler *EventHandler) *InlinePublisher {
	return &InlinePublisher{handler: handler}
}

func (p *InlinePublisher) Publish(ctx context.Context, event model.OrderEvent) error {
	return p.handler.Handle(ctx, event)
}
