package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/flicky/flashmart-api/internal/model"
)

const (
	eventQueueName = "order.events"
	dlxExchange    = "order.events.dlx"
	dlqQueueName   = "order.events.dlq"
)

// SetupRabbitMQ declares the event queue with its dead-letter exchange and queue.
func SetupRabbitMQ(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(dlxExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(dlqQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLQ: %w", err)
	}
	if err := ch.QueueBind(dlqQueueName, eventQueueName, dlxExchange, false, nil); err != nil {
		return fmt.Errorf("bind DLQ: %w", err)
	}
	if _, err := ch.QueueDeclare(eventQueueName, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    dlxExchange,
		"x-dead-letter-routing-key": eventQueueName,
	}); err != nil {
		return fmt.Errorf("declare event queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}
	return nil
}

// channelPublisher is the part of *amqp.Channel the publisher needs.
type channelPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPPublisher writes order events to the event queue as persistent JSON messages.
// amqp channels are not safe for concurrent publishing, so sends are serialized.
type AMQPPublisher struct {
	mu      sync.Mutex
	channel channelPublisher
}

func NewAMQPPublisher(ch channelPublisher) *AMQPPublisher {
	return &AMQPPublisher{channel: ch}
}

func (p *AMQPPublisher) Publish(ctx context.Context, event model.OrderEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx, "", eventQueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Type:         event.Type,
		Timestamp:    event.OccurredAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// acknowledger is the part of amqp.Delivery the consumer settles through.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

type Consumer struct {
	channel *amqp.Channel
	handler *EventHandler
	log     *slog.Logger
	done    chan struct{}
	stop    sync.Once
	wg      sync.WaitGroup
}

func NewConsumer(ch *amqp.Channel, handler *EventHandler, log *slog.Logger) *Consumer {
	return &Consumer{
		channel: ch,
		handler: handler,
		log:     log,
		done:    make(chan struct{}),
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(eventQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				c.processMessage(ctx, msg.Body, msg)
			case <-c.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	c.log.Info("order event consumer started")
	return nil
}

// Stop waits up to timeout for the in-flight message to settle.
func (c *Consumer) Stop(timeout time.Duration) {
	c.stop.Do(func() { close(c.done) })

	finished := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(timeout):
		c.log.Warn("order event consumer did not stop in time")
	}
}

// processMessage acks handled and already-seen events and requeues when the idempotency
// store is unreachable. Everything else goes to the dead-letter queue.
func (c *Consumer) processMessage(ctx context.Context, body []byte, msg acknowledger) {
	var event model.OrderEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.log.Error("unmarshal order event", "error", err)
		_ = msg.Nack(false, false)
		return
	}
	if event.ID == "" || event.OrderID == "" {
		c.log.Error("malformed order event", "event_id", event.ID, "order_id", event.OrderID)
		_ = msg.Nack(false, false)
		return
	}

	if err := c.handler.Handle(ctx, event); err != nil {
		c.log.Error("handle order event", "event_id", event.ID, "error", err)
		_ = msg.Nack(false, errors.Is(err, ErrIdempotencyUnavailable))
		return
	}
	_ = msg.Ack(false)
}
