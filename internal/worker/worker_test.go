package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/flashmart-api/internal/model"
	"github.com/flicky/flashmart-api/internal/repository"
	"github.com/flicky/flashmart-api/internal/repository/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []model.OrderEvent
}

func (b *recordingBroadcaster) Broadcast(e model.OrderEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

type fakeDelivery struct {
	acked, nacked, requeued bool
}

func (d *fakeDelivery) Ack(bool) error { d.acked = true; return nil }

func (d *fakeDelivery) Nack(_, requeue bool) error {
	d.nacked = true
	d.requeued = requeue
	return nil
}

type failingRepo struct {
	repository.OrderRepository
}

func (failingRepo) AppendEvent(context.Context, *model.OrderEvent) error {
	return repository.NewStorageError("append", errors.New("connection reset"))
}

func sampleEvent() model.OrderEvent {
	return model.OrderEvent{
		ID: "evt-1", Type: model.EventOrderStatusChanged, OrderID: "A1B2C3D4", UserID: "u1",
		Status: model.OrderStatusPreparing, PreviousStatus: model.OrderStatusConfirmed,
		ActorID: "admin", OccurredAt: time.Now().UTC(),
	}
}

func TestEventHandler_RecordsOnce(t *testing.T) {
	repo := memory.NewOrderRepository()
	hub := &recordingBroadcaster{}
	h := NewEventHandler(repo, nil, hub, discardLogger())
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, sampleEvent()))
	require.NoError(t, h.Handle(ctx, sampleEvent()))

	events, err := repo.ListEvents(ctx, "A1B2C3D4")
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, 1, hub.count())
}

func TestEventHandler_RejectsMalformed(t *testing.T) {
	h := NewEventHandler(memory.NewOrderRepository(), nil, nil, discardLogger())
	e := sampleEvent()
	e.OrderID = ""
	assert.Error(t, h.Handle(context.Background(), e))
}

func TestInlinePublisher(t *testing.T) {
	repo := memory.NewOrderRepository()
	pub := NewInlinePublisher(NewEventHandler(repo, nil, nil, discardLogger()))

	require.NoError(t, pub.Publish(context.Background(), sampleEvent()))
	events, err := repo.ListEvents(context.Background(), "A1B2C3D4")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.OrderStatusPreparing, events[0].Status)
}

func TestConsumer_ProcessMessage(t *testing.T) {
	body, err := json.Marshal(sampleEvent())
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("acks handled event", func(t *testing.T) {
		c := NewConsumer(nil, NewEventHandler(memory.NewOrderRepository(), nil, nil, discardLogger()), discardLogger())
		d := &fakeDelivery{}
		c.processMessage(ctx, body, d)
		assert.True(t, d.acked)
		assert.False(t, d.nacked)
	})

	t.Run("dead-letters garbage", func(t *testing.T) {
		c := NewConsumer(nil, NewEventHandler(memory.NewOrderRepository(), nil, nil, discardLogger()), discardLogger())
		d := &fakeDelivery{}
		c.processMessage(ctx, []byte("{not json"), d)
		assert.True(t, d.nacked)
		assert.False(t, d.requeued)
	})

	t.Run("dead-letters event without id", func(t *testing.T) {
		c := NewConsumer(nil, NewEventHandler(memory.NewOrderRepository(), nil, nil, discardLogger()), discardLogger())
		d := &fakeDelivery{}
		c.processMessage(ctx, []byte(`{"order_id":"A1B2C3D4"}`), d)
		assert.True(t, d.nacked)
		assert.False(t, d.requeued)
	})

	t.Run("dead-letters storage failure", func(t *testing.T) {
		c := NewConsumer(nil, NewEventHandler(failingRepo{}, nil, nil, discardLogger()), discardLogger())
		d := &fakeDelivery{}
		c.processMessage(ctx, body, d)
		assert.True(t, d.nacked)
		assert.False(t, d.requeued)
	})

	t.Run("requeues when redis is down", func(t *testing.T) {
		// Nothing listens on port 1.
		client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
		defer client.Close()
		c := NewConsumer(nil, NewEventHandler(memory.NewOrderRepository(), client, nil, discardLogger()), discardLogger())
		d := &fakeDelivery{}
		c.processMessage(ctx, body, d)
		assert.True(t, d.nacked)
		assert.True(t, d.requeued)
	})
}

type capturingChannel struct {
	key string
	msg amqp.Publishing
}

func (c *capturingChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	c.key = key
	c.msg = msg
	return nil
}

func TestAMQPPublisher_Publish(t *testing.T) {
	ch := &capturingChannel{}
	pub := NewAMQPPublisher(ch)

	require.NoError(t, pub.Publish(context.Background(), sampleEvent()))
	assert.Equal(t, eventQueueName, ch.key)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	assert.Equal(t, "evt-1", ch.msg.MessageId)

	var got model.OrderEvent
	require.NoError(t, json.Unmarshal(ch.msg.Body, &got))
	assert.Equal(t, "A1B2C3D4", got.OrderID)
}

func TestEventHandler_RedisIdempotency(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	e := sampleEvent()
	e.ID = "evt-redis-" + time.Now().Format("150405.000000")
	t.Cleanup(func() { client.Del(context.Background(), idempotencyKey(e.ID)) })

	hub := &recordingBroadcaster{}
	h := NewEventHandler(memory.NewOrderRepository(), client, hub, discardLogger())
	require.NoError(t, h.Handle(ctx, e))

	n, err := client.Exists(ctx, idempotencyKey(e.ID)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// A fresh store would accept the event again; the key short-circuits it.
	other := NewEventHandler(memory.NewOrderRepository(), client, hub, discardLogger())
	require.NoError(t, other.Handle(ctx, e))
	assert.Equal(t, 1, hub.count())
}
