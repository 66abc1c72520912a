package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/flicky/flashmart-api/internal/dto"
	"github.com/flicky/flashmart-api/internal/lock"
	"github.com/flicky/flashmart-api/internal/model"
	"github.com/flicky/flashmart-api/internal/repository"
	"github.com/flicky/flashmart-api/internal/repository/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingPublisher keeps published events and, when timeline is set, stores them as the worker would.
type recordingPublisher struct {
	mu       sync.Mutex
	events   []model.OrderEvent
	timeline repository.OrderRepository
	err      error
}

func (p *recordingPublisher) Publish(ctx context.Context, e model.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	if p.timeline != nil {
		return p.timeline.AppendEvent(ctx, &e)
	}
	return nil
}

func (p *recordingPublisher) published() []model.OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.OrderEvent(nil), p.events...)
}

type fixture struct {
	store     *memory.Store
	products  *ProductService
	carts     *CartService
	orders    *OrderService
	publisher *recordingPublisher
	userID    string
	addressID string
}

func newFixture(t *testing.T, policy model.StatusPolicy) *fixture {
	t.Helper()
	store := memory.NewStore()
	locker := lock.NewKeyedMutex()
	pub := &recordingPublisher{timeline: store.Orders}
	products := NewProductService(store.Products, store.Categories, nil)

	f := &fixture{
		store:     store,
		products:  products,
		carts:     NewCartService(store.Carts, products, locker, discardLogger()),
		publisher: pub,
		orders: NewOrderService(store.Orders, store.Carts, store.Users, products, locker, pub, OrderOptions{
			StatusPolicy:   policy,
			DeliveryETA:    15 * time.Minute,
			ListLimit:      100,
			AdminListLimit: 500,
		}, discardLogger()),
	}

	ctx := context.Background()
	user := &model.User{Name: "Asha", Email: "asha@example.com", Phone: "9000000000", Password: "x"}
	require.NoError(t, store.Users.Create(ctx, user))
	addr := &model.Address{FullName: "Asha", Phone: "9000000000", AddressLine1: "12 MG Road",
		City: "Pune", State: "MH", Pincode: "411001", IsDefault: true}
	require.NoError(t, store.Users.AddAddress(ctx, user.ID, addr))
	f.userID = user.ID
	f.addressID = addr.ID
	return f
}

func (f *fixture) addProduct(t *testing.T, id, name string, price, mrp int64) {
	t.Helper()
	require.NoError(t, f.store.Products.Create(context.Background(), &model.Product{
		ID: id, Name: name, Price: decimal.NewFromInt(price), MRP: decimal.NewFromInt(mrp),
		Unit: "1 pc", CategoryID: "cat-dairy", Stock: 100, IsAvailable: true,
	}))
}

func (f *fixture) place(t *testing.T) (*dto.OrderResponse, error) {
	t.Helper()
	return f.orders.PlaceOrder(context.Background(), f.userID, dto.CreateOrderRequest{AddressID: f.addressID})
}
