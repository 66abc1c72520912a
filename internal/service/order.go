package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flicky/flashmart-api/internal/dto"
	"github.com/flicky/flashmart-api/internal/lock"
	"github.com/flicky/flashmart-api/internal/model"
	"github.com/flicky/flashmart-api/internal/pricing"
	"github.com/flicky/flashmart-api/internal/repository"
)

var (
	ErrEmptyCart     = errors.New("cart is empty")
	ErrOrderNotFound = errors.New("order not found")
)

const (
	defaultPaymentMethod = "COD"
	orderIDAttempts      = 5
)

// Publisher delivers order lifecycle events. Delivery is best effort from the order flow's view.
type Publisher interface {
	Publish(ctx context.Context, event model.OrderEvent) error
}

type OrderOptions struct {
	StatusPolicy   model.StatusPolicy
	DeliveryETA    time.Duration
	ListLimit      int
	AdminListLimit int
}

type OrderService struct {
	orderRepo repository.OrderRepository
	cartRepo  repository.CartRepository
	userRepo  repository.UserRepository
	catalog   Catalog
	locker    lock.Locker
	publisher Publisher
	opts      OrderOptions
	log       *slog.Logger
	newID     func() string
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	cartRepo repository.CartRepository,
	userRepo repository.UserRepository,
	catalog Catalog,
	locker lock.Locker,
	publisher Publisher,
	opts OrderOptions,
	log *slog.Logger,
) *OrderService {
	if opts.StatusPolicy == "" {
		opts.StatusPolicy = model.StatusPolicyStrict
	}
	return &OrderService{
		orderRepo: orderRepo,
		cartRepo:  cartRepo,
		userRepo:  userRepo,
		catalog:   catalog,
		locker:    locker,
		publisher: publisher,
		opts:      opts,
		log:       log,
		newID:     newOrderID,
	}
}

// newOrderID is 8 upper-case hex characters.
func newOrderID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// PlaceOrder turns the user's cart into an order at current catalog prices and empties the cart.
// Lines whose product no longer exists are dropped; if none survive the cart is left untouched.
func (s *OrderService) PlaceOrder(ctx context.Context, userID string, req dto.CreateOrderRequest) (*dto.OrderResponse, error) {
	order, err := s.placeLocked(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, model.OrderEvent{
		Type:    model.EventOrderPlaced,
		OrderID: order.ID,
		UserID:  userID,
		Status:  order.Status,
		ActorID: userID,
	})

	resp := toOrderResponse(order)
	return &resp, nil
}

// placeLocked does the read-modify-write of placement under the user's cart lock.
func (s *OrderService) placeLocked(ctx context.Context, userID string, req dto.CreateOrderRequest) (*model.Order, error) {
	unlock, err := s.locker.Lock(ctx, cartLockKey(userID))
	if err != nil {
		return nil, fmt.Errorf("lock cart: %w", err)
	}
	defer unlock()

	cart, err := s.cartRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	address, err := s.findAddress(ctx, userID, req.AddressID)
	if err != nil {
		return nil, err
	}

	products, err := resolveProducts(ctx, s.catalog, cart)
	if err != nil {
		return nil, err
	}
	summary := pricing.Price(cart, products)
	if len(summary.Excluded) > 0 {
		s.log.Warn("dropping cart lines for missing products", "user_id", userID, "product_ids", summary.Excluded)
	}
	if len(summary.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	payment := strings.TrimSpace(req.PaymentMethod)
	if payment == "" {
		payment = defaultPaymentMethod
	}
	// stores keep milliseconds at best
	now := time.Now().UTC().Truncate(time.Millisecond)
	order := &model.Order{
		UserID:            userID,
		Items:             make([]model.OrderLine, 0, len(summary.Lines)),
		Address:           address.Snapshot(),
		Total:             summary.Total,
		PaymentMethod:     payment,
		Status:            model.OrderStatusConfirmed,
		CreatedAt:         now,
		EstimatedDelivery: now.Add(s.opts.DeliveryETA),
		UpdatedAt:         now,
	}
	for _, l := range summary.Lines {
		order.Items = append(order.Items, model.OrderLine{
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			Price:     l.Product.Price,
			Quantity:  l.Quantity,
			Subtotal:  l.Subtotal,
		})
	}

	if err := s.placeWithFreshID(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *OrderService) findAddress(ctx context.Context, userID, addressID string) (*model.Address, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrAddressNotFound
	}
	for i := range user.Addresses {
		if user.Addresses[i].ID == addressID {
			return &user.Addresses[i], nil
		}
	}
	return nil, ErrAddressNotFound
}

// placeWithFreshID stores the order and empties the cart in one repository call.
func (s *OrderService) placeWithFreshID(ctx context.Context, order *model.Order) error {
	for attempt := 0; attempt < orderIDAttempts; attempt++ {
		order.ID = s.newID()
		err := s.orderRepo.Place(ctx, order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return fmt.Errorf("place order: %w", err)
		}
		s.log.Warn("order id collision, regenerating", "order_id", order.ID)
	}
	return fmt.Errorf("place order: no free id after %d attempts", orderIDAttempts)
}

func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]dto.OrderResponse, error) {
	orders, err := s.orderRepo.ListByUserID(ctx, userID, s.opts.ListLimit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return toOrderResponses(orders), nil
}

// GetOrder hides other users' orders behind ErrOrderNotFound.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID string) (*dto.OrderResponse, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil || order.UserID != userID {
		return nil, ErrOrderNotFound
	}
	resp := toOrderResponse(order)
	return &resp, nil
}

func (s *OrderService) ListAllOrders(ctx context.Context) ([]dto.OrderResponse, error) {
	orders, err := s.orderRepo.ListAll(ctx, s.opts.AdminListLimit)
	if err != nil {
		return nil, fmt.Errorf("list all orders: %w", err)
	}
	return toOrderResponses(orders), nil
}

// SetStatus moves an order to status under the configured policy. Setting the
// current status again succeeds without recording an event.
func (s *OrderService) SetStatus(ctx context.Context, actor model.Identity, orderID, status string) (*dto.OrderResponse, error) {
	next, err := model.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}

	order, previous, err := s.setStatusLocked(ctx, orderID, next)
	if err != nil {
		return nil, err
	}
	if previous != next {
		s.publish(ctx, model.OrderEvent{
			Type:           model.EventOrderStatusChanged,
			OrderID:        order.ID,
			UserID:         order.UserID,
			Status:         next,
			PreviousStatus: previous,
			ActorID:        actor.UserID,
		})
	}

	resp := toOrderResponse(order)
	return &resp, nil
}

// setStatusLocked applies the transition under the order's lock and returns the status it replaced.
func (s *OrderService) setStatusLocked(ctx context.Context, orderID string, next model.OrderStatus) (*model.Order, model.OrderStatus, error) {
	unlock, err := s.locker.Lock(ctx, "order:"+orderID)
	if err != nil {
		return nil, "", fmt.Errorf("lock order: %w", err)
	}
	defer unlock()

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, "", fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, "", ErrOrderNotFound
	}
	previous := order.Status
	if err := s.opts.StatusPolicy.CheckTransition(previous, next); err != nil {
		return nil, "", fmt.Errorf("%w: %s -> %s", err, previous, next)
	}
	if previous == next {
		return order, previous, nil
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	found, err := s.orderRepo.UpdateStatus(ctx, orderID, next, now)
	if err != nil {
		return nil, "", fmt.Errorf("update status: %w", err)
	}
	if !found {
		return nil, "", ErrOrderNotFound
	}
	order.Status = next
	order.UpdatedAt = now
	return order, previous, nil
}

// History returns the status timeline, oldest first, to the owner or an admin.
func (s *OrderService) History(ctx context.Context, caller model.Identity, orderID string) ([]dto.OrderEventResponse, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil || (order.UserID != caller.UserID && !caller.IsAdmin) {
		return nil, ErrOrderNotFound
	}

	events, err := s.orderRepo.ListEvents(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	items := make([]dto.OrderEventResponse, 0, len(events))
	for _, e := range events {
		items = append(items, dto.OrderEventResponse{
			Type:           e.Type,
			Status:         e.Status,
			PreviousStatus: e.PreviousStatus,
			ActorID:        e.ActorID,
			OccurredAt:     e.OccurredAt,
		})
	}
	return items, nil
}

func (s *OrderService) publish(ctx context.Context, event model.OrderEvent) {
	if s.publisher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.OccurredAt = time.Now().UTC().Truncate(time.Millisecond)
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn("publish order event", "order_id", event.OrderID, "type", event.Type, "error", err)
	}
}

func toOrderResponses(orders []model.Order) []dto.OrderResponse {
	items := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		items = append(items, toOrderResponse(&orders[i]))
	}
	return items
}

func toOrderResponse(order *model.Order) dto.OrderResponse {
	items := make([]dto.OrderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, dto.OrderItemResponse{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal,
		})
	}
	return dto.OrderResponse{
		ID:                order.ID,
		UserID:            order.UserID,
		Items:             items,
		Address:           order.Address,
		Total:             order.Total,
		Status:            order.Status,
		PaymentMethod:     order.PaymentMethod,
		CreatedAt:         order.CreatedAt,
		EstimatedDelivery: order.EstimatedDelivery,
		UpdatedAt:         order.UpdatedAt,
	}
}
