package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flicky/flashmart-api/internal/dto"
	"github.com/flicky/flashmart-api/internal/lock"
	"github.com/flicky/flashmart-api/internal/model"
	"github.com/flicky/flashmart-api/internal/pricing"
	"github.com/flicky/flashmart-api/internal/repository"
)

type CartService struct {
	cartRepo repository.CartRepository
	catalog  Catalog
	locker   lock.Locker
	log      *slog.Logger
}

func NewCartService(cartRepo repository.CartRepository, catalog Catalog, locker lock.Locker, log *slog.Logger) *CartService {
	return &CartService{cartRepo: cartRepo, catalog: catalog, locker: locker, log: log}
}

func cartLockKey(userID string) string { return "cart:" + userID }

// GetCart prices the user's cart against the current catalog.
func (s *CartService) GetCart(ctx context.Context, userID string) (*dto.CartResponse, error) {
	cart, err := s.cartRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get or create cart: %w", err)
	}
	products, err := resolveProducts(ctx, s.catalog, cart)
	if err != nil {
		return nil, err
	}
	summary := pricing.Price(cart, products)
	if len(summary.Excluded) > 0 {
		s.log.Warn("cart has lines for missing products", "user_id", userID, "product_ids", summary.Excluded)
	}
	resp := toCartResponse(summary)
	return &resp, nil
}

func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidArgument)
	}
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return err
	}

	return s.mutate(ctx, userID, func(cart *model.Cart) bool {
		if i := cart.Line(productID); i >= 0 {
			cart.Lines[i].Quantity += quantity
			return true
		}
		cart.Lines = append(cart.Lines, model.CartLine{
			ProductID: productID,
			Quantity:  quantity,
			Name:      product.Name,
			Price:     product.Price,
			ImageURL:  product.ImageURL,
			AddedAt:   time.Now().UTC(),
		})
		return true
	})
}

// UpdateItem sets the quantity exactly; quantity <= 0 removes the line.
// Updating a product that is not in the cart is a no-op.
func (s *CartService) UpdateItem(ctx context.Context, userID, productID string, quantity int) error {
	return s.mutate(ctx, userID, func(cart *model.Cart) bool {
		i := cart.Line(productID)
		if i < 0 {
			return false
		}
		if quantity <= 0 {
			cart.Lines = append(cart.Lines[:i], cart.Lines[i+1:]...)
			return true
		}
		cart.Lines[i].Quantity = quantity
		return true
	})
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) error {
	return s.mutate(ctx, userID, func(cart *model.Cart) bool {
		i := cart.Line(productID)
		if i < 0 {
			return false
		}
		cart.Lines = append(cart.Lines[:i], cart.Lines[i+1:]...)
		return true
	})
}

func (s *CartService) Clear(ctx context.Context, userID string) error {
	return s.mutate(ctx, userID, func(cart *model.Cart) bool {
		if cart.IsEmpty() {
			return false
		}
		cart.Lines = nil
		return true
	})
}

// mutate applies fn to the user's cart under the user's lock and saves it when fn reports a change.
func (s *CartService) mutate(ctx context.Context, userID string, fn func(*model.Cart) bool) error {
	unlock, err := s.locker.Lock(ctx, cartLockKey(userID))
	if err != nil {
		return fmt.Errorf("lock cart: %w", err)
	}
	defer unlock()

	cart, err := s.cartRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return fmt.Errorf("get or create cart: %w", err)
	}
	if !fn(cart) {
		return nil
	}
	if err := s.cartRepo.Save(ctx, cart); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// resolveProducts looks up every cart line. Lines whose product is gone are left out of the map.
func resolveProducts(ctx context.Context, catalog Catalog, cart *model.Cart) (map[string]*model.Product, error) {
	products := make(map[string]*model.Product, len(cart.Lines))
	for _, line := range cart.Lines {
		p, err := catalog.GetProduct(ctx, line.ProductID)
		if errors.Is(err, ErrProductNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		products[line.ProductID] = p
	}
	return products, nil
}

func toCartResponse(summary pricing.Summary) dto.CartResponse {
	items := make([]dto.CartItemResponse, 0, len(summary.Lines))
	for _, l := range summary.Lines {
		items = append(items, dto.CartItemResponse{
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			Price:     l.Product.Price,
			MRP:       l.Product.MRP,
			Unit:      l.Product.Unit,
			ImageURL:  l.Product.ImageURL,
			Quantity:  l.Quantity,
			Subtotal:  l.Subtotal,
		})
	}
	return dto.CartResponse{
		Items:         items,
		Total:         summary.Total,
		ItemCount:     summary.ItemCount,
		Savings:       summary.Savings,
		ExcludedCount: len(summary.Excluded),
	}
}
