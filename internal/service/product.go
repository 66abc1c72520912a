package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flicky/flashmart-api/internal/dto"
	"github.com/flicky/flashmart-api/internal/model"
	"github.com/flicky/flashmart-api/internal/pricing"
	"github.com/flicky/flashmart-api/internal/repository"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

const productCacheTTL = 60 * time.Second

// Catalog is the read-only product view the cart and order flows price against.
type Catalog interface {
	// GetProduct returns ErrProductNotFound when id does not resolve.
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
}

type ProductService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	redisClient  *redis.Client
}

var _ Catalog = (*ProductService)(nil)

func NewProductService(productRepo repository.ProductRepository, categoryRepo repository.CategoryRepository, redisClient *redis.Client) *ProductService {
	return &ProductService{productRepo: productRepo, categoryRepo: categoryRepo, redisClient: redisClient}
}

func productCacheKey(id string) string { return "product:" + id }

// productGenKey counts writes to a product; a fill started under an older generation is dropped.
func productGenKey(id string) string { return "product:" + id + ":gen" }

func (s *ProductService) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	if s.redisClient != nil {
		if cached, err := s.redisClient.Get(ctx, productCacheKey(id)).Result(); err == nil {
			var p model.Product
			if json.Unmarshal([]byte(cached), &p) == nil {
				return &p, nil
			}
		}
	}

	var gen int64
	if s.redisClient != nil {
		gen, _ = s.redisClient.Get(ctx, productGenKey(id)).Int64()
	}

	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	if s.redisClient != nil {
		s.fillCache(ctx, product, gen)
	}
	return product, nil
}

// fillCache stores product only if no write has bumped its generation since gen was read.
func (s *ProductService) fillCache(ctx context.Context, product *model.Product, gen int64) {
	data, err := json.Marshal(product)
	if err != nil {
		return
	}
	genKey := productGenKey(product.ID)
	_ = s.redisClient.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, productCacheKey(product.ID), data, productCacheTTL)
			return nil
		})
		return err
	}, genKey)
}

func (s *ProductService) ListCategories(ctx context.Context) ([]model.Category, error) {
	categories, err := s.categoryRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

func (s *ProductService) categoryNames(ctx context.Context) (map[string]string, error) {
	categories, err := s.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	return names, nil
}

func (s *ProductService) GetByID(ctx context.Context, id string) (*dto.ProductResponse, error) {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	names, err := s.categoryNames(ctx)
	if err != nil {
		return nil, err
	}
	resp := toProductResponse(product, names[product.CategoryID])
	return &resp, nil
}

// List returns available products only.
func (s *ProductService) List(ctx context.Context, req dto.ListProductsRequest) ([]dto.ProductResponse, error) {
	products, err := s.productRepo.List(ctx, model.ProductFilter{
		CategoryID:    req.CategoryID,
		Search:        req.Search,
		Limit:         req.Limit,
		AvailableOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	names, err := s.categoryNames(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]dto.ProductResponse, 0, len(products))
	for i := range products {
		items = append(items, toProductResponse(&products[i], names[products[i].CategoryID]))
	}
	return items, nil
}

func (s *ProductService) Create(ctx context.Context, req dto.ProductRequest) (*dto.ProductResponse, error) {
	product, err := productFromRequest(req)
	if err != nil {
		return nil, err
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	names, err := s.categoryNames(ctx)
	if err != nil {
		return nil, err
	}
	resp := toProductResponse(product, names[product.CategoryID])
	return &resp, nil
}

// Update replaces every field of an existing product.
func (s *ProductService) Update(ctx context.Context, id string, req dto.ProductRequest) (*dto.ProductResponse, error) {
	existing, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if existing == nil {
		return nil, ErrProductNotFound
	}

	product, err := productFromRequest(req)
	if err != nil {
		return nil, err
	}
	product.ID = id
	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	s.invalidateCache(ctx, id)

	names, err := s.categoryNames(ctx)
	if err != nil {
		return nil, err
	}
	resp := toProductResponse(product, names[product.CategoryID])
	return &resp, nil
}

func (s *ProductService) Delete(ctx context.Context, id string) error {
	if err := s.productRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	s.invalidateCache(ctx, id)
	return nil
}

// invalidateCache runs after the store write; bumping the generation keeps in-flight fills from restoring the old row.
func (s *ProductService) invalidateCache(ctx context.Context, id string) {
	if s.redisClient == nil {
		return
	}
	_, _ = s.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, productGenKey(id))
		pipe.Expire(ctx, productGenKey(id), productCacheTTL)
		pipe.Del(ctx, productCacheKey(id))
		return nil
	})
}

func productFromRequest(req dto.ProductRequest) (*model.Product, error) {
	if req.Price == nil || req.MRP == nil {
		return nil, fmt.Errorf("%w: price and mrp are required", ErrInvalidArgument)
	}
	if req.Price.IsNegative() || req.MRP.IsNegative() {
		return nil, fmt.Errorf("%w: price and mrp must not be negative", ErrInvalidArgument)
	}
	p := &model.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
		MRP:         *req.MRP,
		Unit:        req.Unit,
		CategoryID:  req.CategoryID,
		ImageURL:    req.ImageURL,
		Stock:       100,
		IsAvailable: true,
	}
	if req.Stock != nil {
		p.Stock = *req.Stock
	}
	if req.IsAvailable != nil {
		p.IsAvailable = *req.IsAvailable
	}
	return p, nil
}

func toProductResponse(p *model.Product, categoryName string) dto.ProductResponse {
	return dto.ProductResponse{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		Price:           p.Price,
		MRP:             p.MRP,
		Unit:            p.Unit,
		CategoryID:      p.CategoryID,
		CategoryName:    categoryName,
		ImageURL:        p.ImageURL,
		Stock:           p.Stock,
		IsAvailable:     p.IsAvailable,
		DiscountPercent: pricing.DiscountPercent(p.Price, p.MRP),
	}
}
