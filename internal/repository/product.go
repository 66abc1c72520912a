package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/flashmart-api/internal/model"
)

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	GetByID(ctx context.Context, id string) (*model.Product, error)
	List(ctx context.Context, filter model.ProductFilter) ([]model.Product, error)
	Update(ctx context.Context, product *model.Product) error
	Delete(ctx context.Context, id string) error
}

type pgProductRepo struct{ pool *pgxpool.Pool }

func NewProductRepository(pool *pgxpool.Pool) ProductRepository {
	return &pgProductRepo{pool: pool}
}

const productColumns = `id, name, description, price, mrp, unit, category_id, image_url, stock, is_available`

func scanProduct(row pgx.Row, p *model.Product) error {
	return row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.MRP, &p.Unit,
		&p.CategoryID, &p.ImageURL, &p.Stock, &p.IsAvailable)
}

func (r *pgProductRepo) Create(ctx context.Context, product *model.Product) error {
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO products (`+productColumns+`, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())`,
		product.ID, product.Name, product.Description, product.Price, product.MRP, product.Unit,
		product.CategoryID, product.ImageURL, product.Stock, product.IsAvailable,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return NewStorageError("create product", err)
	}
	return nil
}

func (r *pgProductRepo) GetByID(ctx context.Context, id string) (*model.Product, error) {
	p := &model.Product{}
	err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id), p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, NewStorageError("get product", err)
	}
	return p, nil
}

func (r *pgProductRepo) List(ctx context.Context, f model.ProductFilter) ([]model.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products
		WHERE ($1 = FALSE OR is_available)
		  AND ($2 = '' OR category_id = $2)
		  AND ($3 = '' OR name ILIKE '%' || $3 || '%' OR description ILIKE '%' || $3 || '%')
		ORDER BY name LIMIT $4`

	rows, err := r.pool.Query(ctx, query, f.AvailableOnly, f.CategoryID, f.Search, f.Limit)
	if err != nil {
		return nil, NewStorageError("list products", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, NewStorageError("scan product", err)
		}
		products = append(products, p)
	}
	return products, NewStorageError("list products", rows.Err())
}

func (r *pgProductRepo) Update(ctx context.Context, product *model.Product) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE products SET name=$2, description=$3, price=$4, mrp=$5, unit=$6, category_id=$7,
		 image_url=$8, stock=$9, is_available=$10, updated_at=NOW()
		 WHERE id=$1`,
		product.ID, product.Name, product.Description, product.Price, product.MRP, product.Unit,
		product.CategoryID, product.ImageURL, product.Stock, product.IsAvailable,
	)
	return NewStorageError("update product", err)
}

func (r *pgProductRepo) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	return NewStorageError("delete product", err)
}
