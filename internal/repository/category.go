package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/flashmart-api/internal/model"
)

type CategoryRepository interface {
	Create(ctx context.Context, category *model.Category) error
	GetByID(ctx context.Context, id string) (*model.Category, error)
	List(ctx context.Context) ([]model.Category, error)
}

type pgCategoryRepo struct{ pool *pgxpool.Pool }

func NewCategoryRepository(pool *pgxpool.Pool) CategoryRepository {
	return &pgCategoryRepo{pool: pool}
}

func (r *pgCategoryRepo) Create(ctx context.Context, c *model.Category) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO categories (id, name, image_url, display_order) VALUES ($1, $2, $3, $4)`,
		c.ID, c.Name, c.ImageURL, c.DisplayOrder,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return NewStorageError("create category", err)
	}
	return nil
}

func (r *pgCategoryRepo) GetByID(ctx context.Context, id string) (*model.Category, error) {
	c := &model.Category{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, image_url, display_order FROM categories WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.ImageURL, &c.DisplayOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, NewStorageError("get category", err)
	}
	return c, nil
}

func (r *pgCategoryRepo) List(ctx context.Context) ([]model.Category, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, image_url, display_order FROM categories ORDER BY display_order, name`)
	if err != nil {
		return nil, NewStorageError("list categories", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.ImageURL, &c.DisplayOrder); err != nil {
			return nil, NewStorageError("scan category", err)
		}
		categories = append(categories, c)
	}
	return categories, NewStorageError("list categories", rows.Err())
}
