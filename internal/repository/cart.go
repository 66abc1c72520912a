package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/flashmart-api/internal/model"
)

// CartRepository stores exactly one cart per user. Callers serialize writes per user.
type CartRepository interface {
	// GetOrCreate returns the user's cart, creating an empty one on first access.
	GetOrCreate(ctx context.Context, userID string) (*model.Cart, error)
	// Save replaces the stored lines with cart.Lines.
	Save(ctx context.Context, cart *model.Cart) error
}

type pgCartRepo struct{ pool *pgxpool.Pool }

func NewCartRepository(pool *pgxpool.Pool) CartRepository {
	return &pgCartRepo{pool: pool}
}

func (r *pgCartRepo) GetOrCreate(ctx context.Context, userID string) (*model.Cart, error) {
	cart := &model.Cart{UserID: userID}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO carts (user_id, updated_at) VALUES ($1, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		 RETURNING updated_at`, userID,
	).Scan(&cart.UpdatedAt)
	if err != nil {
		return nil, NewStorageError("get or create cart", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT product_id, quantity, name, price, image_url, added_at
		 FROM cart_items WHERE user_id = $1 ORDER BY position`, userID,
	)
	if err != nil {
		return nil, NewStorageError("get cart items", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line model.CartLine
		if err := rows.Scan(&line.ProductID, &line.Quantity, &line.Name, &line.Price,
			&line.ImageURL, &line.AddedAt); err != nil {
			return nil, NewStorageError("scan cart item", err)
		}
		cart.Lines = append(cart.Lines, line)
	}
	return cart, NewStorageError("get cart items", rows.Err())
}

func (r *pgCartRepo) Save(ctx context.Context, cart *model.Cart) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return NewStorageError("begin tx", err)
	}
	defer tx.Rollback(ctx)

	cart.UpdatedAt = time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`INSERT INTO carts (user_id, updated_at) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET updated_at = EXCLUDED.updated_at`,
		cart.UserID, cart.UpdatedAt,
	); err != nil {
		return NewStorageError("upsert cart", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, cart.UserID); err != nil {
		return NewStorageError("clear cart items", err)
	}
	for i, line := range cart.Lines {
		if _, err := tx.Exec(ctx,
			`INSERT INTO cart_items (user_id, product_id, position, quantity, name, price, image_url, added_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			cart.UserID, line.ProductID, i, line.Quantity, line.Name, line.Price, line.ImageURL, line.AddedAt,
		); err != nil {
			return NewStorageError("insert cart item", err)
		}
	}
	return NewStorageError("commit cart", tx.Commit(ctx))
}
