package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/flashmart-api/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// AddAddress appends addr; when addr.IsDefault every sibling loses its default flag.
	AddAddress(ctx context.Context, userID string, addr *model.Address) error
	DeleteAddress(ctx context.Context, userID, addressID string) error
}

type pgUserRepo struct{ pool *pgxpool.Pool }

func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &pgUserRepo{pool: pool}
}

func (r *pgUserRepo) Create(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	query := `INSERT INTO users (id, name, email, phone, password_hash, is_admin, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, NOW())
			  RETURNING created_at`
	err := r.pool.QueryRow(ctx, query,
		user.ID, user.Name, user.Email, user.Phone, user.Password, user.IsAdmin,
	).Scan(&user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return NewStorageError("create user", err)
	}
	return nil
}

func (r *pgUserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *pgUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getBy(ctx, "email", email)
}

func (r *pgUserRepo) getBy(ctx context.Context, column, value string) (*model.User, error) {
	query := `SELECT id, name, email, phone, password_hash, is_admin, created_at
			  FROM users WHERE ` + column + ` = $1`
	user := &model.User{}
	err := r.pool.QueryRow(ctx, query, value).Scan(
		&user.ID, &user.Name, &user.Email, &user.Phone, &user.Password, &user.IsAdmin, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, NewStorageError("get user by "+column, err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, full_name, phone, address_line1, address_line2, city, state, pincode, is_default
		 FROM addresses WHERE user_id = $1 ORDER BY created_at`, user.ID,
	)
	if err != nil {
		return nil, NewStorageError("get addresses", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a model.Address
		if err := rows.Scan(&a.ID, &a.FullName, &a.Phone, &a.AddressLine1, &a.AddressLine2,
			&a.City, &a.State, &a.Pincode, &a.IsDefault); err != nil {
			return nil, NewStorageError("scan address", err)
		}
		user.Addresses = append(user.Addresses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("get addresses", err)
	}
	return user, nil
}

func (r *pgUserRepo) AddAddress(ctx context.Context, userID string, addr *model.Address) error {
	if addr.ID == "" {
		addr.ID = uuid.NewString()
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return NewStorageError("begin tx", err)
	}
	defer tx.Rollback(ctx)

	if addr.IsDefault {
		if _, err := tx.Exec(ctx,
			`UPDATE addresses SET is_default = FALSE WHERE user_id = $1 AND is_default`, userID,
		); err != nil {
			return NewStorageError("clear default address", err)
		}
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO addresses (id, user_id, full_name, phone, address_line1, address_line2, city, state, pincode, is_default, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		addr.ID, userID, addr.FullName, addr.Phone, addr.AddressLine1, addr.AddressLine2,
		addr.City, addr.State, addr.Pincode, addr.IsDefault, time.Now().UTC(),
	)
	if err != nil {
		return NewStorageError("insert address", err)
	}
	return NewStorageError("commit address", tx.Commit(ctx))
}

func (r *pgUserRepo) DeleteAddress(ctx context.Context, userID, addressID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM addresses WHERE id = $1 AND user_id = $2`, addressID, userID)
	return NewStorageError("delete address", err)
}
