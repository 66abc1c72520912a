package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/flashmart-api/internal/model"
)

type PincodeRepository interface {
	Get(ctx context.Context, pincode string) (*model.Pincode, error)
	Upsert(ctx context.Context, p *model.Pincode) error
}

type pgPincodeRepo struct{ pool *pgxpool.Pool }

func NewPincodeRepository(pool *pgxpool.Pool) PincodeRepository {
	return &pgPincodeRepo{pool: pool}
}

func (r *pgPincodeRepo) Get(ctx context.Context, pincode string) (*model.Pincode, error) {
	p := &model.Pincode{}
	err := r.pool.QueryRow(ctx,
		`SELECT pincode, city, is_serviceable FROM pincodes WHERE pincode = $1`, pincode,
	).Scan(&p.Pincode, &p.City, &p.IsServiceable)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, NewStorageError("get pincode", err)
	}
	return p, nil
}

func (r *pgPincodeRepo) Upsert(ctx context.Context, p *model.Pincode) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO pincodes (pincode, city, is_serviceable) VALUES ($1, $2, $3)
		 ON CONFLICT (pincode) DO UPDATE SET city = EXCLUDED.city, is_serviceable = EXCLUDED.is_serviceable`,
		p.Pincode, p.City, p.IsServiceable,
	)
	return NewStorageError("upsert pincode", err)
}
