package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/flashmart-api/internal/model"
)

type OrderRepository interface {
	// Create inserts the order and its items; ErrDuplicateKey when the id is taken.
	Create(ctx context.Context, order *model.Order) error
	// Place inserts the order and empties its owner's cart as one unit. Neither happens if
	// either fails; ErrDuplicateKey when the id is taken.
	Place(ctx context.Context, order *model.Order) error
	GetByID(ctx context.Context, id string) (*model.Order, error)
	ListByUserID(ctx context.Context, userID string, limit int) ([]model.Order, error)
	ListAll(ctx context.Context, limit int) ([]model.Order, error)
	// UpdateStatus reports false when no order has the id.
	UpdateStatus(ctx context.Context, id string, status model.OrderStatus, at time.Time) (bool, error)
	// AppendEvent adds a timeline entry; ErrDuplicateKey when the event id was already stored.
	AppendEvent(ctx context.Context, event *model.OrderEvent) error
	ListEvents(ctx context.Context, orderID string) ([]model.OrderEvent, error)
}

type pgOrderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &pgOrderRepo{pool: pool}
}

const orderColumns = `id, user_id, address, total, payment_method, status, created_at, estimated_delivery, updated_at`

func scanOrder(row pgx.Row, o *model.Order) error {
	return row.Scan(&o.ID, &o.UserID, &o.Address, &o.Total, &o.PaymentMethod, &o.Status,
		&o.CreatedAt, &o.EstimatedDelivery, &o.UpdatedAt)
}

func (r *pgOrderRepo) Create(ctx context.Context, order *model.Order) error {
	return r.inTx(ctx, func(tx pgx.Tx) error { return insertOrder(ctx, tx, order) })
}

func (r *pgOrderRepo) Place(ctx context.Context, order *model.Order) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		if err := insertOrder(ctx, tx, order); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, order.UserID); err != nil {
			return NewStorageError("clear cart items", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE carts SET updated_at = $2 WHERE user_id = $1`, order.UserID, order.CreatedAt,
		); err != nil {
			return NewStorageError("touch cart", err)
		}
		return nil
	})
}

func (r *pgOrderRepo) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return NewStorageError("begin tx", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return NewStorageError("commit order", tx.Commit(ctx))
}

func insertOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO orders (`+orderColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		order.ID, order.UserID, order.Address, order.Total, order.PaymentMethod, order.Status,
		order.CreatedAt, order.EstimatedDelivery, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return NewStorageError("insert order", err)
	}

	for i, item := range order.Items {
		_, err = tx.Exec(ctx,
			`INSERT INTO order_items (order_id, position, product_id, name, price, quantity, subtotal)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			order.ID, i, item.ProductID, item.Name, item.Price, item.Quantity, item.Subtotal,
		)
		if err != nil {
			return NewStorageError("insert order item", err)
		}
	}
	return nil
}

func (r *pgOrderRepo) GetByID(ctx context.Context, id string) (*model.Order, error) {
	order := &model.Order{}
	err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id), order)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, NewStorageError("get order", err)
	}
	if err := r.loadItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *pgOrderRepo) loadItems(ctx context.Context, order *model.Order) error {
	rows, err := r.pool.Query(ctx,
		`SELECT product_id, name, price, quantity, subtotal FROM order_items
		 WHERE order_id = $1 ORDER BY position`, order.ID,
	)
	if err != nil {
		return NewStorageError("get order items", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.OrderLine
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Price, &item.Quantity, &item.Subtotal); err != nil {
			return NewStorageError("scan order item", err)
		}
		order.Items = append(order.Items, item)
	}
	return NewStorageError("get order items", rows.Err())
}

func (r *pgOrderRepo) ListByUserID(ctx context.Context, userID string, limit int) ([]model.Order, error) {
	return r.list(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
}

func (r *pgOrderRepo) ListAll(ctx context.Context, limit int) ([]model.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC LIMIT $1`, limit)
}

func (r *pgOrderRepo) list(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, NewStorageError("list orders", err)
	}
	var orders []model.Order
	for rows.Next() {
		var o model.Order
		if err := scanOrder(rows, &o); err != nil {
			rows.Close()
			return nil, NewStorageError("scan order", err)
		}
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("list orders", err)
	}

	for i := range orders {
		if err := r.loadItems(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *pgOrderRepo) UpdateStatus(ctx context.Context, id string, status model.OrderStatus, at time.Time) (bool, error) {
	ct, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`, id, status, at,
	)
	if err != nil {
		return false, NewStorageError("update order status", err)
	}
	return ct.RowsAffected() > 0, nil
}

func (r *pgOrderRepo) AppendEvent(ctx context.Context, e *model.OrderEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO order_events (id, order_id, type, user_id, status, previous_status, actor_id, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.OrderID, e.Type, e.UserID, e.Status, e.PreviousStatus, e.ActorID, e.OccurredAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return NewStorageError("append order event", err)
	}
	return nil
}

func (r *pgOrderRepo) ListEvents(ctx context.Context, orderID string) ([]model.OrderEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, type, user_id, status, previous_status, actor_id, occurred_at
		 FROM order_events WHERE order_id = $1 ORDER BY occurred_at, id`, orderID,
	)
	if err != nil {
		return nil, NewStorageError("list order events", err)
	}
	defer rows.Close()

	var events []model.OrderEvent
	for rows.Next() {
		var e model.OrderEvent
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Type, &e.UserID, &e.Status, &e.PreviousStatus,
			&e.ActorID, &e.OccurredAt); err != nil {
			return nil, NewStorageError("scan order event", err)
		}
		events = append(events, e)
	}
	return events, NewStorageError("list order events", rows.Err())
}
