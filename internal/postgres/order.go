package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/merchkit/storefront/internal/domain/order"
)

const (
	orderColumns = `id, user_id, order_items, total_price, discount, coupon_code,
		order_status, is_paid, paid_at, is_delivered, delivered_at, created_at`

	createOrderSQL = `INSERT INTO orders
		(id, user_id, order_items, total_price, discount, coupon_code, order_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersForUserSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE ($1 = '' OR order_status = $1)
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	countOrdersSQL = `SELECT COUNT(*) FROM orders WHERE ($1 = '' OR order_status = $1)`

	// The status update is conditioned on the observed current status so a
	// concurrent transition cannot apply on top of a stale legality check.
	updateOrderStatusSQL = `UPDATE orders
		SET order_status = $3,
		    is_delivered = CASE WHEN $4::timestamptz IS NULL THEN is_delivered ELSE TRUE END,
		    delivered_at = COALESCE($4::timestamptz, delivered_at)
		WHERE id = $1 AND order_status = $2`

	// Guarded against cancellation in the same statement so a cancel racing
	// the legality check cannot leave a cancelled order marked paid.
	setOrderPaidSQL = `UPDATE orders SET is_paid = TRUE, paid_at = $2
		WHERE id = $1 AND NOT is_paid AND order_status <> 'cancelled'`

	hasDeliveredProductSQL = `SELECT EXISTS (
		SELECT 1 FROM orders, jsonb_array_elements(order_items) AS item
		WHERE user_id = $1 AND order_status = 'delivered' AND item->>'product' = $2)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order, serializing the item list into the JSONB
// column. When the order carries a coupon code, the coupon's guarded
// usage-counter increment runs in the same transaction: the order and the
// redemption commit together or not at all.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning order transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if o.CouponCode != "" {
		if err := redeemTx(ctx, tx, o.CouponCode); err != nil {
			return err
		}
	}

	var couponCode *string
	if o.CouponCode != "" {
		couponCode = &o.CouponCode
	}
	_, err = tx.Exec(ctx, createOrderSQL,
		o.ID, o.UserID, itemsJSON, o.TotalPrice, o.Discount, couponCode,
		string(o.Status), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns a single order by its identifier.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// ListForUser returns the user's orders, newest first.
func (r *OrderRepository) ListForUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersForUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// List returns a page of orders, optionally filtered by status.
func (r *OrderRepository) List(ctx context.Context, status order.Status, page, limit int) ([]order.Order, int, error) {
	offset := (page - 1) * limit
	rows, err := r.pool.Query(ctx, listOrdersSQL, string(status), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countOrdersSQL, string(status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting orders: %w", err)
	}
	return orders, total, nil
}

// UpdateStatus applies the transition only when the stored status still
// equals the observed one. It reports whether a row changed.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to order.Status, deliveredAt *time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, string(from), string(to), deliveredAt)
	if err != nil {
		return false, fmt.Errorf("updating status of order %q: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetPaid marks the order paid only when it was not already; a false result
// means another request paid it first.
func (r *OrderRepository) SetPaid(ctx context.Context, id string, paidAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, setOrderPaidSQL, id, paidAt)
	if err != nil {
		return false, fmt.Errorf("marking order %q paid: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// HasDeliveredProduct reports whether the user has a delivered order
// containing the product. It backs the verified-purchase flag on reviews.
func (r *OrderRepository) HasDeliveredProduct(ctx context.Context, userID, productID string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, hasDeliveredProductSQL, userID, productID).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking delivered product %q for user %q: %w", productID, userID, err)
	}
	return exists, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o          order.Order
		itemsJSON  []byte
		couponCode *string
		status     string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &itemsJSON, &o.TotalPrice, &o.Discount, &couponCode,
		&status, &o.IsPaid, &o.PaidAt, &o.IsDelivered, &o.DeliveredAt, &o.CreatedAt,
	)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling order items: %w", err)
	}
	if couponCode != nil {
		o.CouponCode = *couponCode
	}
	o.Status = order.Status(status)
	return o, nil
}
