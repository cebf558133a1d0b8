package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/merchkit/storefront/internal/domain/coupon"
)

const (
	couponColumns = `code, description, discount_type, discount_value, min_purchase_amount,
		max_discount_amount, usage_limit, used_count, valid_from, valid_until, is_active,
		applicable_categories, applicable_products`

	getCouponByCodeSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE UPPER(code) = UPPER($1)`

	listCouponsSQL = `SELECT ` + couponColumns + ` FROM coupons ORDER BY created_at DESC`

	createCouponSQL = `INSERT INTO coupons (` + couponColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	updateCouponSQL = `UPDATE coupons SET description = $2, discount_type = $3, discount_value = $4,
		min_purchase_amount = $5, max_discount_amount = $6, usage_limit = $7,
		valid_from = $8, valid_until = $9, is_active = $10,
		applicable_categories = $11, applicable_products = $12, updated_at = NOW()
		WHERE code = $1`

	deleteCouponSQL = `DELETE FROM coupons WHERE code = $1`

	// redeemCouponSQL re-checks the full usability invariant and increments
	// the usage counter in one statement, so two concurrent redemptions of a
	// near-exhausted coupon can never both pass the limit check.
	redeemCouponSQL = `UPDATE coupons SET used_count = used_count + 1, updated_at = NOW()
		WHERE code = $1 AND is_active
		  AND NOW() BETWEEN valid_from AND valid_until
		  AND (usage_limit IS NULL OR used_count < usage_limit)`

	uniqueViolationCode = "23505"
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive).
// Returns coupon.ErrNotFound when no matching coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}
	return &c, nil
}

// Redeem atomically increments the usage counter while the coupon is still
// usable. On a failed guard it re-reads the coupon to report the precise
// failure: ErrNotFound, ErrInvalid, ErrExpired, or ErrExhausted.
func (r *CouponRepository) Redeem(ctx context.Context, code string) error {
	return redeemTx(ctx, r.pool, code)
}

// redeemTx runs the guarded redemption against any pgx executor, so order
// creation can reuse it inside its own transaction.
func redeemTx(ctx context.Context, q querier, code string) error {
	tag, err := q.Exec(ctx, redeemCouponSQL, code)
	if err != nil {
		return fmt.Errorf("redeeming coupon %q: %w", code, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	rows, err := q.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return fmt.Errorf("diagnosing coupon %q: %w", code, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return coupon.ErrNotFound
		}
		return fmt.Errorf("diagnosing coupon %q: %w", code, err)
	}
	if err := coupon.Usable(&c, time.Now()); err != nil {
		return err
	}
	// The guard failed but the fresh read looks usable: a concurrent
	// redemption took the last slot between the two statements.
	return coupon.ErrExhausted
}

// querier is the subset of pgx executors shared by pools and transactions.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Create inserts a new coupon. Returns coupon.ErrDuplicateCode when the code
// already exists.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.pool.Exec(ctx, createCouponSQL,
		c.Code, c.Description, string(c.DiscountType), c.DiscountValue, c.MinPurchaseAmount,
		c.MaxDiscountAmount, c.UsageLimit, c.UsedCount, c.ValidFrom, c.ValidUntil, c.IsActive,
		c.ApplicableCategories, c.ApplicableProducts,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return coupon.ErrDuplicateCode
		}
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// Update overwrites the coupon's editable fields. UsedCount is deliberately
// excluded; it only moves through Redeem.
func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	tag, err := r.pool.Exec(ctx, updateCouponSQL,
		c.Code, c.Description, string(c.DiscountType), c.DiscountValue, c.MinPurchaseAmount,
		c.MaxDiscountAmount, c.UsageLimit, c.ValidFrom, c.ValidUntil, c.IsActive,
		c.ApplicableCategories, c.ApplicableProducts,
	)
	if err != nil {
		return fmt.Errorf("updating coupon %q: %w", c.Code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// Delete removes a coupon by code.
func (r *CouponRepository) Delete(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, deleteCouponSQL, code)
	if err != nil {
		return fmt.Errorf("deleting coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// List returns all coupons, newest first.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return pgx.CollectRows(rows, scanCoupon)
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
	)
	err := row.Scan(
		&c.Code, &c.Description, &discountType, &c.DiscountValue, &c.MinPurchaseAmount,
		&c.MaxDiscountAmount, &c.UsageLimit, &c.UsedCount, &c.ValidFrom, &c.ValidUntil,
		&c.IsActive, &c.ApplicableCategories, &c.ApplicableProducts,
	)
	c.DiscountType = coupon.DiscountType(discountType)
	return c, err
}
