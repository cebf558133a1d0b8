package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage-based discount to the cart total.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed subtracts a fixed monetary amount from the cart total.
	DiscountFixed DiscountType = "fixed"
)

var (
	// ErrNotFound is returned when no coupon matches the normalized code.
	ErrNotFound = errors.New("coupon not found")
	// ErrInvalid is returned when the coupon is deactivated.
	ErrInvalid = errors.New("coupon is not valid")
	// ErrExpired is returned when a coupon is outside its validity window.
	ErrExpired = errors.New("coupon expired")
	// ErrExhausted is returned when a coupon has reached its usage limit.
	ErrExhausted = errors.New("coupon usage limit reached")
	// ErrDuplicateCode is returned when creating a coupon whose code exists.
	ErrDuplicateCode = errors.New("coupon code already exists")
)

// BelowMinimumError indicates the cart total does not reach the coupon's
// minimum purchase amount. Minimum carries the required amount for display.
type BelowMinimumError struct {
	Minimum decimal.Decimal
}

func (e *BelowMinimumError) Error() string {
	return "minimum purchase amount of " + e.Minimum.StringFixed(2) + " required"
}

// Coupon is a discount rule redeemable against an order. A coupon is usable
// iff it is active, the evaluation time lies within [ValidFrom, ValidUntil]
// and its usage limit, when set, is not reached.
type Coupon struct {
	Code                 string           `json:"code"`
	Description          string           `json:"description"`
	DiscountType         DiscountType     `json:"discountType"`
	DiscountValue        decimal.Decimal  `json:"discountValue"`
	MinPurchaseAmount    decimal.Decimal  `json:"minPurchaseAmount"`
	MaxDiscountAmount    *decimal.Decimal `json:"maxDiscountAmount"`
	UsageLimit           *int             `json:"usageLimit"`
	UsedCount            int              `json:"usedCount"`
	ValidFrom            time.Time        `json:"validFrom"`
	ValidUntil           time.Time        `json:"validUntil"`
	IsActive             bool             `json:"isActive"`
	ApplicableCategories []string         `json:"applicableCategories"`
	ApplicableProducts   []string         `json:"applicableProducts"`
}

// Repository provides lookup and administration of coupons.
//
// Redeem must be a single atomic conditional update: it increments UsedCount
// only while the coupon is still usable, and reports failure otherwise. Two
// concurrent redemptions of a near-exhausted coupon must never both succeed
// past the usage limit.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	Redeem(ctx context.Context, code string) error
	Create(ctx context.Context, c *Coupon) error
	Update(ctx context.Context, c *Coupon) error
	Delete(ctx context.Context, code string) error
	List(ctx context.Context) ([]Coupon, error)
}
