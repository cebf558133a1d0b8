package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Validation is the outcome of a successful coupon check against a cart.
type Validation struct {
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	FinalAmount    decimal.Decimal `json:"finalAmount"`
}

// Engine validates coupon codes and computes discount amounts. Validation
// never mutates UsedCount; only Repository.Redeem, invoked as part of order
// creation, increments it.
type Engine struct {
	coupons Repository
	now     func() time.Time
}

// NewEngine creates an Engine backed by the given coupon repository.
func NewEngine(coupons Repository) *Engine {
	return &Engine{coupons: coupons, now: time.Now}
}

// Validate normalizes the code, looks up the coupon, checks the usability
// invariant and the minimum purchase amount, and computes the discount for
// the given cart total.
func (e *Engine) Validate(ctx context.Context, code string, cartTotal decimal.Decimal) (*Validation, error) {
	c, err := e.coupons.FindByCode(ctx, NormalizeCode(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if err := Usable(c, e.now()); err != nil {
		return nil, err
	}

	if cartTotal.LessThan(c.MinPurchaseAmount) {
		return nil, &BelowMinimumError{Minimum: c.MinPurchaseAmount}
	}

	discount := ComputeDiscount(c, cartTotal)

	// The fixed discount amount is deliberately not clamped to the cart
	// total, so the subtraction can go negative; the final amount is
	// floored at zero instead.
	final := cartTotal.Sub(discount)
	if final.IsNegative() {
		final = decimal.Zero
	}

	return &Validation{
		Code:           c.Code,
		DiscountAmount: discount.Round(2),
		FinalAmount:    final.Round(2),
	}, nil
}

// Usable checks the coupon usability invariant at the given time. It returns
// ErrInvalid for a deactivated coupon, ErrExpired outside the inclusive
// validity window, and ErrExhausted when the usage limit is reached.
func Usable(c *Coupon, now time.Time) error {
	if !c.IsActive {
		return ErrInvalid
	}
	if now.Before(c.ValidFrom) || now.After(c.ValidUntil) {
		return ErrExpired
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return ErrExhausted
	}
	return nil
}

// ComputeDiscount returns the discount amount for the cart total. Percentage
// discounts are clamped to MaxDiscountAmount when set; fixed discounts are
// the configured value as-is.
func ComputeDiscount(c *Coupon, cartTotal decimal.Decimal) decimal.Decimal {
	switch c.DiscountType {
	case DiscountPercentage:
		amount := cartTotal.Mul(c.DiscountValue).Div(hundred)
		if c.MaxDiscountAmount != nil && amount.GreaterThan(*c.MaxDiscountAmount) {
			amount = *c.MaxDiscountAmount
		}
		return amount
	case DiscountFixed:
		return c.DiscountValue
	default:
		return decimal.Zero
	}
}

// NormalizeCode uppercases and trims a coupon code for case-insensitive
// matching.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
