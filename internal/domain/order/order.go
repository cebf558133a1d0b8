package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is an order's position in its lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// transitions is the adjacency table of legal status edges. Progression runs
// pending → processing → shipped → delivered; cancelled is reachable from
// every non-terminal state. Delivered and cancelled have no outgoing edges.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// ParseStatus converts a wire string to a Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return st, nil
	default:
		return "", errors.Errorf("unknown order status %q", s)
	}
}

// CanTransition reports whether the edge from → to exists in the lifecycle
// graph.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status has no outgoing transitions.
func IsTerminal(s Status) bool {
	return len(transitions[s]) == 0
}

// Sentinel errors for order operations.
var (
	ErrNotFound          = errors.New("order not found")
	ErrEmptyItems        = errors.New("order items required")
	ErrForbidden         = errors.New("not authorized for this order")
	ErrAlreadyCancelled  = errors.New("order is cancelled")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// OutOfStockError indicates the requested quantity exceeds available stock.
type OutOfStockError struct {
	ProductID string
	Stock     int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("product %s has only %d in stock", e.ProductID, e.Stock)
}

// Item is a single line of an order: a product reference, a positive
// quantity, and the unit price captured from the catalog at creation time.
// The item list is immutable after creation.
type Item struct {
	ProductID string          `json:"product"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Order is a customer order. It is never deleted; cancellation is a terminal
// status, not removal. IsDelivered implies Status == delivered, while IsPaid
// and Status are independent axes.
type Order struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user"`
	Items       []Item          `json:"orderItems"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
	Discount    decimal.Decimal `json:"discount"`
	CouponCode  string          `json:"couponCode,omitempty"`
	Status      Status          `json:"orderStatus"`
	IsPaid      bool            `json:"isPaid"`
	PaidAt      *time.Time      `json:"paidAt"`
	IsDelivered bool            `json:"isDelivered"`
	DeliveredAt *time.Time      `json:"deliveredAt"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Repository defines persistence operations for orders.
//
// Create must redeem o.CouponCode, when set, atomically with the insert:
// the coupon's used_count is incremented by a single conditional update in
// the same transaction, and a failed guard surfaces the matching coupon
// error with nothing persisted.
//
// UpdateStatus and SetPaid are conditional single-statement updates. They
// report false when the precondition did not hold at write time, which the
// service uses for optimistic retry under concurrent mutation. SetPaid
// declines both already-paid and cancelled orders in its guard, so a cancel
// racing the service's legality check cannot produce a paid cancelled order.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListForUser(ctx context.Context, userID string) ([]Order, error)
	List(ctx context.Context, status Status, page, limit int) ([]Order, int, error)
	UpdateStatus(ctx context.Context, id string, from, to Status, deliveredAt *time.Time) (bool, error)
	SetPaid(ctx context.Context, id string, paidAt time.Time) (bool, error)
}
