package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/merchkit/storefront/internal/auth"
	"github.com/merchkit/storefront/internal/domain/coupon"
	"github.com/merchkit/storefront/internal/domain/product"
)

// transitionRetries bounds the optimistic-retry loop on concurrent status
// updates of the same order.
const transitionRetries = 3

// CouponValidator computes the discount for a cart total without mutating
// the coupon's usage counter.
type CouponValidator interface {
	Validate(ctx context.Context, code string, cartTotal decimal.Decimal) (*coupon.Validation, error)
}

// ItemRequest is one requested line of a new order.
type ItemRequest struct {
	ProductID string
	Quantity  int
}

// CreateRequest holds the input for placing an order.
type CreateRequest struct {
	Items      []ItemRequest
	CouponCode string
}

// Service owns the order lifecycle: creation with coupon redemption, the
// status state machine, and the payment/delivery flags mutated along it.
type Service struct {
	products product.Repository
	coupons  CouponValidator
	orders   Repository
	now      func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(products product.Repository, coupons CouponValidator, orders Repository) *Service {
	return &Service{
		products: products,
		coupons:  coupons,
		orders:   orders,
		now:      time.Now,
	}
}

// Create validates the requested items against the catalog, prices the order,
// applies an optional coupon, and persists it. A failing coupon check rejects
// the whole order; it is never silently ignored. The coupon's usage counter
// is incremented atomically with the insert, so validation here can run any
// number of times without double-counting.
func (s *Service) Create(ctx context.Context, ident auth.Identity, req CreateRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	items := make([]Item, len(req.Items))
	subtotal := decimal.Zero
	for i, item := range req.Items {
		p, ok := byID[item.ProductID]
		if !ok || !p.IsActive {
			return nil, product.ErrNotFound
		}
		if p.Stock < item.Quantity {
			return nil, &OutOfStockError{ProductID: p.ID, Stock: p.Stock}
		}
		items[i] = Item{
			ProductID: p.ID,
			Quantity:  item.Quantity,
			Price:     p.Price,
		}
		subtotal = subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	total := subtotal.Round(2)
	discount := decimal.Zero
	couponCode := ""
	if req.CouponCode != "" {
		v, err := s.coupons.Validate(ctx, req.CouponCode, subtotal)
		if err != nil {
			return nil, errors.Wrap(err, "validate coupon")
		}
		discount = v.DiscountAmount
		total = v.FinalAmount
		couponCode = v.Code
	}

	o := &Order{
		ID:         uuid.New().String(),
		UserID:     ident.UserID,
		Items:      items,
		TotalPrice: total,
		Discount:   discount,
		CouponCode: couponCode,
		Status:     StatusPending,
		CreatedAt:  s.now(),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	return o, nil
}

// Transition moves the order along a legal edge of the lifecycle graph.
// Entering delivered sets the delivery flag and timestamp; this is the only
// path that sets them. Entering cancelled leaves the paid flag untouched.
// The underlying update is conditioned on the observed status, so two
// concurrent requests cannot both pass the legality check against a stale
// state.
func (s *Service) Transition(ctx context.Context, orderID string, newStatus Status) (*Order, error) {
	for range transitionRetries {
		o, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if !CanTransition(o.Status, newStatus) {
			return nil, errors.Wrapf(ErrInvalidTransition, "%s to %s", o.Status, newStatus)
		}

		var deliveredAt *time.Time
		if newStatus == StatusDelivered {
			now := s.now()
			deliveredAt = &now
		}

		applied, err := s.orders.UpdateStatus(ctx, orderID, o.Status, newStatus, deliveredAt)
		if err != nil {
			return nil, errors.Wrap(err, "update status")
		}
		if applied {
			o.Status = newStatus
			if deliveredAt != nil {
				o.IsDelivered = true
				o.DeliveredAt = deliveredAt
			}
			return o, nil
		}
		// Lost the race; re-read and re-check against the fresh state.
	}
	return nil, errors.Wrap(ErrInvalidTransition, "concurrent status updates")
}

// MarkPaid records a successful payment. Paying a cancelled order is
// rejected; marking an already-paid order is a no-op success and leaves the
// original payment timestamp in place.
func (s *Service) MarkPaid(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}
	if o.IsPaid {
		return o, nil
	}

	paidAt := s.now()
	applied, err := s.orders.SetPaid(ctx, orderID, paidAt)
	if err != nil {
		return nil, errors.Wrap(err, "set paid")
	}
	if !applied {
		// A concurrent pay or cancel won the write; re-read to tell which.
		o, err = s.orders.GetByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if o.Status == StatusCancelled {
			return nil, ErrAlreadyCancelled
		}
		return o, nil
	}
	o.IsPaid = true
	o.PaidAt = &paidAt
	return o, nil
}

// Cancel transitions the order to cancelled on behalf of its owner or an
// administrator. Terminal orders cannot be cancelled. Refund and inventory
// reconciliation are external concerns signalled by the resulting state.
func (s *Service) Cancel(ctx context.Context, ident auth.Identity, orderID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != ident.UserID && !ident.IsAdmin() {
		return nil, ErrForbidden
	}
	if IsTerminal(o.Status) {
		return nil, errors.Wrapf(ErrInvalidTransition, "%s to %s", o.Status, StatusCancelled)
	}
	return s.Transition(ctx, orderID, StatusCancelled)
}

// Get returns the order when the requester owns it or is an administrator.
func (s *Service) Get(ctx context.Context, ident auth.Identity, orderID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != ident.UserID && !ident.IsAdmin() {
		return nil, ErrForbidden
	}
	return o, nil
}

// ListForUser returns the caller's orders, newest first.
func (s *Service) ListForUser(ctx context.Context, ident auth.Identity) ([]Order, error) {
	return s.orders.ListForUser(ctx, ident.UserID)
}

// ListAll returns a page of all orders, optionally filtered by status.
// Administrators only.
func (s *Service) ListAll(ctx context.Context, ident auth.Identity, status Status, page, limit int) ([]Order, int, error) {
	if !ident.IsAdmin() {
		return nil, 0, ErrForbidden
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.orders.List(ctx, status, page, limit)
}
