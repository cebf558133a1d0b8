package review

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/merchkit/storefront/internal/auth"
	"github.com/merchkit/storefront/internal/domain/product"
)

// PurchaseChecker reports whether a user has a delivered order containing the
// given product. It backs the verified-purchase flag on new reviews.
type PurchaseChecker interface {
	HasDeliveredProduct(ctx context.Context, userID, productID string) (bool, error)
}

// Aggregator recomputes a product's derived ratings from its current
// approved-review set.
type Aggregator interface {
	Recompute(ctx context.Context, productID string) error
}

// CreateRequest holds the input for creating a review.
type CreateRequest struct {
	ProductID string
	Rating    int
	Title     string
	Comment   string
}

// UpdateRequest holds the input for editing a review. Zero values leave the
// corresponding field unchanged.
type UpdateRequest struct {
	Rating  int
	Title   string
	Comment string
}

// Service owns review mutations and keeps product ratings consistent with
// them: every change to the approved-review set of a product triggers a
// recompute for that product.
type Service struct {
	reviews   Store
	products  product.Repository
	purchases PurchaseChecker
	ratings   Aggregator
	now       func() time.Time
}

// NewService creates a review Service with the required dependencies.
func NewService(reviews Store, products product.Repository, purchases PurchaseChecker, ratings Aggregator) *Service {
	return &Service{
		reviews:   reviews,
		products:  products,
		purchases: purchases,
		ratings:   ratings,
		now:       time.Now,
	}
}

// Create adds a review for the product. The verified-purchase flag is set
// from whether the reviewer has a delivered order containing the product.
// A second review by the same user for the same product fails with
// ErrDuplicate.
func (s *Service) Create(ctx context.Context, ident auth.Identity, req CreateRequest) (*Review, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, ErrInvalidRating
	}

	if _, err := s.products.GetByID(ctx, req.ProductID); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrap(err, "get product")
	}

	verified, err := s.purchases.HasDeliveredProduct(ctx, ident.UserID, req.ProductID)
	if err != nil {
		return nil, errors.Wrap(err, "check purchase")
	}

	now := s.now()
	r := &Review{
		ID:                 uuid.New().String(),
		UserID:             ident.UserID,
		ProductID:          req.ProductID,
		Rating:             req.Rating,
		Title:              req.Title,
		Comment:            req.Comment,
		IsApproved:         true,
		IsVerifiedPurchase: verified,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.reviews.Create(ctx, r); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, ErrDuplicate
		}
		return nil, errors.Wrap(err, "create review")
	}

	if err := s.ratings.Recompute(ctx, req.ProductID); err != nil {
		return nil, errors.Wrap(err, "recompute ratings")
	}
	return r, nil
}

// Update edits the caller's own review. Zero values in the request keep the
// existing field values. The product's ratings are recomputed when the
// rating value changed.
func (s *Service) Update(ctx context.Context, ident auth.Identity, reviewID string, req UpdateRequest) (*Review, error) {
	r, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if r.UserID != ident.UserID {
		return nil, ErrForbidden
	}

	ratingChanged := false
	if req.Rating != 0 {
		if req.Rating < 1 || req.Rating > 5 {
			return nil, ErrInvalidRating
		}
		ratingChanged = req.Rating != r.Rating
		r.Rating = req.Rating
	}
	if req.Title != "" {
		r.Title = req.Title
	}
	if req.Comment != "" {
		r.Comment = req.Comment
	}
	r.UpdatedAt = s.now()

	if err := s.reviews.Update(ctx, r); err != nil {
		return nil, errors.Wrap(err, "update review")
	}

	if ratingChanged && r.IsApproved {
		if err := s.ratings.Recompute(ctx, r.ProductID); err != nil {
			return nil, errors.Wrap(err, "recompute ratings")
		}
	}
	return r, nil
}

// Delete removes a review. The owner or an administrator may delete it; the
// product's ratings are recomputed afterwards.
func (s *Service) Delete(ctx context.Context, ident auth.Identity, reviewID string) error {
	r, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return err
	}
	if r.UserID != ident.UserID && !ident.IsAdmin() {
		return ErrForbidden
	}

	if err := s.reviews.Delete(ctx, reviewID); err != nil {
		return errors.Wrap(err, "delete review")
	}
	if err := s.ratings.Recompute(ctx, r.ProductID); err != nil {
		return errors.Wrap(err, "recompute ratings")
	}
	return nil
}

// SetApproval moderates a review. Only administrators may call it; a change
// in approval changes the approved set, so ratings are recomputed.
func (s *Service) SetApproval(ctx context.Context, ident auth.Identity, reviewID string, approved bool) (*Review, error) {
	if !ident.IsAdmin() {
		return nil, ErrForbidden
	}

	r, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if r.IsApproved == approved {
		return r, nil
	}

	r.IsApproved = approved
	r.UpdatedAt = s.now()
	if err := s.reviews.Update(ctx, r); err != nil {
		return nil, errors.Wrap(err, "update review")
	}

	if err := s.ratings.Recompute(ctx, r.ProductID); err != nil {
		return nil, errors.Wrap(err, "recompute ratings")
	}
	return r, nil
}

// ListForProduct returns the approved reviews of a product, newest first.
func (s *Service) ListForProduct(ctx context.Context, productID string, page, limit int) ([]Review, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return s.reviews.ListForProduct(ctx, productID, page, limit)
}

// ListForUser returns all reviews written by the user.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Review, error) {
	return s.reviews.ListForUser(ctx, userID)
}
