package review

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when a requested review does not exist.
	ErrNotFound = errors.New("review not found")
	// ErrDuplicate is returned when a user already reviewed the product.
	// One review per (user, product) pair; duplicates are rejected, never
	// silently overwritten.
	ErrDuplicate = errors.New("product already reviewed by this user")
	// ErrForbidden is returned when the requester may not mutate the review.
	ErrForbidden = errors.New("not authorized to modify this review")
	// ErrInvalidRating is returned when a rating lies outside 1..5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
)

// Review is a customer's rating of a product. Only approved reviews count
// toward the product's aggregated ratings.
type Review struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user"`
	ProductID          string    `json:"product"`
	Rating             int       `json:"rating"`
	Title              string    `json:"title"`
	Comment            string    `json:"comment"`
	IsApproved         bool      `json:"isApproved"`
	IsVerifiedPurchase bool      `json:"isVerifiedPurchase"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Store defines persistence operations for reviews.
type Store interface {
	Create(ctx context.Context, r *Review) error
	GetByID(ctx context.Context, id string) (*Review, error)
	Update(ctx context.Context, r *Review) error
	Delete(ctx context.Context, id string) error
	ListForProduct(ctx context.Context, productID string, page, limit int) ([]Review, int, error)
	ListForUser(ctx context.Context, userID string) ([]Review, error)
}
