package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/merchkit/storefront/internal/domain/rating"
	"github.com/merchkit/storefront/internal/domain/review"
)

const (
	reviewColumns = `id, user_id, product_id, rating, title, comment,
		is_approved, is_verified_purchase, created_at, updated_at`

	createReviewSQL = `INSERT INTO reviews (` + reviewColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	getReviewByIDSQL = `SELECT ` + reviewColumns + ` FROM reviews WHERE id = $1`

	updateReviewSQL = `UPDATE reviews SET rating = $2, title = $3, comment = $4,
		is_approved = $5, updated_at = $6 WHERE id = $1`

	deleteReviewSQL = `DELETE FROM reviews WHERE id = $1`

	listReviewsForProductSQL = `SELECT ` + reviewColumns + ` FROM reviews
		WHERE product_id = $1 AND is_approved
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	countReviewsForProductSQL = `SELECT COUNT(*) FROM reviews WHERE product_id = $1 AND is_approved`

	listReviewsForUserSQL = `SELECT ` + reviewColumns + ` FROM reviews
		WHERE user_id = $1 ORDER BY created_at DESC`

	approvedRatingsSQL = `SELECT rating FROM reviews WHERE product_id = $1 AND is_approved`
)

var (
	_ review.Store  = (*ReviewRepository)(nil)
	_ rating.Source = (*ReviewRepository)(nil)
)

// ReviewRepository implements review.Store and the rating aggregation source
// backed by PostgreSQL.
type ReviewRepository struct {
	pool *pgxpool.Pool
}

// NewReviewRepository returns a ReviewRepository that uses the given pool.
func NewReviewRepository(pool *pgxpool.Pool) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Create inserts a new review. The unique (user, product) constraint maps to
// review.ErrDuplicate.
func (r *ReviewRepository) Create(ctx context.Context, rv *review.Review) error {
	_, err := r.pool.Exec(ctx, createReviewSQL,
		rv.ID, rv.UserID, rv.ProductID, rv.Rating, rv.Title, rv.Comment,
		rv.IsApproved, rv.IsVerifiedPurchase, rv.CreatedAt, rv.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return review.ErrDuplicate
		}
		return fmt.Errorf("creating review %q: %w", rv.ID, err)
	}
	return nil
}

// GetByID returns a single review by its identifier.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*review.Review, error) {
	rows, err := r.pool.Query(ctx, getReviewByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting review %q: %w", id, err)
	}

	rv, err := pgx.CollectExactlyOneRow(rows, scanReview)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, review.ErrNotFound
		}
		return nil, fmt.Errorf("getting review %q: %w", id, err)
	}
	return &rv, nil
}

// Update overwrites the review's mutable fields.
func (r *ReviewRepository) Update(ctx context.Context, rv *review.Review) error {
	tag, err := r.pool.Exec(ctx, updateReviewSQL,
		rv.ID, rv.Rating, rv.Title, rv.Comment, rv.IsApproved, rv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating review %q: %w", rv.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return review.ErrNotFound
	}
	return nil
}

// Delete removes a review by ID.
func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteReviewSQL, id)
	if err != nil {
		return fmt.Errorf("deleting review %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return review.ErrNotFound
	}
	return nil
}

// ListForProduct returns a page of the product's approved reviews, newest
// first, along with the total approved count.
func (r *ReviewRepository) ListForProduct(ctx context.Context, productID string, page, limit int) ([]review.Review, int, error) {
	offset := (page - 1) * limit
	rows, err := r.pool.Query(ctx, listReviewsForProductSQL, productID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing reviews for product %q: %w", productID, err)
	}
	reviews, err := pgx.CollectRows(rows, scanReview)
	if err != nil {
		return nil, 0, fmt.Errorf("listing reviews for product %q: %w", productID, err)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countReviewsForProductSQL, productID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting reviews for product %q: %w", productID, err)
	}
	return reviews, total, nil
}

// ListForUser returns all reviews written by the user, newest first.
func (r *ReviewRepository) ListForUser(ctx context.Context, userID string) ([]review.Review, error) {
	rows, err := r.pool.Query(ctx, listReviewsForUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing reviews for user %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanReview)
}

// FindApprovedRatings returns the rating values of the product's approved
// reviews for aggregation.
func (r *ReviewRepository) FindApprovedRatings(ctx context.Context, productID string) ([]int, error) {
	rows, err := r.pool.Query(ctx, approvedRatingsSQL, productID)
	if err != nil {
		return nil, fmt.Errorf("reading approved ratings for product %q: %w", productID, err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int])
}

func scanReview(row pgx.CollectableRow) (review.Review, error) {
	var rv review.Review
	err := row.Scan(
		&rv.ID, &rv.UserID, &rv.ProductID, &rv.Rating, &rv.Title, &rv.Comment,
		&rv.IsApproved, &rv.IsVerifiedPurchase, &rv.CreatedAt, &rv.UpdatedAt,
	)
	return rv, err
}
