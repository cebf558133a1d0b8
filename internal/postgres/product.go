package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/merchkit/storefront/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, name, description, price, category, stock, is_active, rating_average, rating_count
		FROM products ORDER BY id`

	getProductByIDSQL = `SELECT id, name, description, price, category, stock, is_active, rating_average, rating_count
		FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT id, name, description, price, category, stock, is_active, rating_average, rating_count
		FROM products WHERE id = ANY($1)`

	updateProductRatingsSQL = `UPDATE products SET rating_average = $2, rating_count = $3 WHERE id = $1`
)

var (
	_ product.Repository    = (*ProductRepository)(nil)
	_ product.RatingsWriter = (*ProductRepository)(nil)
)

// ProductRepository implements the catalog read operations and the derived
// ratings writer backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products from the catalog ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// UpdateRatings overwrites the product's derived ratings pair.
func (r *ProductRepository) UpdateRatings(ctx context.Context, productID string, ratings product.Ratings) error {
	tag, err := r.pool.Exec(ctx, updateProductRatingsSQL, productID, ratings.Average, ratings.Count)
	if err != nil {
		return fmt.Errorf("updating ratings for product %q: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Category,
		&p.Stock, &p.IsActive, &p.Ratings.Average, &p.Ratings.Count,
	)
	return p, err
}
