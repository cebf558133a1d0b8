package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Stock       int             `json:"stock"`
	IsActive    bool            `json:"isActive"`
	Ratings     Ratings         `json:"ratings"`
}

// Ratings is derived state owned by the rating aggregator. Average and Count
// are always a pure function of the product's current approved-review set
// and are never edited directly.
type Ratings struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}

// RatingsWriter overwrites a product's derived ratings pair.
type RatingsWriter interface {
	UpdateRatings(ctx context.Context, productID string, r Ratings) error
}
