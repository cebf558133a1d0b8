// Package rating keeps a product's derived ratings consistent with its
// approved-review set.
package rating

import (
	"context"
	"sync"

	"github.com/go-faster/errors"

	"github.com/merchkit/storefront/internal/domain/product"
)

// Source reads the rating values of all currently approved reviews for a
// product.
type Source interface {
	FindApprovedRatings(ctx context.Context, productID string) ([]int, error)
}

// Aggregator recomputes a product's ratings from scratch whenever its
// approved-review set changes. Recomputation is a full overwrite, never an
// incremental update: the result depends only on the current review set, so
// the operation is idempotent and safe to replay.
type Aggregator struct {
	reviews  Source
	products product.RatingsWriter

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewAggregator creates an Aggregator over the given review source and
// product ratings writer.
func NewAggregator(reviews Source, products product.RatingsWriter) *Aggregator {
	return &Aggregator{
		reviews:  reviews,
		products: products,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Recompute reads the full approved-review set for the product and writes the
// resulting {average, count} pair onto the product record. Concurrent
// recomputes of the same product are serialized so the last write reflects a
// set read after its triggering mutation committed.
func (a *Aggregator) Recompute(ctx context.Context, productID string) error {
	lock := a.lockFor(productID)
	lock.Lock()
	defer lock.Unlock()

	ratings, err := a.reviews.FindApprovedRatings(ctx, productID)
	if err != nil {
		return errors.Wrap(err, "read approved reviews")
	}

	r := product.Ratings{Count: len(ratings)}
	if r.Count > 0 {
		sum := 0
		for _, v := range ratings {
			sum += v
		}
		r.Average = float64(sum) / float64(r.Count)
	}

	if err := a.products.UpdateRatings(ctx, productID, r); err != nil {
		return errors.Wrap(err, "write product ratings")
	}
	return nil
}

// lockFor returns the serialization lock for a product, creating it on first
// use. Locks are never evicted, so the map grows to one entry per product
// that has ever received a review. A mutex is a few dozen bytes, so even a
// large catalog stays in the kilobyte range.
func (a *Aggregator) lockFor(productID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	lock, ok := a.locks[productID]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[productID] = lock
	}
	return lock
}
