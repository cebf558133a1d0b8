// Package api exposes the storefront services over HTTP. Handlers translate
// requests into operations on the domain services and shape the JSON
// responses; all business rules live below this layer.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/merchkit/storefront/internal/auth"
	"github.com/merchkit/storefront/internal/domain/coupon"
	"github.com/merchkit/storefront/internal/domain/order"
	"github.com/merchkit/storefront/internal/domain/product"
	"github.com/merchkit/storefront/internal/domain/report"
	"github.com/merchkit/storefront/internal/domain/review"
)

// Analytics runs the admin reporting queries.
type Analytics interface {
	Dashboard(ctx context.Context) (*report.Dashboard, error)
	SalesReport(ctx context.Context, from, to time.Time) ([]report.DailySales, error)
}

// Handler holds the dependencies of the HTTP layer.
type Handler struct {
	products  product.Repository
	coupons   *coupon.Engine
	couponMgr coupon.Repository
	orders    *order.Service
	reviews   *review.Service
	analytics Analytics
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	products product.Repository,
	coupons *coupon.Engine,
	couponMgr coupon.Repository,
	orders *order.Service,
	reviews *review.Service,
	analytics Analytics,
) *Handler {
	return &Handler{
		products:  products,
		coupons:   coupons,
		couponMgr: couponMgr,
		orders:    orders,
		reviews:   reviews,
		analytics: analytics,
	}
}

// Routes builds the API router. Every route below /api except the public
// product and review reads requires an authenticated identity.
func (h *Handler) Routes(verifier *auth.Verifier, lg *zap.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(lg))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		// Public catalog and review reads.
		r.Get("/products", h.listProducts)
		r.Get("/products/{id}", h.getProduct)
		r.Get("/reviews/product/{productId}", h.listProductReviews)

		// Authenticated routes.
		r.Group(func(r chi.Router) {
			r.Use(Authenticator(verifier))

			r.Post("/orders", h.createOrder)
			r.Get("/orders", h.listMyOrders)
			r.Get("/orders/{id}", h.getOrder)
			r.Put("/orders/{id}/pay", h.payOrder)
			r.Put("/orders/{id}/cancel", h.cancelOrder)

			r.Post("/coupons/validate", h.validateCoupon)

			r.Post("/reviews", h.createReview)
			r.Get("/reviews/my-reviews", h.listMyReviews)
			r.Put("/reviews/{id}", h.updateReview)
			r.Delete("/reviews/{id}", h.deleteReview)
		})

		// Administrative routes.
		r.Group(func(r chi.Router) {
			r.Use(Authenticator(verifier), RequireAdmin)

			r.Get("/coupons", h.listCoupons)
			r.Post("/coupons", h.createCoupon)
			r.Put("/coupons/{code}", h.updateCoupon)
			r.Delete("/coupons/{code}", h.deleteCoupon)

			r.Put("/reviews/{id}/approval", h.setReviewApproval)

			r.Get("/admin/orders", h.listAllOrders)
			r.Put("/admin/orders/{id}", h.updateOrderStatus)
			r.Get("/admin/analytics", h.getAnalytics)
			r.Get("/admin/sales-report", h.getSalesReport)
		})
	})

	return r
}

// identity pulls the authenticated identity set by the Authenticator
// middleware. Routes behind it always carry one.
func identity(r *http.Request) auth.Identity {
	id, _ := auth.IdentityFromContext(r.Context())
	return id
}
