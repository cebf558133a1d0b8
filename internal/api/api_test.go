package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/merchkit/storefront/internal/auth"
	"github.com/merchkit/storefront/internal/domain/coupon"
	"github.com/merchkit/storefront/internal/domain/order"
	"github.com/merchkit/storefront/internal/domain/product"
	"github.com/merchkit/storefront/internal/domain/rating"
	"github.com/merchkit/storefront/internal/domain/report"
	"github.com/merchkit/storefront/internal/domain/review"
)

const testSecret = "test-secret"

type fakeProducts struct {
	items map[string]product.Product
}

func (f *fakeProducts) List(context.Context) ([]product.Product, error) {
	out := make([]product.Product, 0, len(f.items))
	for _, p := range f.items {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := f.items[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (f *fakeProducts) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := f.items[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeProducts) UpdateRatings(_ context.Context, id string, r product.Ratings) error {
	p, ok := f.items[id]
	if !ok {
		return product.ErrNotFound
	}
	p.Ratings = r
	f.items[id] = p
	return nil
}

type fakeCoupons struct {
	items map[string]*coupon.Coupon
}

func (f *fakeCoupons) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	c, ok := f.items[code]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCoupons) Redeem(_ context.Context, code string) error {
	c, ok := f.items[code]
	if !ok {
		return coupon.ErrNotFound
	}
	if err := coupon.Usable(c, time.Now()); err != nil {
		return err
	}
	c.UsedCount++
	return nil
}

func (f *fakeCoupons) Create(_ context.Context, c *coupon.Coupon) error {
	if _, ok := f.items[c.Code]; ok {
		return coupon.ErrDuplicateCode
	}
	cp := *c
	f.items[c.Code] = &cp
	return nil
}

func (f *fakeCoupons) Update(_ context.Context, c *coupon.Coupon) error {
	if _, ok := f.items[c.Code]; !ok {
		return coupon.ErrNotFound
	}
	cp := *c
	f.items[c.Code] = &cp
	return nil
}

func (f *fakeCoupons) Delete(_ context.Context, code string) error {
	if _, ok := f.items[code]; !ok {
		return coupon.ErrNotFound
	}
	delete(f.items, code)
	return nil
}

func (f *fakeCoupons) List(context.Context) ([]coupon.Coupon, error) {
	out := make([]coupon.Coupon, 0, len(f.items))
	for _, c := range f.items {
		out = append(out, *c)
	}
	return out, nil
}

type fakeOrders struct {
	coupons   *fakeCoupons
	items     map[string]*order.Order
	delivered map[string]bool // userID+productID
}

func (f *fakeOrders) Create(_ context.Context, o *order.Order) error {
	if o.CouponCode != "" {
		if err := f.coupons.Redeem(context.Background(), o.CouponCode); err != nil {
			return err
		}
	}
	cp := *o
	f.items[o.ID] = &cp
	return nil
}

func (f *fakeOrders) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := f.items[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) ListForUser(_ context.Context, userID string) ([]order.Order, error) {
	var out []order.Order
	for _, o := range f.items {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrders) List(_ context.Context, status order.Status, _, _ int) ([]order.Order, int, error) {
	var out []order.Order
	for _, o := range f.items {
		if status == "" || o.Status == status {
			out = append(out, *o)
		}
	}
	return out, len(out), nil
}

func (f *fakeOrders) UpdateStatus(_ context.Context, id string, from, to order.Status, deliveredAt *time.Time) (bool, error) {
	o, ok := f.items[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	if deliveredAt != nil {
		o.IsDelivered = true
		o.DeliveredAt = deliveredAt
	}
	return true, nil
}

func (f *fakeOrders) SetPaid(_ context.Context, id string, paidAt time.Time) (bool, error) {
	o, ok := f.items[id]
	if !ok || o.IsPaid || o.Status == order.StatusCancelled {
		return false, nil
	}
	o.IsPaid = true
	o.PaidAt = &paidAt
	return true, nil
}

func (f *fakeOrders) HasDeliveredProduct(_ context.Context, userID, productID string) (bool, error) {
	return f.delivered[userID+"/"+productID], nil
}

type fakeReviews struct {
	items map[string]*review.Review
}

func (f *fakeReviews) Create(_ context.Context, r *review.Review) error {
	for _, existing := range f.items {
		if existing.UserID == r.UserID && existing.ProductID == r.ProductID {
			return review.ErrDuplicate
		}
	}
	cp := *r
	f.items[r.ID] = &cp
	return nil
}

func (f *fakeReviews) GetByID(_ context.Context, id string) (*review.Review, error) {
	r, ok := f.items[id]
	if !ok {
		return nil, review.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeReviews) Update(_ context.Context, r *review.Review) error {
	if _, ok := f.items[r.ID]; !ok {
		return review.ErrNotFound
	}
	cp := *r
	f.items[r.ID] = &cp
	return nil
}

func (f *fakeReviews) Delete(_ context.Context, id string) error {
	delete(f.items, id)
	return nil
}

func (f *fakeReviews) ListForProduct(_ context.Context, productID string, _, _ int) ([]review.Review, int, error) {
	var out []review.Review
	for _, r := range f.items {
		if r.ProductID == productID && r.IsApproved {
			out = append(out, *r)
		}
	}
	return out, len(out), nil
}

func (f *fakeReviews) ListForUser(_ context.Context, userID string) ([]review.Review, error) {
	var out []review.Review
	for _, r := range f.items {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeReviews) FindApprovedRatings(_ context.Context, productID string) ([]int, error) {
	var out []int
	for _, r := range f.items {
		if r.ProductID == productID && r.IsApproved {
			out = append(out, r.Rating)
		}
	}
	return out, nil
}

type fakeAnalytics struct{}

func (fakeAnalytics) Dashboard(context.Context) (*report.Dashboard, error) {
	return &report.Dashboard{Orders: map[string]int{"pending": 2}}, nil
}

func (fakeAnalytics) SalesReport(context.Context, time.Time, time.Time) ([]report.DailySales, error) {
	return []report.DailySales{}, nil
}

type fixtures struct {
	router   chi.Router
	products *fakeProducts
	coupons  *fakeCoupons
	orders   *fakeOrders
	reviews  *fakeReviews
}

func newFixtures(t *testing.T) *fixtures {
	t.Helper()

	products := &fakeProducts{items: map[string]product.Product{
		"p1": {ID: "p1", Name: "Mug", Price: decimal.NewFromInt(20), Stock: 10, IsActive: true},
		"p2": {ID: "p2", Name: "Tote", Price: decimal.NewFromInt(50), Stock: 3, IsActive: true},
	}}

	limit := 2
	coupons := &fakeCoupons{items: map[string]*coupon.Coupon{
		"SAVE10": {
			Code:          "SAVE10",
			DiscountType:  coupon.DiscountPercentage,
			DiscountValue: decimal.NewFromInt(10),
			UsageLimit:    &limit,
			ValidFrom:     time.Now().Add(-time.Hour),
			ValidUntil:    time.Now().Add(time.Hour),
			IsActive:      true,
		},
	}}

	orders := &fakeOrders{
		coupons:   coupons,
		items:     make(map[string]*order.Order),
		delivered: make(map[string]bool),
	}
	reviews := &fakeReviews{items: make(map[string]*review.Review)}

	engine := coupon.NewEngine(coupons)
	orderSvc := order.NewService(products, engine, orders)
	aggregator := rating.NewAggregator(reviews, products)
	reviewSvc := review.NewService(reviews, products, orders, aggregator)

	h := NewHandler(products, engine, coupons, orderSvc, reviewSvc, fakeAnalytics{})
	router := h.Routes(auth.NewVerifier([]byte(testSecret)), zap.NewNop())

	return &fixtures{
		router:   router,
		products: products,
		coupons:  coupons,
		orders:   orders,
		reviews:  reviews,
	}
}

func mintToken(t *testing.T, userID, role string) string {
	t.Helper()
	claims := auth.Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Count   int             `json:"count"`
	Total   int             `json:"total"`
	Data    json.RawMessage `json:"data"`
}

func doRequest(t *testing.T, router chi.Router, method, path, token string, body any) (int, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	return w.Code, env
}

func TestListProducts(t *testing.T) {
	f := newFixtures(t)

	code, env := doRequest(t, f.router, http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	var products []product.Product
	require.NoError(t, json.Unmarshal(env.Data, &products))
	assert.Len(t, products, 2)
}

func TestGetProduct_NotFound(t *testing.T) {
	f := newFixtures(t)

	code, env := doRequest(t, f.router, http.MethodGet, "/api/products/none", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, env.Success)
}

func TestOrders_RequireAuth(t *testing.T) {
	f := newFixtures(t)

	code, env := doRequest(t, f.router, http.MethodGet, "/api/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, env.Success)

	code, _ = doRequest(t, f.router, http.MethodGet, "/api/orders", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestCreateOrder_WithCoupon(t *testing.T) {
	f := newFixtures(t)
	token := mintToken(t, "u1", "")

	body := map[string]any{
		"orderItems": []map[string]any{
			{"product": "p1", "quantity": 2},
			{"product": "p2", "quantity": 1},
		},
		"couponCode": "save10",
	}
	code, env := doRequest(t, f.router, http.MethodPost, "/api/orders", token, body)
	require.Equal(t, http.StatusCreated, code)
	require.True(t, env.Success)

	var o order.Order
	require.NoError(t, json.Unmarshal(env.Data, &o))
	assert.Equal(t, "u1", o.UserID)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, "SAVE10", o.CouponCode)
	// 2x20 + 50 = 90, minus 10% = 81.
	assert.True(t, o.TotalPrice.Equal(decimal.NewFromInt(81)), "total %s", o.TotalPrice)
	assert.Equal(t, 1, f.coupons.items["SAVE10"].UsedCount)
}

func TestCreateOrder_BadCouponRejectsOrder(t *testing.T) {
	f := newFixtures(t)
	token := mintToken(t, "u1", "")

	body := map[string]any{
		"orderItems": []map[string]any{{"product": "p1", "quantity": 1}},
		"couponCode": "NOPE",
	}
	code, env := doRequest(t, f.router, http.MethodPost, "/api/orders", token, body)
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, env.Success)
	assert.Empty(t, f.orders.items)
}

func TestValidateCoupon(t *testing.T) {
	f := newFixtures(t)
	token := mintToken(t, "u1", "")

	body := map[string]any{"code": "SAVE10", "cartTotal": "200"}
	code, env := doRequest(t, f.router, http.MethodPost, "/api/coupons/validate", token, body)
	require.Equal(t, http.StatusOK, code)

	var v coupon.Validation
	require.NoError(t, json.Unmarshal(env.Data, &v))
	assert.True(t, v.DiscountAmount.Equal(decimal.NewFromInt(20)))
	assert.True(t, v.FinalAmount.Equal(decimal.NewFromInt(180)))
	// Validation must not consume the coupon.
	assert.Equal(t, 0, f.coupons.items["SAVE10"].UsedCount)
}

func TestGetOrder_OtherUserForbidden(t *testing.T) {
	f := newFixtures(t)

	_, env := doRequest(t, f.router, http.MethodPost, "/api/orders", mintToken(t, "u1", ""), map[string]any{
		"orderItems": []map[string]any{{"product": "p1", "quantity": 1}},
	})
	var o order.Order
	require.NoError(t, json.Unmarshal(env.Data, &o))

	code, _ := doRequest(t, f.router, http.MethodGet, "/api/orders/"+o.ID, mintToken(t, "u2", ""), nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestAdminRoutes_RequireAdminRole(t *testing.T) {
	f := newFixtures(t)

	code, _ := doRequest(t, f.router, http.MethodGet, "/api/admin/orders", mintToken(t, "u1", ""), nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = doRequest(t, f.router, http.MethodGet, "/api/admin/orders", mintToken(t, "a1", auth.RoleAdmin), nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestAnalyticsDashboard(t *testing.T) {
	f := newFixtures(t)

	code, env := doRequest(t, f.router, http.MethodGet, "/api/admin/analytics", mintToken(t, "a1", auth.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	var d report.Dashboard
	require.NoError(t, json.Unmarshal(env.Data, &d))
	assert.Equal(t, 2, d.Orders["pending"])
}

func TestUpdateOrderStatus(t *testing.T) {
	f := newFixtures(t)
	admin := mintToken(t, "a1", auth.RoleAdmin)

	_, env := doRequest(t, f.router, http.MethodPost, "/api/orders", mintToken(t, "u1", ""), map[string]any{
		"orderItems": []map[string]any{{"product": "p1", "quantity": 1}},
	})
	var o order.Order
	require.NoError(t, json.Unmarshal(env.Data, &o))

	code, env := doRequest(t, f.router, http.MethodPut, "/api/admin/orders/"+o.ID, admin,
		map[string]any{"orderStatus": "processing"})
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &o))
	assert.Equal(t, order.StatusProcessing, o.Status)

	// Skipping shipped is not a legal edge.
	code, _ = doRequest(t, f.router, http.MethodPut, "/api/admin/orders/"+o.ID, admin,
		map[string]any{"orderStatus": "delivered"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCreateReview_UpdatesProductRatings(t *testing.T) {
	f := newFixtures(t)
	f.orders.delivered["u1/p1"] = true

	code, env := doRequest(t, f.router, http.MethodPost, "/api/reviews", mintToken(t, "u1", ""),
		map[string]any{"product": "p1", "rating": 4, "title": "Solid", "comment": "Good mug"})
	require.Equal(t, http.StatusCreated, code)

	var rv review.Review
	require.NoError(t, json.Unmarshal(env.Data, &rv))
	assert.True(t, rv.IsVerifiedPurchase)

	assert.InDelta(t, 4.0, f.products.items["p1"].Ratings.Average, 1e-9)
	assert.Equal(t, 1, f.products.items["p1"].Ratings.Count)

	// Same user reviewing the same product again is rejected.
	code, _ = doRequest(t, f.router, http.MethodPost, "/api/reviews", mintToken(t, "u1", ""),
		map[string]any{"product": "p1", "rating": 5, "title": "", "comment": ""})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSetReviewApproval_RecomputesRatings(t *testing.T) {
	f := newFixtures(t)
	admin := mintToken(t, "a1", auth.RoleAdmin)

	_, env := doRequest(t, f.router, http.MethodPost, "/api/reviews", mintToken(t, "u1", ""),
		map[string]any{"product": "p1", "rating": 2, "title": "", "comment": ""})
	var rv review.Review
	require.NoError(t, json.Unmarshal(env.Data, &rv))
	require.Equal(t, 1, f.products.items["p1"].Ratings.Count)

	code, _ := doRequest(t, f.router, http.MethodPut, "/api/reviews/"+rv.ID+"/approval", admin,
		map[string]any{"isApproved": false})
	require.Equal(t, http.StatusOK, code)

	assert.Equal(t, 0, f.products.items["p1"].Ratings.Count)
	assert.Zero(t, f.products.items["p1"].Ratings.Average)
}

func TestListProductReviews_Paginated(t *testing.T) {
	f := newFixtures(t)

	_, _ = doRequest(t, f.router, http.MethodPost, "/api/reviews", mintToken(t, "u1", ""),
		map[string]any{"product": "p1", "rating": 5, "title": "", "comment": ""})
	_, _ = doRequest(t, f.router, http.MethodPost, "/api/reviews", mintToken(t, "u2", ""),
		map[string]any{"product": "p1", "rating": 3, "title": "", "comment": ""})

	code, env := doRequest(t, f.router, http.MethodGet, "/api/reviews/product/p1", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, env.Count)
	assert.Equal(t, 2, env.Total)
}

func TestCouponAdmin_CRUD(t *testing.T) {
	f := newFixtures(t)
	admin := mintToken(t, "a1", auth.RoleAdmin)

	body := map[string]any{
		"code":          "flat5",
		"discountType":  "fixed",
		"discountValue": "5",
		"validFrom":     time.Now().Add(-time.Hour).Format(time.RFC3339),
		"validUntil":    time.Now().Add(time.Hour).Format(time.RFC3339),
		"isActive":      true,
	}
	code, env := doRequest(t, f.router, http.MethodPost, "/api/coupons", admin, body)
	require.Equal(t, http.StatusCreated, code, "body: %s", env.Message)

	var c coupon.Coupon
	require.NoError(t, json.Unmarshal(env.Data, &c))
	assert.Equal(t, "FLAT5", c.Code)

	// Duplicate code is rejected.
	code, _ = doRequest(t, f.router, http.MethodPost, "/api/coupons", admin, body)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = doRequest(t, f.router, http.MethodDelete, "/api/coupons/FLAT5", admin, nil)
	assert.Equal(t, http.StatusOK, code)
	_, ok := f.coupons.items["FLAT5"]
	assert.False(t, ok)
}
