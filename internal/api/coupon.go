package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/merchkit/storefront/internal/domain/coupon"
)

type validateCouponRequest struct {
	Code      string          `json:"code"`
	CartTotal decimal.Decimal `json:"cartTotal"`
}

func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "coupon code required")
		return
	}

	v, err := h.coupons.Validate(r.Context(), req.Code, req.CartTotal)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, v)
}

func (h *Handler) listCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.couponMgr.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, coupons)
}

func (h *Handler) createCoupon(w http.ResponseWriter, r *http.Request) {
	var c coupon.Coupon
	if err := decodeBody(r, &c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if c.Code == "" {
		writeError(w, http.StatusBadRequest, "coupon code required")
		return
	}
	if c.DiscountType != coupon.DiscountPercentage && c.DiscountType != coupon.DiscountFixed {
		writeError(w, http.StatusBadRequest, "discount type must be percentage or fixed")
		return
	}

	c.Code = coupon.NormalizeCode(c.Code)
	c.UsedCount = 0
	if err := h.couponMgr.Create(r.Context(), &c); err != nil {
		respondError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, c)
}

func (h *Handler) updateCoupon(w http.ResponseWriter, r *http.Request) {
	code := coupon.NormalizeCode(chi.URLParam(r, "code"))

	existing, err := h.couponMgr.FindByCode(r.Context(), code)
	if err != nil {
		respondError(w, r, err)
		return
	}

	// Decode over the stored coupon so omitted fields keep their values.
	// The code and usage counter are not editable through this endpoint.
	updated := *existing
	if err := decodeBody(r, &updated); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	updated.Code = existing.Code
	updated.UsedCount = existing.UsedCount

	if err := h.couponMgr.Update(r.Context(), &updated); err != nil {
		respondError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, updated)
}

func (h *Handler) deleteCoupon(w http.ResponseWriter, r *http.Request) {
	code := coupon.NormalizeCode(chi.URLParam(r, "code"))
	if err := h.couponMgr.Delete(r.Context(), code); err != nil {
		respondError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, map[string]string{"code": code})
}
