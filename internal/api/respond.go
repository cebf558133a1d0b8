package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/merchkit/storefront/internal/domain/coupon"
	"github.com/merchkit/storefront/internal/domain/order"
	"github.com/merchkit/storefront/internal/domain/product"
	"github.com/merchkit/storefront/internal/domain/review"
)

// writeData writes a {success: true, data: ...} envelope.
func writeData(w http.ResponseWriter, r *http.Request, status int, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		zctx.From(r.Context()).Error("Encoding response", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(true)
	e.FieldStart("data")
	e.Raw(payload)
	e.ObjEnd()

	write(w, status, e.Bytes())
}

// writePage writes a paginated list envelope in the shape clients depend on:
// {success, count, total, page, pages, data}.
func writePage(w http.ResponseWriter, r *http.Request, v any, count, total, page, limit int) {
	payload, err := json.Marshal(v)
	if err != nil {
		zctx.From(r.Context()).Error("Encoding response", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(true)
	e.FieldStart("count")
	e.Int(count)
	e.FieldStart("total")
	e.Int(total)
	e.FieldStart("page")
	e.Int(page)
	e.FieldStart("pages")
	e.Int(pages)
	e.FieldStart("data")
	e.Raw(payload)
	e.ObjEnd()

	write(w, http.StatusOK, e.Bytes())
}

// writeError writes a {success: false, message: ...} envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(false)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()

	write(w, status, e.Bytes())
}

func write(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// respondError maps a domain error to its HTTP status and client message.
// Unknown errors become opaque 500s: storage failures are logged, never
// leaked or downgraded to a business failure.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		belowMin   *coupon.BelowMinimumError
		invalidQty *order.InvalidQuantityError
		outOfStock *order.OutOfStockError
	)

	switch {
	case errors.Is(err, coupon.ErrNotFound):
		writeError(w, http.StatusNotFound, "invalid coupon code")
	case errors.Is(err, coupon.ErrInvalid), errors.Is(err, coupon.ErrExpired):
		writeError(w, http.StatusBadRequest, "coupon is not valid or has expired")
	case errors.Is(err, coupon.ErrExhausted):
		writeError(w, http.StatusConflict, "coupon usage limit reached")
	case errors.As(err, &belowMin):
		writeError(w, http.StatusBadRequest, belowMin.Error())
	case errors.Is(err, coupon.ErrDuplicateCode):
		writeError(w, http.StatusBadRequest, "coupon code already exists")
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, order.ErrInvalidTransition):
		writeError(w, http.StatusBadRequest, "invalid order status transition")
	case errors.Is(err, order.ErrAlreadyCancelled):
		writeError(w, http.StatusBadRequest, "order is cancelled")
	case errors.Is(err, order.ErrForbidden), errors.Is(err, review.ErrForbidden):
		writeError(w, http.StatusForbidden, "not authorized")
	case errors.Is(err, order.ErrEmptyItems):
		writeError(w, http.StatusBadRequest, "order items required")
	case errors.As(err, &invalidQty):
		writeError(w, http.StatusBadRequest, invalidQty.Error())
	case errors.As(err, &outOfStock):
		writeError(w, http.StatusBadRequest, outOfStock.Error())
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, review.ErrNotFound):
		writeError(w, http.StatusNotFound, "review not found")
	case errors.Is(err, review.ErrDuplicate):
		writeError(w, http.StatusBadRequest, "you have already reviewed this product")
	case errors.Is(err, review.ErrInvalidRating):
		writeError(w, http.StatusBadRequest, "rating must be between 1 and 5")
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeBody decodes a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
