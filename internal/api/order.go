package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/merchkit/storefront/internal/domain/order"
)

type createOrderRequest struct {
	Items []struct {
		Product  string `json:"product"`
		Quantity int    `json:"quantity"`
	} `json:"orderItems"`
	CouponCode string `json:"couponCode"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items := make([]order.ItemRequest, len(req.Items))
	for i, item := range req.Items {
		items[i] = order.ItemRequest{ProductID: item.Product, Quantity: item.Quantity}
	}

	o, err := h.orders.Create(r.Context(), identity(r), order.CreateRequest{
		Items:      items,
		CouponCode: req.CouponCode,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, o)
}

func (h *Handler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListForUser(r.Context(), identity(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, orders)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, o)
}

func (h *Handler) payOrder(w http.ResponseWriter, r *http.Request) {
	ident := identity(r)
	id := chi.URLParam(r, "id")

	// Ownership is checked through Get before the payment is recorded.
	if _, err := h.orders.Get(r.Context(), ident, id); err != nil {
		respondError(w, r, err)
		return
	}

	o, err := h.orders.MarkPaid(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, o)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Cancel(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, o)
}

func (h *Handler) listAllOrders(w http.ResponseWriter, r *http.Request) {
	var status order.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := order.ParseStatus(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown order status")
			return
		}
		status = parsed
	}
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 20)

	orders, total, err := h.orders.ListAll(r.Context(), identity(r), status, page, limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writePage(w, r, orders, len(orders), total, page, limit)
}

type updateOrderStatusRequest struct {
	Status string `json:"orderStatus"`
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateOrderStatusRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	status, err := order.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown order status")
		return
	}

	o, err := h.orders.Transition(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, o)
}

// queryInt reads a positive integer query parameter, falling back to def on
// absence or garbage.
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}
