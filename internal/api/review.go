package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/merchkit/storefront/internal/domain/review"
)

type createReviewRequest struct {
	Product string `json:"product"`
	Rating  int    `json:"rating"`
	Title   string `json:"title"`
	Comment string `json:"comment"`
}

func (h *Handler) createReview(w http.ResponseWriter, r *http.Request) {
	var req createReviewRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rv, err := h.reviews.Create(r.Context(), identity(r), review.CreateRequest{
		ProductID: req.Product,
		Rating:    req.Rating,
		Title:     req.Title,
		Comment:   req.Comment,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, rv)
}

func (h *Handler) listProductReviews(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 10)

	reviews, total, err := h.reviews.ListForProduct(r.Context(), chi.URLParam(r, "productId"), page, limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writePage(w, r, reviews, len(reviews), total, page, limit)
}

func (h *Handler) listMyReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.reviews.ListForUser(r.Context(), identity(r).UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, reviews)
}

type updateReviewRequest struct {
	Rating  int    `json:"rating"`
	Title   string `json:"title"`
	Comment string `json:"comment"`
}

func (h *Handler) updateReview(w http.ResponseWriter, r *http.Request) {
	var req updateReviewRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rv, err := h.reviews.Update(r.Context(), identity(r), chi.URLParam(r, "id"), review.UpdateRequest{
		Rating:  req.Rating,
		Title:   req.Title,
		Comment: req.Comment,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, rv)
}

func (h *Handler) deleteReview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.reviews.Delete(r.Context(), identity(r), id); err != nil {
		respondError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, map[string]string{"id": id})
}

type setApprovalRequest struct {
	IsApproved bool `json:"isApproved"`
}

func (h *Handler) setReviewApproval(w http.ResponseWriter, r *http.Request) {
	var req setApprovalRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rv, err := h.reviews.SetApproval(r.Context(), identity(r), chi.URLParam(r, "id"), req.IsApproved)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, rv)
}
