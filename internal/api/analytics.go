package api

import (
	"net/http"
	"time"
)

func (h *Handler) getAnalytics(w http.ResponseWriter, r *http.Request) {
	d, err := h.analytics.Dashboard(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, d)
}

func (h *Handler) getSalesReport(w http.ResponseWriter, r *http.Request) {
	// Default window is the trailing 30 days.
	to := time.Now()
	from := to.AddDate(0, 0, -30)

	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
			return
		}
		from = t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
			return
		}
		// Include the whole end day.
		to = t.AddDate(0, 0, 1)
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "to must not precede from")
		return
	}

	report, err := h.analytics.SalesReport(r.Context(), from, to)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, report)
}
