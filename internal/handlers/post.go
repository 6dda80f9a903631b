package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lojf/xraid/internal/metrics"
	"github.com/lojf/xraid/internal/post"
)

// POST /api/post {"url": "..."}
//
// The response always carries displayable content. Failures put the
// fallback text in "text" and are only distinguished by the status code.
func PostFetch(posts PostFetcher, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			URL string `json:"url"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, ErrorText("invalid_request"))
			return
		}

		c, err := posts.Fetch(r.Context(), in.URL)
		status, outcome := http.StatusOK, "ok"
		switch {
		case err == nil:
		case errors.Is(err, post.ErrInvalidURL):
			status, outcome = http.StatusBadRequest, "invalid_url"
		case errors.Is(err, post.ErrNotFound):
			status, outcome = http.StatusNotFound, "not_found"
		default:
			status, outcome = http.StatusBadGateway, "error"
		}
		if m != nil {
			m.PostFetches.WithLabelValues(outcome).Inc()
		}
		writeJSON(w, status, c)
	}
}
