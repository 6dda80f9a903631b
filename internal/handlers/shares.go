package handlers

import (
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/lojf/xraid/internal/db"
)

type shareView struct {
	Link      string    `json:"link"`
	PostURL   string    `json:"post_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// GET /api/shares, behind TelegramAuth.Require.
func MyShares(g *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := TelegramUser(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, ErrorText("unauthorized"))
			return
		}
		links, err := db.RecentShares(g, u.ID, 10)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Could not load your shares.")
			return
		}
		out := make([]shareView, 0, len(links))
		for _, l := range links {
			out = append(out, shareView{Link: l.Link, PostURL: l.PostURL, CreatedAt: l.CreatedAt})
		}
		writeJSON(w, http.StatusOK, out)
	}
}
