package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// UpdateHandler consumes one Telegram update; *bot.Dispatcher satisfies it.
type UpdateHandler interface {
	Handle(u *tgbotapi.Update)
}

// POST /tg/webhook?secret=...
func TelegramWebhook(secret string, d UpdateHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d == nil {
			http.NotFound(w, r)
			return
		}
		got := r.URL.Query().Get("secret")
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		defer r.Body.Close()

		var up tgbotapi.Update
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&up); err != nil {
			http.Error(w, "bad request", 400)
			return
		}
		d.Handle(&up)
		w.WriteHeader(200)
		_, _ = w.Write([]byte("ok"))
	}
}
