package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/lojf/xraid/internal/tgauth"
)

const initDataHeader = "X-Telegram-Init-Data"

type tgUserKey struct{}

// TelegramAuth validates Mini App init data against the bot token.
type TelegramAuth struct {
	BotToken string
	MaxAge   time.Duration
	Now      func() time.Time
}

// Validate reports the Telegram user behind raw, if it checks out.
func (a TelegramAuth) Validate(raw string) (tgauth.User, bool) {
	if a.BotToken == "" || raw == "" {
		return tgauth.User{}, false
	}
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	d, err := tgauth.Validate(raw, a.BotToken, a.MaxAge, now())
	if err != nil || d.User.ID == 0 {
		return tgauth.User{}, false
	}
	return d.User, true
}

// Require is middleware: blocks access unless the request carries valid
// init data in the X-Telegram-Init-Data header.
func (a TelegramAuth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := a.Validate(r.Header.Get(initDataHeader))
		if !ok {
			writeError(w, http.StatusUnauthorized, ErrorText("unauthorized"))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tgUserKey{}, u)))
	})
}

// TelegramUser returns the user Require stored on the request.
func TelegramUser(r *http.Request) (tgauth.User, bool) {
	u, ok := r.Context().Value(tgUserKey{}).(tgauth.User)
	return u, ok
}
