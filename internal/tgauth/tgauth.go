// Package tgauth validates the initData string a Telegram Mini App receives
// from its host client.
package tgauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissingHash = errors.New("tgauth: hash missing")
	ErrBadHash     = errors.New("tgauth: hash mismatch")
	ErrExpired     = errors.New("tgauth: init data expired")
)

// User is the "user" object Telegram embeds in initData.
type User struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// Data is validated initData.
type Data struct {
	User     User
	AuthDate time.Time
	QueryID  string
	ChatType string
}

// Validate checks initData against botToken. maxAge <= 0 disables the
// freshness check.
func Validate(initData, botToken string, maxAge time.Duration, now time.Time) (Data, error) {
	vals, err := url.ParseQuery(initData)
	if err != nil {
		return Data{}, fmt.Errorf("tgauth: parse: %w", err)
	}
	hash := vals.Get("hash")
	if hash == "" {
		return Data{}, ErrMissingHash
	}
	if !hmac.Equal([]byte(hash), []byte(Sign(vals, botToken))) {
		return Data{}, ErrBadHash
	}

	var d Data
	if ts, err := strconv.ParseInt(vals.Get("auth_date"), 10, 64); err == nil {
		d.AuthDate = time.Unix(ts, 0)
	}
	if maxAge > 0 && (d.AuthDate.IsZero() || now.Sub(d.AuthDate) > maxAge) {
		return Data{}, ErrExpired
	}
	if raw := vals.Get("user"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &d.User); err != nil {
			return Data{}, fmt.Errorf("tgauth: user: %w", err)
		}
	}
	d.QueryID = vals.Get("query_id")
	d.ChatType = vals.Get("chat_type")
	return d, nil
}

// Sign computes the hex hash Telegram would attach to vals. The "hash"
// field itself is ignored.
func Sign(vals url.Values, botToken string) string {
	keys := make([]string, 0, len(vals))
	for k := range vals {
		if k != "hash" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k + "=" + vals.Get(k)
	}

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}
