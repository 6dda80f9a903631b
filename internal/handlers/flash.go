// internal/handlers/flash.go
package handlers

import (
	"net/http"
	"strings"
)

type Flash struct {
	Kind string // "ok" or "error"
	Text string
}

var okText = map[string]string{
	"copied":     "Image copied to clipboard.",
	"downloaded": "Image downloaded.",
	"shared":     "Link ready. Pick a group to share it with.",
}

var errText = map[string]string{
	"invalid_request":  "Invalid request.",
	"invalid_url":      "Invalid URL",
	"not_found":        "Tweet not found",
	"fetch_failed":     "Error fetching content.",
	"no_sticker":       "Pick a sticker first.",
	"sticker_missing":  "Sticker not found.",
	"generate_failed":  "Failed to generate image. Please try again.",
	"upload_failed":    "Failed to upload image. Please try again.",
	"clipboard_denied": "Clipboard access was denied. The image opened in a new tab instead.",
	"degraded":         "The sticker could not be included in the exported image.",
	"unauthorized":     "Open X Raid from Telegram to use this.",
}

// Messages returns every flash text keyed by its code, for the page script.
func Messages() map[string]string {
	out := make(map[string]string, len(okText)+len(errText))
	for k, v := range okText {
		out[k] = v
	}
	for k, v := range errText {
		out[k] = v
	}
	return out
}

// ErrorText maps an error code to its user text, or returns key itself.
func ErrorText(key string) string {
	if t, ok := errText[key]; ok {
		return t
	}
	return key
}

// MakeFlash reads query params and/or explicit strings to build a Flash.
// Supports both new (?ok= / ?error=) and legacy (?msg= / ?err=) parameters.
func MakeFlash(r *http.Request, errStr, msgStr string) *Flash {
	q := r.URL.Query()

	errRaw := strings.TrimSpace(q.Get("error"))
	if errRaw == "" {
		errRaw = strings.TrimSpace(q.Get("err"))
	}
	okRaw := strings.TrimSpace(q.Get("ok"))
	if okRaw == "" {
		okRaw = strings.TrimSpace(q.Get("msg"))
	}

	if errRaw != "" {
		key := strings.ToLower(errRaw)
		if t, ok := errText[key]; ok {
			return &Flash{Kind: "error", Text: t}
		}
		return &Flash{Kind: "error", Text: errRaw}
	}
	if okRaw != "" {
		key := strings.ToLower(okRaw)
		if t, ok := okText[key]; ok {
			return &Flash{Kind: "ok", Text: t}
		}
		return &Flash{Kind: "ok", Text: okRaw}
	}

	// Fallback to handler-provided messages
	if errStr != "" {
		return &Flash{Kind: "error", Text: ErrorText(errStr)}
	}
	if msgStr != "" {
		return &Flash{Kind: "ok", Text: msgStr}
	}
	return nil
}
