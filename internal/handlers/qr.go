package handlers

import (
	"net/http"
	"net/url"

	qrcode "github.com/skip2/go-qrcode"
)

const maxQRInput = 1024

// GET /qr.png?u=<link>
func QR(w http.ResponseWriter, r *http.Request) {
	link := r.URL.Query().Get("u")
	u, err := url.Parse(link)
	if link == "" || len(link) > maxQRInput || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		http.NotFound(w, r)
		return
	}

	png, err := qrcode.Encode(link, qrcode.Medium, 256)
	if err != nil {
		http.Error(w, "failed to generate qr", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
