package handlers

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// GET /api/stickers
func StickerList(cat StickerSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, cat.List())
	}
}

// GET /stickers/{file}
func StickerFile(cat StickerSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "file")
		f, err := cat.Open(name)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer f.Close()

		modTime := time.Time{}
		if st, err := f.Stat(); err == nil {
			modTime = st.ModTime()
		}
		ext := strings.ToLower(filepath.Ext(name))
		ctype := mime.TypeByExtension(ext)
		switch ext {
		case ".svg":
			ctype = "image/svg+xml"
		case ".webp":
			ctype = "image/webp"
		}
		if ctype != "" {
			w.Header().Set("Content-Type", ctype)
		}
		w.Header().Set("Cache-Control", "public, max-age=3600")
		// Stickers are composited by the page too; keep them exportable.
		w.Header().Set("Access-Control-Allow-Origin", "*")

		if rs, ok := f.(io.ReadSeeker); ok {
			http.ServeContent(w, r, name, modTime, rs)
			return
		}
		_, _ = io.Copy(w, f)
	}
}
