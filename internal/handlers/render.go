package handlers

import (
	"encoding/json"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
)

// render clones the shared layouts, adds one page from pages and executes it.
func render(w http.ResponseWriter, t *template.Template, pages fs.FS, page string, data map[string]any) {
	view, err := t.Clone()
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	if _, err := view.ParseFS(pages, "pages/"+page); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := view.ExecuteTemplate(w, page, data); err != nil {
		slog.Error("render page", "page", page, "err", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError sends {"error": text}. text is always safe to show to users.
func writeError(w http.ResponseWriter, status int, text string) {
	writeJSON(w, status, map[string]string{"error": text})
}

func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}
