package handlers

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"github.com/lojf/xraid/internal/post"
	"github.com/lojf/xraid/internal/stickers"
)

// PostFetcher loads post content; *post.Client satisfies it.
type PostFetcher interface {
	Fetch(ctx context.Context, raw string) (post.Content, error)
}

// StickerSource is the catalog as the handlers see it.
type StickerSource interface {
	List() []stickers.Sticker
	Lookup(ref string) (stickers.Sticker, bool)
	Open(name string) (fs.File, error)
}

// Variant is one entry of the index page.
type Variant struct {
	Title string
	Path  string
	Blurb string
}

var variants = []Variant{
	{Title: "X RAID", Path: "/x-raid", Blurb: "Drop a sticker on any X post image and raid with it."},
}

// GET /
func Home(t *template.Template, pages fs.FS) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render(w, t, pages, "home.tmpl", map[string]any{
			"Title":    "Meme Generation Variants",
			"Variants": variants,
		})
	}
}

// GET /x-raid[?url=...][&sticker=...]
//
// The page works without scripts: a submitted URL is fetched here and the
// post rendered server-side. With scripts the live channel takes over.
func XRaid(t *template.Template, pages fs.FS, cat StickerSource, posts PostFetcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		picker := stickers.Picker{Stickers: cat.List()}
		data := map[string]any{
			"Title":    "X RAID",
			"Stickers": picker.Grid(4),
			"Selected": "",
		}
		// ?sticker= preselects a sticker, e.g. from a shared link.
		if id := r.URL.Query().Get("sticker"); id != "" {
			picker.Select(id, func(u string) {
				data["Selected"] = id
				data["SelectedURL"] = u
			})
		}
		raw := strings.TrimSpace(r.URL.Query().Get("url"))
		if raw != "" {
			data["URL"] = raw
			c, _ := posts.Fetch(r.Context(), raw)
			data["Post"] = c
		}
		data["Flash"] = MakeFlash(r, "", "")
		data["Messages"] = Messages()
		render(w, t, pages, "xraid.tmpl", data)
	}
}
