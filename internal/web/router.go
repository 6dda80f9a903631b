package web

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"

	"github.com/lojf/xraid/internal/handlers"
	"github.com/lojf/xraid/internal/metrics"
	"github.com/lojf/xraid/internal/overlay"
	"github.com/lojf/xraid/internal/share"
)

//go:embed templates static
var assets embed.FS

// Deps is everything the router hands to handlers. Optional parts (DB,
// Metrics, Live, Bot) drop their routes when nil.
type Deps struct {
	Stickers handlers.StickerSource
	Posts    handlers.PostFetcher
	Exporter *overlay.Exporter
	Uploader *share.Uploader
	Auth     handlers.TelegramAuth
	DB       *gorm.DB
	Metrics  *metrics.Metrics

	Live          http.Handler
	Bot           handlers.UpdateHandler
	WebhookSecret string
}

func Router(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	tmpl := mustParseTemplates()
	pages, _ := fs.Sub(assets, "templates")
	static, _ := fs.Sub(assets, "static")

	// Pages
	r.Get("/", handlers.Home(tmpl, pages))
	r.Get("/x-raid", handlers.XRaid(tmpl, pages, d.Stickers, d.Posts))
	r.Get("/healthz", handlers.Health)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	// Stickers
	r.Get("/api/stickers", handlers.StickerList(d.Stickers))
	r.Get("/stickers/{file}", handlers.StickerFile(d.Stickers))

	// Post, export and share
	r.Post("/api/post", handlers.PostFetch(d.Posts, d.Metrics))
	r.Post("/api/export", handlers.Export(handlers.ExportDeps{
		Exporter: d.Exporter,
		Stickers: d.Stickers,
		Uploader: d.Uploader,
		Auth:     d.Auth,
		DB:       d.DB,
		Metrics:  d.Metrics,
	}))
	r.Get("/qr.png", handlers.QR)
	if d.DB != nil {
		r.With(d.Auth.Require).Get("/api/shares", handlers.MyShares(d.DB))
	}

	// Editor channel
	if d.Live != nil {
		r.Handle("/live", d.Live)
	}

	// Telegram
	r.Post("/tg/webhook", handlers.TelegramWebhook(d.WebhookSecret, d.Bot))

	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}

	return r
}

func mustParseTemplates() *template.Template {
	funcs := template.FuncMap{
		"year": func() string { return time.Now().Format("2006") },
	}

	p := template.New("").Funcs(funcs)
	p = template.Must(p.ParseFS(assets, "templates/layouts/*.tmpl"))
	p = template.Must(p.ParseFS(assets, "templates/partials/*.tmpl"))
	return p
}
