package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"gorm.io/gorm"

	"github.com/lojf/xraid/internal/db"
	"github.com/lojf/xraid/internal/events"
	"github.com/lojf/xraid/internal/metrics"
	"github.com/lojf/xraid/internal/models"
	"github.com/lojf/xraid/internal/overlay"
	"github.com/lojf/xraid/internal/share"
)

// ExportDeps wires the export endpoint.
type ExportDeps struct {
	Exporter *overlay.Exporter
	Stickers StickerSource
	Uploader *share.Uploader
	Auth     TelegramAuth
	DB       *gorm.DB // optional; share links are recorded when set
	Metrics  *metrics.Metrics
}

type exportBody struct {
	overlay.Request
	InitData string `json:"init_data,omitempty"`
	PostURL  string `json:"post_url,omitempty"`
}

type shareResult struct {
	Link     string `json:"link"`
	Query    string `json:"query"`
	QR       string `json:"qr"`
	Degraded bool   `json:"degraded,omitempty"`
}

// POST /api/export?sink=download|clipboard|share
func Export(d ExportDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sinkName := r.URL.Query().Get("sink")
		switch sinkName {
		case "download", "clipboard", "share":
		case "":
			sinkName = "download"
		default:
			writeError(w, http.StatusBadRequest, ErrorText("invalid_request"))
			return
		}

		var in exportBody
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, ErrorText("invalid_request"))
			return
		}
		req := in.Request
		if req.Overlay != "" {
			st, ok := d.Stickers.Lookup(req.Overlay)
			if !ok {
				d.count(sinkName, "sticker_missing")
				writeError(w, http.StatusBadRequest, ErrorText("sticker_missing"))
				return
			}
			req.Overlay = st.URL
		}

		var err error
		switch sinkName {
		case "share":
			sink := &share.UploadSink{Uploader: d.Uploader}
			if err = d.Exporter.Export(r.Context(), req, sink); err == nil {
				d.recordShare(in, sink.Link)
				writeJSON(w, http.StatusOK, shareResult{
					Link:     sink.Link,
					Query:    share.InlineQuery(sink.Link),
					QR:       "/qr.png?u=" + url.QueryEscape(sink.Link),
					Degraded: sink.Degraded,
				})
			}
		default:
			sink := &trackingSink{next: share.WriterSink{W: w, Attachment: sinkName == "download"}}
			err = d.Exporter.Export(r.Context(), req, sink)
			if err != nil && sink.started {
				// Headers are out; the client went away mid-write.
				d.count(sinkName, "aborted")
				slog.Warn("export write aborted", "sink", sinkName, "err", err)
				return
			}
		}

		if err != nil {
			d.count(sinkName, "error")
			writeError(w, exportStatus(err), overlay.UserMessage(err))
			return
		}
		d.count(sinkName, "ok")
	}
}

func (d ExportDeps) recordShare(in exportBody, link string) {
	u, ok := d.Auth.Validate(in.InitData)
	if !ok || d.DB == nil {
		return
	}
	s := models.ShareLink{TelegramUserID: u.ID, Link: link, PostURL: in.PostURL, Sticker: in.Overlay}
	if err := db.RecordShare(d.DB, s); err != nil {
		slog.Error("record share", "user", u.ID, "err", err)
		return
	}
	if events.OnShared != nil {
		go events.OnShared(s)
	}
}

func (d ExportDeps) count(sink, outcome string) {
	if d.Metrics != nil {
		d.Metrics.Exports.WithLabelValues(sink, outcome).Inc()
	}
}

func exportStatus(err error) int {
	switch {
	case errors.Is(err, overlay.ErrNoBase), errors.Is(err, overlay.ErrNoOverlay), errors.Is(err, overlay.ErrInvalidTransform):
		return http.StatusBadRequest
	case errors.Is(err, overlay.ErrCrossOrigin), errors.Is(err, overlay.ErrDecode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, overlay.ErrUpload):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// trackingSink notes whether delivery began writing the response.
type trackingSink struct {
	next    overlay.Sink
	started bool
}

func (s *trackingSink) Deliver(ctx context.Context, a overlay.Artifact) error {
	s.started = true
	return s.next.Deliver(ctx, a)
}
