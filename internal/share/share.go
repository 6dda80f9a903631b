// Package share holds the artifact sinks: direct download, inline image for
// the page's clipboard write, and upload to a public file host whose link
// is then shared through the Telegram inline query.
package share

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/lojf/xraid/internal/overlay"
)

const DefaultUploadURL = "https://file.io"

// InlineQueryPrefix starts the query the Mini App hands to switchInlineQuery.
const InlineQueryPrefix = "generated me this: "

// InlineQuery builds the share query for link.
func InlineQuery(link string) string { return InlineQueryPrefix + link }

// Uploader posts artifacts as multipart "file" fields and reads back the
// shareable link.
type Uploader struct {
	URL  string
	HTTP *http.Client
}

// NewUploader returns an uploader for endpoint (DefaultUploadURL when empty).
func NewUploader(endpoint string) *Uploader {
	if endpoint == "" {
		endpoint = DefaultUploadURL
	}
	return &Uploader{URL: endpoint, HTTP: &http.Client{Timeout: 30 * time.Second}}
}

type uploadResponse struct {
	Success *bool  `json:"success"`
	Link    string `json:"link"`
	Message string `json:"message"`
}

// Upload sends a and returns its public link. Every failure wraps
// overlay.ErrUpload.
func (u *Uploader) Upload(ctx context.Context, a overlay.Artifact) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	name := a.Filename
	if name == "" {
		name = "image.png"
	}
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("%w: %v", overlay.ErrUpload, err)
	}
	if _, err := fw.Write(a.PNG); err != nil {
		return "", fmt.Errorf("%w: %v", overlay.ErrUpload, err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", overlay.ErrUpload, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.URL, &body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", overlay.ErrUpload, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Content-Length", strconv.Itoa(body.Len()))

	resp, err := u.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", overlay.ErrUpload, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", overlay.ErrUpload, err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: %s", overlay.ErrUpload, resp.Status)
	}

	var out uploadResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", overlay.ErrUpload, err)
	}
	if (out.Success != nil && !*out.Success) || out.Link == "" {
		return "", fmt.Errorf("%w: host refused upload: %s", overlay.ErrUpload, out.Message)
	}
	return out.Link, nil
}

// UploadSink uploads the artifact and keeps the resulting link.
type UploadSink struct {
	Uploader *Uploader
	Link     string
	Degraded bool
}

func (s *UploadSink) Deliver(ctx context.Context, a overlay.Artifact) error {
	link, err := s.Uploader.Upload(ctx, a)
	if err != nil {
		return err
	}
	s.Link, s.Degraded = link, a.Degraded
	return nil
}

// WriterSink streams the PNG to an HTTP response. With Attachment set the
// browser downloads it; otherwise it is served inline for the page to put
// on the clipboard.
type WriterSink struct {
	W          http.ResponseWriter
	Attachment bool
}

func (s WriterSink) Deliver(_ context.Context, a overlay.Artifact) error {
	h := s.W.Header()
	h.Set("Content-Type", "image/png")
	h.Set("Content-Length", strconv.Itoa(len(a.PNG)))
	h.Set("Cache-Control", "no-store")
	if a.Degraded {
		h.Set("X-Artifact-Degraded", "1")
	}
	disp := "inline"
	if s.Attachment {
		disp = "attachment"
	}
	h.Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disp, a.Filename))
	s.W.WriteHeader(http.StatusOK)
	_, err := s.W.Write(a.PNG)
	return err
}
