package overlay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"strings"
	"time"
)

// CrossOriginPolicy decides what happens when an image host does not allow
// its pixels to be exported.
type CrossOriginPolicy string

const (
	// PolicyStrict fails the export with ErrCrossOrigin.
	PolicyStrict CrossOriginPolicy = "strict"
	// PolicyLenient drops a non-exportable sticker layer and marks the
	// artifact as degraded. A non-exportable base still fails.
	PolicyLenient CrossOriginPolicy = "lenient"
)

// ParsePolicy maps a config string to a policy; anything unknown is strict.
func ParsePolicy(s string) CrossOriginPolicy {
	if strings.EqualFold(strings.TrimSpace(s), string(PolicyLenient)) {
		return PolicyLenient
	}
	return PolicyStrict
}

// Request is everything needed to render one artifact.
type Request struct {
	Base      string     `json:"base_url"`
	Overlay   string     `json:"sticker"`
	Layout    Layout     `json:"layout"`
	Transform *Transform `json:"transform"`
}

// Artifact is an encoded composite. It is handed to a Sink and then dropped.
type Artifact struct {
	PNG      []byte
	Width    int
	Height   int
	Filename string
	// Degraded is set when a layer was skipped under PolicyLenient.
	Degraded bool
}

// Sink receives a finished artifact: clipboard, download, upload and so on.
type Sink interface {
	Deliver(ctx context.Context, a Artifact) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, a Artifact) error

func (f SinkFunc) Deliver(ctx context.Context, a Artifact) error { return f(ctx, a) }

// Exporter renders requests and passes the result to a sink.
type Exporter struct {
	Loader Loader
	Policy CrossOriginPolicy
	Logger *slog.Logger
	// Now names the output file; tests pin it.
	Now func() time.Time
}

// Export loads both images, composes them and delivers the PNG. Nothing is
// delivered when any step fails.
func (e *Exporter) Export(ctx context.Context, req Request, sink Sink) error {
	if req.Base == "" {
		return ErrNoBase
	}
	if req.Overlay == "" || req.Transform == nil {
		return ErrNoOverlay
	}
	if !req.Transform.Valid() {
		return fmt.Errorf("%w: %+v", ErrInvalidTransform, *req.Transform)
	}
	if err := req.Layout.check(); err != nil {
		return err
	}

	base, err := e.Loader.Load(ctx, req.Base)
	if err != nil {
		return err
	}

	degraded := false
	sticker, err := e.Loader.Load(ctx, req.Overlay)
	switch {
	case err == nil:
	case errors.Is(err, ErrCrossOrigin) && e.Policy == PolicyLenient:
		e.logger().Warn("dropping non-exportable sticker layer", "ref", req.Overlay, "err", err)
		sticker, degraded = nil, true
	default:
		return err
	}

	img, err := Compose(base, sticker, req.Layout, req.Transform)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("%w: encode png: %v", ErrGenerate, err)
	}

	a := Artifact{
		PNG:      buf.Bytes(),
		Width:    img.Bounds().Dx(),
		Height:   img.Bounds().Dy(),
		Filename: e.filename(),
		Degraded: degraded,
	}
	if err := sink.Deliver(ctx, a); err != nil {
		return err
	}
	e.logger().Info("artifact delivered", "bytes", len(a.PNG), "w", a.Width, "h", a.Height, "degraded", degraded)
	return nil
}

func (e *Exporter) filename() string {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	return "xraid-" + now().UTC().Format("20060102-150405") + ".png"
}

func (e *Exporter) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
