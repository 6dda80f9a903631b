package overlay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"
)

type mapLoader map[string]struct {
	img image.Image
	err error
}

func (m mapLoader) Load(_ context.Context, ref string) (image.Image, error) {
	e, ok := m[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDecode, ref)
	}
	return e.img, e.err
}

type captureSink struct {
	got []Artifact
	err error
}

func (s *captureSink) Deliver(_ context.Context, a Artifact) error {
	if s.err != nil {
		return s.err
	}
	s.got = append(s.got, a)
	return nil
}

func quietExporter(l Loader, p CrossOriginPolicy) *Exporter {
	return &Exporter{
		Loader: l,
		Policy: p,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	}
}

func goodRequest() Request {
	return Request{
		Base:      "base",
		Overlay:   "sticker",
		Layout:    Layout{Width: 50, Height: 40},
		Transform: &Transform{X: 5, Y: 5, Width: 10, Height: 10, Rotation: 30},
	}
}

func TestExportDeliversPNG(t *testing.T) {
	l := mapLoader{
		"base":    {img: solid(100, 80, red)},
		"sticker": {img: solid(5, 5, blue)},
	}
	sink := &captureSink{}
	if err := quietExporter(l, PolicyStrict).Export(context.Background(), goodRequest(), sink); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(sink.got) != 1 {
		t.Fatalf("delivered %d artifacts, want 1", len(sink.got))
	}
	a := sink.got[0]
	if a.Width != 50 || a.Height != 40 {
		t.Errorf("size = %dx%d, want 50x40", a.Width, a.Height)
	}
	if a.Filename != "xraid-20260102-030405.png" {
		t.Errorf("filename = %q", a.Filename)
	}
	if a.Degraded {
		t.Error("artifact marked degraded")
	}
	img, err := png.Decode(bytes.NewReader(a.PNG))
	if err != nil {
		t.Fatalf("artifact is not a PNG: %v", err)
	}
	if img.Bounds().Dx() != 50 {
		t.Errorf("decoded width = %d", img.Bounds().Dx())
	}
}

func TestExportIsIdempotent(t *testing.T) {
	l := mapLoader{
		"base":    {img: solid(100, 80, red)},
		"sticker": {img: solid(5, 5, blue)},
	}
	sink := &captureSink{}
	e := quietExporter(l, PolicyStrict)
	for i := 0; i < 3; i++ {
		if err := e.Export(context.Background(), goodRequest(), sink); err != nil {
			t.Fatalf("Export #%d: %v", i, err)
		}
	}
	for i := 1; i < len(sink.got); i++ {
		if !bytes.Equal(sink.got[0].PNG, sink.got[i].PNG) {
			t.Fatalf("export #%d differs from the first", i)
		}
	}
}

func TestExportFailuresDeliverNothing(t *testing.T) {
	sinkErr := fmt.Errorf("%w: denied", ErrClipboard)
	cases := []struct {
		name    string
		loader  mapLoader
		req     func() Request
		sinkErr error
		want    error
	}{
		{
			name:   "base decode",
			loader: mapLoader{"sticker": {img: solid(5, 5, blue)}},
			req:    goodRequest,
			want:   ErrDecode,
		},
		{
			name:   "sticker decode",
			loader: mapLoader{"base": {img: solid(10, 10, red)}},
			req:    goodRequest,
			want:   ErrDecode,
		},
		{
			name:   "no overlay",
			loader: mapLoader{},
			req:    func() Request { r := goodRequest(); r.Overlay = ""; return r },
			want:   ErrNoOverlay,
		},
		{
			name: "layout over budget",
			loader: mapLoader{
				"base":    {img: solid(4, 4, red)},
				"sticker": {img: solid(4, 4, blue)},
			},
			req:  func() Request { r := goodRequest(); r.Layout = Layout{Width: 1e6, Height: 1e6}; return r },
			want: ErrInvalidTransform,
		},
		{
			name: "layout not finite",
			loader: mapLoader{
				"base":    {img: solid(4, 4, red)},
				"sticker": {img: solid(4, 4, blue)},
			},
			req:  func() Request { r := goodRequest(); r.Layout = Layout{Width: math.Inf(1), Height: 10}; return r },
			want: ErrInvalidTransform,
		},
		{
			name:   "bad transform",
			loader: mapLoader{},
			req:    func() Request { r := goodRequest(); r.Transform.Width = -1; return r },
			want:   ErrInvalidTransform,
		},
		{
			name: "cross origin sticker strict",
			loader: mapLoader{
				"base":    {img: solid(10, 10, red)},
				"sticker": {img: solid(5, 5, blue), err: ErrCrossOrigin},
			},
			req:  goodRequest,
			want: ErrCrossOrigin,
		},
		{
			name: "sink rejects",
			loader: mapLoader{
				"base":    {img: solid(10, 10, red)},
				"sticker": {img: solid(5, 5, blue)},
			},
			req:     goodRequest,
			sinkErr: sinkErr,
			want:    ErrClipboard,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sink := &captureSink{err: tc.sinkErr}
			err := quietExporter(tc.loader, PolicyStrict).Export(context.Background(), tc.req(), sink)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			if len(sink.got) != 0 {
				t.Fatal("artifact delivered despite failure")
			}
			if UserMessage(err) == "" {
				t.Error("no user message for failure")
			}
		})
	}
}

func TestExportLenientDropsTaintedSticker(t *testing.T) {
	l := mapLoader{
		"base":    {img: solid(50, 40, red)},
		"sticker": {img: solid(5, 5, blue), err: fmt.Errorf("%w: cdn.example", ErrCrossOrigin)},
	}
	sink := &captureSink{}
	if err := quietExporter(l, PolicyLenient).Export(context.Background(), goodRequest(), sink); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(sink.got) != 1 || !sink.got[0].Degraded {
		t.Fatalf("want one degraded artifact, got %+v", sink.got)
	}
}

func TestExportLenientStillFailsOnTaintedBase(t *testing.T) {
	l := mapLoader{
		"base":    {img: solid(50, 40, red), err: ErrCrossOrigin},
		"sticker": {img: solid(5, 5, blue)},
	}
	err := quietExporter(l, PolicyLenient).Export(context.Background(), goodRequest(), &captureSink{})
	if !errors.Is(err, ErrCrossOrigin) {
		t.Fatalf("err = %v, want ErrCrossOrigin", err)
	}
}

func TestParsePolicy(t *testing.T) {
	cases := map[string]CrossOriginPolicy{
		"lenient": PolicyLenient, " LENIENT ": PolicyLenient,
		"strict": PolicyStrict, "": PolicyStrict, "whatever": PolicyStrict,
	}
	for in, want := range cases {
		if got := ParsePolicy(in); got != want {
			t.Errorf("ParsePolicy(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(fmt.Errorf("wrapped: %w", ErrUpload)); got != "Failed to upload image. Please try again." {
		t.Errorf("upload message = %q", got)
	}
	if got := UserMessage(errors.New("boom")); got != "Failed to generate image. Please try again." {
		t.Errorf("fallback message = %q", got)
	}
	if UserMessage(nil) != "" {
		t.Error("nil error produced a message")
	}
}
