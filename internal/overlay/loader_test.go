package overlay

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"testing/fstest"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(6, 4, blue)); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestHTTPLoaderAssets(t *testing.T) {
	assets := fstest.MapFS{
		"cat.png":  {Data: pngBytes(t)},
		"logo.svg": {Data: []byte("<svg xmlns='http://www.w3.org/2000/svg'/>")},
	}
	l := NewHTTPLoader(assets, "/stickers/")

	img, err := l.Load(context.Background(), "/stickers/cat.png")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if img.Bounds().Dx() != 6 || img.Bounds().Dy() != 4 {
		t.Errorf("bounds = %v", img.Bounds())
	}

	for _, ref := range []string{"/stickers/missing.png", "/stickers/logo.svg", "/stickers/..%2Fetc%2Fpasswd", ""} {
		if _, err := l.Load(context.Background(), ref); !errors.Is(err, ErrDecode) {
			t.Errorf("Load(%q): err = %v, want ErrDecode", ref, err)
		}
	}
}

func TestHTTPLoaderCrossOrigin(t *testing.T) {
	body := pngBytes(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/open.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		_, _ = w.Write(body)
	})
	mux.HandleFunc("/closed.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(body)
	})
	mux.HandleFunc("/mine.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", r.Header.Get("Origin"))
		_, _ = w.Write(body)
	})
	mux.HandleFunc("/gone.png", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	l := NewHTTPLoader(nil, "")
	l.Origin = "https://app.example"
	l.Hosts = []string{strings.TrimPrefix(srv.URL, "http://")}

	if _, err := l.Load(context.Background(), srv.URL+"/open.png"); err != nil {
		t.Errorf("open: %v", err)
	}
	if _, err := l.Load(context.Background(), srv.URL+"/mine.png"); err != nil {
		t.Errorf("mine: %v", err)
	}
	img, err := l.Load(context.Background(), srv.URL+"/closed.png")
	if !errors.Is(err, ErrCrossOrigin) {
		t.Errorf("closed: err = %v, want ErrCrossOrigin", err)
	}
	if img == nil {
		t.Error("closed: pixels should still be returned with the taint error")
	}
	if _, err := l.Load(context.Background(), srv.URL+"/gone.png"); !errors.Is(err, ErrDecode) {
		t.Errorf("gone: err = %v, want ErrDecode", err)
	}

	l.Hosts = []string{}
	l.Allow = []string{srv.URL}
	if _, err := l.Load(context.Background(), srv.URL+"/closed.png"); err != nil {
		t.Errorf("allow-listed: %v", err)
	}
}

func TestHTTPLoaderRejectsOtherSchemes(t *testing.T) {
	l := NewHTTPLoader(nil, "")
	if _, err := l.Load(context.Background(), "file:///etc/passwd"); !errors.Is(err, ErrDecode) {
		t.Errorf("err = %v, want ErrDecode", err)
	}
}

func TestHTTPLoaderOnlyFetchesKnownHosts(t *testing.T) {
	var hits atomic.Int32
	body := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Access-Control-Allow-Origin", "*")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	l := NewHTTPLoader(nil, "")
	for _, ref := range []string{srv.URL + "/a.png", "http://169.254.169.254/latest/meta-data"} {
		if _, err := l.Load(context.Background(), ref); !errors.Is(err, ErrCrossOrigin) {
			t.Errorf("Load(%q): err = %v, want ErrCrossOrigin", ref, err)
		}
	}
	if n := hits.Load(); n != 0 {
		t.Fatalf("unlisted host was requested %d times", n)
	}

	l.Hosts = []string{strings.TrimPrefix(srv.URL, "http://")}
	if _, err := l.Load(context.Background(), srv.URL+"/a.png"); err != nil {
		t.Fatalf("listed host: %v", err)
	}
}

// hugePNG is a valid PNG whose header claims w x h pixels.
func hugePNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	b := pngBytes(t)
	binary.BigEndian.PutUint32(b[16:20], w)
	binary.BigEndian.PutUint32(b[20:24], h)
	binary.BigEndian.PutUint32(b[29:33], crc32.ChecksumIEEE(b[12:29]))
	return b
}

func TestHTTPLoaderRefusesOversizedImages(t *testing.T) {
	l := NewHTTPLoader(fstest.MapFS{
		"wide.png": {Data: hugePNG(t, 100000, 10)},
		"huge.png": {Data: hugePNG(t, 1000000, 1000000)},
	}, "/stickers/")
	for _, ref := range []string{"/stickers/wide.png", "/stickers/huge.png"} {
		if _, err := l.Load(context.Background(), ref); !errors.Is(err, ErrDecode) {
			t.Errorf("Load(%q): err = %v, want ErrDecode", ref, err)
		}
	}
}
