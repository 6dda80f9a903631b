package live

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lojf/xraid/internal/overlay"
	"github.com/lojf/xraid/internal/post"
	"github.com/lojf/xraid/internal/stickers"
)

type fakeStickers map[string]stickers.Sticker

func (f fakeStickers) Lookup(ref string) (stickers.Sticker, bool) {
	s, ok := f[ref]
	return s, ok
}

// slowFetcher returns content after a per-URL delay so tests can overlap
// requests.
type slowFetcher struct {
	mu     sync.Mutex
	delays map[string]time.Duration
}

func (f *slowFetcher) Fetch(ctx context.Context, raw string) (post.Content, error) {
	f.mu.Lock()
	d := f.delays[raw]
	f.mu.Unlock()
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
	return post.Content{Text: "post " + raw}, nil
}

func testServer() *Server {
	return &Server{
		Stickers: fakeStickers{
			"a.png":    {ID: "a.png", URL: "/stickers/a.png", Width: 10, Height: 10},
			"wide.png": {ID: "wide.png", URL: "/stickers/wide.png", Width: 20, Height: 10},
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestHandleEditorFlow(t *testing.T) {
	ss := testServer().NewSession()

	r := ss.handle(message{Type: "base", URL: "https://pbs.twimg.com/media/x.jpg", Width: 400, Height: 300})
	if r.Type != "state" || r.State.Base == "" || r.State.Transform != nil {
		t.Fatalf("base reply = %+v", r)
	}

	r = ss.handle(message{Type: "overlay", Sticker: "a.png"})
	tr := r.State.Transform
	if tr == nil || tr.X != 150 || tr.Y != 100 || tr.Width != 100 || tr.Height != 100 {
		t.Fatalf("overlay transform = %+v", tr)
	}
	if r.State.Overlay != "/stickers/a.png" {
		t.Errorf("overlay ref = %q", r.State.Overlay)
	}

	ss.handle(message{Type: "pointer", Kind: overlay.PointerDown, Target: overlay.TargetBody, X: 10, Y: 10})
	r = ss.handle(message{Type: "pointer", Kind: overlay.PointerMove, X: 30, Y: 50})
	if !r.State.Captured || r.State.Transform.X != 170 || r.State.Transform.Y != 140 {
		t.Errorf("after drag = %+v", r.State)
	}
	r = ss.handle(message{Type: "pointer", Kind: overlay.PointerUp})
	if r.State.Captured {
		t.Error("capture held after up")
	}

	r = ss.handle(message{Type: "rotate", Deg: 45})
	if r.State.Transform.Rotation != 45 {
		t.Errorf("rotation = %v", r.State.Transform.Rotation)
	}

	r = ss.handle(message{Type: "overlay", Sticker: "wide.png"})
	if r.State.Transform.Width != 100 || r.State.Transform.Height != 50 || r.State.Transform.Rotation != 0 {
		t.Errorf("swap did not reset: %+v", r.State.Transform)
	}

	r = ss.handle(message{Type: "overlay"})
	if r.State.Transform != nil || r.State.Overlay != "" {
		t.Errorf("clear left %+v", r.State)
	}
}

func TestHandleErrors(t *testing.T) {
	ss := testServer().NewSession()
	cases := []struct {
		msg  message
		want string
	}{
		{message{Type: "rotate", Deg: 10}, "Pick a sticker first."},
		{message{Type: "pointer", Kind: overlay.PointerDown, Target: overlay.TargetBody}, "Pick a sticker first."},
		{message{Type: "overlay", Sticker: "missing.png"}, "Sticker not found."},
		{message{Type: "pointer", Kind: "hover"}, "Invalid input."},
		{message{Type: "dance"}, "Something went wrong."},
	}
	for _, c := range cases {
		r := ss.handle(c.msg)
		if r.Type != "error" || r.Error != c.want {
			t.Errorf("%+v -> %+v, want error %q", c.msg, r, c.want)
		}
	}
}

func readReply(t *testing.T, c *websocket.Conn) reply {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))
	var r reply
	if err := c.ReadJSON(&r); err != nil {
		t.Fatalf("read: %v", err)
	}
	return r
}

func TestWebSocketSession(t *testing.T) {
	srv := testServer()
	srv.Posts = &slowFetcher{delays: map[string]time.Duration{
		"https://x.com/a/status/1": 300 * time.Millisecond,
		"https://x.com/a/status/2": 0,
	}}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if r := readReply(t, conn); r.Type != "state" {
		t.Fatalf("first reply = %+v", r)
	}

	_ = conn.WriteJSON(message{Type: "base", URL: "https://pbs.twimg.com/media/x.jpg", Width: 200, Height: 200})
	readReply(t, conn)
	_ = conn.WriteJSON(message{Type: "overlay", Sticker: "a.png"})
	r := readReply(t, conn)
	if r.State == nil || r.State.Transform == nil || r.State.Transform.X != 50 {
		t.Fatalf("overlay reply = %+v", r)
	}

	// The slower, older fetch must never replace the newer one.
	_ = conn.WriteJSON(message{Type: "fetch", URL: "https://x.com/a/status/1"})
	_ = conn.WriteJSON(message{Type: "fetch", URL: "https://x.com/a/status/2"})
	r = readReply(t, conn)
	if r.Type != "post" || r.Post.Text != "post https://x.com/a/status/2" {
		t.Fatalf("post reply = %+v", r)
	}
	_ = conn.SetReadDeadline(time.Now().Add(600 * time.Millisecond))
	var extra reply
	if err := conn.ReadJSON(&extra); err == nil {
		t.Fatalf("stale fetch delivered: %+v", extra)
	}
}

func TestMalformedFrame(t *testing.T) {
	ts := httptest.NewServer(testServer())
	defer ts.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readReply(t, conn)

	_ = conn.WriteMessage(websocket.TextMessage, []byte("{nope"))
	if r := readReply(t, conn); r.Type != "error" {
		t.Errorf("reply = %+v", r)
	}
	b, _ := json.Marshal(message{Type: "rotate", Deg: 5})
	_ = conn.WriteMessage(websocket.TextMessage, b)
	if r := readReply(t, conn); r.Error != "Pick a sticker first." {
		t.Errorf("reply = %+v", r)
	}
}

func TestCheckOrigin(t *testing.T) {
	s := &Server{AllowedOrigins: []string{"web.telegram.org"}}
	cases := map[string]bool{
		"":                         true,
		"http://example.com":       true, // same host as the request below
		"https://web.telegram.org": true,
		"https://evil.example":     false,
	}
	for origin, want := range cases {
		r := httptest.NewRequest("GET", "http://example.com/live", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		if got := s.checkOrigin(r); got != want {
			t.Errorf("checkOrigin(%q) = %v, want %v", origin, got, want)
		}
	}
}

func TestCloseReleasesCapture(t *testing.T) {
	held := make(chan bool, 4)
	srv := testServer()
	srv.Options.OnCapture = func(h bool) { held <- h }
	ts := httptest.NewServer(srv)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	readReply(t, conn)
	_ = conn.WriteJSON(message{Type: "base", URL: "https://pbs.twimg.com/media/x.jpg", Width: 200, Height: 200})
	readReply(t, conn)
	_ = conn.WriteJSON(message{Type: "overlay", Sticker: "a.png"})
	readReply(t, conn)
	_ = conn.WriteJSON(message{Type: "pointer", Kind: overlay.PointerDown, Target: overlay.TargetBody, X: 60, Y: 60})
	if r := readReply(t, conn); r.State == nil || !r.State.Captured {
		t.Fatalf("pointer down reply = %+v", r)
	}
	if h := <-held; !h {
		t.Fatal("expected capture acquired")
	}

	conn.Close()
	select {
	case h := <-held:
		if h {
			t.Fatal("expected capture released")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("capture not released after close")
	}
}
