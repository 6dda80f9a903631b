// Package live is the editor channel: a WebSocket per open page, each
// driving its own overlay component on the server.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lojf/xraid/internal/overlay"
	"github.com/lojf/xraid/internal/post"
	"github.com/lojf/xraid/internal/stickers"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 90 * time.Second
	pingPeriod = 54 * time.Second
	maxMessage = 16 << 10
)

// StickerLookup resolves a sticker reference; *stickers.Catalog satisfies it.
type StickerLookup interface {
	Lookup(ref string) (stickers.Sticker, bool)
}

// PostFetcher loads post content; *post.Client satisfies it.
type PostFetcher interface {
	Fetch(ctx context.Context, raw string) (post.Content, error)
}

// Server upgrades /live requests and runs one Session per connection.
type Server struct {
	Stickers StickerLookup
	Posts    PostFetcher
	Options  overlay.Options
	Logger   *slog.Logger
	Sessions prometheus.Gauge // optional

	// AllowedOrigins restricts the Origin header; empty allows same host only.
	AllowedOrigins []string

	upgrader websocket.Upgrader
	once     sync.Once
}

func (s *Server) init() {
	s.once.Do(func() {
		s.upgrader = websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     s.checkOrigin,
		}
		if s.Logger == nil {
			s.Logger = slog.Default()
		}
	})
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host == r.Host {
		return true
	}
	for _, o := range s.AllowedOrigins {
		if o == origin || o == u.Host {
			return true
		}
	}
	return false
}

// ServeHTTP handles the WebSocket upgrade and blocks until the session ends.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.init()
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Warn("live upgrade failed", "err", err)
		return
	}
	sess := s.NewSession()
	sess.conn = conn
	sess.run(r.Context())
}

// Session is one mounted editor.
type Session struct {
	srv     *Server
	conn    *websocket.Conn
	send    chan []byte
	closing chan struct{}

	mu      sync.Mutex
	comp    *overlay.Component
	tracker post.Tracker
}

// NewSession builds a session without a connection; run attaches one.
func (s *Server) NewSession() *Session {
	s.init()
	return &Session{
		srv:     s,
		send:    make(chan []byte, 64),
		closing: make(chan struct{}),
		comp:    overlay.New(s.Options),
	}
}

func (ss *Session) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	log := ss.srv.Logger

	if g := ss.srv.Sessions; g != nil {
		g.Inc()
		defer g.Dec()
	}

	var closeOnce sync.Once
	cleanup := func() {
		closeOnce.Do(func() {
			cancel()
			close(ss.closing)
			ss.conn.Close()
		})
	}
	defer cleanup()
	defer ss.unmount()

	go ss.writer()
	ss.push(reply{Type: "state", State: ss.snapshot()})

	ss.conn.SetReadLimit(maxMessage)
	_ = ss.conn.SetReadDeadline(time.Now().Add(pongWait))
	ss.conn.SetPongHandler(func(string) error {
		return ss.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := ss.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("live session closed", "err", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		var m message
		if err := json.Unmarshal(data, &m); err != nil {
			ss.push(reply{Type: "error", Error: "malformed message"})
			continue
		}
		if m.Type == "fetch" {
			ss.fetch(ctx, m.URL)
			continue
		}
		ss.push(ss.handle(m))
	}
}

// writer owns all writes to the connection.
func (ss *Session) writer() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case b := <-ss.send:
			_ = ss.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ss.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				ss.srv.Logger.Debug("live write failed", "err", err)
				return
			}
		case <-ticker.C:
			_ = ss.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ss.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ss.closing:
			_ = ss.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (ss *Session) push(r reply) {
	b, err := json.Marshal(r)
	if err != nil {
		ss.srv.Logger.Error("live encode reply", "err", err)
		return
	}
	select {
	case ss.send <- b:
	case <-ss.closing:
	}
}

// message is a client frame. Only the fields of its Type are read.
type message struct {
	Type string `json:"type"`

	URL    string  `json:"url,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`

	Sticker string `json:"sticker,omitempty"`

	Kind   overlay.PointerKind   `json:"kind,omitempty"`
	Target overlay.PointerTarget `json:"target,omitempty"`
	X      float64               `json:"x,omitempty"`
	Y      float64               `json:"y,omitempty"`

	Deg float64 `json:"deg,omitempty"`
}

type reply struct {
	Type  string         `json:"type"`
	State *overlay.State `json:"state,omitempty"`
	Post  *post.Content  `json:"post,omitempty"`
	Error string         `json:"error,omitempty"`
}

var errUnknownSticker = errors.New("live: unknown sticker")

// handle applies one component message and returns the reply for it.
func (ss *Session) handle(m message) reply {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	var err error
	switch m.Type {
	case "base":
		err = ss.comp.SetBase(m.URL, overlay.Layout{Width: m.Width, Height: m.Height})
	case "overlay":
		if m.Sticker == "" {
			ss.comp.SetOverlay("", 0)
			break
		}
		st, ok := ss.srv.Stickers.Lookup(m.Sticker)
		if !ok {
			err = fmt.Errorf("%w: %s", errUnknownSticker, m.Sticker)
			break
		}
		ss.comp.SetOverlay(st.URL, st.Aspect())
	case "pointer":
		err = ss.comp.Pointer(overlay.PointerEvent{Kind: m.Kind, Target: m.Target, X: m.X, Y: m.Y})
	case "rotate":
		err = ss.comp.SetRotation(m.Deg)
	default:
		err = fmt.Errorf("live: unknown message type %q", m.Type)
	}
	if err != nil {
		return reply{Type: "error", Error: errorText(err)}
	}
	st := ss.comp.Snapshot()
	return reply{Type: "state", State: &st}
}

// fetch loads a post in the background. Only the newest request's result is
// delivered.
func (ss *Session) fetch(ctx context.Context, raw string) {
	if ss.srv.Posts == nil {
		ss.push(reply{Type: "error", Error: post.MsgFetchError})
		return
	}
	ticket := ss.tracker.Begin()
	go func() {
		c, _ := ss.srv.Posts.Fetch(ctx, raw)
		if ss.tracker.Commit(ticket, c) {
			ss.push(reply{Type: "post", Post: &c})
		}
	}()
}

func (ss *Session) snapshot() *overlay.State {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	st := ss.comp.Snapshot()
	return &st
}

func (ss *Session) unmount() {
	ss.mu.Lock()
	ss.comp.Unmount()
	ss.mu.Unlock()
}

func errorText(err error) string {
	switch {
	case errors.Is(err, overlay.ErrNoOverlay):
		return "Pick a sticker first."
	case errors.Is(err, errUnknownSticker):
		return "Sticker not found."
	case errors.Is(err, overlay.ErrInvalidTransform):
		return "Invalid input."
	default:
		return "Something went wrong."
	}
}
