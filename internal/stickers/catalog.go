// Package stickers enumerates the sticker directory, keeps that list fresh
// while files come and go, and syncs Telegram sticker sets into it.
package stickers

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	_ "golang.org/x/image/webp"
)

// Extensions accepted as stickers. Matching is case-insensitive.
var Extensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".svg":  true,
	".webp": true,
}

// IsSticker reports whether name has a sticker extension.
func IsSticker(name string) bool {
	return Extensions[strings.ToLower(filepath.Ext(name))]
}

// Sticker is one selectable asset.
type Sticker struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Aspect is width/height, or 1 when the size is unknown (SVG).
func (s Sticker) Aspect() float64 {
	if s.Width <= 0 || s.Height <= 0 {
		return 1
	}
	return float64(s.Width) / float64(s.Height)
}

// Catalog is the live list of stickers in one directory.
type Catalog struct {
	dir    string
	prefix string
	logger *slog.Logger

	mu    sync.RWMutex
	items []Sticker
}

// NewCatalog serves files from dir under the URL prefix (e.g. "/stickers/").
func NewCatalog(dir, prefix string, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{dir: dir, prefix: prefix, logger: logger}
}

func (c *Catalog) Dir() string    { return c.dir }
func (c *Catalog) Prefix() string { return c.prefix }

// FS exposes the sticker directory for loaders and file serving.
func (c *Catalog) FS() fs.FS { return os.DirFS(c.dir) }

// Open opens one sticker file. Names that leave the directory, hidden files
// and non-sticker extensions are reported as fs.ErrNotExist.
func (c *Catalog) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) || strings.Contains(name, "/") || strings.HasPrefix(name, ".") || !IsSticker(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return c.FS().Open(name)
}

// Reload rescans the directory. A missing directory yields an empty list.
func (c *Catalog) Reload() error {
	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, fs.ErrNotExist) {
		c.set(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("stickers: read %s: %w", c.dir, err)
	}

	items := make([]Sticker, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsSticker(e.Name()) || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		items = append(items, c.describe(e.Name()))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	c.set(items)
	c.logger.Debug("sticker catalog reloaded", "dir", c.dir, "count", len(items))
	return nil
}

func (c *Catalog) describe(name string) Sticker {
	s := Sticker{
		ID:   name,
		Name: strings.TrimSuffix(name, filepath.Ext(name)),
		URL:  c.prefix + url.PathEscape(name),
	}
	f, err := os.Open(filepath.Join(c.dir, name))
	if err != nil {
		return s
	}
	defer f.Close()
	if cfg, _, err := image.DecodeConfig(f); err == nil {
		s.Width, s.Height = cfg.Width, cfg.Height
	}
	return s
}

func (c *Catalog) set(items []Sticker) {
	c.mu.Lock()
	c.items = items
	c.mu.Unlock()
}

// List returns a copy of the current stickers sorted by ID.
func (c *Catalog) List() []Sticker {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Sticker, len(c.items))
	copy(out, c.items)
	return out
}

// Lookup finds a sticker by ID or by its URL.
func (c *Catalog) Lookup(ref string) (Sticker, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.items {
		if s.ID == ref || s.URL == ref {
			return s, true
		}
	}
	return Sticker{}, false
}

// Watch reloads the catalog whenever a sticker file is added, removed or
// rewritten. Bursts of events are coalesced. It blocks until ctx is done.
func (c *Catalog) Watch(ctx context.Context) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("stickers: create %s: %w", c.dir, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("stickers: watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(c.dir); err != nil {
		return fmt.Errorf("stickers: watch %s: %w", c.dir, err)
	}

	const settle = 200 * time.Millisecond
	timer := time.NewTimer(settle)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !IsSticker(ev.Name) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) != 0 {
				timer.Reset(settle)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.logger.Warn("sticker watcher error", "err", err)
		case <-timer.C:
			if err := c.Reload(); err != nil {
				c.logger.Error("sticker reload failed", "err", err)
			}
		}
	}
}
