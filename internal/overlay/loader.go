package overlay

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const maxImageBytes = 20 << 20 // 20 MiB

// Loader resolves an image reference into decoded pixels.
type Loader interface {
	Load(ctx context.Context, ref string) (image.Image, error)
}

// DefaultHosts are the media hosts post images are served from.
var DefaultHosts = []string{"pbs.twimg.com"}

// HTTPLoader loads local sticker assets from Assets and everything else
// over HTTP. Only hosts in Hosts or Allow are requested at all. Remote
// images are requested anonymously (no cookies or credentials); a response
// is only exportable when its origin is in Allow or the host sends a
// permissive Access-Control-Allow-Origin header.
type HTTPLoader struct {
	Client *http.Client
	// Assets serves references that start with AssetPrefix.
	Assets      fs.FS
	AssetPrefix string
	// Origin is our own origin, accepted in Access-Control-Allow-Origin.
	Origin string
	// Allow lists origins ("https://pbs.twimg.com") or bare hosts exportable
	// without CORS headers.
	Allow []string
	// Hosts may be fetched but still need CORS headers to export. Nil means
	// DefaultHosts.
	Hosts []string
}

// NewHTTPLoader returns a loader with a bounded HTTP client.
func NewHTTPLoader(assets fs.FS, prefix string) *HTTPLoader {
	return &HTTPLoader{
		Client:      &http.Client{Timeout: 15 * time.Second},
		Assets:      assets,
		AssetPrefix: prefix,
	}
}

func (l *HTTPLoader) Load(ctx context.Context, ref string) (image.Image, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrDecode)
	}
	if l.Assets != nil && l.AssetPrefix != "" && strings.HasPrefix(ref, l.AssetPrefix) {
		return l.loadAsset(strings.TrimPrefix(ref, l.AssetPrefix))
	}
	return l.loadRemote(ctx, ref)
}

func (l *HTTPLoader) loadAsset(name string) (image.Image, error) {
	name, err := url.PathUnescape(name)
	if err != nil || !fs.ValidPath(name) {
		return nil, fmt.Errorf("%w: bad asset name %q", ErrDecode, name)
	}
	f, err := l.Assets.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrDecode, name, err)
	}
	defer f.Close()
	return decode(f, name)
}

func (l *HTTPLoader) loadRemote(ctx context.Context, ref string) (image.Image, error) {
	u, err := url.Parse(ref)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: unsupported reference %q", ErrDecode, ref)
	}
	if !l.fetchable(u) {
		return nil, fmt.Errorf("%w: %s", ErrCrossOrigin, u.Host)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if l.Origin != "" {
		req.Header.Set("Origin", l.Origin)
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", ErrDecode, u.Host, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch %s: %s", ErrDecode, u.Host, resp.Status)
	}

	img, err := decode(resp.Body, path.Base(u.Path))
	if err != nil {
		return nil, err
	}
	if !l.exportable(u, resp.Header) {
		return img, fmt.Errorf("%w: %s", ErrCrossOrigin, u.Host)
	}
	return img, nil
}

func (l *HTTPLoader) fetchable(u *url.URL) bool {
	hosts := l.Hosts
	if hosts == nil {
		hosts = DefaultHosts
	}
	return matchHost(hosts, u) || matchHost(l.Allow, u)
}

func (l *HTTPLoader) exportable(u *url.URL, h http.Header) bool {
	if matchHost(l.Allow, u) {
		return true
	}
	acao := strings.TrimSpace(h.Get("Access-Control-Allow-Origin"))
	return acao == "*" || (acao != "" && l.Origin != "" && strings.EqualFold(acao, l.Origin))
}

// matchHost reports whether u's origin or bare host is in list.
func matchHost(list []string, u *url.URL) bool {
	origin := u.Scheme + "://" + u.Host
	for _, a := range list {
		a = strings.TrimRight(a, "/")
		if strings.EqualFold(a, origin) || strings.EqualFold(a, u.Host) {
			return true
		}
	}
	return false
}

// decode reads the header first so an image whose pixels would not fit the
// canvas budget is refused before any allocation.
func decode(r io.Reader, name string) (image.Image, error) {
	raw, err := io.ReadAll(io.LimitReader(r, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, name, err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, name, err)
	}
	if !withinBudget(float64(cfg.Width), float64(cfg.Height)) {
		return nil, fmt.Errorf("%w: %s: %dx%d is too large", ErrDecode, name, cfg.Width, cfg.Height)
	}
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, name, err)
	}
	return img, nil
}
