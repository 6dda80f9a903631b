// Package post resolves an X post URL into its text and first media URL
// using the public react-tweet read API.
package post

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultBaseURL = "https://react-tweet.vercel.app"

// Fallback texts shown in place of the post body.
const (
	MsgInvalidURL = "Invalid URL"
	MsgNotFound   = "Tweet not found"
	MsgFetchError = "Error fetching content."
)

var (
	ErrInvalidURL = errors.New("post: invalid url")
	ErrNotFound   = errors.New("post: not found")
)

const maxBodyBytes = 2 << 20

// Content is one fetched post. It is replaced wholesale on every fetch.
type Content struct {
	Text     string `json:"text"`
	MediaURL string `json:"media_url,omitempty"`
}

// HasMedia reports whether the editor should be shown for this post.
func (c Content) HasMedia() bool { return c.MediaURL != "" }

type apiResponse struct {
	Data *struct {
		Text         string `json:"text"`
		MediaDetails []struct {
			MediaURLHTTPS string `json:"media_url_https"`
		} `json:"mediaDetails"`
	} `json:"data"`
}

// Client performs a single read per Fetch; it has no retry or cache.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for baseURL (DefaultBaseURL when empty).
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// ExtractID returns the last non-empty path segment of raw.
func ExtractID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidURL
	}
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(raw, "?#"); i >= 0 {
		p = raw[:i]
	}
	segs := strings.Split(strings.TrimRight(p, "/"), "/")
	id := segs[len(segs)-1]
	if id == "" {
		return "", ErrInvalidURL
	}
	return id, nil
}

// Fetch always returns displayable content: on failure the text is one of
// the fallback messages and there is no media. The error is for logging.
func (c *Client) Fetch(ctx context.Context, raw string) (Content, error) {
	id, err := ExtractID(raw)
	if err != nil {
		return Content{Text: MsgInvalidURL}, err
	}
	content, err := c.get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Content{Text: MsgNotFound}, err
	}
	if err != nil {
		return Content{Text: MsgFetchError}, err
	}
	return content, nil
}

func (c *Client) get(ctx context.Context, id string) (Content, error) {
	endpoint := c.baseURL + "/api/tweet/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Content{}, fmt.Errorf("post: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Content{}, fmt.Errorf("post: fetch %s: %w", id, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Content{}, fmt.Errorf("post: read %s: %w", id, err)
	}
	// The API answers 404 with a JSON body lacking "data"; decode first.
	var out apiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return Content{}, fmt.Errorf("post: decode %s (%s): %w", id, resp.Status, err)
	}
	if out.Data == nil {
		return Content{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	content := Content{Text: out.Data.Text}
	if len(out.Data.MediaDetails) > 0 {
		content.MediaURL = out.Data.MediaDetails[0].MediaURLHTTPS
	}
	return content, nil
}
