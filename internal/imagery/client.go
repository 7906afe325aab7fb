// Package imagery looks up and downloads the background picture of a task
// area from an OpenAerialMap style metadata index.
package imagery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	_ "golang.org/x/image/webp"

	"roadedit/internal/geom"
	"roadedit/internal/logging"
)

const (
	DefaultIndexURL = "https://api.openaerialmap.org/meta"
	maxImageBytes   = 32 << 20
)

var ErrNoImagery = errors.New("no imagery for area")

// Scene is a downloaded background picture stretched over the task bbox.
type Scene struct {
	URL   string
	Image image.Image
}

type metaResponse struct {
	Results []struct {
		Properties struct {
			Thumbnail string `json:"thumbnail"`
		} `json:"properties"`
	} `json:"results"`
}

type Client struct {
	indexURL string
	http     *http.Client
	logger   *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func New(indexURL string, opts ...Option) *Client {
	if indexURL == "" {
		indexURL = DefaultIndexURL
	}
	c := &Client{
		indexURL: indexURL,
		http:     &http.Client{Timeout: 20 * time.Second},
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Background returns the first indexed image covering b.
func (c *Client) Background(ctx context.Context, b geom.BBox) (*Scene, error) {
	thumb, err := c.lookup(ctx, b)
	if err != nil {
		return nil, err
	}
	img, err := c.download(ctx, thumb)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("imagery loaded", "url", thumb, "size", img.Bounds().Size())
	return &Scene{URL: thumb, Image: img}, nil
}

func (c *Client) lookup(ctx context.Context, b geom.BBox) (string, error) {
	u, err := url.Parse(c.indexURL)
	if err != nil {
		return "", fmt.Errorf("imagery index url: %w", err)
	}
	q := u.Query()
	q.Set("bbox", b.QueryParam())
	u.RawQuery = q.Encode()
	body, err := c.get(ctx, u.String())
	if err != nil {
		return "", fmt.Errorf("imagery index: %w", err)
	}
	defer body.Close()
	var meta metaResponse
	if err := json.NewDecoder(body).Decode(&meta); err != nil {
		return "", fmt.Errorf("decode imagery index: %w", err)
	}
	for _, r := range meta.Results {
		if r.Properties.Thumbnail != "" {
			return r.Properties.Thumbnail, nil
		}
	}
	return "", ErrNoImagery
}

func (c *Client) download(ctx context.Context, u string) (image.Image, error) {
	body, err := c.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("imagery download: %w", err)
	}
	defer body.Close()
	img, _, err := image.Decode(io.LimitReader(body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("decode imagery: %w", err)
	}
	return img, nil
}

func (c *Client) get(ctx context.Context, u string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET failed for %s: %w", u, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: status %s", u, resp.Status)
	}
	return resp.Body, nil
}
