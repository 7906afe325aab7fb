package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"roadedit/internal/geom"
	"roadedit/internal/logging"
)

var (
	ErrNotFound    = errors.New("task not found")
	ErrTaskPending = errors.New("task still processing")
	ErrStatus      = errors.New("unexpected backend status")
)

const defaultTimeout = 15 * time.Second

// Client talks to the task backend.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d, Transport: c.http.Transport}
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// FetchTask loads the geometry and bbox of a task.
func (c *Client) FetchTask(ctx context.Context, taskID string) (*Task, error) {
	data, err := c.do(ctx, http.MethodGet, "/maps/"+url.PathEscape(taskID), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch task %s: %w", taskID, err)
	}
	return decodeTask(taskID, data)
}

// SaveGeometry replaces the stored geometry of a task with body.
func (c *Client) SaveGeometry(ctx context.Context, taskID string, body []byte) error {
	if _, err := c.do(ctx, http.MethodPost, "/load-map-db/"+url.PathEscape(taskID), body); err != nil {
		return fmt.Errorf("save geometry %s: %w", taskID, err)
	}
	return nil
}

// ListTasks returns the dashboard rows, newest parent first.
func (c *Client) ListTasks(ctx context.Context) ([]TaskRow, error) {
	data, err := c.do(ctx, http.MethodGet, "/tasks/", nil)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	var rows []TaskRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	return rows, nil
}

// RefreshStatus asks the backend to re-read a task's worker state.
func (c *Client) RefreshStatus(ctx context.Context, taskID string) (string, error) {
	data, err := c.do(ctx, http.MethodPut, "/status/"+url.PathEscape(taskID), nil)
	if err != nil {
		return "", fmt.Errorf("refresh status %s: %w", taskID, err)
	}
	var st statusResponse
	if err := json.Unmarshal(data, &st); err != nil {
		return "", fmt.Errorf("decode status: %w", err)
	}
	if st.Error != "" {
		c.logger.Warn("task failed", "task_id", taskID, "reason", st.Error)
	}
	return st.Status, nil
}

// Vectorize queues vectorization of a segmented task and returns the child job.
func (c *Client) Vectorize(ctx context.Context, taskID string) (*Job, error) {
	data, err := c.do(ctx, http.MethodPost, "/vec-by-task/"+url.PathEscape(taskID), nil)
	if err != nil {
		return nil, fmt.Errorf("vectorize %s: %w", taskID, err)
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

// PredictByCoord queues segmentation of the area inside b and returns the
// new task. The bbox goes out as four repeated bbox query values.
func (c *Client) PredictByCoord(ctx context.Context, b geom.BBox) (*Job, error) {
	q := url.Values{}
	for _, v := range b.Slice() {
		q.Add("bbox", strconv.FormatFloat(v, 'f', -1, 64))
	}
	data, err := c.do(ctx, http.MethodPost, "/predict-by-coord/?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("predict by coord %s: %w", b.QueryParam(), err)
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("backend request", "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	switch {
	case resp.StatusCode == http.StatusAccepted:
		return nil, ErrTaskPending
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}
	return data, nil
}
