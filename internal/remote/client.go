// Package remote wraps the batch-send backend's HTTP+JSON endpoints in typed
// operations. One method per endpoint, no retries; retry policy belongs to the
// caller.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/leospirit/wecom-bulk-sender/internal/core"
)

// RequestError is the single failure kind this layer reports. Message is
// stable per operation so callers can surface it verbatim.
type RequestError struct {
	Op     string
	Status int
	cause  error
}

func (e *RequestError) Error() string {
	return e.Op
}

func (e *RequestError) Unwrap() error {
	return e.cause
}

// Client talks to the backend at baseURL.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// FetchStatusCounts returns the backend's aggregate counters.
func (c *Client) FetchStatusCounts(ctx context.Context) (core.StatusCounts, error) {
	var counts core.StatusCounts
	if err := c.getJSON(ctx, "/api/status", "status failed", &counts); err != nil {
		return core.StatusCounts{}, err
	}
	return counts, nil
}

// FetchTaskList returns all tasks the backend currently tracks.
func (c *Client) FetchTaskList(ctx context.Context) ([]core.Task, error) {
	var tasks []core.Task
	if err := c.getJSON(ctx, "/api/tasks", "list tasks failed", &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// FetchConfig returns the backend configuration. The secret field arrives
// masked by the backend.
func (c *Client) FetchConfig(ctx context.Context) (core.AppConfig, error) {
	var cfg core.AppConfig
	if err := c.getJSON(ctx, "/api/config", "get config failed", &cfg); err != nil {
		return core.AppConfig{}, err
	}
	return cfg, nil
}

// TriggerScan asks the backend to rescan rootPath. The path is forwarded
// verbatim; validation is the backend's responsibility.
func (c *Client) TriggerScan(ctx context.Context, rootPath string) error {
	return c.postJSON(ctx, "/api/scan", "scan failed", map[string]string{"rootPath": rootPath})
}

// TriggerBatchSend queues every eligible pending task for delivery.
func (c *Client) TriggerBatchSend(ctx context.Context) error {
	return c.postJSON(ctx, "/api/send/batch", "send batch failed", nil)
}

// TriggerSelectedSend queues exactly the given task ids.
func (c *Client) TriggerSelectedSend(ctx context.Context, ids []int64) error {
	if ids == nil {
		ids = []int64{}
	}
	return c.postJSON(ctx, "/api/send/selected", "send selected failed", map[string][]int64{"taskIds": ids})
}

// SetAutoWatch enables or disables backend folder monitoring.
func (c *Client) SetAutoWatch(ctx context.Context, enabled bool) error {
	return c.postJSON(ctx, "/api/auto-watch", "toggle auto watch failed", map[string]bool{"enabled": enabled})
}

// UploadContactsFile forwards one contacts spreadsheet as an opaque multipart
// payload. Size and format limits are backend-enforced.
func (c *Client) UploadContactsFile(ctx context.Context, filename string, content io.Reader) error {
	const op = "upload contacts failed"

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return &RequestError{Op: op, cause: err}
	}
	if _, err := io.Copy(part, content); err != nil {
		return &RequestError{Op: op, cause: err}
	}
	if err := mw.Close(); err != nil {
		return &RequestError{Op: op, cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/contacts/upload", &body)
	if err != nil {
		return &RequestError{Op: op, cause: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req, op, nil)
}

// SaveConfig submits a partial configuration update. Nil fields are omitted
// from the body and left unchanged by the backend.
func (c *Client) SaveConfig(ctx context.Context, update core.ConfigUpdate) error {
	return c.postJSON(ctx, "/api/config", "update config failed", update)
}

// FetchEgressIP returns the backend's public egress address.
func (c *Client) FetchEgressIP(ctx context.Context) (string, error) {
	var res struct {
		IP string `json:"ip"`
	}
	if err := c.getJSON(ctx, "/api/ip", "get ip failed", &res); err != nil {
		return "", err
	}
	return res.IP, nil
}

func (c *Client) getJSON(ctx context.Context, path, op string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &RequestError{Op: op, cause: err}
	}
	return c.do(req, op, out)
}

func (c *Client) postJSON(ctx context.Context, path, op string, payload any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return &RequestError{Op: op, cause: err}
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return &RequestError{Op: op, cause: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, op, nil)
}

func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return &RequestError{Op: op, cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RequestError{Op: op, Status: resp.StatusCode, cause: fmt.Errorf("backend returned status %d", resp.StatusCode)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RequestError{Op: op, Status: resp.StatusCode, cause: err}
	}
	return nil
}
