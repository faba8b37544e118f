// Package workerclient is the thin HTTP adapter over a single compute
// worker's API, per SPEC_FULL.md section 5 / spec.md section 4.3. It never
// holds worker identity or load state itself — that belongs to
// internal/registry — and every call takes an explicit context so timeouts
// are always caller-controlled, matching the teacher's
// context.WithTimeout(ctx, cfg.ConnectTimeout) idiom in
// _teacher_ref/postgres/database.go.
package workerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/comfygw/gateway/internal/gwerrors"
)

// Auth is the Basic auth pair a worker call carries when non-empty.
type Auth struct {
	Username string
	Password string
}

// Client is a reusable HTTP adapter; one instance can be shared by every
// worker since it carries no per-worker state.
type Client struct {
	httpClient *http.Client
}

// New builds a Client. requestTimeout bounds post_prompt/get_history; the
// shorter probe timeouts of health_probe/fetch_queue are passed explicitly
// per-call via ctx, per spec.md section 4.3.
func New(requestTimeout time.Duration) *Client {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	return &Client{httpClient: &http.Client{Timeout: requestTimeout}}
}

func applyAuth(req *http.Request, auth Auth) {
	if auth.Username != "" || auth.Password != "" {
		req.SetBasicAuth(auth.Username, auth.Password)
	}
}

// HealthDetail classifies the outcome of a health_probe call.
type HealthDetail string

const (
	HealthOK      HealthDetail = "ok"
	HealthRefused HealthDetail = "refused"
	HealthTimeout HealthDetail = "timeout"
	HealthStatus  HealthDetail = "status"
)

// HealthProbe tries a cheap status endpoint first, falling back to the
// queue endpoint on non-200, classifying the failure mode in detail.
func (c *Client) HealthProbe(ctx context.Context, baseURL string, auth Auth, timeout time.Duration) (ok bool, detail HealthDetail) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if ok, detail := c.probeGET(probeCtx, baseURL+"/system_stats", auth); ok {
		return true, detail
	}
	return c.probeGET(probeCtx, baseURL+"/queue", auth)
}

func (c *Client) probeGET(ctx context.Context, rawURL string, auth Auth) (bool, HealthDetail) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return false, HealthStatus
	}
	applyAuth(req, auth)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, HealthTimeout
		}
		return false, HealthRefused
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusOK {
		return true, HealthOK
	}
	return false, HealthStatus
}

// QueueSnapshot is the raw shape returned by the worker's queue endpoint.
type QueueSnapshot struct {
	QueueRunning []any `json:"queue_running"`
	QueuePending []any `json:"queue_pending"`
}

// FetchQueue returns the worker's current queue snapshot, or absent
// (ok=false) on any transport error, timeout, or non-200.
func (c *Client) FetchQueue(ctx context.Context, baseURL string, auth Auth, timeout time.Duration) (snap QueueSnapshot, ok bool) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, baseURL+"/queue", nil)
	if err != nil {
		return QueueSnapshot{}, false
	}
	applyAuth(req, auth)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return QueueSnapshot{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return QueueSnapshot{}, false
	}
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return QueueSnapshot{}, false
	}
	return snap, true
}

// ParseQueueCounts counts the length of each queue list. Per SPEC_FULL.md
// section 11's resolved open question, entries may be scalar (a bare
// prompt_id string) or tuple/array form ([prompt_id, extra...]); either way
// each element counts as exactly one item, so counting is simply len().
func ParseQueueCounts(snap QueueSnapshot) (running, pending int) {
	return len(snap.QueueRunning), len(snap.QueuePending)
}

// QueueEntryMatchesPromptID reports whether a raw queue entry (scalar or
// tuple form) refers to promptID, matching by equality against any scalar
// element rather than a fixed index, since worker implementations vary in
// whether the prompt_id is element 0 or 1 of the tuple.
func QueueEntryMatchesPromptID(entry any, promptID string) bool {
	switch v := entry.(type) {
	case string:
		return v == promptID
	case []any:
		for _, elem := range v {
			if s, ok := elem.(string); ok && s == promptID {
				return true
			}
		}
	}
	return false
}

// PromptResponse is the body returned by post_prompt on success.
type PromptResponse struct {
	PromptID string `json:"prompt_id"`
}

// PostPrompt submits a prompt to a worker. On transport failure it returns
// an error-shaped body and status 503, per spec.md section 4.3, so callers
// can treat transport failures the same way as an explicit 503 from the
// worker (re-enqueue).
func (c *Client) PostPrompt(ctx context.Context, baseURL string, prompt json.RawMessage, clientID string, auth Auth) (body []byte, status int) {
	payload, err := json.Marshal(map[string]any{"prompt": json.RawMessage(prompt), "client_id": clientID})
	if err != nil {
		return []byte(fmt.Sprintf(`{"error":%q}`, err.Error())), http.StatusServiceUnavailable
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/prompt", bytes.NewReader(payload))
	if err != nil {
		return []byte(fmt.Sprintf(`{"error":%q}`, err.Error())), http.StatusServiceUnavailable
	}
	req.Header.Set("Content-Type", "application/json")
	applyAuth(req, auth)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return []byte(fmt.Sprintf(`{"error":%q}`, err.Error())), http.StatusServiceUnavailable
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return []byte(fmt.Sprintf(`{"error":%q}`, err.Error())), http.StatusServiceUnavailable
	}
	return respBody, resp.StatusCode
}

// GetHistory fetches a single prompt's history record from its owning
// worker.
func (c *Client) GetHistory(ctx context.Context, baseURL, promptID string, auth Auth) (body []byte, status int, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/history/"+url.PathEscape(promptID), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("workerclient: get history: %w", gwerrors.ErrTransport)
	}
	applyAuth(req, auth)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("workerclient: get history: %w", gwerrors.ErrTransport)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("workerclient: get history: read body: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

// ProxyView streams a worker's /view endpoint response to w, used by the
// out-of-scope view-proxy collaborator entry point.
func (c *Client) ProxyView(ctx context.Context, baseURL string, query url.Values, auth Auth, w io.Writer) (contentType string, status int, err error) {
	target := strings.TrimSuffix(baseURL, "/") + "/view"
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", 0, fmt.Errorf("workerclient: proxy view: %w", gwerrors.ErrTransport)
	}
	applyAuth(req, auth)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("workerclient: proxy view: %w", gwerrors.ErrTransport)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", 0, fmt.Errorf("workerclient: proxy view: stream: %w", err)
	}
	return resp.Header.Get("Content-Type"), resp.StatusCode, nil
}

// OpenWS upgrades to a worker's persistent push channel, used by the
// progress monitor's per-worker read loop.
func (c *Client) OpenWS(ctx context.Context, baseURL string, auth Auth) (*websocket.Conn, error) {
	wsURL := strings.Replace(baseURL, "http://", "ws://", 1)
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)
	wsURL = strings.TrimSuffix(wsURL, "/") + "/ws"

	header := http.Header{}
	if auth.Username != "" || auth.Password != "" {
		req := &http.Request{Header: header}
		req.SetBasicAuth(auth.Username, auth.Password)
		header = req.Header
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("workerclient: open ws: %w", gwerrors.ErrTransport)
	}
	return conn, nil
}
