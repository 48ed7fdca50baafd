package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/NVIDIA/docx-mcp-storage/internal/errs"
	"github.com/NVIDIA/docx-mcp-storage/internal/glog"
	"github.com/NVIDIA/docx-mcp-storage/internal/metrics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Retry/backoff schedule: 500ms, 1s, 2s, 4s, then capped at 5s; up to 8
// retries after the first attempt (budget about 27.5s, sized to absorb
// backend cold starts).
const (
	maxRetries       = 8
	initialBackoffMs = 500
	maxBackoffMs     = 5000
	forwardTimeout   = 30 * time.Second
)

const (
	headerMCPSessionID = "Mcp-Session-Id"
	headerLastEventID  = "Last-Event-ID"
	headerTenantID     = "X-Tenant-Id"
)

// forwardHeaders is the fixed allow-list of client headers passed through.
var forwardHeaders = []string{"Content-Type", "Accept"}

// Forwarder sends requests to the document-protocol backend with the
// proxy's retry/backoff schedule.
type Forwarder struct {
	http       *http.Client
	backendURL string
}

func NewForwarder(backendURL string) *Forwarder {
	return &Forwarder{
		http:       &http.Client{Timeout: forwardTimeout},
		backendURL: strings.TrimRight(backendURL, "/"),
	}
}

// BackendResponse is the outcome of forwarding a request, kept distinct
// from *http.Response so SSE and buffered bodies can be handled
// uniformly by the caller.
type BackendResponse struct {
	Status     int
	Header     http.Header
	IsSSE      bool
	Body       []byte          // populated for non-SSE responses
	RawBody    io.ReadCloser   // populated for SSE responses; caller must close
}

func isRetryableStatus(status int) bool { return status == 502 || status == 503 }

func backoffDelay(attempt int) time.Duration {
	ms := initialBackoffMs * (1 << uint(attempt-1))
	if ms > maxBackoffMs {
		ms = maxBackoffMs
	}
	return time.Duration(ms) * time.Millisecond
}

// SendWithRetry retries the whole send on connection-level faults or
// 502/503 with the fixed backoff schedule.
func (f *Forwarder) SendWithRetry(ctx context.Context, method, path, query string, clientHeaders http.Header, tenant string, sessionOverride string, body []byte) (*BackendResponse, error) {
	start := time.Now()
	defer func() { metrics.ForwardLatency.Observe(time.Since(start).Seconds()) }()

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt)
			glog.V(3).Infof("proxy: retrying backend request (%d/%d) after %v", attempt, maxRetries, delay)
			metrics.ProxyRetries.Inc()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := f.send(ctx, method, path, query, clientHeaders, tenant, sessionOverride, body)
		if err != nil {
			if attempt < maxRetries {
				lastErr = err
				continue
			}
			metrics.ProxyRetriesExhausted.Inc()
			return nil, errs.BackendUnavailable(maxRetries + 1)
		}
		if isRetryableStatus(resp.Status) && attempt < maxRetries {
			lastErr = fmt.Errorf("backend returned %d", resp.Status)
			continue
		}
		return resp, nil
	}
	if lastErr != nil {
		glog.Warningf("proxy: all %d retries exhausted: %v", maxRetries, lastErr)
	}
	metrics.ProxyRetriesExhausted.Inc()
	return nil, errs.BackendUnavailable(maxRetries + 1)
}

// Send forwards a single request with no retry, used for the post-recovery retry.
func (f *Forwarder) Send(ctx context.Context, method, path, query string, clientHeaders http.Header, tenant string, sessionOverride string, body []byte) (*BackendResponse, error) {
	return f.send(ctx, method, path, query, clientHeaders, tenant, sessionOverride, body)
}

func (f *Forwarder) send(ctx context.Context, method, path, query string, clientHeaders http.Header, tenant string, sessionOverride string, body []byte) (*BackendResponse, error) {
	url := f.backendURL + path + query

	var reqBody io.Reader
	if len(body) > 0 {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, errs.Internal(err)
	}

	for _, h := range forwardHeaders {
		if v := clientHeaders.Get(h); v != "" {
			req.Header.Set(h, v)
		}
	}
	if sessionOverride != "" {
		req.Header.Set(headerMCPSessionID, sessionOverride)
	} else if v := clientHeaders.Get(headerMCPSessionID); v != "" {
		req.Header.Set(headerMCPSessionID, v)
	}
	if v := clientHeaders.Get(headerLastEventID); v != "" {
		req.Header.Set(headerLastEventID, v)
	}
	req.Header.Set(headerTenantID, tenant)

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, errs.BackendError(fmt.Sprintf("failed to reach backend: %v", err))
	}

	isSSE := strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream")
	if isSSE {
		return &BackendResponse{Status: resp.StatusCode, Header: resp.Header, IsSSE: true, RawBody: resp.Body}, nil
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.BackendError(fmt.Sprintf("failed to read backend response: %v", err))
	}
	return &BackendResponse{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// Initialize performs the synthetic initialize + notifications/initialized
// handshake to obtain a new session ID. It implements recovery.Initializer.
func (f *Forwarder) Initialize(ctx context.Context, tenant string) (string, error) {
	initBody := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]interface{}{
			"protocolVersion": "2025-03-26",
			"capabilities":    map[string]interface{}{},
			"clientInfo": map[string]interface{}{
				"name":    "docx-mcp-storage-proxy",
				"version": "1.0.0",
			},
		},
	}
	data, err := json.Marshal(initBody)
	if err != nil {
		return "", errs.Internal(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.backendURL+"/mcp", bytes.NewReader(data))
	if err != nil {
		return "", errs.Internal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerTenantID, tenant)

	resp, err := f.http.Do(req)
	if err != nil {
		return "", errs.SessionRecoveryFailed(fmt.Sprintf("initialize request failed: %v", err))
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errs.SessionRecoveryFailed(fmt.Sprintf("initialize returned %d", resp.StatusCode))
	}
	newSID := resp.Header.Get(headerMCPSessionID)
	if newSID == "" {
		return "", errs.SessionRecoveryFailed("initialize response missing Mcp-Session-Id header")
	}
	return newSID, nil
}

// NotifyInitialized sends the best-effort notifications/initialized
// follow-up; failures here never fail recovery.
func (f *Forwarder) NotifyInitialized(ctx context.Context, tenant, sessionID string) error {
	notifBody := map[string]interface{}{"jsonrpc": "2.0", "method": "notifications/initialized"}
	data, err := json.Marshal(notifBody)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.backendURL+"/mcp", bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerMCPSessionID, sessionID)
	req.Header.Set(headerTenantID, tenant)

	resp, err := f.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notifications/initialized returned %d", resp.StatusCode)
	}
	return nil
}
