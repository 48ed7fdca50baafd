/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package proxy

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/docx-mcp-storage/internal/catalog"
	"github.com/NVIDIA/docx-mcp-storage/internal/errs"
	"github.com/NVIDIA/docx-mcp-storage/internal/tokenbroker"
)

// fakeCatalog answers token validation with fixed verdicts.
type fakeCatalog struct {
	catalog.Client

	patTenant   string
	patValid    bool
	oauthTenant string
	oauthValid  bool
	oauthCalls  int32
}

func (f *fakeCatalog) ValidatePAT(context.Context, string) (string, bool, error) {
	return f.patTenant, f.patValid, nil
}

func (f *fakeCatalog) ValidateOAuth(context.Context, string) (string, bool, error) {
	atomic.AddInt32(&f.oauthCalls, 1)
	return f.oauthTenant, f.oauthValid, nil
}

func newAuth(cat catalog.Client) *Authenticator {
	return NewAuthenticator(tokenbroker.NewPATValidator(cat, time.Minute, 10*time.Second), cat)
}

func TestAuthenticate(t *testing.T) {
	cat := &fakeCatalog{patTenant: "t-pat", patValid: true, oauthTenant: "t-oauth", oauthValid: true}
	a := newAuth(cat)
	ctx := context.Background()

	tenant, err := a.Authenticate(ctx, "Bearer dxs_good")
	require.NoError(t, err)
	require.Equal(t, "t-pat", tenant)

	tenant, err = a.Authenticate(ctx, "Bearer oat_good")
	require.NoError(t, err)
	require.Equal(t, "t-oauth", tenant)

	_, err = a.Authenticate(ctx, "")
	require.Equal(t, errs.CodeUnauthorized, errs.As(err).Code)

	_, err = a.Authenticate(ctx, "Bearer wat_scheme")
	require.Equal(t, errs.CodeInvalidToken, errs.As(err).Code)

	_, err = a.Authenticate(ctx, "Basic dXNlcjpwYXNz")
	require.Equal(t, errs.CodeUnauthorized, errs.As(err).Code)
}

func TestAuthenticateDisabled(t *testing.T) {
	a := NewAuthenticator(nil, nil)
	require.False(t, a.Enabled())
	tenant, err := a.Authenticate(context.Background(), "")
	require.NoError(t, err)
	require.Empty(t, tenant)
}

func TestOAuthValidatesLive(t *testing.T) {
	cat := &fakeCatalog{oauthTenant: "t1", oauthValid: true}
	a := newAuth(cat)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := a.Authenticate(ctx, "Bearer oat_tok")
		require.NoError(t, err)
	}
	require.EqualValues(t, 3, cat.oauthCalls, "OAuth tokens are never served from a cache")
}

func newTestHandler(backendURL string, auth *Authenticator, opts Options) *Handler {
	return NewHandler(auth, NewForwarder(backendURL), NewSessionRegistry(), opts)
}

func TestHealthEndpoints(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer backend.Close()

	h := newTestHandler(backend.URL, NewAuthenticator(nil, nil), Options{Version: "1.2.3"})
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `"healthy":true`)
	require.Contains(t, string(body), `"version":"1.2.3"`)
	require.Contains(t, string(body), `"auth_enabled":false`)

	resp, err = http.Get(srv.URL + "/upstream-health")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `"backend_healthy":true`)
}

func TestOAuthMetadata(t *testing.T) {
	h := newTestHandler("http://backend.invalid", NewAuthenticator(nil, nil), Options{
		ResourceURL:   "https://proxy.example.com",
		AuthServerURL: "https://auth.example.com",
	})
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/.well-known/oauth-protected-resource")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "public, max-age=3600", resp.Header.Get("Cache-Control"))
	body, _ := io.ReadAll(resp.Body)
	require.Contains(t, string(body), `"resource":"https://proxy.example.com"`)
	require.Contains(t, string(body), `"authorization_servers":["https://auth.example.com"]`)
	require.Contains(t, string(body), `"bearer_methods_supported":["header"]`)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestHandler("http://backend.invalid", NewAuthenticator(nil, nil), Options{})
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/health", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Methods"))
}

func TestUnauthorizedCarriesResourceMetadata(t *testing.T) {
	cat := &fakeCatalog{}
	h := newTestHandler("http://backend.invalid", newAuth(cat), Options{ResourceURL: "https://proxy.example.com"})
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/mcp", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Contains(t, resp.Header.Get("WWW-Authenticate"),
		`resource_metadata="https://proxy.example.com/.well-known/oauth-protected-resource"`)
	body, _ := io.ReadAll(resp.Body)
	require.Contains(t, string(body), errs.CodeUnauthorized)
}

// recoveryBackend simulates an editor backend that has forgotten session S1
// and mints S2 on initialize.
type recoveryBackend struct {
	initCalls   int32
	notifyCalls int32
	okCalls     int32
}

func (rb *recoveryBackend) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		switch {
		case strings.Contains(string(body), `"initialize"`):
			atomic.AddInt32(&rb.initCalls, 1)
			w.Header().Set(headerMCPSessionID, "S2")
			w.WriteHeader(http.StatusOK)
		case strings.Contains(string(body), "notifications/initialized"):
			atomic.AddInt32(&rb.notifyCalls, 1)
			w.WriteHeader(http.StatusAccepted)
		case r.Header.Get(headerMCPSessionID) == "S2":
			atomic.AddInt32(&rb.okCalls, 1)
			w.Header().Set(headerMCPSessionID, "S2")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"result":"ok"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func TestSessionRecovery(t *testing.T) {
	rb := &recoveryBackend{}
	backend := httptest.NewServer(rb.handler())
	defer backend.Close()

	h := newTestHandler(backend.URL, NewAuthenticator(nil, nil), Options{})
	h.sessions.Set("", "S1") // stale cached session for the anonymous tenant
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/mcp", "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","method":"tools/call","id":1}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	require.Equal(t, http.StatusOK, resp.StatusCode, "client sees the retried 200, not the 404")
	require.Equal(t, `{"result":"ok"}`, string(body))
	require.EqualValues(t, 1, rb.initCalls, "exactly one synthetic initialize")
	require.EqualValues(t, 1, rb.notifyCalls)
	require.EqualValues(t, 1, rb.okCalls)
	require.Equal(t, "S2", resp.Header.Get(headerMCPSessionID), "new session mirrored to the client")

	sid, ok := h.sessions.Get("")
	require.True(t, ok)
	require.Equal(t, "S2", sid)
}

func TestInitializeSkipsSessionInjection(t *testing.T) {
	var sawSession atomic.Value
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawSession.Store(r.Header.Get(headerMCPSessionID))
		w.Header().Set(headerMCPSessionID, "S-new")
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	h := newTestHandler(backend.URL, NewAuthenticator(nil, nil), Options{})
	h.sessions.Set("", "S-stale")
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/mcp", "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","method":"initialize","id":1}`))
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, "", sawSession.Load(), "initialize lets the backend mint a session")
	sid, _ := h.sessions.Get("")
	require.Equal(t, "S-new", sid, "the minted session is cached")
}

func TestDeleteInvalidatesSession(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	h := newTestHandler(backend.URL, NewAuthenticator(nil, nil), Options{})
	h.sessions.Set("", "S1")
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/mcp", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, ok := h.sessions.Get("")
	require.False(t, ok, "successful DELETE drops the cached session")
}

func TestDeleteNotFoundSkipsRecovery(t *testing.T) {
	var initSeen int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), `"initialize"`) {
			atomic.AddInt32(&initSeen, 1)
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer backend.Close()

	h := newTestHandler(backend.URL, NewAuthenticator(nil, nil), Options{})
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/mcp", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusNotFound, resp.StatusCode, "the backend's 404 passes through")
	require.Zero(t, initSeen, "DELETE never triggers recovery")
}

func TestSSEPassthrough(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("event: message\ndata: {\"a\":1}\n\n"))
		w.Write([]byte("event: message\ndata: {\"a\":2}\n\n"))
	}))
	defer backend.Close()

	h := newTestHandler(backend.URL, NewAuthenticator(nil, nil), Options{})
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/mcp", "application/json", strings.NewReader(`{"method":"x"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")
	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, "event: message\ndata: {\"a\":1}\n\nevent: message\ndata: {\"a\":2}\n\n", string(body),
		"SSE bytes stream through unmodified")
}

func TestForwardHeaderAllowList(t *testing.T) {
	var got http.Header
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	f := NewForwarder(backend.URL)
	hdr := http.Header{}
	hdr.Set("Content-Type", "application/json")
	hdr.Set("Accept", "text/event-stream")
	hdr.Set("Last-Event-ID", "41")
	hdr.Set("X-Secret-Internal", "do-not-forward")

	_, err := f.Send(context.Background(), http.MethodPost, "/mcp", "", hdr, "t1", "S9", []byte("{}"))
	require.NoError(t, err)

	require.Equal(t, "application/json", got.Get("Content-Type"))
	require.Equal(t, "text/event-stream", got.Get("Accept"))
	require.Equal(t, "41", got.Get("Last-Event-ID"))
	require.Equal(t, "S9", got.Get(headerMCPSessionID))
	require.Equal(t, "t1", got.Get(headerTenantID))
	require.Empty(t, got.Get("X-Secret-Internal"), "only allow-listed headers pass")
}

func TestBackoffSchedule(t *testing.T) {
	require.Equal(t, 500*time.Millisecond, backoffDelay(1))
	require.Equal(t, time.Second, backoffDelay(2))
	require.Equal(t, 2*time.Second, backoffDelay(3))
	require.Equal(t, 4*time.Second, backoffDelay(4))
	require.Equal(t, 5*time.Second, backoffDelay(5), "capped")
	require.Equal(t, 5*time.Second, backoffDelay(8))
}

func TestIsInitializeRequest(t *testing.T) {
	require.True(t, isInitializeRequest([]byte(`{"jsonrpc":"2.0","method":"initialize"}`)))
	require.False(t, isInitializeRequest([]byte(`{"method":"tools/call"}`)))
	require.False(t, isInitializeRequest(nil))
	require.False(t, isInitializeRequest([]byte("not json")))
}

func TestReadLimited(t *testing.T) {
	data, err := readLimited(strings.NewReader("small"), 10)
	require.NoError(t, err)
	require.Equal(t, []byte("small"), data)

	_, err = readLimited(strings.NewReader(strings.Repeat("x", 11)), 10)
	require.Error(t, err)
	require.Equal(t, errs.CodeBodyTooLarge, errs.As(err).Code)
}

func TestRetryOn502(t *testing.T) {
	var calls int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	f := NewForwarder(backend.URL)
	resp, err := f.SendWithRetry(context.Background(), http.MethodPost, "/mcp", "", http.Header{}, "t1", "", []byte("{}"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.Status)
	require.EqualValues(t, 2, calls, "a 502 is retried")
}

func TestSessionRegistry(t *testing.T) {
	r := NewSessionRegistry()
	_, ok := r.Get("t1")
	require.False(t, ok)

	r.Set("t1", "S1")
	sid, ok := r.Get("t1")
	require.True(t, ok)
	require.Equal(t, "S1", sid)

	r.Set("t1", "S2")
	sid, _ = r.Get("t1")
	require.Equal(t, "S2", sid, "last writer wins")

	r.Invalidate("t1")
	_, ok = r.Get("t1")
	require.False(t, ok)
}
