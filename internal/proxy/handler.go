package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/NVIDIA/docx-mcp-storage/internal/errs"
	"github.com/NVIDIA/docx-mcp-storage/internal/glog"
	"github.com/NVIDIA/docx-mcp-storage/internal/recovery"
)

const bodyCap = 10 << 20 // request-body cap

// Options configures the proxy's HTTP surface.
type Options struct {
	ResourceURL     string
	AuthServerURL   string
	Version         string
}

// Handler wires authentication, forwarding, and session recovery into
// the proxy's HTTP surface.
type Handler struct {
	auth      *Authenticator
	forwarder *Forwarder
	sessions  *SessionRegistry
	recoverer *recovery.Recoverer
	opts      Options
}

func NewHandler(auth *Authenticator, forwarder *Forwarder, sessions *SessionRegistry, opts Options) *Handler {
	return &Handler{
		auth:      auth,
		forwarder: forwarder,
		sessions:  sessions,
		recoverer: recovery.New(forwarder, sessions),
		opts:      opts,
	}
}

// Router builds the gorilla/mux router for the proxy's HTTP surface.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(corsMiddleware)
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/upstream-health", h.handleUpstreamHealth).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/.well-known/oauth-protected-resource", h.handleOAuthMetadata).Methods(http.MethodGet, http.MethodOptions)
	r.PathPrefix("/mcp").HandlerFunc(h.handleMCPForward)
	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "*")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type healthResponse struct {
	Healthy        bool  `json:"healthy"`
	Version        string `json:"version"`
	AuthEnabled    bool  `json:"auth_enabled"`
	BackendHealthy *bool `json:"backend_healthy,omitempty"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Healthy: true, Version: h.opts.Version, AuthEnabled: h.auth.Enabled()})
}

func (h *Handler) handleUpstreamHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.forwarder.backendURL+"/health", nil)
	ok := false
	if err == nil {
		if resp, err := http.DefaultClient.Do(req); err == nil {
			ok = resp.StatusCode >= 200 && resp.StatusCode < 300
			resp.Body.Close()
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{Healthy: ok, Version: h.opts.Version, AuthEnabled: h.auth.Enabled(), BackendHealthy: &ok})
}

func (h *Handler) handleOAuthMetadata(w http.ResponseWriter, r *http.Request) {
	resource := h.opts.ResourceURL
	authServer := h.opts.AuthServerURL
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	data, _ := json.Marshal(map[string]interface{}{
		"resource":                 resource,
		"authorization_servers":    []string{authServer},
		"bearer_methods_supported": []string{"header"},
		"scopes_supported":         []string{"mcp:tools"},
	})
	w.Write(data)
}

// handleMCPForward runs the full forward+recovery flow for one request.
func (h *Handler) handleMCPForward(w http.ResponseWriter, r *http.Request) {
	tenant, err := h.auth.Authenticate(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	body, err := readLimited(r.Body, bodyCap)
	if err != nil {
		h.writeError(w, err)
		return
	}

	isInit := isInitializeRequest(body)
	isDelete := r.Method == http.MethodDelete

	var sessionOverride string
	if !isInit {
		if sid, ok := h.sessions.Get(tenant); ok {
			sessionOverride = sid
		}
	}

	path := r.URL.Path
	query := ""
	if r.URL.RawQuery != "" {
		query = "?" + r.URL.RawQuery
	}

	resp, err := h.forwarder.SendWithRetry(r.Context(), r.Method, path, query, r.Header, tenant, sessionOverride, body)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if resp.Status == http.StatusNotFound && !isInit && !isDelete {
		resp, err = h.recover(r, tenant, path, query, body)
		if err != nil {
			h.writeError(w, err)
			return
		}
	}

	if sid := resp.Header.Get(headerMCPSessionID); sid != "" {
		h.sessions.Set(tenant, sid)
	}
	if isDelete && resp.Status >= 200 && resp.Status < 300 {
		h.sessions.Invalidate(tenant)
	}

	writeBackendResponse(w, resp)
}

// recover re-establishes the tenant's backend session, delegating
// serialization to the shared recoverer.
func (h *Handler) recover(r *http.Request, tenant, path, query string, body []byte) (*BackendResponse, error) {
	glog.Infof("proxy: session expired for tenant %s, attempting recovery", tenant)

	newSID, err := h.recoverer.Recover(r.Context(), tenant)
	if err != nil {
		return nil, err
	}
	h.sessions.Set(tenant, newSID)

	return h.forwarder.Send(r.Context(), r.Method, path, query, r.Header, tenant, newSID, body)
}

func isInitializeRequest(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	var v struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return false
	}
	return v.Method == "initialize"
}

func writeBackendResponse(w http.ResponseWriter, resp *BackendResponse) {
	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	if resp.IsSSE {
		defer resp.RawBody.Close()
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(resp.Status)
		flusher, ok := w.(http.Flusher)
		buf := make([]byte, 4096)
		for {
			n, err := resp.RawBody.Read(buf)
			if n > 0 {
				w.Write(buf[:n])
				if ok {
					flusher.Flush()
				}
			}
			if err != nil {
				return
			}
		}
	}
	w.WriteHeader(resp.Status)
	w.Write(resp.Body)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	e := errs.As(err)
	if e.Code == errs.CodeUnauthorized || e.Code == errs.CodeInvalidToken {
		if h.opts.ResourceURL != "" {
			w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer resource_metadata=%q`, h.opts.ResourceURL+"/.well-known/oauth-protected-resource"))
		}
	}
	writeJSON(w, e.Status, map[string]string{"error": e.Message, "code": e.Code})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	data, _ := json.Marshal(v)
	w.Write(data)
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	lr := io.LimitReader(r, limit+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errs.BodyTooLarge(limit)
	}
	return data, nil
}
