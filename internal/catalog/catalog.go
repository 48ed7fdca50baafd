// Package catalog is a thin client for the external document/identity
// catalog that owns OAuth connection records. Credential issuance and the
// OAuth consent flow live in the catalog service itself; this client covers
// only the read/write surface the token broker and proxy need.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/NVIDIA/docx-mcp-storage/internal/errs"
)

// Connection is one stored OAuth connection for a tenant.
type Connection struct {
	ConnectionID     string   `json:"connection_id"`
	Tenant           string   `json:"tenant"`
	Provider         string   `json:"provider"`
	DisplayName      string   `json:"display_name"`
	ProviderAccount  string   `json:"provider_account_id"`
	AccessToken      string   `json:"access_token"`
	RefreshToken     string   `json:"refresh_token"`
	ExpiresAt        int64    `json:"expires_at"`
	Scopes           []string `json:"scopes"`
}

// Client is the interface the token broker and proxy depend on; Rotate and
// Get enforce tenant scoping at the call site (cross-tenant access is a
// hard error, never a silent miss).
type Client interface {
	GetConnection(ctx context.Context, tenant, connectionID string) (*Connection, error)
	ListConnections(ctx context.Context, tenant string) ([]*Connection, error)
	RotateTokens(ctx context.Context, tenant, connectionID, accessToken, refreshToken string, expiresAt int64) error
	ValidatePAT(ctx context.Context, token string) (tenant string, ok bool, err error)
	// ValidateOAuth validates an opaque OAuth access token against the
	// catalog directly on every call (no cache): revocation must take
	// effect immediately, which rules out the PAT's TTL cache.
	ValidateOAuth(ctx context.Context, token string) (tenant string, ok bool, err error)
}

// HTTPClient implements Client against the catalog's REST API: a generic
// HTTP+JSON surface over a single base URL, thin enough that plain
// net/http serves it.
type HTTPClient struct {
	baseURL  string
	apiToken string
	http     *http.Client
}

func NewHTTPClient(baseURL, apiToken string) *HTTPClient {
	return &HTTPClient{baseURL: baseURL, apiToken: apiToken, http: &http.Client{Timeout: 10 * time.Second}}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errs.Internal(err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errs.Internal(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return errs.CatalogError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return errs.CatalogError(fmt.Errorf("catalog %s %s: status %d: %s", method, path, resp.StatusCode, string(data)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPClient) GetConnection(ctx context.Context, tenant, connectionID string) (*Connection, error) {
	var conn Connection
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/tenants/%s/connections/%s", tenant, connectionID), nil, &conn); err != nil {
		return nil, err
	}
	if conn.Tenant != tenant {
		return nil, errs.Unauthorized("connection belongs to a different tenant")
	}
	return &conn, nil
}

func (c *HTTPClient) ListConnections(ctx context.Context, tenant string) ([]*Connection, error) {
	var conns []*Connection
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/tenants/%s/connections", tenant), nil, &conns); err != nil {
		return nil, err
	}
	return conns, nil
}

func (c *HTTPClient) RotateTokens(ctx context.Context, tenant, connectionID, accessToken, refreshToken string, expiresAt int64) error {
	body := map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"expires_at":    expiresAt,
	}
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/tenants/%s/connections/%s/tokens", tenant, connectionID), body, nil)
}

func (c *HTTPClient) ValidatePAT(ctx context.Context, token string) (string, bool, error) {
	var out struct {
		Tenant string `json:"tenant"`
		Valid  bool   `json:"valid"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/validate-pat", map[string]string{"token": token}, &out); err != nil {
		return "", false, err
	}
	return out.Tenant, out.Valid, nil
}

func (c *HTTPClient) ValidateOAuth(ctx context.Context, token string) (string, bool, error) {
	var out struct {
		Tenant string `json:"tenant"`
		Valid  bool   `json:"valid"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/validate-oauth", map[string]string{"token": token}, &out); err != nil {
		return "", false, err
	}
	return out.Tenant, out.Valid, nil
}
