// Package proxy implements the session-recovery reverse proxy:
// bearer-token authentication, tenant resolution, backend forwarding with
// bounded retry, and transparent re-initialization of lost sessions.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package proxy

import (
	"context"
	"strings"

	"github.com/NVIDIA/docx-mcp-storage/internal/catalog"
	"github.com/NVIDIA/docx-mcp-storage/internal/errs"
	"github.com/NVIDIA/docx-mcp-storage/internal/tokenbroker"
)

// Token scheme prefixes.
const (
	oauthTokenPrefix = "oat_"
	patTokenPrefix   = "dxs_"
)

// Authenticator classifies a bearer token by prefix and resolves it to a
// tenant ID: PATs via the cached PATValidator (positive/negative TTL),
// OAuth access tokens via a live, uncached catalog call so revocation is
// immediate.
type Authenticator struct {
	pat     *tokenbroker.PATValidator
	catalog catalog.Client
}

func NewAuthenticator(pat *tokenbroker.PATValidator, cat catalog.Client) *Authenticator {
	return &Authenticator{pat: pat, catalog: cat}
}

// Enabled reports whether authentication is configured at all; when
// neither validator is wired the proxy runs with a fixed empty tenant,
// matching the original's "Auth: DISABLED" fallback for local dev.
func (a *Authenticator) Enabled() bool { return a.pat != nil || a.catalog != nil }

// Authenticate extracts and validates the bearer token, returning the
// resolved tenant ID.
func (a *Authenticator) Authenticate(ctx context.Context, authHeader string) (string, error) {
	if !a.Enabled() {
		return "", nil
	}

	token := extractBearer(authHeader)
	if token == "" {
		return "", errs.Unauthorized("missing bearer token")
	}

	switch {
	case strings.HasPrefix(token, oauthTokenPrefix):
		if a.catalog == nil {
			return "", errs.InvalidToken("OAuth validation is not configured")
		}
		tenant, ok, err := a.catalog.ValidateOAuth(ctx, token)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", errs.InvalidToken("OAuth access token rejected")
		}
		return tenant, nil
	case strings.HasPrefix(token, patTokenPrefix):
		if a.pat == nil {
			return "", errs.InvalidToken("PAT validation is not configured")
		}
		return a.pat.Validate(ctx, token)
	default:
		return "", errs.InvalidToken("unrecognized bearer token scheme")
	}
}

func extractBearer(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimPrefix(header, prefix)
}
