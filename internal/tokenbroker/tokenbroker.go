// Package tokenbroker implements the per-connection OAuth access-token
// cache with silent refresh: cache hit -> catalog read -> provider refresh
// -> persist rotated tokens, in that order, with the cache authoritative
// if the final persist fails.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package tokenbroker

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/oauth2"

	"github.com/NVIDIA/docx-mcp-storage/internal/catalog"
	"github.com/NVIDIA/docx-mcp-storage/internal/errs"
	"github.com/NVIDIA/docx-mcp-storage/internal/glog"
)

// SafetyMargin is the "never serve a token within N of expiry" window of
// invariant I5.
const SafetyMargin = 5 * time.Minute

type cacheEntry struct {
	accessToken string
	expiresAt   time.Time
}

// Broker caches per-connection access tokens and refreshes them against an
// OAuth identity provider, persisting rotated tokens back to the catalog.
type Broker struct {
	catalog  catalog.Client
	oauthCfg *oauth2.Config
	now      func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry // connection_id -> entry
}

func New(cat catalog.Client, oauthCfg *oauth2.Config) *Broker {
	return &Broker{
		catalog:  cat,
		oauthCfg: oauthCfg,
		now:      time.Now,
		cache:    make(map[string]cacheEntry),
	}
}

func (b *Broker) cacheKey(tenant, connectionID string) string { return tenant + "/" + connectionID }

// GetValidToken returns a usable access token for (tenant, connectionID),
// refreshing it if the cached or catalog-stored token is within
// SafetyMargin of expiry.
func (b *Broker) GetValidToken(ctx context.Context, tenant, connectionID string) (string, error) {
	key := b.cacheKey(tenant, connectionID)

	b.mu.Lock()
	entry, ok := b.cache[key]
	b.mu.Unlock()
	if ok && b.now().Add(SafetyMargin).Before(entry.expiresAt) {
		return entry.accessToken, nil
	}

	conn, err := b.catalog.GetConnection(ctx, tenant, connectionID)
	if err != nil {
		return "", err
	}

	expiresAt := time.Unix(conn.ExpiresAt, 0)
	if b.now().Add(SafetyMargin).Before(expiresAt) {
		b.store(key, conn.AccessToken, expiresAt)
		return conn.AccessToken, nil
	}

	return b.refresh(ctx, tenant, connectionID, conn)
}

func (b *Broker) refresh(ctx context.Context, tenant, connectionID string, conn *catalog.Connection) (string, error) {
	src := b.oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: conn.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		return "", errs.Wrap(502, errs.CodeD1Error, err)
	}

	newRefresh := conn.RefreshToken
	if tok.RefreshToken != "" {
		newRefresh = tok.RefreshToken
	}
	expiresAt := tokenExpiry(tok, b.now)

	if perr := b.catalog.RotateTokens(ctx, tenant, connectionID, tok.AccessToken, newRefresh, expiresAt.Unix()); perr != nil {
		// Persistence failure is logged but non-fatal: the in-memory
		// cache remains authoritative until process restart.
		glog.Errorf("tokenbroker: failed to persist rotated tokens for %s/%s: %v", tenant, connectionID, perr)
	}

	b.store(b.cacheKey(tenant, connectionID), tok.AccessToken, expiresAt)
	return tok.AccessToken, nil
}

// tokenExpiry resolves a refreshed token's expiry: the provider's expires_in
// when given; else, for JWT-shaped access tokens, the exp claim (parsed
// unverified, since the broker is a client of the provider, not a
// validator); else one hour.
func tokenExpiry(tok *oauth2.Token, now func() time.Time) time.Time {
	if !tok.Expiry.IsZero() {
		return tok.Expiry
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok.AccessToken, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return now().Add(time.Hour)
}

func (b *Broker) store(key, accessToken string, expiresAt time.Time) {
	b.mu.Lock()
	b.cache[key] = cacheEntry{accessToken: accessToken, expiresAt: expiresAt}
	b.mu.Unlock()
}
