/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package tokenbroker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/NVIDIA/docx-mcp-storage/internal/catalog"
	"github.com/NVIDIA/docx-mcp-storage/internal/errs"
)

// fakeCatalog records token rotations and serves a single connection.
type fakeCatalog struct {
	catalog.Client

	conn        *catalog.Connection
	getCalls    int32
	rotateCalls int32

	rotatedAccess  string
	rotatedRefresh string

	patTenant string
	patValid  bool
	patCalls  int32
}

func (f *fakeCatalog) GetConnection(_ context.Context, tenant, connectionID string) (*catalog.Connection, error) {
	atomic.AddInt32(&f.getCalls, 1)
	if f.conn == nil || f.conn.Tenant != tenant || f.conn.ConnectionID != connectionID {
		return nil, errs.NotFound("connection")
	}
	c := *f.conn
	return &c, nil
}

func (f *fakeCatalog) RotateTokens(_ context.Context, tenant, connectionID, accessToken, refreshToken string, expiresAt int64) error {
	atomic.AddInt32(&f.rotateCalls, 1)
	f.rotatedAccess = accessToken
	f.rotatedRefresh = refreshToken
	f.conn.AccessToken = accessToken
	f.conn.RefreshToken = refreshToken
	f.conn.ExpiresAt = expiresAt
	return nil
}

func (f *fakeCatalog) ValidatePAT(_ context.Context, _ string) (string, bool, error) {
	atomic.AddInt32(&f.patCalls, 1)
	return f.patTenant, f.patValid, nil
}

// tokenServer is a minimal OAuth token endpoint.
func tokenServer(t *testing.T, hits *int32, accessToken, refreshToken string, expiresIn int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		body := `{"access_token":"` + accessToken + `","token_type":"Bearer","expires_in":` +
			strconv.Itoa(expiresIn)
		if refreshToken != "" {
			body += `,"refresh_token":"` + refreshToken + `"`
		}
		body += `}`
		w.Write([]byte(body))
	}))
}

func oauthCfg(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
	}
}

func TestCacheHitSkipsNetwork(t *testing.T) {
	var hits int32
	srv := tokenServer(t, &hits, "A1", "", 3600)
	defer srv.Close()

	cat := &fakeCatalog{conn: &catalog.Connection{
		ConnectionID: "c1", Tenant: "t1",
		AccessToken: "fresh", RefreshToken: "R1",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}}
	b := New(cat, oauthCfg(srv.URL))

	tok, err := b.GetValidToken(context.Background(), "t1", "c1")
	require.NoError(t, err)
	require.Equal(t, "fresh", tok, "a non-expired catalog token is served without a refresh")
	require.EqualValues(t, 0, hits)

	// Second call is a pure cache hit: no catalog read either.
	before := atomic.LoadInt32(&cat.getCalls)
	tok, err = b.GetValidToken(context.Background(), "t1", "c1")
	require.NoError(t, err)
	require.Equal(t, "fresh", tok)
	require.Equal(t, before, atomic.LoadInt32(&cat.getCalls))
}

func TestRefreshNearExpiry(t *testing.T) {
	var hits int32
	srv := tokenServer(t, &hits, "A2", "R2", 3600)
	defer srv.Close()

	// Token expires in 4 minutes: inside the 5-minute safety margin.
	cat := &fakeCatalog{conn: &catalog.Connection{
		ConnectionID: "c1", Tenant: "t1",
		AccessToken: "stale", RefreshToken: "R1",
		ExpiresAt: time.Now().Add(4 * time.Minute).Unix(),
	}}
	b := New(cat, oauthCfg(srv.URL))
	ctx := context.Background()

	tok, err := b.GetValidToken(ctx, "t1", "c1")
	require.NoError(t, err)
	require.Equal(t, "A2", tok)
	require.EqualValues(t, 1, hits)

	// Rotated tokens were persisted back to the catalog.
	require.EqualValues(t, 1, cat.rotateCalls)
	require.Equal(t, "A2", cat.rotatedAccess)
	require.Equal(t, "R2", cat.rotatedRefresh, "a returned refresh token replaces the stored one")

	// Within the new expiry window the cache answers with zero traffic.
	getBefore := atomic.LoadInt32(&cat.getCalls)
	tok, err = b.GetValidToken(ctx, "t1", "c1")
	require.NoError(t, err)
	require.Equal(t, "A2", tok)
	require.EqualValues(t, 1, hits, "no second refresh")
	require.Equal(t, getBefore, atomic.LoadInt32(&cat.getCalls), "no catalog read")
}

func TestRefreshKeepsOldRefreshToken(t *testing.T) {
	var hits int32
	srv := tokenServer(t, &hits, "A2", "", 3600) // response carries no refresh_token
	defer srv.Close()

	cat := &fakeCatalog{conn: &catalog.Connection{
		ConnectionID: "c1", Tenant: "t1",
		AccessToken: "stale", RefreshToken: "R1",
		ExpiresAt: time.Now().Add(time.Minute).Unix(),
	}}
	b := New(cat, oauthCfg(srv.URL))

	_, err := b.GetValidToken(context.Background(), "t1", "c1")
	require.NoError(t, err)
	require.Equal(t, "R1", cat.rotatedRefresh, "absent refresh token in the response keeps the old one")
}

func TestCrossTenantIsHardError(t *testing.T) {
	cat := &fakeCatalog{conn: &catalog.Connection{ConnectionID: "c1", Tenant: "t1"}}
	b := New(cat, oauthCfg("http://unused"))

	_, err := b.GetValidToken(context.Background(), "t-other", "c1")
	require.Error(t, err)
}

func TestSafetyMarginBoundary(t *testing.T) {
	var hits int32
	srv := tokenServer(t, &hits, "A2", "R2", 3600)
	defer srv.Close()

	cat := &fakeCatalog{conn: &catalog.Connection{
		ConnectionID: "c1", Tenant: "t1",
		AccessToken: "old", RefreshToken: "R1",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}}
	b := New(cat, oauthCfg(srv.URL))
	ctx := context.Background()

	_, err := b.GetValidToken(ctx, "t1", "c1")
	require.NoError(t, err)
	require.EqualValues(t, 0, hits)

	// Advance the broker's clock to 4 minutes before expiry: the cached
	// token must no longer be served.
	b.now = func() time.Time { return time.Unix(cat.conn.ExpiresAt, 0).Add(-4 * time.Minute) }
	tok, err := b.GetValidToken(ctx, "t1", "c1")
	require.NoError(t, err)
	require.Equal(t, "A2", tok)
	require.EqualValues(t, 1, hits, "within the margin a refresh is forced")
}

func TestTokenExpiryFromJWTClaim(t *testing.T) {
	now := func() time.Time { return time.Unix(1_700_000_000, 0) }

	// expires_in given: the provider's word wins.
	exp := tokenExpiry(&oauth2.Token{AccessToken: "opaque", Expiry: now().Add(time.Minute)}, now)
	require.Equal(t, now().Add(time.Minute), exp)

	// JWT-shaped token: the exp claim is used.
	claimExp := now().Add(30 * time.Minute)
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(claimExp),
	})
	signed, err := jt.SignedString([]byte("test-key"))
	require.NoError(t, err)
	exp = tokenExpiry(&oauth2.Token{AccessToken: signed}, now)
	require.Equal(t, claimExp.Unix(), exp.Unix())

	// Opaque token without expires_in: the one-hour fallback.
	exp = tokenExpiry(&oauth2.Token{AccessToken: "opaque"}, now)
	require.Equal(t, now().Add(time.Hour), exp)
}
