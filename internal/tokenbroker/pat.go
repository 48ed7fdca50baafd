package tokenbroker

import (
	"context"
	"sync"
	"time"

	"github.com/NVIDIA/docx-mcp-storage/internal/catalog"
	"github.com/NVIDIA/docx-mcp-storage/internal/errs"
)

// patCacheEntry caches a PAT validation result for PositiveTTL (valid) or
// NegativeTTL (invalid). The negative TTL is deliberately the smaller of
// the two so a freshly issued PAT isn't locked out by a stale miss.
type patCacheEntry struct {
	tenant    string
	valid     bool
	expiresAt time.Time
}

// PATValidator caches PAT validation results from the catalog. OAuth
// access tokens never go through this cache; they always validate live so
// revocations take effect immediately.
type PATValidator struct {
	catalog     catalog.Client
	positiveTTL time.Duration
	negativeTTL time.Duration
	now         func() time.Time

	mu    sync.Mutex
	cache map[string]patCacheEntry
}

func NewPATValidator(cat catalog.Client, positiveTTL, negativeTTL time.Duration) *PATValidator {
	return &PATValidator{
		catalog:     cat,
		positiveTTL: positiveTTL,
		negativeTTL: negativeTTL,
		now:         time.Now,
		cache:       make(map[string]patCacheEntry),
	}
}

// Validate returns the tenant ID for a valid PAT, or an *errs.Error
// (InvalidToken) if invalid.
func (v *PATValidator) Validate(ctx context.Context, token string) (string, error) {
	v.mu.Lock()
	entry, ok := v.cache[token]
	v.mu.Unlock()
	if ok && v.now().Before(entry.expiresAt) {
		if entry.valid {
			return entry.tenant, nil
		}
		return "", errs.InvalidToken("token rejected (cached)")
	}

	tenant, valid, err := v.catalog.ValidatePAT(ctx, token)
	if err != nil {
		return "", err
	}

	ttl := v.negativeTTL
	if valid {
		ttl = v.positiveTTL
	}
	v.mu.Lock()
	v.cache[token] = patCacheEntry{tenant: tenant, valid: valid, expiresAt: v.now().Add(ttl)}
	v.mu.Unlock()

	if !valid {
		return "", errs.InvalidToken("invalid personal access token")
	}
	return tenant, nil
}
