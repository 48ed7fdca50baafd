// Package recovery serializes session re-initialization per tenant while
// letting recoveries for different tenants proceed in parallel.
// The shape is golang.org/x/sync/singleflight keyed by
// tenant: exactly one synthetic initialize per serialization window,
// every concurrent caller arriving during the window shares its result,
// which is precisely P5's testable property.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package recovery

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/NVIDIA/docx-mcp-storage/internal/errs"
	"github.com/NVIDIA/docx-mcp-storage/internal/glog"
	"github.com/NVIDIA/docx-mcp-storage/internal/metrics"
)

// Initializer performs the synthetic `initialize` handshake against the
// backend and returns the new session ID. Notify performs the follow-up
// `notifications/initialized` call, best-effort.
type Initializer interface {
	Initialize(ctx context.Context, tenant string) (newSessionID string, err error)
	NotifyInitialized(ctx context.Context, tenant, sessionID string) error
}

// SessionRegistry is the in-memory per-tenant cached-session-ID map the
// proxy consults before and after recovery.
type SessionRegistry interface {
	Get(tenant string) (sessionID string, ok bool)
	Set(tenant, sessionID string)
	Invalidate(tenant string)
}

// Recoverer serializes recovery per tenant via singleflight, so two
// concurrent 404s for the same tenant mint exactly one new session.
type Recoverer struct {
	init Initializer
	reg  SessionRegistry
	sf   singleflight.Group
}

func New(init Initializer, reg SessionRegistry) *Recoverer {
	return &Recoverer{init: init, reg: reg}
}

// Recover re-establishes the tenant's backend session. It is safe to
// call concurrently for the same tenant: only the first caller in a
// serialization window performs the handshake, the rest observe its
// result (or, if the registry already holds a newer session by the time
// they are scheduled, that session instead).
func (r *Recoverer) Recover(ctx context.Context, tenant string) (string, error) {
	r.reg.Invalidate(tenant)

	v, err, shared := r.sf.Do(tenant, func() (interface{}, error) {
		if sid, ok := r.reg.Get(tenant); ok {
			return sid, nil
		}

		newSID, err := r.init.Initialize(ctx, tenant)
		if err != nil {
			metrics.RecoveryAttempts.WithLabelValues("error").Inc()
			return nil, errs.SessionRecoveryFailed(err.Error())
		}
		if newSID == "" {
			metrics.RecoveryAttempts.WithLabelValues("error").Inc()
			return nil, errs.SessionRecoveryFailed("synthetic initialize did not yield a session ID")
		}
		metrics.RecoveryAttempts.WithLabelValues("success").Inc()

		if err := r.init.NotifyInitialized(ctx, tenant, newSID); err != nil {
			glog.Errorf("recovery: notifications/initialized failed for tenant %s (non-fatal): %v", tenant, err)
		}

		r.reg.Set(tenant, newSID)
		return newSID, nil
	})
	if err != nil {
		return "", err
	}

	sid := v.(string)
	if shared {
		glog.V(3).Infof("recovery: tenant %s shared an in-flight recovery result", tenant)
	}
	return sid, nil
}
