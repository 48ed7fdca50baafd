// Package cas implements the optimistic read-modify-write engine:
// load a JSON value, apply a pure mutator, write it back
// guarded by ETag, retrying on conflict up to a bounded attempt count.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package cas

import (
	"context"

	jsoniter "github.com/json-iterator/go"

	"github.com/NVIDIA/docx-mcp-storage/internal/errs"
	"github.com/NVIDIA/docx-mcp-storage/internal/glog"
	"github.com/NVIDIA/docx-mcp-storage/internal/metrics"
	"github.com/NVIDIA/docx-mcp-storage/internal/objstore"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MaxAttempts bounds the conflict-retry loop.
const MaxAttempts = 10

// Mutator mutates v in place. It must be a pure function of v; it may run
// more than once if the underlying ETag write loses a race.
type Mutator[T any] func(v T)

// Engine runs the CAS loop against a single objstore.Store.
type Engine struct {
	Store objstore.Store
}

func New(store objstore.Store) *Engine {
	return &Engine{Store: store}
}

// Do loads the JSON value at key (or newDefault() if absent), applies
// mutate, and writes the result back under ETag CAS, retrying up to
// MaxAttempts times on conflict. It returns the mutated value as last
// observed by a successful write.
func Do[T any](ctx context.Context, e *Engine, key string, newDefault func() T, mutate Mutator[T]) (T, error) {
	var zero T
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		var (
			current T
			etag    string
			has     bool
		)
		obj, err := e.Store.Get(ctx, key)
		switch {
		case errs.IsNotFound(err):
			current = newDefault()
			has = false
		case err != nil:
			return zero, err
		default:
			current = newDefault()
			if len(obj.Bytes) > 0 {
				if uerr := json.Unmarshal(obj.Bytes, &current); uerr != nil {
					return zero, errs.Internal(uerr)
				}
			}
			etag = obj.ETag
			has = true
		}

		mutate(current)

		data, merr := json.Marshal(current)
		if merr != nil {
			return zero, errs.Internal(merr)
		}

		var werr error
		if has {
			_, werr = e.Store.PutIfMatch(ctx, key, data, etag)
		} else {
			_, werr = e.Store.PutIfAbsent(ctx, key, data)
		}
		if werr == nil {
			return current, nil
		}
		if !errs.IsPreconditionFailed(werr) {
			return zero, werr
		}
		glog.V(3).Infof("cas: conflict on %s, retry %d/%d", key, attempt, MaxAttempts)
		metrics.CasRetries.Inc()
	}
	metrics.CasExhausted.Inc()
	return zero, errs.CasExhausted(key, MaxAttempts)
}
