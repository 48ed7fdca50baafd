// Package objstore defines the object-primitive contract that every
// backing store (local filesystem, S3, GCS, Azure Blob, or an in-memory
// fake) implements identically: GET/PUT/DELETE/LIST with ETag-conditional
// writes as the only synchronization primitive.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package objstore

import (
	"context"
	"time"
)

// Object is a value read back from the store, paired with its opaque
// version token (ETag, generation, or filesystem mtime/size pair,
// depending on backend).
type Object struct {
	Bytes []byte
	ETag  string
}

// Entry is one row of a List response.
type Entry struct {
	Key      string
	Size     int64
	Modified time.Time
}

// ListPage is one page of a List response; Cursor is opaque and passed back
// to continue.
type ListPage struct {
	Entries []Entry
	Cursor  string
}

// Store is the six-operation object primitive contract.
// Implementations must treat PreconditionFailed as non-retryable and signal
// it distinctly from transient faults. The S3 store retries transient faults
// on every operation per the backoff policy in RetryPolicy; the GCS and
// Azure Blob stores retry only their writes (Put, PutIfMatch, PutIfAbsent),
// and their Get, Delete and List return a transient fault on first failure.
type Store interface {
	// Get fetches bytes and the current ETag. Returns errs.NotFound if
	// absent.
	Get(ctx context.Context, key string) (Object, error)

	// Put writes unconditionally, for append-only artifacts like
	// checkpoint blobs. Returns the new ETag.
	Put(ctx context.Context, key string, data []byte) (string, error)

	// PutIfMatch writes only if the stored ETag equals etag. Returns
	// errs.PreconditionFailed on mismatch.
	PutIfMatch(ctx context.Context, key string, data []byte, etag string) (string, error)

	// PutIfAbsent writes only if the key does not currently exist. Returns
	// errs.PreconditionFailed if it does.
	PutIfAbsent(ctx context.Context, key string, data []byte) (string, error)

	// Delete removes key, reporting whether it existed.
	Delete(ctx context.Context, key string) (existed bool, err error)

	// List enumerates keys under prefix, paging via cursor.
	List(ctx context.Context, prefix, cursor string, limit int) (ListPage, error)
}

// RetryPolicy is the bounded exponential-backoff schedule for transient
// faults (network errors, 429, 5xx). PreconditionFailed is never retried
// here; it is signaled upward as a CAS conflict for the engine to handle.
type RetryPolicy struct {
	Base       time.Duration
	Factor     float64
	JitterMax  time.Duration
	MaxAttempt int
}

// DefaultRetryPolicy: base 200ms, factor 2, jitter 0-50ms, cap 6 attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Base:       200 * time.Millisecond,
		Factor:     2,
		JitterMax:  50 * time.Millisecond,
		MaxAttempt: 6,
	}
}

// Delay returns the sleep duration before retry attempt n (1-based), capped
// by the jitter ceiling added on top of the exponential base.
func (p RetryPolicy) Delay(n int, jitter time.Duration) time.Duration {
	d := p.Base
	for i := 1; i < n; i++ {
		d = time.Duration(float64(d) * p.Factor)
	}
	if jitter > p.JitterMax {
		jitter = p.JitterMax
	}
	return d + jitter
}
