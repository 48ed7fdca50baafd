package objstore

import (
	"context"
	"math/rand"
	"time"

	"github.com/NVIDIA/docx-mcp-storage/internal/glog"
)

// Transient classifies an underlying transport error as retryable. Backends
// supply their own classifier (HTTP status mapping, filesystem errno
// mapping); WithRetry drives the shared backoff loop around it.
type Transient func(error) bool

// WithRetry runs op up to policy.MaxAttempt times, sleeping per
// policy.Delay between attempts while isTransient(err) holds. A
// PreconditionFailed or any non-transient error returns immediately.
func WithRetry(ctx context.Context, policy RetryPolicy, isTransient Transient, op func() error) error {
	var err error
	for attempt := 1; attempt <= policy.MaxAttempt; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		if attempt == policy.MaxAttempt {
			break
		}
		delay := policy.Delay(attempt, time.Duration(rand.Int63n(int64(policy.JitterMax)+1)))
		glog.V(3).Infof("objstore: transient error, retrying in %s (attempt %d/%d): %v", delay, attempt, policy.MaxAttempt, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
