/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package recovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/docx-mcp-storage/internal/errs"
)

type fakeInit struct {
	initCalls   int32
	notifyCalls int32
	initErr     error
	emptySID    bool
	delay       time.Duration
}

func (f *fakeInit) Initialize(context.Context, string) (string, error) {
	n := atomic.AddInt32(&f.initCalls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.initErr != nil {
		return "", f.initErr
	}
	if f.emptySID {
		return "", nil
	}
	return fmt.Sprintf("sid-%d", n), nil
}

func (f *fakeInit) NotifyInitialized(context.Context, string, string) error {
	atomic.AddInt32(&f.notifyCalls, 1)
	return nil
}

type mapRegistry struct {
	mu sync.Mutex
	m  map[string]string
}

func newMapRegistry() *mapRegistry { return &mapRegistry{m: make(map[string]string)} }

func (r *mapRegistry) Get(tenant string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sid, ok := r.m[tenant]
	return sid, ok
}

func (r *mapRegistry) Set(tenant, sid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[tenant] = sid
}

func (r *mapRegistry) Invalidate(tenant string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, tenant)
}

func TestRecoverMintsSession(t *testing.T) {
	init := &fakeInit{}
	reg := newMapRegistry()
	r := New(init, reg)

	sid, err := r.Recover(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, "sid-1", sid)
	require.EqualValues(t, 1, init.initCalls)
	require.EqualValues(t, 1, init.notifyCalls)

	got, ok := reg.Get("t1")
	require.True(t, ok)
	require.Equal(t, sid, got)
}

func TestConcurrentRecoverySingleInitialize(t *testing.T) {
	init := &fakeInit{delay: 50 * time.Millisecond}
	reg := newMapRegistry()
	r := New(init, reg)

	const n = 8
	sids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			sid, err := r.Recover(context.Background(), "t1")
			require.NoError(t, err)
			sids[i] = sid
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, init.initCalls, "one synthetic initialize per serialization window")
	for _, sid := range sids {
		require.Equal(t, sids[0], sid, "every concurrent caller observes the same session")
	}
}

func TestRecoverParallelAcrossTenants(t *testing.T) {
	init := &fakeInit{delay: 20 * time.Millisecond}
	reg := newMapRegistry()
	r := New(init, reg)

	var wg sync.WaitGroup
	for _, tenant := range []string{"t1", "t2", "t3"} {
		tenant := tenant
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Recover(context.Background(), tenant)
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.EqualValues(t, 3, init.initCalls, "tenants recover independently")
}

func TestRecoverInitializeFails(t *testing.T) {
	init := &fakeInit{initErr: errors.New("backend said no")}
	r := New(init, newMapRegistry())

	_, err := r.Recover(context.Background(), "t1")
	require.Error(t, err)
	require.Equal(t, errs.CodeSessionRecoveryFail, errs.As(err).Code)
}

func TestRecoverEmptySessionID(t *testing.T) {
	init := &fakeInit{emptySID: true}
	r := New(init, newMapRegistry())

	_, err := r.Recover(context.Background(), "t1")
	require.Error(t, err)
	require.Equal(t, errs.CodeSessionRecoveryFail, errs.As(err).Code)
}
