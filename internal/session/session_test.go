/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package session

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/docx-mcp-storage/internal/checkpoint"
	"github.com/NVIDIA/docx-mcp-storage/internal/errs"
	"github.com/NVIDIA/docx-mcp-storage/internal/index"
	"github.com/NVIDIA/docx-mcp-storage/internal/objstore/memstore"
	"github.com/NVIDIA/docx-mcp-storage/internal/wal"
)

const (
	tenant = "t1"
	sessID = "s1"
)

type fixture struct {
	ms    *memstore.Store
	store *Store
	idx   *index.Store
	wal   *wal.Store
	ckpt  *checkpoint.Store
}

func newFixture() *fixture {
	ms := memstore.New()
	idx := index.New(ms)
	w := wal.New(ms)
	ckpt := checkpoint.New(ms, "docx")
	return &fixture{ms: ms, store: New(ms, "docx", idx, w, ckpt), idx: idx, wal: w, ckpt: ckpt}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	payload := bytes.Repeat([]byte{0x50, 0x4b, 0x03, 0x04, 0xff}, 1024)
	require.NoError(t, f.store.Save(ctx, tenant, sessID, payload))

	got, err := f.store.Load(ctx, tenant, sessID)
	require.NoError(t, err)
	require.Equal(t, payload, got, "load returns exactly the saved bytes")
}

func TestLoadMissing(t *testing.T) {
	f := newFixture()
	_, err := f.store.Load(context.Background(), tenant, "nope")
	require.Error(t, err)
	require.True(t, errs.IsNotFound(err))
}

func TestExists(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	exists, pending, err := f.store.Exists(ctx, tenant, sessID)
	require.NoError(t, err)
	require.False(t, exists)
	require.False(t, pending)

	require.NoError(t, f.store.Save(ctx, tenant, sessID, []byte("doc")))
	_, err = f.idx.Add(ctx, tenant, sessID, index.AddOpts{Now: 100})
	require.NoError(t, err)
	pendingTrue := true
	_, err = f.idx.Update(ctx, tenant, sessID, index.UpdateOpts{PendingExternalChange: &pendingTrue})
	require.NoError(t, err)

	exists, pending, err = f.store.Exists(ctx, tenant, sessID)
	require.NoError(t, err)
	require.True(t, exists)
	require.True(t, pending, "probe surfaces the index's pending flag")
}

func TestDeleteFanOut(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.store.Save(ctx, tenant, sessID, []byte("doc")))
	_, err := f.wal.Append(ctx, tenant, sessID, []wal.Entry{{Operation: "x", Patch: []byte("{}")}})
	require.NoError(t, err)
	require.NoError(t, f.ckpt.Save(ctx, tenant, sessID, 1, []byte("c1")))
	require.NoError(t, f.ckpt.Save(ctx, tenant, sessID, 2, []byte("c2")))

	require.NoError(t, f.store.Delete(ctx, tenant, sessID))

	_, err = f.ms.Get(ctx, "t1/sessions/s1.docx")
	require.True(t, errs.IsNotFound(err), "blob removed")
	_, err = f.ms.Get(ctx, "t1/sessions/s1.wal")
	require.True(t, errs.IsNotFound(err), "WAL removed")
	infos, err := f.ckpt.List(ctx, tenant, sessID)
	require.NoError(t, err)
	require.Empty(t, infos, "all checkpoints removed")
}

func TestList(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	ids, err := f.store.List(ctx, tenant)
	require.NoError(t, err)
	require.Empty(t, ids)

	require.NoError(t, f.store.Save(ctx, tenant, "s2", []byte("b")))
	require.NoError(t, f.store.Save(ctx, tenant, "s1", []byte("a")))
	require.NoError(t, f.store.Save(ctx, "t-other", "s9", []byte("c")))

	// WAL and checkpoint artifacts under the same prefix must not surface
	// as sessions.
	_, err = f.wal.Append(ctx, tenant, "s1", []wal.Entry{{Operation: "x", Patch: []byte("{}")}})
	require.NoError(t, err)
	require.NoError(t, f.ckpt.Save(ctx, tenant, "s1", 1, []byte("c1")))

	ids, err = f.store.List(ctx, tenant)
	require.NoError(t, err)
	require.Equal(t, []string{"s1", "s2"}, ids)
}

func TestDeleteMissingSession(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.store.Delete(context.Background(), tenant, "never-existed"))
}
