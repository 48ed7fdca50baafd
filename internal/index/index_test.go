/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package index

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/docx-mcp-storage/internal/objstore/memstore"
)

const tenant = "t1"

func u64(v uint64) *uint64 { return &v }
func i64(v int64) *int64   { return &v }
func b(v bool) *bool       { return &v }

func TestAddAndLoad(t *testing.T) {
	s := New(memstore.New())
	ctx := context.Background()

	e, err := s.Add(ctx, tenant, "s1", AddOpts{SourcePath: "/docs/report.docx", DocumentFileName: "report.docx", Now: 100})
	require.NoError(t, err)
	require.EqualValues(t, 100, e.CreatedAt)
	require.EqualValues(t, 100, e.ModifiedAt)
	require.Zero(t, e.WalPosition)

	idx, err := s.Load(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, idx.Sessions, 1)
	require.Equal(t, "/docs/report.docx", idx.Sessions["s1"].SourcePath)

	// Load of an unknown tenant is an empty index, not an error.
	idx, err = s.Load(ctx, "t-unknown")
	require.NoError(t, err)
	require.Empty(t, idx.Sessions)
}

func TestUpdateWalPositionAdvancesCursor(t *testing.T) {
	s := New(memstore.New())
	ctx := context.Background()
	_, err := s.Add(ctx, tenant, "s1", AddOpts{Now: 100})
	require.NoError(t, err)

	res, err := s.Update(ctx, tenant, "s1", UpdateOpts{WalPosition: u64(5), ModifiedAt: i64(200)})
	require.NoError(t, err)
	require.True(t, res.Success)

	idx, _ := s.Load(ctx, tenant)
	e := idx.Sessions["s1"]
	require.EqualValues(t, 5, e.WalPosition)
	require.EqualValues(t, 5, e.CursorPosition, "cursor auto-advances with the WAL tip")
	require.EqualValues(t, 200, e.ModifiedAt)

	// An explicit cursor wins over the auto-advance.
	_, err = s.Update(ctx, tenant, "s1", UpdateOpts{WalPosition: u64(9), CursorPosition: u64(3)})
	require.NoError(t, err)
	idx, _ = s.Load(ctx, tenant)
	e = idx.Sessions["s1"]
	require.EqualValues(t, 9, e.WalPosition)
	require.EqualValues(t, 3, e.CursorPosition)
}

func TestUpdateCheckpointPositions(t *testing.T) {
	s := New(memstore.New())
	ctx := context.Background()
	_, err := s.Add(ctx, tenant, "s1", AddOpts{Now: 100})
	require.NoError(t, err)

	_, err = s.Update(ctx, tenant, "s1", UpdateOpts{AddCheckpointPositions: []uint64{5, 2, 5, 9}})
	require.NoError(t, err)
	idx, _ := s.Load(ctx, tenant)
	require.Equal(t, []uint64{2, 5, 9}, idx.Sessions["s1"].CheckpointPositions, "deduplicated and sorted ascending")

	_, err = s.Update(ctx, tenant, "s1", UpdateOpts{AddCheckpointPositions: []uint64{7}, RemoveCheckpointPositions: []uint64{5, 42}})
	require.NoError(t, err)
	idx, _ = s.Load(ctx, tenant)
	require.Equal(t, []uint64{2, 7, 9}, idx.Sessions["s1"].CheckpointPositions)
}

func TestUpdateFlagsAndSourcePath(t *testing.T) {
	s := New(memstore.New())
	ctx := context.Background()
	_, err := s.Add(ctx, tenant, "s1", AddOpts{SourcePath: "/old", Now: 100})
	require.NoError(t, err)

	newPath := "/new"
	_, err = s.Update(ctx, tenant, "s1", UpdateOpts{PendingExternalChange: b(true), SourcePath: &newPath})
	require.NoError(t, err)
	idx, _ := s.Load(ctx, tenant)
	require.True(t, idx.Sessions["s1"].PendingExternalChange)
	require.Equal(t, "/new", idx.Sessions["s1"].SourcePath)
}

func TestUpdateMissingSession(t *testing.T) {
	s := New(memstore.New())
	res, err := s.Update(context.Background(), tenant, "nope", UpdateOpts{WalPosition: u64(1)})
	require.NoError(t, err, "updating a missing session is reported, not errored")
	require.False(t, res.Success)
	require.True(t, res.NotFound)
}

func TestRemove(t *testing.T) {
	s := New(memstore.New())
	ctx := context.Background()
	_, err := s.Add(ctx, tenant, "s1", AddOpts{Now: 100})
	require.NoError(t, err)

	existed, err := s.Remove(ctx, tenant, "s1")
	require.NoError(t, err)
	require.True(t, existed)

	existed, err = s.Remove(ctx, tenant, "s1")
	require.NoError(t, err)
	require.False(t, existed)
}

func TestConcurrentAdd(t *testing.T) {
	s := New(memstore.New())
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Add(ctx, tenant, fmt.Sprintf("s%d", i), AddOpts{Now: int64(i)})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	idx, err := s.Load(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, idx.Sessions, n, "parallel adds converge to an index containing all sessions")
	for i := 0; i < n; i++ {
		require.Contains(t, idx.Sessions, fmt.Sprintf("s%d", i))
	}
}
