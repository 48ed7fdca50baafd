/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package wal

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/docx-mcp-storage/internal/errs"
	"github.com/NVIDIA/docx-mcp-storage/internal/objstore/memstore"
)

const (
	tenant = "t1"
	sessID = "s1"
	walKey = "t1/sessions/s1.wal"
)

func entry(op string) Entry {
	return Entry{Operation: op, Path: "/word/document.xml", Patch: []byte(`{"op":"` + op + `"}`), Timestamp: 1700000000}
}

func TestAppendRead(t *testing.T) {
	ms := memstore.New()
	s := New(ms)
	ctx := context.Background()

	last, err := s.Append(ctx, tenant, sessID, []Entry{entry("x"), entry("y"), entry("z")})
	require.NoError(t, err)
	require.EqualValues(t, 3, last)

	last, err = s.Append(ctx, tenant, sessID, []Entry{entry("w")})
	require.NoError(t, err)
	require.EqualValues(t, 4, last)

	entries, hasMore, err := s.Read(ctx, tenant, sessID, 1, 0)
	require.NoError(t, err)
	require.False(t, hasMore)
	require.Len(t, entries, 4)
	for i, e := range entries {
		require.EqualValues(t, i+1, e.Position, "positions must be contiguous from 1")
	}
	require.Equal(t, "x", entries[0].Operation)
	require.Equal(t, "w", entries[3].Operation)
	require.Equal(t, []byte(`{"op":"y"}`), entries[1].Patch)
}

func TestAppendEmptyIsNoop(t *testing.T) {
	s := New(memstore.New())
	last, err := s.Append(context.Background(), tenant, sessID, nil)
	require.NoError(t, err)
	require.Zero(t, last)
}

func TestReadOffsetAndLimit(t *testing.T) {
	s := New(memstore.New())
	ctx := context.Background()
	_, err := s.Append(ctx, tenant, sessID, []Entry{entry("a"), entry("b"), entry("c"), entry("d"), entry("e")})
	require.NoError(t, err)

	entries, hasMore, err := s.Read(ctx, tenant, sessID, 2, 2)
	require.NoError(t, err)
	require.True(t, hasMore)
	require.Len(t, entries, 2)
	require.EqualValues(t, 2, entries[0].Position)
	require.EqualValues(t, 3, entries[1].Position)

	entries, hasMore, err = s.Read(ctx, tenant, sessID, 4, 10)
	require.NoError(t, err)
	require.False(t, hasMore)
	require.Len(t, entries, 2)
}

func TestReadMissingWal(t *testing.T) {
	s := New(memstore.New())
	entries, hasMore, err := s.Read(context.Background(), tenant, sessID, 1, 0)
	require.NoError(t, err)
	require.False(t, hasMore)
	require.Empty(t, entries)
}

func TestTruncate(t *testing.T) {
	s := New(memstore.New())
	ctx := context.Background()
	_, err := s.Append(ctx, tenant, sessID, []Entry{entry("a"), entry("b"), entry("c"), entry("d"), entry("e")})
	require.NoError(t, err)

	removed, err := s.Truncate(ctx, tenant, sessID, 2)
	require.NoError(t, err)
	require.EqualValues(t, 3, removed)

	entries, _, err := s.Read(ctx, tenant, sessID, 1, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "a", entries[0].Operation)
	require.Equal(t, "b", entries[1].Operation)

	// The next append lands strictly after the surviving tip.
	last, err := s.Append(ctx, tenant, sessID, []Entry{entry("f")})
	require.NoError(t, err)
	require.EqualValues(t, 3, last)
}

func TestTruncateNoop(t *testing.T) {
	s := New(memstore.New())
	ctx := context.Background()
	_, err := s.Append(ctx, tenant, sessID, []Entry{entry("a"), entry("b")})
	require.NoError(t, err)

	removed, err := s.Truncate(ctx, tenant, sessID, 5)
	require.NoError(t, err)
	require.Zero(t, removed)

	removed, err = s.Truncate(ctx, "t-none", "s-none", 0)
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestRejectUnescapedNewline(t *testing.T) {
	s := New(memstore.New())
	_, err := s.Append(context.Background(), tenant, sessID, []Entry{{
		Operation: "x", Patch: []byte("line1\nline2"),
	}})
	require.Error(t, err)
	require.Equal(t, errs.CodeInvalidJSON, errs.As(err).Code)
}

func TestByteLayout(t *testing.T) {
	ms := memstore.New()
	s := New(ms)
	ctx := context.Background()
	_, err := s.Append(ctx, tenant, sessID, []Entry{entry("x")})
	require.NoError(t, err)

	obj, err := ms.Get(ctx, walKey)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(obj.Bytes), headerLen)

	l := binary.LittleEndian.Uint64(obj.Bytes[:headerLen])
	payload := obj.Bytes[headerLen:]
	require.EqualValues(t, len(payload), l)
	require.Equal(t, byte('\n'), payload[len(payload)-1], "every line is newline-terminated")
}

func TestMalformedLine(t *testing.T) {
	ms := memstore.New()
	s := New(ms)
	ctx := context.Background()

	payload := []byte("{\"operation\":\"ok\"}\nnot-json\n")
	_, err := ms.Put(ctx, walKey, encode(payload))
	require.NoError(t, err)

	_, _, err = s.Read(ctx, tenant, sessID, 1, 0)
	require.Error(t, err)
	require.Equal(t, errs.CodeInvalidJSON, errs.As(err).Code)
	require.Contains(t, err.Error(), "position 2")
}

func TestHeaderMismatch(t *testing.T) {
	ms := memstore.New()
	s := New(ms)
	ctx := context.Background()

	blob := encode([]byte("{}\n"))
	binary.LittleEndian.PutUint64(blob[:headerLen], 999)
	_, err := ms.Put(ctx, walKey, blob)
	require.NoError(t, err)

	_, _, err = s.Read(ctx, tenant, sessID, 1, 0)
	require.Error(t, err)
}

func TestConcurrentAppend(t *testing.T) {
	s := New(memstore.New())
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Append(ctx, tenant, sessID, []Entry{entry("p")})
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	entries, _, err := s.Read(ctx, tenant, sessID, 1, 0)
	require.NoError(t, err)
	require.Len(t, entries, n, "no lost or duplicated appends")
	for i, e := range entries {
		require.EqualValues(t, i+1, e.Position)
	}
}
