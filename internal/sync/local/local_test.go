/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/docx-mcp-storage/internal/errs"
	docxsync "github.com/NVIDIA/docx-mcp-storage/internal/sync"
)

const (
	tenant = "t1"
	sessID = "s1"
)

func newBackend(t *testing.T) *Backend {
	b, err := New()
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

// settle gives fsnotify time to deliver queued events to the drain
// goroutine before the test asserts on their effect.
func settle() { time.Sleep(100 * time.Millisecond) }

func localSource(path string) docxsync.Descriptor {
	return docxsync.Descriptor{Type: docxsync.SourceLocalFile, Path: path}
}

func TestRegisterValidation(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()

	err := b.RegisterSource(ctx, tenant, sessID, docxsync.Descriptor{Type: docxsync.SourceGoogleDrive, FileID: "f1"}, false)
	require.Error(t, err, "wrong source type is rejected")

	err = b.RegisterSource(ctx, tenant, sessID, docxsync.Descriptor{Type: docxsync.SourceLocalFile}, false)
	require.Error(t, err, "a path is required")

	err = b.RegisterSource(ctx, tenant, sessID, localSource("/tmp/x.docx"), true)
	require.NoError(t, err)

	// Re-register overwrites.
	err = b.RegisterSource(ctx, tenant, sessID, localSource("/tmp/y.docx"), false)
	require.NoError(t, err)
	st, found, err := b.GetSyncStatus(ctx, tenant, sessID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "/tmp/y.docx", st.Source.Path)
	require.False(t, st.AutoSyncEnabled)
}

func TestSyncToSource(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "doc.docx")

	_, err := b.SyncToSource(ctx, tenant, sessID, []byte("data"))
	require.True(t, errs.IsNotFound(err), "sync without registration fails")

	require.NoError(t, b.RegisterSource(ctx, tenant, sessID, localSource(path), true))

	syncedAt, err := b.SyncToSource(ctx, tenant, sessID, []byte("document-bytes"))
	require.NoError(t, err)
	require.NotZero(t, syncedAt)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, []byte("document-bytes"), data)

	st, _, err := b.GetSyncStatus(ctx, tenant, sessID)
	require.NoError(t, err)
	require.NotNil(t, st.LastSyncedAt)
	require.False(t, st.HasPendingChanges)
	require.Nil(t, st.LastError)

	// No temp droppings next to the target.
	files, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func TestSyncFailureRecordsError(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	// Parent directory does not exist, so the temp-file create fails.
	path := filepath.Join(t.TempDir(), "missing-dir", "doc.docx")
	require.NoError(t, b.RegisterSource(ctx, tenant, sessID, localSource(path), false))

	_, err := b.SyncToSource(ctx, tenant, sessID, []byte("x"))
	require.Error(t, err)

	st, _, gerr := b.GetSyncStatus(ctx, tenant, sessID)
	require.NoError(t, gerr)
	require.NotNil(t, st.LastError, "the failure is recorded verbatim")
}

func TestListSources(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	require.NoError(t, b.RegisterSource(ctx, tenant, "s2", localSource("/tmp/b.docx"), false))
	require.NoError(t, b.RegisterSource(ctx, tenant, "s1", localSource("/tmp/a.docx"), true))
	require.NoError(t, b.RegisterSource(ctx, "t-other", "s9", localSource("/tmp/c.docx"), false))

	out, err := b.ListSources(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, out, 2, "scoped to the tenant")
	require.Equal(t, "s1", out[0].SessionID)
	require.Equal(t, "s2", out[1].SessionID)

	enabled, err := b.IsAutoSyncEnabled(ctx, tenant, "s1")
	require.NoError(t, err)
	require.True(t, enabled)
}

func TestUnregister(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	require.NoError(t, b.RegisterSource(ctx, tenant, sessID, localSource("/tmp/a.docx"), false))
	require.NoError(t, b.UnregisterSource(ctx, tenant, sessID))
	_, found, err := b.GetSyncStatus(ctx, tenant, sessID)
	require.NoError(t, err)
	require.False(t, found)
}

func TestUpdateSource(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()

	err := b.UpdateSource(ctx, tenant, sessID, nil, nil)
	require.True(t, errs.IsNotFound(err))

	require.NoError(t, b.RegisterSource(ctx, tenant, sessID, localSource("/tmp/a.docx"), false))
	auto := true
	require.NoError(t, b.UpdateSource(ctx, tenant, sessID, nil, &auto))
	enabled, _ := b.IsAutoSyncEnabled(ctx, tenant, sessID)
	require.True(t, enabled)
}

// bump rewrites the file and forces a visible mtime change, since poll
// comparison is (size, modified_at) and coarse filesystem clocks could
// otherwise mask a same-size rewrite.
func bump(t *testing.T, path string, data []byte, offset time.Duration) {
	require.NoError(t, os.WriteFile(path, data, 0o644))
	ts := time.Now().Add(offset)
	require.NoError(t, os.Chtimes(path, ts, ts))
}

func TestWatchLifecycle(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "watched.docx")
	bump(t, path, []byte("v1"), 0)

	id, err := b.StartWatch(ctx, tenant, sessID, localSource(path), 5)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	// No intervening modification: None.
	ev, err := b.CheckForChanges(ctx, tenant, sessID)
	require.NoError(t, err)
	require.Equal(t, docxsync.ChangeNone, ev.Type)

	// External write: Modified, carrying old and new metadata.
	bump(t, path, []byte("v2-longer"), 2*time.Second)
	settle()
	ev, err = b.CheckForChanges(ctx, tenant, sessID)
	require.NoError(t, err)
	require.Equal(t, docxsync.ChangeModified, ev.Type)
	require.NotNil(t, ev.Old)
	require.NotNil(t, ev.New)
	require.EqualValues(t, 2, ev.Old.SizeBytes)
	require.EqualValues(t, 9, ev.New.SizeBytes)

	// Without UpdateKnownMetadata the change keeps reporting.
	ev, err = b.CheckForChanges(ctx, tenant, sessID)
	require.NoError(t, err)
	require.Equal(t, docxsync.ChangeModified, ev.Type)

	// Acknowledge: next poll is quiet.
	b.UpdateKnownMetadata(tenant, sessID, *ev.New)
	ev, err = b.CheckForChanges(ctx, tenant, sessID)
	require.NoError(t, err)
	require.Equal(t, docxsync.ChangeNone, ev.Type)

	// External delete: Deleted once, then None.
	require.NoError(t, os.Remove(path))
	settle()
	ev, err = b.CheckForChanges(ctx, tenant, sessID)
	require.NoError(t, err)
	require.Equal(t, docxsync.ChangeDeleted, ev.Type)
	require.NotNil(t, ev.Old)

	ev, err = b.CheckForChanges(ctx, tenant, sessID)
	require.NoError(t, err)
	require.Equal(t, docxsync.ChangeNone, ev.Type)
}

func TestWatchMissingFileAtStart(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "not-yet.docx")

	_, err := b.StartWatch(ctx, tenant, sessID, localSource(path), 5)
	require.NoError(t, err, "watching a not-yet-existing file is allowed")

	_, found := b.GetKnownMetadata(tenant, sessID)
	require.False(t, found)

	// The file appearing is absorbed as the baseline, not an event.
	bump(t, path, []byte("v1"), 0)
	settle()
	ev, err := b.CheckForChanges(ctx, tenant, sessID)
	require.NoError(t, err)
	require.Equal(t, docxsync.ChangeNone, ev.Type)

	meta, found := b.GetKnownMetadata(tenant, sessID)
	require.True(t, found)
	require.EqualValues(t, 2, meta.SizeBytes)
}

func TestWatchTouchHint(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "touched.docx")
	bump(t, path, []byte("same"), 0)

	_, err := b.StartWatch(ctx, tenant, sessID, localSource(path), 5)
	require.NoError(t, err)

	// Rewrite with identical bytes and pin the original mtime: the
	// (size, modified_at) poll sees nothing, but the fsnotify hint
	// still surfaces the write as Modified.
	known, found := b.GetKnownMetadata(tenant, sessID)
	require.True(t, found)
	ts := time.Unix(known.ModifiedAt, 0)
	require.NoError(t, os.WriteFile(path, []byte("same"), 0o644))
	require.NoError(t, os.Chtimes(path, ts, ts))
	settle()

	ev, err := b.CheckForChanges(ctx, tenant, sessID)
	require.NoError(t, err)
	require.Equal(t, docxsync.ChangeModified, ev.Type)

	// The hint is consumed: with no further writes the next poll is quiet.
	ev, err = b.CheckForChanges(ctx, tenant, sessID)
	require.NoError(t, err)
	require.Equal(t, docxsync.ChangeNone, ev.Type)
}

func TestStopWatch(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "w.docx")
	bump(t, path, []byte("v1"), 0)

	_, err := b.StartWatch(ctx, tenant, sessID, localSource(path), 5)
	require.NoError(t, err)
	require.NoError(t, b.StopWatch(ctx, tenant, sessID))

	_, err = b.CheckForChanges(ctx, tenant, sessID)
	require.True(t, errs.IsNotFound(err))
}

func TestGetSourceMetadata(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "m.docx")
	bump(t, path, []byte("abc"), 0)

	_, err := b.StartWatch(ctx, tenant, sessID, localSource(path), 5)
	require.NoError(t, err)

	meta, err := b.GetSourceMetadata(ctx, tenant, sessID)
	require.NoError(t, err)
	require.EqualValues(t, 3, meta.SizeBytes)
}
