// Package local implements sync.Backend and sync.WatchBackend for local
// filesystem sources.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/NVIDIA/docx-mcp-storage/internal/errs"
	"github.com/NVIDIA/docx-mcp-storage/internal/glog"
	"github.com/NVIDIA/docx-mcp-storage/internal/metrics"
	docxsync "github.com/NVIDIA/docx-mcp-storage/internal/sync"
)

type registration struct {
	source            docxsync.Descriptor
	autoSync          bool
	lastSyncedAt      *int64
	hasPendingChanges bool
	lastError         *string
}

type watched struct {
	source  docxsync.Descriptor
	watchID string
	known   *docxsync.Metadata
	poll    uint32
	hinted  bool // an fsnotify event arrived since the last poll
}

// Backend implements both sync.Backend and sync.WatchBackend for
// SourceLocalFile descriptors. It additionally runs an fsnotify watcher per
// watched path as an early hint, but CheckForChanges always falls back to
// the poll-based (size, modified_at) comparison for parity with the
// cloud backend and because fsnotify alone misses changes made while the
// process was down.
type Backend struct {
	mu      sync.Mutex
	regs    map[regKey]*registration
	watches map[regKey]*watched
	fsw     *fsnotify.Watcher
}

type regKey struct{ tenant, session string }

func New() (*Backend, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errs.Internal(err)
	}
	b := &Backend{
		regs:    make(map[regKey]*registration),
		watches: make(map[regKey]*watched),
		fsw:     w,
	}
	go b.drainEvents()
	return b, nil
}

// Close stops the fsnotify watcher and its drain goroutine.
func (b *Backend) Close() error {
	return b.fsw.Close()
}

// drainEvents consumes fsnotify notifications and flags the matching watch
// so the next CheckForChanges reports a write even when the (size,
// modified_at) pair is unchanged (touch-style rewrite within the clock's
// granularity). The poll remains authoritative for what changed.
func (b *Backend) drainEvents() {
	for {
		select {
		case ev, ok := <-b.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			b.noteEvent(ev.Name)
		case err, ok := <-b.fsw.Errors:
			if !ok {
				return
			}
			glog.Warningf("sync/local: fsnotify error: %v", err)
		}
	}
}

func (b *Backend) noteEvent(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, w := range b.watches {
		if w.source.Path == path {
			w.hinted = true
		}
	}
}

// SourceType reports the fixed source type this backend handles, used by
// the RPC layer to route a session's sync operations to the backend that
// registered it.
func (b *Backend) SourceType() docxsync.SourceType { return docxsync.SourceLocalFile }

func validate(source docxsync.Descriptor) error {
	if source.Type != docxsync.SourceLocalFile {
		return errs.InvalidJSON(fmt.Sprintf("local backend cannot handle source type %q", source.Type))
	}
	if source.Path == "" {
		return errs.InvalidJSON("local source descriptor requires a path")
	}
	return nil
}

func (b *Backend) RegisterSource(_ context.Context, tenant, session string, source docxsync.Descriptor, autoSync bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := validate(source); err != nil {
		return err
	}
	b.regs[regKey{tenant, session}] = &registration{source: source, autoSync: autoSync}
	return nil
}

func (b *Backend) UnregisterSource(_ context.Context, tenant, session string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.regs, regKey{tenant, session})
	return nil
}

func (b *Backend) UpdateSource(_ context.Context, tenant, session string, source *docxsync.Descriptor, autoSync *bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	reg, ok := b.regs[regKey{tenant, session}]
	if !ok {
		return errs.NotFound("sync registration")
	}
	if source != nil {
		if err := validate(*source); err != nil {
			return err
		}
		reg.source = *source
	}
	if autoSync != nil {
		reg.autoSync = *autoSync
	}
	return nil
}

// SyncToSource writes data atomically via temp-file-plus-rename in the
// same directory.
func (b *Backend) SyncToSource(_ context.Context, tenant, session string, data []byte) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := regKey{tenant, session}
	reg, ok := b.regs[key]
	if !ok {
		return 0, errs.NotFound("sync registration")
	}
	path := reg.source.Path
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, "."+filepath.Base(path)+".tmp."+uuid.NewString())

	writeErr := func() error {
		f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
		if err := f.Sync(); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
		if err := f.Close(); err != nil {
			os.Remove(tmp)
			return err
		}
		return os.Rename(tmp, path)
	}()

	now := time.Now().Unix()
	if writeErr != nil {
		msg := writeErr.Error()
		reg.lastError = &msg
		glog.Errorf("sync/local: failed to sync %s/%s to %s: %v", tenant, session, path, writeErr)
		metrics.SyncFailures.WithLabelValues(string(docxsync.SourceLocalFile)).Inc()
		return 0, errs.Internal(writeErr)
	}
	reg.lastSyncedAt = &now
	reg.hasPendingChanges = false
	reg.lastError = nil
	return now, nil
}

func (b *Backend) GetSyncStatus(_ context.Context, tenant, session string) (*docxsync.Status, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	reg, ok := b.regs[regKey{tenant, session}]
	if !ok {
		return nil, false, nil
	}
	return &docxsync.Status{
		SessionID:         session,
		Source:            reg.source,
		AutoSyncEnabled:   reg.autoSync,
		LastSyncedAt:      reg.lastSyncedAt,
		HasPendingChanges: reg.hasPendingChanges,
		LastError:         reg.lastError,
	}, true, nil
}

func (b *Backend) ListSources(_ context.Context, tenant string) ([]docxsync.Status, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []docxsync.Status
	for k, reg := range b.regs {
		if k.tenant != tenant {
			continue
		}
		out = append(out, docxsync.Status{
			SessionID:         k.session,
			Source:            reg.source,
			AutoSyncEnabled:   reg.autoSync,
			LastSyncedAt:      reg.lastSyncedAt,
			HasPendingChanges: reg.hasPendingChanges,
			LastError:         reg.lastError,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}

func (b *Backend) IsAutoSyncEnabled(_ context.Context, tenant, session string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	reg, ok := b.regs[regKey{tenant, session}]
	if !ok {
		return false, nil
	}
	return reg.autoSync, nil
}

// --- watch ---

func (b *Backend) StartWatch(_ context.Context, tenant, session string, source docxsync.Descriptor, pollIntervalSecs uint32) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := validate(source); err != nil {
		return "", err
	}
	meta, err := statMetadata(source.Path)
	if err != nil && !os.IsNotExist(err) {
		return "", errs.Internal(err)
	}
	id := uuid.NewString()
	b.watches[regKey{tenant, session}] = &watched{source: source, watchID: id, known: meta, poll: pollIntervalSecs}
	if err := b.fsw.Add(filepath.Dir(source.Path)); err != nil {
		glog.Errorf("sync/local: fsnotify add %s failed (continuing poll-only): %v", source.Path, err)
	}
	return id, nil
}

func (b *Backend) StopWatch(_ context.Context, tenant, session string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.watches[regKey{tenant, session}]
	delete(b.watches, regKey{tenant, session})
	if ok && !b.dirStillWatched(filepath.Dir(w.source.Path)) {
		if err := b.fsw.Remove(filepath.Dir(w.source.Path)); err != nil {
			glog.V(3).Infof("sync/local: fsnotify remove %s: %v", w.source.Path, err)
		}
	}
	return nil
}

// dirStillWatched reports whether any remaining watch lives in dir; callers
// hold b.mu.
func (b *Backend) dirStillWatched(dir string) bool {
	for _, w := range b.watches {
		if filepath.Dir(w.source.Path) == dir {
			return true
		}
	}
	return false
}

func (b *Backend) CheckForChanges(_ context.Context, tenant, session string) (docxsync.ChangeEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.watches[regKey{tenant, session}]
	if !ok {
		return docxsync.ChangeEvent{}, errs.NotFound("watch")
	}
	hinted := w.hinted
	w.hinted = false
	meta, err := statMetadata(w.source.Path)
	if os.IsNotExist(err) {
		if w.known != nil {
			old := w.known
			w.known = nil
			return docxsync.ChangeEvent{Type: docxsync.ChangeDeleted, Old: old}, nil
		}
		return docxsync.ChangeEvent{Type: docxsync.ChangeNone}, nil
	}
	if err != nil {
		return docxsync.ChangeEvent{}, errs.Internal(err)
	}
	if w.known == nil {
		w.known = meta
		return docxsync.ChangeEvent{Type: docxsync.ChangeNone}, nil
	}
	if hasChanged(w.known, meta) {
		old := w.known
		return docxsync.ChangeEvent{Type: docxsync.ChangeModified, Old: old, New: meta}, nil
	}
	if hinted {
		// The OS reported a write but the comparison pair is unchanged:
		// a same-size rewrite inside the mtime clock's granularity.
		// Reported as Modified; callers that care re-hash.
		old := w.known
		return docxsync.ChangeEvent{Type: docxsync.ChangeModified, Old: old, New: meta}, nil
	}
	return docxsync.ChangeEvent{Type: docxsync.ChangeNone}, nil
}

func (b *Backend) GetSourceMetadata(_ context.Context, tenant, session string) (*docxsync.Metadata, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.watches[regKey{tenant, session}]
	if !ok {
		return nil, errs.NotFound("watch")
	}
	return statMetadata(w.source.Path)
}

func (b *Backend) GetKnownMetadata(tenant, session string) (*docxsync.Metadata, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.watches[regKey{tenant, session}]
	if !ok || w.known == nil {
		return nil, false
	}
	return w.known, true
}

func (b *Backend) UpdateKnownMetadata(tenant, session string, meta docxsync.Metadata) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if w, ok := b.watches[regKey{tenant, session}]; ok {
		m := meta
		w.known = &m
		w.hinted = false
	}
}

// hasChanged compares in 3 tiers: version_id, then content_hash, then
// (size, modified_at).
func hasChanged(old, cur *docxsync.Metadata) bool {
	if old.VersionID != nil && cur.VersionID != nil {
		return *old.VersionID != *cur.VersionID
	}
	if len(old.ContentHash) > 0 && len(cur.ContentHash) > 0 {
		return string(old.ContentHash) != string(cur.ContentHash)
	}
	return old.SizeBytes != cur.SizeBytes || old.ModifiedAt != cur.ModifiedAt
}

func statMetadata(path string) (*docxsync.Metadata, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &docxsync.Metadata{SizeBytes: uint64(fi.Size()), ModifiedAt: fi.ModTime().Unix()}, nil
}
