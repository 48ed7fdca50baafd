// Package sync defines external-source registration, upload, polling
// watch, and the connection-browse surface shared by the local and cloud
// backends.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package sync

import (
	"context"
	"sync"
	"time"
)

// SourceType enumerates the supported external source kinds.
type SourceType string

const (
	SourceLocalFile   SourceType = "local_file"
	SourceSharePoint  SourceType = "sharepoint"
	SourceOneDrive    SourceType = "onedrive"
	SourceS3          SourceType = "s3"
	SourceR2          SourceType = "r2"
	SourceGoogleDrive SourceType = "google_drive"
)

// Descriptor is a typed identifier for an external storage destination.
// Resolution rule: EffectiveID returns FileID if non-empty, else Path; for
// display, callers always use Path.
type Descriptor struct {
	Type         SourceType `json:"type"`
	ConnectionID string     `json:"connection_id,omitempty"`
	Path         string     `json:"path"`
	FileID       string     `json:"file_id,omitempty"`
}

// EffectiveID returns the identifier to use for API operations.
func (d Descriptor) EffectiveID() string {
	if d.FileID != "" {
		return d.FileID
	}
	return d.Path
}

// IsCloud reports whether the descriptor targets a cloud provider (thus
// requiring a connection_id and a file_id or path) rather than the local
// filesystem.
func (d Descriptor) IsCloud() bool { return d.Type != SourceLocalFile }

// Status is the per-session sync status.
type Status struct {
	SessionID         string     `json:"session_id"`
	Source            Descriptor `json:"source"`
	AutoSyncEnabled   bool       `json:"auto_sync_enabled"`
	LastSyncedAt      *int64     `json:"last_synced_at,omitempty"`
	HasPendingChanges bool       `json:"has_pending_changes"`
	LastError         *string    `json:"last_error,omitempty"`
}

// Backend is the sync-registration/upload contract. Each
// concrete backend (local, cloud) validates that a descriptor's
// SourceType matches its own domain.
type Backend interface {
	RegisterSource(ctx context.Context, tenant, session string, source Descriptor, autoSync bool) error
	UnregisterSource(ctx context.Context, tenant, session string) error
	UpdateSource(ctx context.Context, tenant, session string, source *Descriptor, autoSync *bool) error
	SyncToSource(ctx context.Context, tenant, session string, data []byte) (syncedAt int64, err error)
	GetSyncStatus(ctx context.Context, tenant, session string) (*Status, bool, error)
	ListSources(ctx context.Context, tenant string) ([]Status, error)
	IsAutoSyncEnabled(ctx context.Context, tenant, session string) (bool, error)
}

// Metadata describes the known state of an external file, compared by
// CheckForChanges in priority order: version_id, then content_hash, then
// (size, modified_at).
type Metadata struct {
	SizeBytes   uint64
	ModifiedAt  int64
	VersionID   *string
	ContentHash []byte
}

// ChangeType is the outcome of CheckForChanges.
type ChangeType int

const (
	ChangeNone ChangeType = iota
	ChangeModified
	ChangeDeleted
)

// ChangeEvent reports a detected external modification.
type ChangeEvent struct {
	Type ChangeType
	Old  *Metadata
	New  *Metadata
}

// WatchBackend is the polling-based change-detection contract.
type WatchBackend interface {
	StartWatch(ctx context.Context, tenant, session string, source Descriptor, pollIntervalSecs uint32) (watchID string, err error)
	StopWatch(ctx context.Context, tenant, session string) error
	CheckForChanges(ctx context.Context, tenant, session string) (ChangeEvent, error)
	GetSourceMetadata(ctx context.Context, tenant, session string) (*Metadata, error)
	GetKnownMetadata(tenant, session string) (*Metadata, bool)
	UpdateKnownMetadata(tenant, session string, meta Metadata)
}

// Browser is the connection-browsing surface: listing candidate files at
// a source before registering sync.
type Browser interface {
	ListConnections(ctx context.Context, tenant string) ([]ConnectionInfo, error)
	ListFiles(ctx context.Context, tenant, connectionID, folderID string, pageToken string) (FileListResult, error)
}

type ConnectionInfo struct {
	ConnectionID string
	Provider     string
	DisplayName  string
}

type FileEntry struct {
	FileID   string
	Name     string
	IsFolder bool
	Size     uint64
}

type FileListResult struct {
	Files         []FileEntry
	NextPageToken string
}

// key identifies a (tenant, session) pair for in-memory registries.
type key struct {
	tenant  string
	session string
}

// registry is a small generic concurrent map for transient per-session
// state. Lost on restart; clients re-register. The local and cloud
// backends keep their own maps and do not use it.
type registry[T any] struct {
	mu sync.RWMutex
	m  map[key]T
}

func newRegistry[T any]() *registry[T] { return &registry[T]{m: make(map[key]T)} }

func (r *registry[T]) get(tenant, session string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.m[key{tenant, session}]
	return v, ok
}

func (r *registry[T]) set(tenant, session string, v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[key{tenant, session}] = v
}

func (r *registry[T]) delete(tenant, session string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, key{tenant, session})
}

func (r *registry[T]) list(tenant string) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []T
	for k, v := range r.m {
		if k.tenant == tenant {
			out = append(out, v)
		}
	}
	return out
}

func unixNow() int64 { return time.Now().Unix() }
