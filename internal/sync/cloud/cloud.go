// Package cloud implements sync.Backend, sync.WatchBackend and
// sync.Browser for cloud-hosted sources (SharePoint, OneDrive, S3, R2,
// Google Drive). A single Backend is
// parameterized by a Provider so every cloud source type shares one
// registration/watch/browse implementation instead of one per provider.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package cloud

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NVIDIA/docx-mcp-storage/internal/errs"
	"github.com/NVIDIA/docx-mcp-storage/internal/glog"
	"github.com/NVIDIA/docx-mcp-storage/internal/metrics"
	docxsync "github.com/NVIDIA/docx-mcp-storage/internal/sync"
	"github.com/NVIDIA/docx-mcp-storage/internal/tokenbroker"
)

// Provider is the per-cloud-provider contract a Backend delegates to. Each
// provider package (googledrive; msgraph for SharePoint and OneDrive;
// s3provider for S3 and R2) implements this against its own API client.
type Provider interface {
	Name() string
	SourceType() docxsync.SourceType
	UpdateFile(ctx context.Context, token, fileID string, data []byte) error
	GetMetadata(ctx context.Context, token, fileID string) (*docxsync.Metadata, error)
	ListFiles(ctx context.Context, token, folderID, pageToken string, pageSize int) (docxsync.FileListResult, error)
	DownloadFile(ctx context.Context, token, fileID string) ([]byte, error)
	ListConnections(ctx context.Context, tenant string) ([]docxsync.ConnectionInfo, error)
}

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
}

type regKey struct{ tenant, session string }

// Backend is a provider-generic cloud sync/watch/browse implementation.
// Transient state is process-local, as with the local backend: lost on
// restart, restored lazily by the client.
type Backend struct {
	provider Provider
	broker   *tokenbroker.Broker

	mu          sync.Mutex
	regs        map[regKey]*registration
	watches     map[regKey]*watched
	defaultPoll uint32
}

func New(provider Provider, broker *tokenbroker.Broker, defaultPollIntervalSecs uint32) *Backend {
	return &Backend{
		provider:    provider,
		broker:      broker,
		regs:        make(map[regKey]*registration),
		watches:     make(map[regKey]*watched),
		defaultPoll: defaultPollIntervalSecs,
	}
}

// SourceType reports the provider's source type, used by the RPC layer to
// route a session's sync operations to the backend that registered it.
func (b *Backend) SourceType() docxsync.SourceType { return b.provider.SourceType() }

// Name reports the provider's name (matches catalog.Connection.Provider),
// used by the RPC layer to route a connection ID to its owning backend.
func (b *Backend) Name() string { return b.provider.Name() }

func (b *Backend) validate(source docxsync.Descriptor) error {
	if source.Type != b.provider.SourceType() {
		return errs.InvalidJSON(fmt.Sprintf("%s backend cannot handle source type %q", b.provider.Name(), source.Type))
	}
	if source.ConnectionID == "" {
		return errs.InvalidJSON(fmt.Sprintf("%s source descriptor requires a connection_id", b.provider.Name()))
	}
	if source.FileID == "" && source.Path == "" {
		return errs.InvalidJSON(fmt.Sprintf("%s source descriptor requires a file_id or path", b.provider.Name()))
	}
	return nil
}

func (b *Backend) tokenFor(ctx context.Context, tenant string, source docxsync.Descriptor) (string, error) {
	return b.broker.GetValidToken(ctx, tenant, source.ConnectionID)
}

func (b *Backend) RegisterSource(_ context.Context, tenant, session string, source docxsync.Descriptor, autoSync bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.validate(source); err != nil {
		return err
	}
	b.regs[regKey{tenant, session}] = &registration{source: source, autoSync: autoSync}
	glog.V(3).Infof("sync/cloud[%s]: registered %s/%s -> %s", b.provider.Name(), tenant, session, source.EffectiveID())
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
		if err := b.validate(*source); err != nil {
			return err
		}
		reg.source = *source
	}
	if autoSync != nil {
		reg.autoSync = *autoSync
	}
	return nil
}

// SyncToSource resolves a per-connection access token via the token
// broker and uploads via the provider client.
func (b *Backend) SyncToSource(ctx context.Context, tenant, session string, data []byte) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := regKey{tenant, session}
	reg, ok := b.regs[key]
	if !ok {
		return 0, errs.NotFound("sync registration")
	}

	token, err := b.tokenFor(ctx, tenant, reg.source)
	if err != nil {
		reg.lastError = strPtr(err.Error())
		metrics.SyncFailures.WithLabelValues(string(b.provider.SourceType())).Inc()
		return 0, errs.Wrap(502, errs.CodeSyncFailed, err)
	}

	if err := b.provider.UpdateFile(ctx, token, reg.source.EffectiveID(), data); err != nil {
		msg := err.Error()
		reg.lastError = &msg
		glog.Errorf("sync/cloud[%s]: upload failed for %s/%s: %v", b.provider.Name(), tenant, session, err)
		metrics.SyncFailures.WithLabelValues(string(b.provider.SourceType())).Inc()
		return 0, errs.Wrap(502, errs.CodeSyncFailed, err)
	}

	now := time.Now().Unix()
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

func (b *Backend) StartWatch(ctx context.Context, tenant, session string, source docxsync.Descriptor, pollIntervalSecs uint32) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.validate(source); err != nil {
		return "", err
	}
	token, err := b.tokenFor(ctx, tenant, source)
	if err != nil {
		return "", err
	}
	known, err := b.provider.GetMetadata(ctx, token, source.EffectiveID())
	if err != nil {
		return "", errs.Wrap(502, errs.CodeSyncFailed, err)
	}
	poll := pollIntervalSecs
	if poll == 0 {
		poll = b.defaultPoll
	}
	id := uuid.NewString()
	b.watches[regKey{tenant, session}] = &watched{source: source, watchID: id, known: known, poll: poll}
	return id, nil
}

func (b *Backend) StopWatch(_ context.Context, tenant, session string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.watches, regKey{tenant, session})
	return nil
}

// CheckForChanges polls the provider's current metadata and compares it
// against the watch's known state.
func (b *Backend) CheckForChanges(ctx context.Context, tenant, session string) (docxsync.ChangeEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.watches[regKey{tenant, session}]
	if !ok {
		return docxsync.ChangeEvent{}, errs.NotFound("watch")
	}

	token, err := b.tokenFor(ctx, tenant, w.source)
	if err != nil {
		return docxsync.ChangeEvent{}, err
	}
	cur, err := b.provider.GetMetadata(ctx, token, w.source.EffectiveID())
	if err != nil {
		return docxsync.ChangeEvent{}, errs.Wrap(502, errs.CodeSyncFailed, err)
	}
	if cur == nil {
		if w.known != nil {
			old := w.known
			w.known = nil
			return docxsync.ChangeEvent{Type: docxsync.ChangeDeleted, Old: old}, nil
		}
		return docxsync.ChangeEvent{Type: docxsync.ChangeNone}, nil
	}
	if w.known == nil {
		w.known = cur
		return docxsync.ChangeEvent{Type: docxsync.ChangeNone}, nil
	}
	if hasChanged(w.known, cur) {
		old := w.known
		return docxsync.ChangeEvent{Type: docxsync.ChangeModified, Old: old, New: cur}, nil
	}
	return docxsync.ChangeEvent{Type: docxsync.ChangeNone}, nil
}

func (b *Backend) GetSourceMetadata(ctx context.Context, tenant, session string) (*docxsync.Metadata, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.watches[regKey{tenant, session}]
	if !ok {
		return nil, errs.NotFound("watch")
	}
	token, err := b.tokenFor(ctx, tenant, w.source)
	if err != nil {
		return nil, err
	}
	return b.provider.GetMetadata(ctx, token, w.source.EffectiveID())
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
	}
}

// --- browse ---

func (b *Backend) ListConnections(ctx context.Context, tenant string) ([]docxsync.ConnectionInfo, error) {
	return b.provider.ListConnections(ctx, tenant)
}

func (b *Backend) ListFiles(ctx context.Context, tenant, connectionID, folderID, pageToken string) (docxsync.FileListResult, error) {
	token, err := b.broker.GetValidToken(ctx, tenant, connectionID)
	if err != nil {
		return docxsync.FileListResult{}, err
	}
	return b.provider.ListFiles(ctx, token, folderID, pageToken, 50)
}

func (b *Backend) DownloadFile(ctx context.Context, tenant, connectionID, fileID string) ([]byte, error) {
	token, err := b.broker.GetValidToken(ctx, tenant, connectionID)
	if err != nil {
		return nil, err
	}
	data, err := b.provider.DownloadFile(ctx, token, fileID)
	if err != nil {
		return nil, errs.Wrap(502, errs.CodeSyncFailed, err)
	}
	return data, nil
}

// hasChanged applies the same 3-tier comparison as the local backend:
// version_id, then content_hash, then (size, modified_at).
func hasChanged(old, cur *docxsync.Metadata) bool {
	if old.VersionID != nil && cur.VersionID != nil {
		return *old.VersionID != *cur.VersionID
	}
	if len(old.ContentHash) > 0 && len(cur.ContentHash) > 0 {
		return string(old.ContentHash) != string(cur.ContentHash)
	}
	return old.SizeBytes != cur.SizeBytes || old.ModifiedAt != cur.ModifiedAt
}

func strPtr(s string) *string { return &s }
