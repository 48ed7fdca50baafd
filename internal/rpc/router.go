package rpc

import (
	"context"
	"sync"

	"github.com/NVIDIA/docx-mcp-storage/internal/catalog"
	"github.com/NVIDIA/docx-mcp-storage/internal/errs"
	docxsync "github.com/NVIDIA/docx-mcp-storage/internal/sync"
)

// syncBackend is the combined sync.Backend + sync.WatchBackend contract
// both internal/sync/local.Backend and internal/sync/cloud.Backend
// satisfy.
type syncBackend interface {
	docxsync.Backend
	docxsync.WatchBackend
}

// BrowseBackend additionally exposes the connection-browsing surface, which
// only cloud backends implement.
type BrowseBackend interface {
	syncBackend
	docxsync.Browser
	DownloadFile(ctx context.Context, tenant, connectionID, fileID string) ([]byte, error)
	SourceType() docxsync.SourceType
	Name() string
}

type sessionKey struct{ tenant, session string }

// Router dispatches sync and watch operations to the backend that owns a
// given session's registered source type, and browse operations to the
// backend matching a connection's provider: resolution is
// by a string/type key into a fixed provider map, not by
// runtime type assertion.
type Router struct {
	local   syncBackend
	byType  map[docxsync.SourceType]BrowseBackend
	byName  map[string]BrowseBackend
	catalog catalog.Client

	mu      sync.RWMutex
	owners  map[sessionKey]docxsync.SourceType
}

// NewRouter builds a router over the local backend and any number of cloud
// backends; cloudBackends may be empty if no provider is configured.
func NewRouter(local syncBackend, cat catalog.Client, cloudBackends ...BrowseBackend) *Router {
	r := &Router{
		local:   local,
		byType:  make(map[docxsync.SourceType]BrowseBackend),
		byName:  make(map[string]BrowseBackend),
		catalog: cat,
		owners:  make(map[sessionKey]docxsync.SourceType),
	}
	for _, b := range cloudBackends {
		r.byType[b.SourceType()] = b
		r.byName[b.Name()] = b
	}
	return r
}

func (r *Router) backendForType(t docxsync.SourceType) (syncBackend, error) {
	if t == docxsync.SourceLocalFile || t == "" {
		return r.local, nil
	}
	if b, ok := r.byType[t]; ok {
		return b, nil
	}
	return nil, errs.InvalidJSON("no backend configured for source type " + string(t))
}

func (r *Router) ownerType(tenant, session string) (docxsync.SourceType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.owners[sessionKey{tenant, session}]
	return t, ok
}

func (r *Router) setOwner(tenant, session string, t docxsync.SourceType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners[sessionKey{tenant, session}] = t
}

func (r *Router) clearOwner(tenant, session string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.owners, sessionKey{tenant, session})
}

// sessionBackend resolves the backend that owns an already-registered
// session, falling back to the local backend if no registration was
// observed (registrations are in-memory and do not survive a process
// restart).
func (r *Router) sessionBackend(tenant, session string) syncBackend {
	if t, ok := r.ownerType(tenant, session); ok {
		if b, err := r.backendForType(t); err == nil {
			return b
		}
	}
	return r.local
}

func (r *Router) RegisterSource(ctx context.Context, tenant, session string, source docxsync.Descriptor, autoSync bool) error {
	b, err := r.backendForType(source.Type)
	if err != nil {
		return err
	}
	if err := b.RegisterSource(ctx, tenant, session, source, autoSync); err != nil {
		return err
	}
	r.setOwner(tenant, session, source.Type)
	return nil
}

func (r *Router) UnregisterSource(ctx context.Context, tenant, session string) error {
	b := r.sessionBackend(tenant, session)
	if err := b.UnregisterSource(ctx, tenant, session); err != nil {
		return err
	}
	r.clearOwner(tenant, session)
	return nil
}

func (r *Router) UpdateSource(ctx context.Context, tenant, session string, source *docxsync.Descriptor, autoSync *bool) error {
	b := r.sessionBackend(tenant, session)
	if err := b.UpdateSource(ctx, tenant, session, source, autoSync); err != nil {
		return err
	}
	if source != nil {
		r.setOwner(tenant, session, source.Type)
	}
	return nil
}

func (r *Router) SyncToSource(ctx context.Context, tenant, session string, data []byte) (int64, error) {
	return r.sessionBackend(tenant, session).SyncToSource(ctx, tenant, session, data)
}

func (r *Router) GetSyncStatus(ctx context.Context, tenant, session string) (*docxsync.Status, bool, error) {
	return r.sessionBackend(tenant, session).GetSyncStatus(ctx, tenant, session)
}

// ListSources aggregates across the local backend and every registered
// cloud backend, since a tenant's sessions may span several source types.
func (r *Router) ListSources(ctx context.Context, tenant string) ([]docxsync.Status, error) {
	all, err := r.local.ListSources(ctx, tenant)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	for _, s := range all {
		seen[s.SessionID] = struct{}{}
	}
	for _, b := range r.byType {
		sources, err := b.ListSources(ctx, tenant)
		if err != nil {
			return nil, err
		}
		for _, s := range sources {
			if _, dup := seen[s.SessionID]; dup {
				continue
			}
			seen[s.SessionID] = struct{}{}
			all = append(all, s)
		}
	}
	return all, nil
}

func (r *Router) IsAutoSyncEnabled(ctx context.Context, tenant, session string) (bool, error) {
	return r.sessionBackend(tenant, session).IsAutoSyncEnabled(ctx, tenant, session)
}

func (r *Router) StartWatch(ctx context.Context, tenant, session string, source docxsync.Descriptor, pollIntervalSecs uint32) (string, error) {
	b, err := r.backendForType(source.Type)
	if err != nil {
		return "", err
	}
	id, err := b.StartWatch(ctx, tenant, session, source, pollIntervalSecs)
	if err != nil {
		return "", err
	}
	r.setOwner(tenant, session, source.Type)
	return id, nil
}

func (r *Router) StopWatch(ctx context.Context, tenant, session string) error {
	return r.sessionBackend(tenant, session).StopWatch(ctx, tenant, session)
}

func (r *Router) CheckForChanges(ctx context.Context, tenant, session string) (docxsync.ChangeEvent, error) {
	return r.sessionBackend(tenant, session).CheckForChanges(ctx, tenant, session)
}

func (r *Router) GetSourceMetadata(ctx context.Context, tenant, session string) (*docxsync.Metadata, error) {
	return r.sessionBackend(tenant, session).GetSourceMetadata(ctx, tenant, session)
}

func (r *Router) GetKnownMetadata(tenant, session string) (*docxsync.Metadata, bool) {
	return r.sessionBackend(tenant, session).GetKnownMetadata(tenant, session)
}

func (r *Router) UpdateKnownMetadata(tenant, session string, meta docxsync.Metadata) {
	r.sessionBackend(tenant, session).UpdateKnownMetadata(tenant, session, meta)
}

// ListConnections merges the browsable connections of every configured
// cloud provider; the local backend has none to offer.
func (r *Router) ListConnections(ctx context.Context, tenant string) ([]docxsync.ConnectionInfo, error) {
	var out []docxsync.ConnectionInfo
	for _, b := range r.byType {
		conns, err := b.ListConnections(ctx, tenant)
		if err != nil {
			return nil, err
		}
		out = append(out, conns...)
	}
	return out, nil
}

// browseBackendFor resolves connectionID to the cloud backend whose
// provider owns it, via a catalog lookup of the connection's provider name.
func (r *Router) browseBackendFor(ctx context.Context, tenant, connectionID string) (BrowseBackend, error) {
	conn, err := r.catalog.GetConnection(ctx, tenant, connectionID)
	if err != nil {
		return nil, err
	}
	b, ok := r.byName[conn.Provider]
	if !ok {
		return nil, errs.InvalidJSON("no backend configured for provider " + conn.Provider)
	}
	return b, nil
}

func (r *Router) ListFiles(ctx context.Context, tenant, connectionID, folderID, pageToken string) (docxsync.FileListResult, error) {
	b, err := r.browseBackendFor(ctx, tenant, connectionID)
	if err != nil {
		return docxsync.FileListResult{}, err
	}
	return b.ListFiles(ctx, tenant, connectionID, folderID, pageToken)
}

func (r *Router) DownloadFile(ctx context.Context, tenant, connectionID, fileID string) ([]byte, error) {
	b, err := r.browseBackendFor(ctx, tenant, connectionID)
	if err != nil {
		return nil, err
	}
	return b.DownloadFile(ctx, tenant, connectionID, fileID)
}
