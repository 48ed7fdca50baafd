package rpc

import (
	"bytes"
	"context"
	"io"

	"github.com/NVIDIA/docx-mcp-storage/internal/checkpoint"
	"github.com/NVIDIA/docx-mcp-storage/internal/glog"
	"github.com/NVIDIA/docx-mcp-storage/internal/index"
	"github.com/NVIDIA/docx-mcp-storage/internal/rpc/storagepb"
	"github.com/NVIDIA/docx-mcp-storage/internal/session"
	docxsync "github.com/NVIDIA/docx-mcp-storage/internal/sync"
	"github.com/NVIDIA/docx-mcp-storage/internal/wal"
)

// chunkSize is the fixed streaming transfer unit; only the last chunk of a
// stream may be shorter.
const chunkSize = 256 * 1024

// Server implements storagepb.StorageServer over the storage engine's
// session/index/wal/checkpoint stores and the sync Router: one struct
// fronting the engine's internal stores behind a stable RPC contract.
type Server struct {
	session    *session.Store
	index      *index.Store
	wal        *wal.Store
	checkpoint *checkpoint.Store
	router     *Router
	version    string
}

func NewServer(sess *session.Store, idx *index.Store, w *wal.Store, ckpt *checkpoint.Store, router *Router, version string) *Server {
	return &Server{session: sess, index: idx, wal: w, checkpoint: ckpt, router: router, version: version}
}

var _ storagepb.StorageServer = (*Server)(nil)

func (s *Server) LoadSession(ctx context.Context, req *storagepb.LoadSessionRequest) (*storagepb.LoadSessionResponse, error) {
	data, err := s.session.Load(ctx, req.Tenant, req.Session)
	if err != nil {
		return nil, err
	}
	return &storagepb.LoadSessionResponse{Data: data}, nil
}

func (s *Server) SaveSession(ctx context.Context, req *storagepb.SaveSessionRequest) (*storagepb.SaveSessionResponse, error) {
	if err := s.session.Save(ctx, req.Tenant, req.Session, req.Data); err != nil {
		return nil, err
	}
	s.autoSync(req.Tenant, req.Session, req.Data)
	return &storagepb.SaveSessionResponse{}, nil
}

// autoSync uploads the just-saved document to the session's registered
// external source when auto-sync is on. Fire-and-forget: a failed upload is
// recorded in the registration's last_error and logged, never surfaced to
// the save call.
func (s *Server) autoSync(tenant, sessionID string, data []byte) {
	enabled, err := s.router.IsAutoSyncEnabled(context.Background(), tenant, sessionID)
	if err != nil || !enabled {
		return
	}
	go func() {
		if _, err := s.router.SyncToSource(context.Background(), tenant, sessionID, data); err != nil {
			glog.Errorf("rpc: auto-sync for %s/%s failed: %v", tenant, sessionID, err)
		}
	}()
}

// SaveSessionStream accumulates 256KiB chunks into a single buffer and
// saves once the client signals Final. The storage engine itself has no
// partial-write concept, so streaming only matters for the caller's memory
// footprint, not for engine semantics.
func (s *Server) SaveSessionStream(stream storagepb.StorageSaveSessionStreamServer) error {
	var tenant, sessionID string
	var buf bytes.Buffer
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		tenant, sessionID = chunk.Tenant, chunk.Session
		buf.Write(chunk.Data)
		if chunk.Final {
			break
		}
	}
	if err := s.session.Save(stream.Context(), tenant, sessionID, buf.Bytes()); err != nil {
		return err
	}
	s.autoSync(tenant, sessionID, buf.Bytes())
	return stream.SendAndClose(&storagepb.SaveSessionResponse{})
}

func (s *Server) LoadSessionStream(req *storagepb.LoadSessionRequest, stream storagepb.StorageLoadSessionStreamServer) error {
	data, err := s.session.Load(stream.Context(), req.Tenant, req.Session)
	if err != nil {
		return err
	}
	return sendChunks(data, func(c []byte) error {
		return stream.Send(&storagepb.LoadSessionChunk{Data: c})
	})
}

func sendChunks(data []byte, send func([]byte) error) error {
	if len(data) == 0 {
		return send(nil)
	}
	for off := 0; off < len(data); off += chunkSize {
		end := off + chunkSize
		if end > len(data) {
			end = len(data)
		}
		if err := send(data[off:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) DeleteSession(ctx context.Context, req *storagepb.DeleteSessionRequest) (*storagepb.DeleteSessionResponse, error) {
	if err := s.session.Delete(ctx, req.Tenant, req.Session); err != nil {
		return nil, err
	}
	return &storagepb.DeleteSessionResponse{}, nil
}

func (s *Server) ListSessions(ctx context.Context, req *storagepb.ListSessionsRequest) (*storagepb.ListSessionsResponse, error) {
	ids, err := s.session.List(ctx, req.Tenant)
	if err != nil {
		return nil, err
	}
	return &storagepb.ListSessionsResponse{Sessions: ids}, nil
}

func (s *Server) SessionExists(ctx context.Context, req *storagepb.SessionExistsRequest) (*storagepb.SessionExistsResponse, error) {
	exists, pending, err := s.session.Exists(ctx, req.Tenant, req.Session)
	if err != nil {
		return nil, err
	}
	return &storagepb.SessionExistsResponse{Exists: exists, PendingExternalChange: pending}, nil
}

func (s *Server) LoadIndex(ctx context.Context, req *storagepb.LoadIndexRequest) (*storagepb.LoadIndexResponse, error) {
	idx, err := s.index.Load(ctx, req.Tenant)
	if err != nil {
		return nil, err
	}
	out := make([]storagepb.IndexEntry, 0, len(idx.Sessions))
	for id, e := range idx.Sessions {
		out = append(out, toIndexEntry(id, e))
	}
	return &storagepb.LoadIndexResponse{Sessions: out}, nil
}

func toIndexEntry(id string, e *index.Entry) storagepb.IndexEntry {
	return storagepb.IndexEntry{
		SessionID:             id,
		SourcePath:            e.SourcePath,
		CreatedAt:             e.CreatedAt,
		ModifiedAt:            e.ModifiedAt,
		WalPosition:           e.WalPosition,
		CursorPosition:        e.CursorPosition,
		CheckpointPositions:   e.CheckpointPositions,
		DocumentFileName:      e.DocumentFileName,
		PendingExternalChange: e.PendingExternalChange,
	}
}

func (s *Server) AddSessionToIndex(ctx context.Context, req *storagepb.AddSessionToIndexRequest) (*storagepb.AddSessionToIndexResponse, error) {
	e, err := s.index.Add(ctx, req.Tenant, req.Session, index.AddOpts{
		SourcePath:       req.SourcePath,
		DocumentFileName: req.DocumentFileName,
		Now:              req.Now,
	})
	if err != nil {
		return nil, err
	}
	return &storagepb.AddSessionToIndexResponse{Entry: toIndexEntry(req.Session, e)}, nil
}

func (s *Server) UpdateSessionInIndex(ctx context.Context, req *storagepb.UpdateSessionInIndexRequest) (*storagepb.UpdateSessionInIndexResponse, error) {
	result, err := s.index.Update(ctx, req.Tenant, req.Session, index.UpdateOpts{
		ModifiedAt:                req.ModifiedAt,
		WalPosition:               req.WalPosition,
		CursorPosition:            req.CursorPosition,
		PendingExternalChange:     req.PendingExternalChange,
		SourcePath:                req.SourcePath,
		AddCheckpointPositions:    req.AddCheckpointPositions,
		RemoveCheckpointPositions: req.RemoveCheckpointPositions,
	})
	if err != nil {
		return nil, err
	}
	return &storagepb.UpdateSessionInIndexResponse{Success: result.Success, NotFound: result.NotFound}, nil
}

func (s *Server) RemoveSessionFromIndex(ctx context.Context, req *storagepb.RemoveSessionFromIndexRequest) (*storagepb.RemoveSessionFromIndexResponse, error) {
	existed, err := s.index.Remove(ctx, req.Tenant, req.Session)
	if err != nil {
		return nil, err
	}
	return &storagepb.RemoveSessionFromIndexResponse{Existed: existed}, nil
}

func toWalEntries(entries []storagepb.WalEntry) []wal.Entry {
	out := make([]wal.Entry, len(entries))
	for i, e := range entries {
		out[i] = wal.Entry{Position: e.Position, Operation: e.Operation, Path: e.Path, Patch: e.Patch, Timestamp: e.Timestamp}
	}
	return out
}

func fromWalEntries(entries []wal.Entry) []storagepb.WalEntry {
	out := make([]storagepb.WalEntry, len(entries))
	for i, e := range entries {
		out[i] = storagepb.WalEntry{Position: e.Position, Operation: e.Operation, Path: e.Path, Patch: e.Patch, Timestamp: e.Timestamp}
	}
	return out
}

func (s *Server) AppendWal(ctx context.Context, req *storagepb.AppendWalRequest) (*storagepb.AppendWalResponse, error) {
	newPos, err := s.wal.Append(ctx, req.Tenant, req.Session, toWalEntries(req.Entries))
	if err != nil {
		return nil, err
	}
	return &storagepb.AppendWalResponse{NewPosition: newPos}, nil
}

func (s *Server) ReadWal(ctx context.Context, req *storagepb.ReadWalRequest) (*storagepb.ReadWalResponse, error) {
	entries, hasMore, err := s.wal.Read(ctx, req.Tenant, req.Session, req.FromPosition, int(req.Limit))
	if err != nil {
		return nil, err
	}
	return &storagepb.ReadWalResponse{Entries: fromWalEntries(entries), HasMore: hasMore}, nil
}

func (s *Server) TruncateWal(ctx context.Context, req *storagepb.TruncateWalRequest) (*storagepb.TruncateWalResponse, error) {
	removed, err := s.wal.Truncate(ctx, req.Tenant, req.Session, req.KeepFromPosition)
	if err != nil {
		return nil, err
	}
	return &storagepb.TruncateWalResponse{RemovedThrough: removed}, nil
}

func (s *Server) SaveCheckpoint(ctx context.Context, req *storagepb.SaveCheckpointRequest) (*storagepb.SaveCheckpointResponse, error) {
	if err := s.checkpoint.Save(ctx, req.Tenant, req.Session, req.Position, req.Data); err != nil {
		return nil, err
	}
	return &storagepb.SaveCheckpointResponse{}, nil
}

func (s *Server) LoadCheckpoint(ctx context.Context, req *storagepb.LoadCheckpointRequest) (*storagepb.LoadCheckpointResponse, error) {
	data, resolved, err := s.checkpoint.Load(ctx, req.Tenant, req.Session, req.Position)
	if err != nil {
		return nil, err
	}
	return &storagepb.LoadCheckpointResponse{Data: data, Resolved: resolved}, nil
}

func (s *Server) ListCheckpoints(ctx context.Context, req *storagepb.ListCheckpointsRequest) (*storagepb.ListCheckpointsResponse, error) {
	infos, err := s.checkpoint.List(ctx, req.Tenant, req.Session)
	if err != nil {
		return nil, err
	}
	out := make([]storagepb.CheckpointInfo, len(infos))
	for i, info := range infos {
		out[i] = storagepb.CheckpointInfo{Position: info.Position, Size: info.Size, CreatedAt: info.CreatedAt}
	}
	return &storagepb.ListCheckpointsResponse{Checkpoints: out}, nil
}

func (s *Server) HealthCheck(ctx context.Context, req *storagepb.HealthCheckRequest) (*storagepb.HealthCheckResponse, error) {
	return &storagepb.HealthCheckResponse{Healthy: true, Version: s.version}, nil
}

func toDescriptor(d storagepb.SourceDescriptor) docxsync.Descriptor {
	return docxsync.Descriptor{
		Type:         docxsync.SourceType(d.Type),
		ConnectionID: d.ConnectionID,
		Path:         d.Path,
		FileID:       d.FileID,
	}
}

func fromDescriptor(d docxsync.Descriptor) storagepb.SourceDescriptor {
	return storagepb.SourceDescriptor{
		Type:         string(d.Type),
		ConnectionID: d.ConnectionID,
		Path:         d.Path,
		FileID:       d.FileID,
	}
}

func fromSyncStatus(st docxsync.Status) storagepb.SyncStatus {
	return storagepb.SyncStatus{
		SessionID:         st.SessionID,
		Source:            fromDescriptor(st.Source),
		AutoSyncEnabled:   st.AutoSyncEnabled,
		LastSyncedAt:      st.LastSyncedAt,
		HasPendingChanges: st.HasPendingChanges,
		LastError:         st.LastError,
	}
}

func (s *Server) RegisterSource(ctx context.Context, req *storagepb.RegisterSourceRequest) (*storagepb.RegisterSourceResponse, error) {
	if err := s.router.RegisterSource(ctx, req.Tenant, req.Session, toDescriptor(req.Source), req.AutoSync); err != nil {
		return nil, err
	}
	return &storagepb.RegisterSourceResponse{}, nil
}

func (s *Server) UnregisterSource(ctx context.Context, req *storagepb.UnregisterSourceRequest) (*storagepb.UnregisterSourceResponse, error) {
	if err := s.router.UnregisterSource(ctx, req.Tenant, req.Session); err != nil {
		return nil, err
	}
	return &storagepb.UnregisterSourceResponse{}, nil
}

func (s *Server) UpdateSource(ctx context.Context, req *storagepb.UpdateSourceRequest) (*storagepb.UpdateSourceResponse, error) {
	var source *docxsync.Descriptor
	if req.Source != nil {
		d := toDescriptor(*req.Source)
		source = &d
	}
	if err := s.router.UpdateSource(ctx, req.Tenant, req.Session, source, req.AutoSync); err != nil {
		return nil, err
	}
	return &storagepb.UpdateSourceResponse{}, nil
}

func (s *Server) SyncToSource(ctx context.Context, req *storagepb.SyncToSourceRequest) (*storagepb.SyncToSourceResponse, error) {
	syncedAt, err := s.router.SyncToSource(ctx, req.Tenant, req.Session, req.Data)
	if err != nil {
		return nil, err
	}
	return &storagepb.SyncToSourceResponse{SyncedAt: syncedAt}, nil
}

func (s *Server) GetSyncStatus(ctx context.Context, req *storagepb.GetSyncStatusRequest) (*storagepb.GetSyncStatusResponse, error) {
	st, found, err := s.router.GetSyncStatus(ctx, req.Tenant, req.Session)
	if err != nil {
		return nil, err
	}
	if !found {
		return &storagepb.GetSyncStatusResponse{Found: false}, nil
	}
	return &storagepb.GetSyncStatusResponse{Status: fromSyncStatus(*st), Found: true}, nil
}

func (s *Server) ListSources(ctx context.Context, req *storagepb.ListSourcesRequest) (*storagepb.ListSourcesResponse, error) {
	sources, err := s.router.ListSources(ctx, req.Tenant)
	if err != nil {
		return nil, err
	}
	out := make([]storagepb.SyncStatus, len(sources))
	for i, st := range sources {
		out[i] = fromSyncStatus(st)
	}
	return &storagepb.ListSourcesResponse{Sources: out}, nil
}

func (s *Server) ListConnections(ctx context.Context, req *storagepb.ListConnectionsRequest) (*storagepb.ListConnectionsResponse, error) {
	conns, err := s.router.ListConnections(ctx, req.Tenant)
	if err != nil {
		return nil, err
	}
	out := make([]storagepb.ConnectionInfo, len(conns))
	for i, c := range conns {
		out[i] = storagepb.ConnectionInfo{ConnectionID: c.ConnectionID, Provider: c.Provider, DisplayName: c.DisplayName}
	}
	return &storagepb.ListConnectionsResponse{Connections: out}, nil
}

func (s *Server) ListConnectionFiles(ctx context.Context, req *storagepb.ListConnectionFilesRequest) (*storagepb.ListConnectionFilesResponse, error) {
	result, err := s.router.ListFiles(ctx, req.Tenant, req.ConnectionID, req.FolderID, req.PageToken)
	if err != nil {
		return nil, err
	}
	files := make([]storagepb.FileEntry, len(result.Files))
	for i, f := range result.Files {
		files[i] = storagepb.FileEntry{FileID: f.FileID, Name: f.Name, IsFolder: f.IsFolder, Size: f.Size}
	}
	return &storagepb.ListConnectionFilesResponse{Files: files, NextPageToken: result.NextPageToken}, nil
}

func (s *Server) DownloadFromSource(req *storagepb.DownloadFromSourceRequest, stream storagepb.StorageDownloadFromSourceServer) error {
	data, err := s.router.DownloadFile(stream.Context(), req.Tenant, req.ConnectionID, req.FileID)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return stream.Send(&storagepb.DownloadChunk{Final: true})
	}
	for off := 0; off < len(data); off += chunkSize {
		end := off + chunkSize
		if end > len(data) {
			end = len(data)
		}
		if err := stream.Send(&storagepb.DownloadChunk{Data: data[off:end], Final: end == len(data)}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) StartWatch(ctx context.Context, req *storagepb.StartWatchRequest) (*storagepb.StartWatchResponse, error) {
	id, err := s.router.StartWatch(ctx, req.Tenant, req.Session, toDescriptor(req.Source), req.PollIntervalSecs)
	if err != nil {
		return nil, err
	}
	return &storagepb.StartWatchResponse{WatchID: id}, nil
}

func (s *Server) StopWatch(ctx context.Context, req *storagepb.StopWatchRequest) (*storagepb.StopWatchResponse, error) {
	if err := s.router.StopWatch(ctx, req.Tenant, req.Session); err != nil {
		return nil, err
	}
	return &storagepb.StopWatchResponse{}, nil
}

func fromMetadata(m *docxsync.Metadata) *storagepb.SourceMetadata {
	if m == nil {
		return nil
	}
	return &storagepb.SourceMetadata{SizeBytes: m.SizeBytes, ModifiedAt: m.ModifiedAt, VersionID: m.VersionID, ContentHash: m.ContentHash}
}

func toMetadata(m storagepb.SourceMetadata) docxsync.Metadata {
	return docxsync.Metadata{SizeBytes: m.SizeBytes, ModifiedAt: m.ModifiedAt, VersionID: m.VersionID, ContentHash: m.ContentHash}
}

func (s *Server) CheckForChanges(ctx context.Context, req *storagepb.CheckForChangesRequest) (*storagepb.CheckForChangesResponse, error) {
	event, err := s.router.CheckForChanges(ctx, req.Tenant, req.Session)
	if err != nil {
		return nil, err
	}
	return &storagepb.CheckForChangesResponse{
		ChangeType: int32(event.Type),
		Old:        fromMetadata(event.Old),
		New:        fromMetadata(event.New),
	}, nil
}

func (s *Server) GetSourceMetadata(ctx context.Context, req *storagepb.GetSourceMetadataRequest) (*storagepb.GetSourceMetadataResponse, error) {
	m, err := s.router.GetSourceMetadata(ctx, req.Tenant, req.Session)
	if err != nil {
		return nil, err
	}
	return &storagepb.GetSourceMetadataResponse{Metadata: *fromMetadata(m)}, nil
}

func (s *Server) GetKnownMetadata(ctx context.Context, req *storagepb.GetKnownMetadataRequest) (*storagepb.GetKnownMetadataResponse, error) {
	m, found := s.router.GetKnownMetadata(req.Tenant, req.Session)
	if !found {
		return &storagepb.GetKnownMetadataResponse{Found: false}, nil
	}
	return &storagepb.GetKnownMetadataResponse{Metadata: *fromMetadata(m), Found: true}, nil
}

func (s *Server) UpdateKnownMetadata(ctx context.Context, req *storagepb.UpdateKnownMetadataRequest) (*storagepb.UpdateKnownMetadataResponse, error) {
	s.router.UpdateKnownMetadata(req.Tenant, req.Session, toMetadata(req.Metadata))
	return &storagepb.UpdateKnownMetadataResponse{}, nil
}
