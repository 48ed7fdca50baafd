// Package storagepb defines the wire messages and service contract for the
// storage engine's RPC surface. Messages are plain Go structs marshaled by
// the JSON codec registered in internal/rpc rather than protoc-gen-go
// output; keep field tags in sync on both sides when adding an RPC.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package storagepb

// LoadSessionRequest/Response load the current-document blob.
type LoadSessionRequest struct {
	Tenant  string `json:"tenant"`
	Session string `json:"session"`
}

type LoadSessionResponse struct {
	Data []byte `json:"data"`
}

// SaveSessionRequest/Response save the current-document blob. Data travels
// as a single field here; the streamed chunked variant is SaveSessionChunk
// over the client-streaming SaveSessionStream RPC (256KiB chunks).
type SaveSessionRequest struct {
	Tenant  string `json:"tenant"`
	Session string `json:"session"`
	Data    []byte `json:"data"`
}

type SaveSessionResponse struct{}

type SaveSessionChunk struct {
	Tenant  string `json:"tenant"`
	Session string `json:"session"`
	Data    []byte `json:"data"`
	Final   bool   `json:"final"`
}

type LoadSessionChunk struct {
	Data []byte `json:"data"`
}

type DeleteSessionRequest struct {
	Tenant  string `json:"tenant"`
	Session string `json:"session"`
}

type DeleteSessionResponse struct{}

type SessionExistsRequest struct {
	Tenant  string `json:"tenant"`
	Session string `json:"session"`
}

type SessionExistsResponse struct {
	Exists                bool `json:"exists"`
	PendingExternalChange bool `json:"pending_external_change"`
}

type ListSessionsRequest struct {
	Tenant string `json:"tenant"`
}

type ListSessionsResponse struct {
	Sessions []string `json:"sessions"`
}

// Index RPCs.
type LoadIndexRequest struct {
	Tenant string `json:"tenant"`
}

type IndexEntry struct {
	SessionID              string   `json:"session_id"`
	SourcePath             string   `json:"source_path"`
	CreatedAt              int64    `json:"created_at"`
	ModifiedAt             int64    `json:"modified_at"`
	WalPosition            uint64   `json:"wal_position"`
	CursorPosition         uint64   `json:"cursor_position"`
	CheckpointPositions    []uint64 `json:"checkpoint_positions"`
	DocumentFileName       string   `json:"document_file_name"`
	PendingExternalChange  bool     `json:"pending_external_change"`
}

type LoadIndexResponse struct {
	Sessions []IndexEntry `json:"sessions"`
}

type AddSessionToIndexRequest struct {
	Tenant           string `json:"tenant"`
	Session          string `json:"session"`
	SourcePath       string `json:"source_path"`
	DocumentFileName string `json:"document_file_name"`
	Now              int64  `json:"now"`
}

type AddSessionToIndexResponse struct {
	Entry IndexEntry `json:"entry"`
}

type UpdateSessionInIndexRequest struct {
	Tenant                    string   `json:"tenant"`
	Session                   string   `json:"session"`
	ModifiedAt                *int64   `json:"modified_at,omitempty"`
	WalPosition               *uint64  `json:"wal_position,omitempty"`
	CursorPosition            *uint64  `json:"cursor_position,omitempty"`
	PendingExternalChange     *bool    `json:"pending_external_change,omitempty"`
	SourcePath                *string  `json:"source_path,omitempty"`
	AddCheckpointPositions    []uint64 `json:"add_checkpoint_positions,omitempty"`
	RemoveCheckpointPositions []uint64 `json:"remove_checkpoint_positions,omitempty"`
}

type UpdateSessionInIndexResponse struct {
	Success  bool `json:"success"`
	NotFound bool `json:"not_found"`
}

type RemoveSessionFromIndexRequest struct {
	Tenant  string `json:"tenant"`
	Session string `json:"session"`
}

type RemoveSessionFromIndexResponse struct {
	Existed bool `json:"existed"`
}

// WAL RPCs.
type WalEntry struct {
	Position  uint64 `json:"position"`
	Operation string `json:"operation"`
	Path      string `json:"path"`
	Patch     []byte `json:"patch_bytes"`
	Timestamp int64  `json:"timestamp"`
}

type AppendWalRequest struct {
	Tenant  string     `json:"tenant"`
	Session string     `json:"session"`
	Entries []WalEntry `json:"entries"`
}

type AppendWalResponse struct {
	NewPosition uint64 `json:"new_position"`
}

type ReadWalRequest struct {
	Tenant       string `json:"tenant"`
	Session      string `json:"session"`
	FromPosition uint64 `json:"from_position"`
	Limit        int32  `json:"limit"`
}

type ReadWalResponse struct {
	Entries []WalEntry `json:"entries"`
	HasMore bool       `json:"has_more"`
}

type TruncateWalRequest struct {
	Tenant          string `json:"tenant"`
	Session         string `json:"session"`
	KeepFromPosition uint64 `json:"keep_from_position"`
}

type TruncateWalResponse struct {
	RemovedThrough uint64 `json:"removed_through"`
}

// Checkpoint RPCs.
type SaveCheckpointRequest struct {
	Tenant   string `json:"tenant"`
	Session  string `json:"session"`
	Position uint64 `json:"position"`
	Data     []byte `json:"data"`
}

type SaveCheckpointResponse struct{}

type LoadCheckpointRequest struct {
	Tenant   string `json:"tenant"`
	Session  string `json:"session"`
	Position uint64 `json:"position"` // 0 means "latest", per checkpoint.Store.Load
}

type LoadCheckpointResponse struct {
	Data     []byte `json:"data"`
	Resolved uint64 `json:"resolved"`
}

type CheckpointInfo struct {
	Position  uint64 `json:"position"`
	Size      int64  `json:"size"`
	CreatedAt int64  `json:"created_at"`
}

type ListCheckpointsRequest struct {
	Tenant  string `json:"tenant"`
	Session string `json:"session"`
}

type ListCheckpointsResponse struct {
	Checkpoints []CheckpointInfo `json:"checkpoints"`
}

// HealthCheck.
type HealthCheckRequest struct{}

type HealthCheckResponse struct {
	Healthy bool   `json:"healthy"`
	Version string `json:"version"`
}

// Sync RPCs.
type SourceDescriptor struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connection_id,omitempty"`
	Path         string `json:"path"`
	FileID       string `json:"file_id,omitempty"`
}

type SyncStatus struct {
	SessionID         string           `json:"session_id"`
	Source            SourceDescriptor `json:"source"`
	AutoSyncEnabled   bool             `json:"auto_sync_enabled"`
	LastSyncedAt      *int64           `json:"last_synced_at,omitempty"`
	HasPendingChanges bool             `json:"has_pending_changes"`
	LastError         *string          `json:"last_error,omitempty"`
}

type RegisterSourceRequest struct {
	Tenant   string           `json:"tenant"`
	Session  string           `json:"session"`
	Source   SourceDescriptor `json:"source"`
	AutoSync bool             `json:"auto_sync"`
}

type RegisterSourceResponse struct{}

type UnregisterSourceRequest struct {
	Tenant  string `json:"tenant"`
	Session string `json:"session"`
}

type UnregisterSourceResponse struct{}

type UpdateSourceRequest struct {
	Tenant   string            `json:"tenant"`
	Session  string            `json:"session"`
	Source   *SourceDescriptor `json:"source,omitempty"`
	AutoSync *bool             `json:"auto_sync,omitempty"`
}

type UpdateSourceResponse struct{}

type SyncToSourceRequest struct {
	Tenant  string `json:"tenant"`
	Session string `json:"session"`
	Data    []byte `json:"data"`
}

type SyncToSourceResponse struct {
	SyncedAt int64 `json:"synced_at"`
}

type GetSyncStatusRequest struct {
	Tenant  string `json:"tenant"`
	Session string `json:"session"`
}

type GetSyncStatusResponse struct {
	Status SyncStatus `json:"status"`
	Found  bool       `json:"found"`
}

type ListSourcesRequest struct {
	Tenant string `json:"tenant"`
}

type ListSourcesResponse struct {
	Sources []SyncStatus `json:"sources"`
}

type ListConnectionsRequest struct {
	Tenant string `json:"tenant"`
}

type ConnectionInfo struct {
	ConnectionID string `json:"connection_id"`
	Provider     string `json:"provider"`
	DisplayName  string `json:"display_name"`
}

type ListConnectionsResponse struct {
	Connections []ConnectionInfo `json:"connections"`
}

type ListConnectionFilesRequest struct {
	Tenant       string `json:"tenant"`
	ConnectionID string `json:"connection_id"`
	FolderID     string `json:"folder_id"`
	PageToken    string `json:"page_token"`
}

type FileEntry struct {
	FileID   string `json:"file_id"`
	Name     string `json:"name"`
	IsFolder bool   `json:"is_folder"`
	Size     uint64 `json:"size"`
}

type ListConnectionFilesResponse struct {
	Files         []FileEntry `json:"files"`
	NextPageToken string      `json:"next_page_token"`
}

// DownloadFromSource streams an external file's contents back to the
// caller over a server-streaming RPC, 256KiB per chunk.
type DownloadFromSourceRequest struct {
	Tenant       string `json:"tenant"`
	ConnectionID string `json:"connection_id"`
	FileID       string `json:"file_id"`
}

type DownloadChunk struct {
	Data  []byte `json:"data"`
	Final bool   `json:"final"`
}

type StartWatchRequest struct {
	Tenant           string           `json:"tenant"`
	Session          string           `json:"session"`
	Source           SourceDescriptor `json:"source"`
	PollIntervalSecs uint32           `json:"poll_interval_secs"`
}

type StartWatchResponse struct {
	WatchID string `json:"watch_id"`
}

type StopWatchRequest struct {
	Tenant  string `json:"tenant"`
	Session string `json:"session"`
}

type StopWatchResponse struct{}

type CheckForChangesRequest struct {
	Tenant  string `json:"tenant"`
	Session string `json:"session"`
}

type SourceMetadata struct {
	SizeBytes   uint64  `json:"size_bytes"`
	ModifiedAt  int64   `json:"modified_at"`
	VersionID   *string `json:"version_id,omitempty"`
	ContentHash []byte  `json:"content_hash,omitempty"`
}

type CheckForChangesResponse struct {
	ChangeType int32           `json:"change_type"` // 0=none, 1=modified, 2=deleted
	Old        *SourceMetadata `json:"old,omitempty"`
	New        *SourceMetadata `json:"new,omitempty"`
}

type GetSourceMetadataRequest struct {
	Tenant  string `json:"tenant"`
	Session string `json:"session"`
}

type GetSourceMetadataResponse struct {
	Metadata SourceMetadata `json:"metadata"`
}

type GetKnownMetadataRequest struct {
	Tenant  string `json:"tenant"`
	Session string `json:"session"`
}

type GetKnownMetadataResponse struct {
	Metadata SourceMetadata `json:"metadata"`
	Found    bool           `json:"found"`
}

type UpdateKnownMetadataRequest struct {
	Tenant   string         `json:"tenant"`
	Session  string         `json:"session"`
	Metadata SourceMetadata `json:"metadata"`
}

type UpdateKnownMetadataResponse struct{}
