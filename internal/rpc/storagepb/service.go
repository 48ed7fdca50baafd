package storagepb

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "docxstorage.Storage"

// StorageServer is the storage engine's full RPC surface, implemented by
// internal/rpc.Server and registered against a *grpc.Server via
// RegisterStorageServer.
type StorageServer interface {
	LoadSession(context.Context, *LoadSessionRequest) (*LoadSessionResponse, error)
	SaveSession(context.Context, *SaveSessionRequest) (*SaveSessionResponse, error)
	SaveSessionStream(StorageSaveSessionStreamServer) error
	LoadSessionStream(*LoadSessionRequest, StorageLoadSessionStreamServer) error
	DeleteSession(context.Context, *DeleteSessionRequest) (*DeleteSessionResponse, error)
	SessionExists(context.Context, *SessionExistsRequest) (*SessionExistsResponse, error)
	ListSessions(context.Context, *ListSessionsRequest) (*ListSessionsResponse, error)

	LoadIndex(context.Context, *LoadIndexRequest) (*LoadIndexResponse, error)
	AddSessionToIndex(context.Context, *AddSessionToIndexRequest) (*AddSessionToIndexResponse, error)
	UpdateSessionInIndex(context.Context, *UpdateSessionInIndexRequest) (*UpdateSessionInIndexResponse, error)
	RemoveSessionFromIndex(context.Context, *RemoveSessionFromIndexRequest) (*RemoveSessionFromIndexResponse, error)

	AppendWal(context.Context, *AppendWalRequest) (*AppendWalResponse, error)
	ReadWal(context.Context, *ReadWalRequest) (*ReadWalResponse, error)
	TruncateWal(context.Context, *TruncateWalRequest) (*TruncateWalResponse, error)

	SaveCheckpoint(context.Context, *SaveCheckpointRequest) (*SaveCheckpointResponse, error)
	LoadCheckpoint(context.Context, *LoadCheckpointRequest) (*LoadCheckpointResponse, error)
	ListCheckpoints(context.Context, *ListCheckpointsRequest) (*ListCheckpointsResponse, error)

	HealthCheck(context.Context, *HealthCheckRequest) (*HealthCheckResponse, error)

	RegisterSource(context.Context, *RegisterSourceRequest) (*RegisterSourceResponse, error)
	UnregisterSource(context.Context, *UnregisterSourceRequest) (*UnregisterSourceResponse, error)
	UpdateSource(context.Context, *UpdateSourceRequest) (*UpdateSourceResponse, error)
	SyncToSource(context.Context, *SyncToSourceRequest) (*SyncToSourceResponse, error)
	GetSyncStatus(context.Context, *GetSyncStatusRequest) (*GetSyncStatusResponse, error)
	ListSources(context.Context, *ListSourcesRequest) (*ListSourcesResponse, error)
	ListConnections(context.Context, *ListConnectionsRequest) (*ListConnectionsResponse, error)
	ListConnectionFiles(context.Context, *ListConnectionFilesRequest) (*ListConnectionFilesResponse, error)
	DownloadFromSource(*DownloadFromSourceRequest, StorageDownloadFromSourceServer) error
	StartWatch(context.Context, *StartWatchRequest) (*StartWatchResponse, error)
	StopWatch(context.Context, *StopWatchRequest) (*StopWatchResponse, error)
	CheckForChanges(context.Context, *CheckForChangesRequest) (*CheckForChangesResponse, error)
	GetSourceMetadata(context.Context, *GetSourceMetadataRequest) (*GetSourceMetadataResponse, error)
	GetKnownMetadata(context.Context, *GetKnownMetadataRequest) (*GetKnownMetadataResponse, error)
	UpdateKnownMetadata(context.Context, *UpdateKnownMetadataRequest) (*UpdateKnownMetadataResponse, error)
}

// Streaming server-side helper interfaces, the hand-written analogue of
// protoc-gen-go-grpc's generated Storage_XxxServer types.
type StorageSaveSessionStreamServer interface {
	grpc.ServerStream
	Recv() (*SaveSessionChunk, error)
	SendAndClose(*SaveSessionResponse) error
}

type StorageLoadSessionStreamServer interface {
	grpc.ServerStream
	Send(*LoadSessionChunk) error
}

type StorageDownloadFromSourceServer interface {
	grpc.ServerStream
	Send(*DownloadChunk) error
}

// unaryHandler adapts a strongly-typed StorageServer method to grpc's
// interface{}-based grpc.MethodDesc.Handler shape, so the service can be
// hand-registered without protoc-gen-go-grpc output.
func unaryHandler[Req any, Resp any](method func(StorageServer, context.Context, *Req) (*Resp, error), fullMethod string) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return method(srv.(StorageServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return method(srv.(StorageServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StorageServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "LoadSession", Handler: unaryHandler(StorageServer.LoadSession, ServiceName+"/LoadSession")},
		{MethodName: "SaveSession", Handler: unaryHandler(StorageServer.SaveSession, ServiceName+"/SaveSession")},
		{MethodName: "DeleteSession", Handler: unaryHandler(StorageServer.DeleteSession, ServiceName+"/DeleteSession")},
		{MethodName: "SessionExists", Handler: unaryHandler(StorageServer.SessionExists, ServiceName+"/SessionExists")},
		{MethodName: "ListSessions", Handler: unaryHandler(StorageServer.ListSessions, ServiceName+"/ListSessions")},
		{MethodName: "LoadIndex", Handler: unaryHandler(StorageServer.LoadIndex, ServiceName+"/LoadIndex")},
		{MethodName: "AddSessionToIndex", Handler: unaryHandler(StorageServer.AddSessionToIndex, ServiceName+"/AddSessionToIndex")},
		{MethodName: "UpdateSessionInIndex", Handler: unaryHandler(StorageServer.UpdateSessionInIndex, ServiceName+"/UpdateSessionInIndex")},
		{MethodName: "RemoveSessionFromIndex", Handler: unaryHandler(StorageServer.RemoveSessionFromIndex, ServiceName+"/RemoveSessionFromIndex")},
		{MethodName: "AppendWal", Handler: unaryHandler(StorageServer.AppendWal, ServiceName+"/AppendWal")},
		{MethodName: "ReadWal", Handler: unaryHandler(StorageServer.ReadWal, ServiceName+"/ReadWal")},
		{MethodName: "TruncateWal", Handler: unaryHandler(StorageServer.TruncateWal, ServiceName+"/TruncateWal")},
		{MethodName: "SaveCheckpoint", Handler: unaryHandler(StorageServer.SaveCheckpoint, ServiceName+"/SaveCheckpoint")},
		{MethodName: "LoadCheckpoint", Handler: unaryHandler(StorageServer.LoadCheckpoint, ServiceName+"/LoadCheckpoint")},
		{MethodName: "ListCheckpoints", Handler: unaryHandler(StorageServer.ListCheckpoints, ServiceName+"/ListCheckpoints")},
		{MethodName: "HealthCheck", Handler: unaryHandler(StorageServer.HealthCheck, ServiceName+"/HealthCheck")},
		{MethodName: "RegisterSource", Handler: unaryHandler(StorageServer.RegisterSource, ServiceName+"/RegisterSource")},
		{MethodName: "UnregisterSource", Handler: unaryHandler(StorageServer.UnregisterSource, ServiceName+"/UnregisterSource")},
		{MethodName: "UpdateSource", Handler: unaryHandler(StorageServer.UpdateSource, ServiceName+"/UpdateSource")},
		{MethodName: "SyncToSource", Handler: unaryHandler(StorageServer.SyncToSource, ServiceName+"/SyncToSource")},
		{MethodName: "GetSyncStatus", Handler: unaryHandler(StorageServer.GetSyncStatus, ServiceName+"/GetSyncStatus")},
		{MethodName: "ListSources", Handler: unaryHandler(StorageServer.ListSources, ServiceName+"/ListSources")},
		{MethodName: "ListConnections", Handler: unaryHandler(StorageServer.ListConnections, ServiceName+"/ListConnections")},
		{MethodName: "ListConnectionFiles", Handler: unaryHandler(StorageServer.ListConnectionFiles, ServiceName+"/ListConnectionFiles")},
		{MethodName: "StartWatch", Handler: unaryHandler(StorageServer.StartWatch, ServiceName+"/StartWatch")},
		{MethodName: "StopWatch", Handler: unaryHandler(StorageServer.StopWatch, ServiceName+"/StopWatch")},
		{MethodName: "CheckForChanges", Handler: unaryHandler(StorageServer.CheckForChanges, ServiceName+"/CheckForChanges")},
		{MethodName: "GetSourceMetadata", Handler: unaryHandler(StorageServer.GetSourceMetadata, ServiceName+"/GetSourceMetadata")},
		{MethodName: "GetKnownMetadata", Handler: unaryHandler(StorageServer.GetKnownMetadata, ServiceName+"/GetKnownMetadata")},
		{MethodName: "UpdateKnownMetadata", Handler: unaryHandler(StorageServer.UpdateKnownMetadata, ServiceName+"/UpdateKnownMetadata")},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "SaveSessionStream",
			Handler:       _Storage_SaveSessionStream_Handler,
			ClientStreams: true,
		},
		{
			StreamName:    "LoadSessionStream",
			Handler:       _Storage_LoadSessionStream_Handler,
			ServerStreams: true,
		},
		{
			StreamName:    "DownloadFromSource",
			Handler:       _Storage_DownloadFromSource_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "storage.proto",
}

func RegisterStorageServer(s grpc.ServiceRegistrar, srv StorageServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type storageSaveSessionStreamServer struct{ grpc.ServerStream }

func (x *storageSaveSessionStreamServer) Recv() (*SaveSessionChunk, error) {
	m := new(SaveSessionChunk)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (x *storageSaveSessionStreamServer) SendAndClose(resp *SaveSessionResponse) error {
	return x.ServerStream.SendMsg(resp)
}

func _Storage_SaveSessionStream_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(StorageServer).SaveSessionStream(&storageSaveSessionStreamServer{stream})
}

type storageLoadSessionStreamServer struct{ grpc.ServerStream }

func (x *storageLoadSessionStreamServer) Send(m *LoadSessionChunk) error {
	return x.ServerStream.SendMsg(m)
}

func _Storage_LoadSessionStream_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(LoadSessionRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(StorageServer).LoadSessionStream(m, &storageLoadSessionStreamServer{stream})
}

type storageDownloadFromSourceServer struct{ grpc.ServerStream }

func (x *storageDownloadFromSourceServer) Send(m *DownloadChunk) error {
	return x.ServerStream.SendMsg(m)
}

func _Storage_DownloadFromSource_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(DownloadFromSourceRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(StorageServer).DownloadFromSource(m, &storageDownloadFromSourceServer{stream})
}

// StorageClient is the hand-written analogue of protoc-gen-go-grpc's
// generated client stub, backed by the JSON codec registered in
// internal/rpc.
type StorageClient interface {
	LoadSession(ctx context.Context, in *LoadSessionRequest, opts ...grpc.CallOption) (*LoadSessionResponse, error)
	SaveSession(ctx context.Context, in *SaveSessionRequest, opts ...grpc.CallOption) (*SaveSessionResponse, error)
	SaveSessionStream(ctx context.Context, opts ...grpc.CallOption) (StorageSaveSessionStreamClient, error)
	LoadSessionStream(ctx context.Context, in *LoadSessionRequest, opts ...grpc.CallOption) (StorageLoadSessionStreamClient, error)
	DeleteSession(ctx context.Context, in *DeleteSessionRequest, opts ...grpc.CallOption) (*DeleteSessionResponse, error)
	SessionExists(ctx context.Context, in *SessionExistsRequest, opts ...grpc.CallOption) (*SessionExistsResponse, error)
	ListSessions(ctx context.Context, in *ListSessionsRequest, opts ...grpc.CallOption) (*ListSessionsResponse, error)
	LoadIndex(ctx context.Context, in *LoadIndexRequest, opts ...grpc.CallOption) (*LoadIndexResponse, error)
	AddSessionToIndex(ctx context.Context, in *AddSessionToIndexRequest, opts ...grpc.CallOption) (*AddSessionToIndexResponse, error)
	UpdateSessionInIndex(ctx context.Context, in *UpdateSessionInIndexRequest, opts ...grpc.CallOption) (*UpdateSessionInIndexResponse, error)
	RemoveSessionFromIndex(ctx context.Context, in *RemoveSessionFromIndexRequest, opts ...grpc.CallOption) (*RemoveSessionFromIndexResponse, error)
	AppendWal(ctx context.Context, in *AppendWalRequest, opts ...grpc.CallOption) (*AppendWalResponse, error)
	ReadWal(ctx context.Context, in *ReadWalRequest, opts ...grpc.CallOption) (*ReadWalResponse, error)
	TruncateWal(ctx context.Context, in *TruncateWalRequest, opts ...grpc.CallOption) (*TruncateWalResponse, error)
	SaveCheckpoint(ctx context.Context, in *SaveCheckpointRequest, opts ...grpc.CallOption) (*SaveCheckpointResponse, error)
	LoadCheckpoint(ctx context.Context, in *LoadCheckpointRequest, opts ...grpc.CallOption) (*LoadCheckpointResponse, error)
	ListCheckpoints(ctx context.Context, in *ListCheckpointsRequest, opts ...grpc.CallOption) (*ListCheckpointsResponse, error)
	HealthCheck(ctx context.Context, in *HealthCheckRequest, opts ...grpc.CallOption) (*HealthCheckResponse, error)
	RegisterSource(ctx context.Context, in *RegisterSourceRequest, opts ...grpc.CallOption) (*RegisterSourceResponse, error)
	UnregisterSource(ctx context.Context, in *UnregisterSourceRequest, opts ...grpc.CallOption) (*UnregisterSourceResponse, error)
	UpdateSource(ctx context.Context, in *UpdateSourceRequest, opts ...grpc.CallOption) (*UpdateSourceResponse, error)
	SyncToSource(ctx context.Context, in *SyncToSourceRequest, opts ...grpc.CallOption) (*SyncToSourceResponse, error)
	GetSyncStatus(ctx context.Context, in *GetSyncStatusRequest, opts ...grpc.CallOption) (*GetSyncStatusResponse, error)
	ListSources(ctx context.Context, in *ListSourcesRequest, opts ...grpc.CallOption) (*ListSourcesResponse, error)
	ListConnections(ctx context.Context, in *ListConnectionsRequest, opts ...grpc.CallOption) (*ListConnectionsResponse, error)
	ListConnectionFiles(ctx context.Context, in *ListConnectionFilesRequest, opts ...grpc.CallOption) (*ListConnectionFilesResponse, error)
	DownloadFromSource(ctx context.Context, in *DownloadFromSourceRequest, opts ...grpc.CallOption) (StorageDownloadFromSourceClient, error)
	StartWatch(ctx context.Context, in *StartWatchRequest, opts ...grpc.CallOption) (*StartWatchResponse, error)
	StopWatch(ctx context.Context, in *StopWatchRequest, opts ...grpc.CallOption) (*StopWatchResponse, error)
	CheckForChanges(ctx context.Context, in *CheckForChangesRequest, opts ...grpc.CallOption) (*CheckForChangesResponse, error)
	GetSourceMetadata(ctx context.Context, in *GetSourceMetadataRequest, opts ...grpc.CallOption) (*GetSourceMetadataResponse, error)
	GetKnownMetadata(ctx context.Context, in *GetKnownMetadataRequest, opts ...grpc.CallOption) (*GetKnownMetadataResponse, error)
	UpdateKnownMetadata(ctx context.Context, in *UpdateKnownMetadataRequest, opts ...grpc.CallOption) (*UpdateKnownMetadataResponse, error)
}

type storageClient struct{ cc grpc.ClientConnInterface }

func NewStorageClient(cc grpc.ClientConnInterface) StorageClient { return &storageClient{cc} }

func unaryCall[Req any, Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in *Req, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storageClient) LoadSession(ctx context.Context, in *LoadSessionRequest, opts ...grpc.CallOption) (*LoadSessionResponse, error) {
	return unaryCall[LoadSessionRequest, LoadSessionResponse](ctx, c.cc, "LoadSession", in, opts...)
}
func (c *storageClient) SaveSession(ctx context.Context, in *SaveSessionRequest, opts ...grpc.CallOption) (*SaveSessionResponse, error) {
	return unaryCall[SaveSessionRequest, SaveSessionResponse](ctx, c.cc, "SaveSession", in, opts...)
}
func (c *storageClient) DeleteSession(ctx context.Context, in *DeleteSessionRequest, opts ...grpc.CallOption) (*DeleteSessionResponse, error) {
	return unaryCall[DeleteSessionRequest, DeleteSessionResponse](ctx, c.cc, "DeleteSession", in, opts...)
}
func (c *storageClient) SessionExists(ctx context.Context, in *SessionExistsRequest, opts ...grpc.CallOption) (*SessionExistsResponse, error) {
	return unaryCall[SessionExistsRequest, SessionExistsResponse](ctx, c.cc, "SessionExists", in, opts...)
}
func (c *storageClient) ListSessions(ctx context.Context, in *ListSessionsRequest, opts ...grpc.CallOption) (*ListSessionsResponse, error) {
	return unaryCall[ListSessionsRequest, ListSessionsResponse](ctx, c.cc, "ListSessions", in, opts...)
}
func (c *storageClient) LoadIndex(ctx context.Context, in *LoadIndexRequest, opts ...grpc.CallOption) (*LoadIndexResponse, error) {
	return unaryCall[LoadIndexRequest, LoadIndexResponse](ctx, c.cc, "LoadIndex", in, opts...)
}
func (c *storageClient) AddSessionToIndex(ctx context.Context, in *AddSessionToIndexRequest, opts ...grpc.CallOption) (*AddSessionToIndexResponse, error) {
	return unaryCall[AddSessionToIndexRequest, AddSessionToIndexResponse](ctx, c.cc, "AddSessionToIndex", in, opts...)
}
func (c *storageClient) UpdateSessionInIndex(ctx context.Context, in *UpdateSessionInIndexRequest, opts ...grpc.CallOption) (*UpdateSessionInIndexResponse, error) {
	return unaryCall[UpdateSessionInIndexRequest, UpdateSessionInIndexResponse](ctx, c.cc, "UpdateSessionInIndex", in, opts...)
}
func (c *storageClient) RemoveSessionFromIndex(ctx context.Context, in *RemoveSessionFromIndexRequest, opts ...grpc.CallOption) (*RemoveSessionFromIndexResponse, error) {
	return unaryCall[RemoveSessionFromIndexRequest, RemoveSessionFromIndexResponse](ctx, c.cc, "RemoveSessionFromIndex", in, opts...)
}
func (c *storageClient) AppendWal(ctx context.Context, in *AppendWalRequest, opts ...grpc.CallOption) (*AppendWalResponse, error) {
	return unaryCall[AppendWalRequest, AppendWalResponse](ctx, c.cc, "AppendWal", in, opts...)
}
func (c *storageClient) ReadWal(ctx context.Context, in *ReadWalRequest, opts ...grpc.CallOption) (*ReadWalResponse, error) {
	return unaryCall[ReadWalRequest, ReadWalResponse](ctx, c.cc, "ReadWal", in, opts...)
}
func (c *storageClient) TruncateWal(ctx context.Context, in *TruncateWalRequest, opts ...grpc.CallOption) (*TruncateWalResponse, error) {
	return unaryCall[TruncateWalRequest, TruncateWalResponse](ctx, c.cc, "TruncateWal", in, opts...)
}
func (c *storageClient) SaveCheckpoint(ctx context.Context, in *SaveCheckpointRequest, opts ...grpc.CallOption) (*SaveCheckpointResponse, error) {
	return unaryCall[SaveCheckpointRequest, SaveCheckpointResponse](ctx, c.cc, "SaveCheckpoint", in, opts...)
}
func (c *storageClient) LoadCheckpoint(ctx context.Context, in *LoadCheckpointRequest, opts ...grpc.CallOption) (*LoadCheckpointResponse, error) {
	return unaryCall[LoadCheckpointRequest, LoadCheckpointResponse](ctx, c.cc, "LoadCheckpoint", in, opts...)
}
func (c *storageClient) ListCheckpoints(ctx context.Context, in *ListCheckpointsRequest, opts ...grpc.CallOption) (*ListCheckpointsResponse, error) {
	return unaryCall[ListCheckpointsRequest, ListCheckpointsResponse](ctx, c.cc, "ListCheckpoints", in, opts...)
}
func (c *storageClient) HealthCheck(ctx context.Context, in *HealthCheckRequest, opts ...grpc.CallOption) (*HealthCheckResponse, error) {
	return unaryCall[HealthCheckRequest, HealthCheckResponse](ctx, c.cc, "HealthCheck", in, opts...)
}
func (c *storageClient) RegisterSource(ctx context.Context, in *RegisterSourceRequest, opts ...grpc.CallOption) (*RegisterSourceResponse, error) {
	return unaryCall[RegisterSourceRequest, RegisterSourceResponse](ctx, c.cc, "RegisterSource", in, opts...)
}
func (c *storageClient) UnregisterSource(ctx context.Context, in *UnregisterSourceRequest, opts ...grpc.CallOption) (*UnregisterSourceResponse, error) {
	return unaryCall[UnregisterSourceRequest, UnregisterSourceResponse](ctx, c.cc, "UnregisterSource", in, opts...)
}
func (c *storageClient) UpdateSource(ctx context.Context, in *UpdateSourceRequest, opts ...grpc.CallOption) (*UpdateSourceResponse, error) {
	return unaryCall[UpdateSourceRequest, UpdateSourceResponse](ctx, c.cc, "UpdateSource", in, opts...)
}
func (c *storageClient) SyncToSource(ctx context.Context, in *SyncToSourceRequest, opts ...grpc.CallOption) (*SyncToSourceResponse, error) {
	return unaryCall[SyncToSourceRequest, SyncToSourceResponse](ctx, c.cc, "SyncToSource", in, opts...)
}
func (c *storageClient) GetSyncStatus(ctx context.Context, in *GetSyncStatusRequest, opts ...grpc.CallOption) (*GetSyncStatusResponse, error) {
	return unaryCall[GetSyncStatusRequest, GetSyncStatusResponse](ctx, c.cc, "GetSyncStatus", in, opts...)
}
func (c *storageClient) ListSources(ctx context.Context, in *ListSourcesRequest, opts ...grpc.CallOption) (*ListSourcesResponse, error) {
	return unaryCall[ListSourcesRequest, ListSourcesResponse](ctx, c.cc, "ListSources", in, opts...)
}
func (c *storageClient) ListConnections(ctx context.Context, in *ListConnectionsRequest, opts ...grpc.CallOption) (*ListConnectionsResponse, error) {
	return unaryCall[ListConnectionsRequest, ListConnectionsResponse](ctx, c.cc, "ListConnections", in, opts...)
}
func (c *storageClient) ListConnectionFiles(ctx context.Context, in *ListConnectionFilesRequest, opts ...grpc.CallOption) (*ListConnectionFilesResponse, error) {
	return unaryCall[ListConnectionFilesRequest, ListConnectionFilesResponse](ctx, c.cc, "ListConnectionFiles", in, opts...)
}
func (c *storageClient) StartWatch(ctx context.Context, in *StartWatchRequest, opts ...grpc.CallOption) (*StartWatchResponse, error) {
	return unaryCall[StartWatchRequest, StartWatchResponse](ctx, c.cc, "StartWatch", in, opts...)
}
func (c *storageClient) StopWatch(ctx context.Context, in *StopWatchRequest, opts ...grpc.CallOption) (*StopWatchResponse, error) {
	return unaryCall[StopWatchRequest, StopWatchResponse](ctx, c.cc, "StopWatch", in, opts...)
}
func (c *storageClient) CheckForChanges(ctx context.Context, in *CheckForChangesRequest, opts ...grpc.CallOption) (*CheckForChangesResponse, error) {
	return unaryCall[CheckForChangesRequest, CheckForChangesResponse](ctx, c.cc, "CheckForChanges", in, opts...)
}
func (c *storageClient) GetSourceMetadata(ctx context.Context, in *GetSourceMetadataRequest, opts ...grpc.CallOption) (*GetSourceMetadataResponse, error) {
	return unaryCall[GetSourceMetadataRequest, GetSourceMetadataResponse](ctx, c.cc, "GetSourceMetadata", in, opts...)
}
func (c *storageClient) GetKnownMetadata(ctx context.Context, in *GetKnownMetadataRequest, opts ...grpc.CallOption) (*GetKnownMetadataResponse, error) {
	return unaryCall[GetKnownMetadataRequest, GetKnownMetadataResponse](ctx, c.cc, "GetKnownMetadata", in, opts...)
}
func (c *storageClient) UpdateKnownMetadata(ctx context.Context, in *UpdateKnownMetadataRequest, opts ...grpc.CallOption) (*UpdateKnownMetadataResponse, error) {
	return unaryCall[UpdateKnownMetadataRequest, UpdateKnownMetadataResponse](ctx, c.cc, "UpdateKnownMetadata", in, opts...)
}

// Streaming client stubs.
type StorageSaveSessionStreamClient interface {
	grpc.ClientStream
	Send(*SaveSessionChunk) error
	CloseAndRecv() (*SaveSessionResponse, error)
}

type storageSaveSessionStreamClient struct{ grpc.ClientStream }

func (x *storageSaveSessionStreamClient) Send(m *SaveSessionChunk) error { return x.ClientStream.SendMsg(m) }
func (x *storageSaveSessionStreamClient) CloseAndRecv() (*SaveSessionResponse, error) {
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	m := new(SaveSessionResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *storageClient) SaveSessionStream(ctx context.Context, opts ...grpc.CallOption) (StorageSaveSessionStreamClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], ServiceName+"/SaveSessionStream", opts...)
	if err != nil {
		return nil, err
	}
	return &storageSaveSessionStreamClient{stream}, nil
}

type StorageLoadSessionStreamClient interface {
	grpc.ClientStream
	Recv() (*LoadSessionChunk, error)
}

type storageLoadSessionStreamClient struct{ grpc.ClientStream }

func (x *storageLoadSessionStreamClient) Recv() (*LoadSessionChunk, error) {
	m := new(LoadSessionChunk)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *storageClient) LoadSessionStream(ctx context.Context, in *LoadSessionRequest, opts ...grpc.CallOption) (StorageLoadSessionStreamClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[1], ServiceName+"/LoadSessionStream", opts...)
	if err != nil {
		return nil, err
	}
	x := &storageLoadSessionStreamClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type StorageDownloadFromSourceClient interface {
	grpc.ClientStream
	Recv() (*DownloadChunk, error)
}

type storageDownloadFromSourceClient struct{ grpc.ClientStream }

func (x *storageDownloadFromSourceClient) Recv() (*DownloadChunk, error) {
	m := new(DownloadChunk)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *storageClient) DownloadFromSource(ctx context.Context, in *DownloadFromSourceRequest, opts ...grpc.CallOption) (StorageDownloadFromSourceClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[2], ServiceName+"/DownloadFromSource", opts...)
	if err != nil {
		return nil, err
	}
	x := &storageDownloadFromSourceClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
