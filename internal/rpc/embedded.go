package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/NVIDIA/docx-mcp-storage/internal/glog"
	"github.com/NVIDIA/docx-mcp-storage/internal/rpc/duplex"
	"github.com/NVIDIA/docx-mcp-storage/internal/rpc/storagepb"
)

// ServeEmbedded starts srv over an in-memory duplex.Conn pair instead of a
// real network listener and returns a *grpc.ClientConn already dialed
// against it, used when the
// document-editing host and the storage engine share a process rather than
// talking over a real socket. The returned stop func tears down both the
// server and the client connection.
func ServeEmbedded(srv storagepb.StorageServer) (*grpc.ClientConn, func(), error) {
	client, server := duplex.NewPair()

	gs := grpc.NewServer(ServerOption())
	storagepb.RegisterStorageServer(gs, srv)

	lis := duplex.NewListener(server)
	go func() {
		if err := gs.Serve(lis); err != nil {
			glog.Warningf("rpc: embedded server stopped serving: %v", err)
		}
	}()

	cc, err := grpc.DialContext(context.Background(), "embedded",
		grpc.WithContextDialer(duplex.Dialer(client)),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		DialOption(),
	)
	if err != nil {
		gs.Stop()
		return nil, nil, err
	}

	stop := func() {
		cc.Close()
		gs.Stop()
	}
	return cc, stop, nil
}
