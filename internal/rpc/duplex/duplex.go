// Package duplex implements an in-process, in-memory transport for the
// storage engine's gRPC surface: a single full-duplex in-memory stream
// with independent read/write synchronization, split so one caller can
// write while another concurrently reads. A single shared mutex would
// deadlock HTTP/2 full-duplex when an embedding host drives each half from
// its own thread.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package duplex

import (
	"context"
	"net"
	"sync"
)

// Conn wraps a net.Conn half of an in-memory pipe with independent
// read/write mutexes, one per direction.
type Conn struct {
	net.Conn
	readMu  sync.Mutex
	writeMu sync.Mutex
}

func (c *Conn) Read(b []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	return c.Conn.Read(b)
}

func (c *Conn) Write(b []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.Write(b)
}

// NewPair returns connected client/server halves of an in-memory duplex
// pipe, each independently safe for concurrent Read/Write.
func NewPair() (client, server *Conn) {
	c1, c2 := net.Pipe()
	return &Conn{Conn: c1}, &Conn{Conn: c2}
}

// Listener is a net.Listener backed by a single pre-established in-memory
// connection, letting a *grpc.Server Serve() the embedded duplex transport:
// Accept yields the connection once, then blocks until Close.
type Listener struct {
	conns chan net.Conn
	once  sync.Once
	done  chan struct{}
}

// NewListener wraps a single server-side connection for one-shot Accept.
func NewListener(conn net.Conn) *Listener {
	l := &Listener{conns: make(chan net.Conn, 1), done: make(chan struct{})}
	l.conns <- conn
	return l
}

func (l *Listener) Accept() (net.Conn, error) {
	select {
	case c, ok := <-l.conns:
		if !ok {
			return nil, net.ErrClosed
		}
		return c, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

func (l *Listener) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

func (l *Listener) Addr() net.Addr { return addr{} }

type addr struct{}

func (addr) Network() string { return "duplex" }
func (addr) String() string  { return "embedded" }

// Dialer returns a grpc.WithContextDialer-compatible function that always
// hands back the given client connection, for dialing the embedded
// transport without a real network address.
func Dialer(client net.Conn) func(context.Context, string) (net.Conn, error) {
	used := false
	var mu sync.Mutex
	return func(ctx context.Context, _ string) (net.Conn, error) {
		mu.Lock()
		defer mu.Unlock()
		if used {
			return nil, net.ErrClosed
		}
		used = true
		return client, nil
	}
}
