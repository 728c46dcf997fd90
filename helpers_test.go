package pwserver

import (
	"bytes"
	"context"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mtx  sync.Mutex
	buff bytes.Buffer
}

func (this *syncBuffer) Write(p []byte) (int, error) {
	this.mtx.Lock()
	defer this.mtx.Unlock()
	return this.buff.Write(p)
}

func (this *syncBuffer) String() string {
	this.mtx.Lock()
	defer this.mtx.Unlock()
	return this.buff.String()
}

type memoryWriter struct {
	mtx     sync.Mutex
	entries []ProbeEntry
}

func (this *memoryWriter) Type() string {
	return "memory"
}

func (this *memoryWriter) WriteProbe(ctx context.Context, entry ProbeEntry) error {
	this.mtx.Lock()
	defer this.mtx.Unlock()
	this.entries = append(this.entries, entry)
	return nil
}

func (this *memoryWriter) Entries() []ProbeEntry {
	this.mtx.Lock()
	defer this.mtx.Unlock()
	return append([]ProbeEntry(nil), this.entries...)
}

// peerFunc handles a single accepted connection.
type peerFunc func(conn net.Conn)

// startPeer listens on loopback and hands every connection to handle.
func startPeer(t *testing.T, handle peerFunc) (string, string) {

	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go handle(conn)
		}
	}()

	addr := listener.Addr().(*net.TCPAddr)
	return "127.0.0.1", strconv.Itoa(addr.Port)
}

// closedPort returns a loopback port nothing listens on.
func closedPort(t *testing.T) string {

	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	port := strconv.Itoa(listener.Addr().(*net.TCPAddr).Port)
	require.NoError(t, listener.Close())

	return port
}

func replyPeer(reply string) peerFunc {
	return func(conn net.Conn) {
		defer conn.Close()
		buff := make([]byte, 1024)
		if _, err := conn.Read(buff); err != nil {
			return
		}
		conn.Write([]byte(reply))
		io.Copy(io.Discard, conn)
	}
}

// silentPeer accepts and reads but never answers.
func silentPeer() peerFunc {
	return func(conn net.Conn) {
		io.Copy(io.Discard, conn)
	}
}

type fakeServer struct {
	endpoint string
	done     chan struct{}
	err      error
	closed   atomic.Bool
	once     sync.Once
}

func newFakeServer(endpoint string) *fakeServer {
	return &fakeServer{endpoint: endpoint, done: make(chan struct{})}
}

func (this *fakeServer) Endpoint() string {
	return this.endpoint
}

func (this *fakeServer) Done() <-chan struct{} {
	return this.done
}

func (this *fakeServer) Err() error {
	select {
	case <-this.done:
		return this.err
	default:
		return nil
	}
}

// exit simulates the server process dying on its own.
func (this *fakeServer) exit(err error) {
	this.once.Do(func() {
		this.err = err
		close(this.done)
	})
}

func (this *fakeServer) Close() error {
	this.closed.Store(true)
	this.once.Do(func() { close(this.done) })
	return nil
}

type launchCall struct {
	Engine  Engine
	Options LaunchOptions
}

// fakeLauncher hands out a fakeServer. With release set, Launch blocks
// until it is closed and ignores ctx while doing so.
type fakeLauncher struct {
	mtx     sync.Mutex
	calls   []launchCall
	server  *fakeServer
	err     error
	release chan struct{}
}

func (this *fakeLauncher) Launch(ctx context.Context, engine Engine, opts LaunchOptions) (BrowserServer, error) {

	this.mtx.Lock()
	this.calls = append(this.calls, launchCall{Engine: engine, Options: opts})
	this.mtx.Unlock()

	if this.release != nil {
		<-this.release
	}

	if this.err != nil {
		return nil, this.err
	}

	this.mtx.Lock()
	defer this.mtx.Unlock()

	if this.server == nil {
		this.server = newFakeServer("ws://127.0.0.1:" + strconv.Itoa(engine.ListenPort) + "/" + engine.WsPath)
	}

	return this.server, nil
}

func (this *fakeLauncher) Calls() []launchCall {
	this.mtx.Lock()
	defer this.mtx.Unlock()
	return append([]launchCall(nil), this.calls...)
}

// Server returns the last server handed out, nil before the first launch.
func (this *fakeLauncher) Server() *fakeServer {
	this.mtx.Lock()
	defer this.mtx.Unlock()
	return this.server
}

// serverClosed reports whether a server was handed out and closed since.
func (this *fakeLauncher) serverClosed() bool {
	server := this.Server()
	return server != nil && server.closed.Load()
}
