package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/elazarl/goproxy"
)

// ForwardServer is the http forward proxy the browsers send their traffic
// through. It runs on the orchestrator side and is reached from the
// browser container via the host gateway name.
type ForwardServer struct {
	listener net.Listener
	server   *http.Server
	done     chan struct{}
	err      error
}

func NewForwardServer(listen string, verbose bool) (*ForwardServer, error) {

	listener, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %s", err.Error())
	}

	proxy := goproxy.NewProxyHttpServer()
	proxy.Verbose = verbose

	this := &ForwardServer{
		listener: listener,
		server: &http.Server{
			Handler:           proxy,
			ReadHeaderTimeout: 5 * time.Second,
		},
		done: make(chan struct{}),
	}

	go func() {

		defer close(this.done)

		if err := this.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Forward proxy stopped",
				slog.String("err", err.Error()))
			this.err = err
		}
	}()

	return this, nil
}

func (this *ForwardServer) Addr() string {
	return this.listener.Addr().String()
}

func (this *ForwardServer) Port() int {

	if addr, ok := this.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}

	_, port, err := net.SplitHostPort(this.Addr())
	if err != nil {
		return 0
	}

	val, _ := strconv.Atoi(port)
	return val
}

func (this *ForwardServer) URL() string {
	return "http://" + this.Addr()
}

// ContainerURL is the proxy address as seen from inside a container
// that reaches the host under hostname.
func (this *ForwardServer) ContainerURL(hostname string) string {
	return "http://" + net.JoinHostPort(hostname, strconv.Itoa(this.Port()))
}

func (this *ForwardServer) Done() <-chan struct{} {
	return this.done
}

func (this *ForwardServer) Err() error {

	select {
	case <-this.done:
		return this.err
	default:
		return nil
	}
}

func (this *ForwardServer) Close() error {

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := this.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down forward proxy: %s", err.Error())
	}

	<-this.done

	return nil
}
