package pwserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/proxy"
)

const (
	DefaultProbeHost     = "host.testcontainers.internal"
	DefaultProbeGreeting = "Hello from client!"

	probeReadBufferSize = 64 * 1024
)

type ProbeOptions struct {
	Host     string
	Port     string
	Greeting string
	Timeout  time.Duration
}

// Probe checks that the orchestrator is reachable over a raw TCP stream.
// It sends a greeting, waits for one chunk of data and hangs up.
//
// A zero Timeout means the probe waits for the peer for as long as
// its context lives.
type Probe struct {
	ProbeOptions

	Label  string
	Writer ReportWriter
	Dialer proxy.ContextDialer
	Output io.Writer
}

type ProbeResult struct {
	Addr     string
	Response string
	Received bool
	Elapsed  time.Duration
}

// ProbeError is a connection level failure: refused, reset, unreachable,
// failed name resolution or an expired probe timeout.
type ProbeError struct {
	Op   string
	Addr string
	Err  error
}

func (this *ProbeError) Error() string {
	return fmt.Sprintf("probe %s %s: %v", this.Op, this.Addr, this.Err)
}

func (this *ProbeError) Unwrap() error {
	return this.Err
}

func (this *Probe) ID() string {
	return this.Label
}

func (this *Probe) Type() string {
	return "tcp"
}

func (this *Probe) validateConfig() {

	if this.Host == "" {
		this.Host = DefaultProbeHost
	}

	if this.Greeting == "" {
		this.Greeting = DefaultProbeGreeting
	}

	if this.Label == "" {
		this.Label = "probe"
	}
}

func (this *Probe) output() io.Writer {
	if this.Output == nil {
		return os.Stdout
	}
	return this.Output
}

func (this *Probe) dialer() proxy.ContextDialer {
	if this.Dialer == nil {
		return &net.Dialer{}
	}
	return this.Dialer
}

func (this *Probe) Exec(ctx context.Context) (*ProbeResult, error) {

	this.validateConfig()

	//	port is passed through as is, a bad value fails in the dialer
	addr := net.JoinHostPort(this.Host, this.Port)
	out := this.output()

	fmt.Fprintln(out, "Connecting to server:", this.Host, this.Port)

	parentCtx := ctx

	if this.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, this.Timeout)
		defer cancel()
	}

	started := time.Now()

	var fail = func(op string, err error) error {

		if parentCtx.Err() != nil {
			return parentCtx.Err()
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("no response within %v: %w", this.Timeout, ctxErr)
		}

		probeErr := &ProbeError{Op: op, Addr: addr, Err: err}

		this.report(parentCtx, ProbeEntry{
			Time:    started,
			Status:  ProbeStatusDown,
			Elapsed: time.Since(started),
			Error:   probeErr.Error(),
		})

		return probeErr
	}

	conn, err := this.dialer().DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fail("dial", err)
	}

	defer conn.Close()

	//	nothing else unblocks a pending read
	stopWatch := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stopWatch()

	fmt.Fprintln(out, "Connected to server")

	if _, err := conn.Write([]byte(this.Greeting)); err != nil {
		return nil, fail("write", err)
	}

	buff := make([]byte, probeReadBufferSize)

	size, err := conn.Read(buff)
	if err != nil && size == 0 && !errors.Is(err, io.EOF) {
		return nil, fail("read", err)
	}

	result := ProbeResult{
		Addr:     addr,
		Received: size > 0,
		Elapsed:  time.Since(started),
	}

	entry := ProbeEntry{
		Time:    started,
		Status:  ProbeStatusUp,
		Elapsed: result.Elapsed,
	}

	if result.Received {
		result.Response = string(buff[:size])
		entry.Response = &result.Response
		fmt.Fprintln(out, "Received from server:", result.Response)
	} else {
		fmt.Fprintln(out, "Connection closed by server")
	}

	this.report(parentCtx, entry)

	return &result, nil
}

func (this *Probe) report(ctx context.Context, entry ProbeEntry) {

	if this.Writer == nil {
		return
	}

	entry.ID = uuid.NewString()
	entry.Label = this.Label
	entry.Host = net.JoinHostPort(this.Host, this.Port)

	if err := this.Writer.WriteProbe(context.WithoutCancel(ctx), entry); err != nil {
		slog.Error("Failed to write probe entry",
			slog.String("label", this.Label),
			slog.String("writer", this.Writer.Type()),
			slog.String("err", err.Error()))
	}
}

// Start runs the probe in the background. The caller decides
// whether to wait for it.
func (this *Probe) Start(ctx context.Context) *ProbeTask {

	task := &ProbeTask{done: make(chan struct{})}

	go func() {
		defer close(task.done)
		task.result, task.err = this.Exec(ctx)
	}()

	return task
}

type ProbeTask struct {
	done   chan struct{}
	result *ProbeResult
	err    error
}

func (this *ProbeTask) Done() <-chan struct{} {
	return this.done
}

// Result is only meaningful after Done is closed.
func (this *ProbeTask) Result() (*ProbeResult, error) {

	select {
	case <-this.done:
		return this.result, this.err
	default:
		return nil, errors.New("probe still running")
	}
}

func (this *ProbeTask) Wait(ctx context.Context) (*ProbeResult, error) {

	select {
	case <-this.done:
		return this.result, this.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
