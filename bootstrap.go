package pwserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

type BootstrapState int32

const (
	StateStarting BootstrapState = iota
	StateServing
)

func (this BootstrapState) String() string {
	switch this {
	case StateStarting:
		return "starting"
	case StateServing:
		return "serving"
	default:
		return ""
	}
}

// Bootstrap runs the connectivity probe and a browser server for one engine.
//
// With Gate unset the probe is advisory: the server is launched right away
// and the probe result only matters if it fails, in which case the server
// is stopped and the probe error returned. With Gate set the server is not
// launched until the probe succeeds.
//
// Run blocks while the server is up. It returns nil when ctx is cancelled,
// a *ProbeError when the probe fails and a *LaunchError when the server
// fails to start or exits on its own.
type Bootstrap struct {
	Engine   Engine
	ProxyUrl string
	Probe    *Probe
	Launcher Launcher
	Gate     bool
	Output   io.Writer

	state atomic.Int32
}

func (this *Bootstrap) State() BootstrapState {
	return BootstrapState(this.state.Load())
}

func (this *Bootstrap) output() io.Writer {
	if this.Output == nil {
		return os.Stdout
	}
	return this.Output
}

type launchOutcome struct {
	server BrowserServer
	err    error
}

func (this *Bootstrap) Run(ctx context.Context) error {

	if this.Launcher == nil {
		return errors.New("bootstrap: launcher is nil")
	}

	this.state.Store(int32(StateStarting))

	var probeTask *ProbeTask
	var probeDone <-chan struct{}

	if this.Probe != nil {

		probeTask = this.Probe.Start(ctx)

		if this.Gate {

			slog.Debug("Waiting for probe before launch",
				slog.String("engine", this.Engine.Name))

			if _, err := probeTask.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}

		} else {
			probeDone = probeTask.Done()
		}
	}

	launchCtx, cancelLaunch := context.WithCancel(ctx)
	defer cancelLaunch()

	launchCh := make(chan launchOutcome, 1)

	go func() {
		server, err := this.Launcher.Launch(launchCtx, this.Engine, LaunchOptions{
			ProxyServer: this.ProxyUrl,
			Headless:    true,
		})
		launchCh <- launchOutcome{server: server, err: err}
	}()

	var server BrowserServer
	var serverDone <-chan struct{}

	var closeServer = func(server BrowserServer) {
		if err := server.Close(); err != nil {
			slog.Error("Failed to stop browser server",
				slog.String("engine", this.Engine.Name),
				slog.String("err", err.Error()))
		}
	}

	//	a launcher may ignore ctx, so a launch still in flight is reaped
	//	in the background instead of holding up the exit
	var stopServer = func() {

		if server != nil {
			closeServer(server)
			return
		}

		cancelLaunch()

		go func() {
			if outcome := <-launchCh; outcome.server != nil {
				slog.Debug("Stopping late browser server",
					slog.String("engine", this.Engine.Name))
				closeServer(outcome.server)
			}
		}()
	}

	for {
		select {

		case outcome := <-launchCh:

			if outcome.err != nil {

				if ctx.Err() != nil {
					return nil
				}

				var launchErr *LaunchError
				if !errors.As(outcome.err, &launchErr) {
					return &LaunchError{Engine: this.Engine.Name, Err: outcome.err}
				}

				return outcome.err
			}

			server = outcome.server
			serverDone = server.Done()
			this.state.Store(int32(StateServing))

			fmt.Fprintln(this.output(), "ready endpoint:", server.Endpoint())

			slog.Debug("Browser server ready",
				slog.String("engine", this.Engine.Name),
				slog.String("endpoint", server.Endpoint()))

		case <-probeDone:

			probeDone = nil

			_, err := probeTask.Result()

			var probeErr *ProbeError
			if errors.As(err, &probeErr) {
				stopServer()
				return err
			}

		case <-serverDone:

			if err := server.Err(); err != nil {
				return err
			}

			return &LaunchError{Engine: this.Engine.Name, Err: errors.New("server stopped")}

		case <-ctx.Done():
			stopServer()
			return nil
		}
	}
}
