package pwserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/playwright-community/playwright-go"
)

type LaunchOptions struct {
	ProxyServer string
	Headless    bool
}

type BrowserServer interface {
	Endpoint() string
	Done() <-chan struct{}
	Err() error
	Close() error
}

type Launcher interface {
	Launch(ctx context.Context, engine Engine, opts LaunchOptions) (BrowserServer, error)
}

// LaunchError covers everything that goes wrong with the browser server:
// a failed start as well as the process dying later on.
type LaunchError struct {
	Engine string
	Err    error
}

func (this *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", this.Engine, this.Err)
}

func (this *LaunchError) Unwrap() error {
	return this.Err
}

type PlaywrightOptions struct {
	DriverDir       string
	Install         bool
	InstallBrowsers bool
	Verbose         bool
}

// PlaywrightLauncher starts browser servers with the hidden
// "launch-server" command of the playwright driver.
type PlaywrightLauncher struct {
	PlaywrightOptions

	Stderr io.Writer

	mtx    sync.Mutex
	driver *playwright.PlaywrightDriver
}

const serverShutdownGrace = 5 * time.Second

func (this *PlaywrightLauncher) loadDriver(ctx context.Context, engine Engine) (*playwright.PlaywrightDriver, error) {

	this.mtx.Lock()
	defer this.mtx.Unlock()

	if this.driver != nil {
		return this.driver, nil
	}

	driver, err := playwright.NewDriver(&playwright.RunOptions{
		DriverDirectory:     this.DriverDir,
		SkipInstallBrowsers: !this.InstallBrowsers,
		Browsers:            []string{engine.Name},
		Verbose:             this.Verbose,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up playwright driver: %s", err.Error())
	}

	if this.Install {

		slog.Info("Installing playwright driver",
			slog.String("version", driver.Version),
			slog.Bool("browsers", this.InstallBrowsers))

		installCh := make(chan error, 1)
		go func() {
			installCh <- driver.Install()
		}()

		select {
		case err := <-installCh:
			if err != nil {
				return nil, fmt.Errorf("failed to install playwright driver: %s", err.Error())
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	this.driver = driver

	return driver, nil
}

func (this *PlaywrightLauncher) Launch(ctx context.Context, engine Engine, opts LaunchOptions) (BrowserServer, error) {

	driver, err := this.loadDriver(ctx, engine)
	if err != nil {
		return nil, &LaunchError{Engine: engine.Name, Err: err}
	}

	cfgPath, err := writeLaunchServerConfig(engine, opts)
	if err != nil {
		return nil, &LaunchError{Engine: engine.Name, Err: err}
	}

	cmd := driver.Command("launch-server", "--browser", engine.Name, "--config", cfgPath)

	if this.Stderr != nil {
		cmd.Stderr = this.Stderr
	} else {
		cmd.Stderr = os.Stderr
	}

	server, err := startServerProcess(ctx, engine, cmd)

	if err := os.Remove(cfgPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to remove launch config",
			slog.String("path", cfgPath),
			slog.String("err", err.Error()))
	}

	if err != nil {
		return nil, err
	}

	return server, nil
}

type launchServerConfig struct {
	Headless bool                     `json:"headless"`
	Port     int                      `json:"port"`
	WsPath   string                   `json:"wsPath"`
	Proxy    *launchServerProxyConfig `json:"proxy,omitempty"`
}

type launchServerProxyConfig struct {
	Server string `json:"server"`
}

func newLaunchServerConfig(engine Engine, opts LaunchOptions) launchServerConfig {

	cfg := launchServerConfig{
		Headless: opts.Headless,
		Port:     engine.ListenPort,
		WsPath:   engine.WsPath,
	}

	if opts.ProxyServer != "" {
		cfg.Proxy = &launchServerProxyConfig{Server: opts.ProxyServer}
	}

	return cfg
}

func writeLaunchServerConfig(engine Engine, opts LaunchOptions) (string, error) {

	file, err := os.CreateTemp("", "pwserver-"+engine.Name+"-*.json")
	if err != nil {
		return "", fmt.Errorf("failed to create launch config: %s", err.Error())
	}

	defer file.Close()

	if err := json.NewEncoder(file).Encode(newLaunchServerConfig(engine, opts)); err != nil {
		os.Remove(file.Name())
		return "", fmt.Errorf("failed to write launch config: %s", err.Error())
	}

	return file.Name(), nil
}

type serverProcess struct {
	engine   Engine
	endpoint string
	cmd      *exec.Cmd
	done     chan struct{}
	err      error
	closing  atomic.Bool
	once     sync.Once
}

func startServerProcess(ctx context.Context, engine Engine, cmd *exec.Cmd) (*serverProcess, error) {

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &LaunchError{Engine: engine.Name, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Engine: engine.Name, Err: err}
	}

	this := &serverProcess{
		engine: engine,
		cmd:    cmd,
		done:   make(chan struct{}),
	}

	endpointCh := make(chan string, 1)

	go func() {

		defer close(this.done)

		scanServerOutput(stdout, engine, endpointCh)

		//	stdout has to be drained before waiting
		if err := cmd.Wait(); err != nil && !this.closing.Load() {
			this.err = &LaunchError{Engine: engine.Name, Err: fmt.Errorf("server process: %v", err)}
		} else if !this.closing.Load() {
			this.err = &LaunchError{Engine: engine.Name, Err: errors.New("server process exited")}
		}
	}()

	select {

	case endpoint := <-endpointCh:
		this.endpoint = endpoint
		return this, nil

	case <-this.done:
		if this.err != nil {
			return nil, this.err
		}
		return nil, &LaunchError{Engine: engine.Name, Err: errors.New("server exited before reporting an endpoint")}

	case <-ctx.Done():
		this.Close()
		return nil, ctx.Err()
	}
}

// scanServerOutput passes the first ws:// line to endpointCh and keeps
// draining the rest of the output into the debug log.
func scanServerOutput(reader io.Reader, engine Engine, endpointCh chan<- string) {

	scanner := bufio.NewScanner(reader)
	reported := false

	for scanner.Scan() {

		line := strings.TrimSpace(scanner.Text())

		if !reported && strings.HasPrefix(line, "ws://") {
			reported = true
			endpointCh <- line
			continue
		}

		if line != "" {
			slog.Debug("server "+engine.Name,
				slog.String("out", line))
		}
	}

	if err := scanner.Err(); err != nil {
		slog.Debug("server output closed",
			slog.String("engine", engine.Name),
			slog.String("err", err.Error()))
		io.Copy(io.Discard, reader)
	}
}

func (this *serverProcess) Endpoint() string {
	return this.endpoint
}

func (this *serverProcess) Done() <-chan struct{} {
	return this.done
}

func (this *serverProcess) Err() error {

	select {
	case <-this.done:
		return this.err
	default:
		return nil
	}
}

func (this *serverProcess) Close() error {

	var err error

	this.once.Do(func() {

		this.closing.Store(true)

		if this.cmd.Process == nil {
			return
		}

		if sigErr := this.cmd.Process.Signal(os.Interrupt); sigErr != nil {
			if killErr := this.cmd.Process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
				err = fmt.Errorf("failed to stop %s server: %v", this.engine.Name, killErr)
				return
			}
		}

		select {
		case <-this.done:
		case <-time.After(serverShutdownGrace):
			if killErr := this.cmd.Process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
				err = fmt.Errorf("failed to kill %s server: %v", this.engine.Name, killErr)
				return
			}
			<-this.done
		}
	})

	return err
}
