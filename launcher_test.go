package pwserver

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLaunchServerConfig(t *testing.T) {

	engine, err := LookupEngine(EngineChromium)
	require.NoError(t, err)

	t.Run("with proxy", func(t *testing.T) {

		data, err := json.Marshal(newLaunchServerConfig(engine, LaunchOptions{
			ProxyServer: "http://host.testcontainers.internal:40000",
			Headless:    true,
		}))
		require.NoError(t, err)

		assert.JSONEq(t, `{
			"headless": true,
			"port": 1027,
			"wsPath": "chromium",
			"proxy": {"server": "http://host.testcontainers.internal:40000"}
		}`, string(data))
	})

	t.Run("without proxy", func(t *testing.T) {

		data, err := json.Marshal(newLaunchServerConfig(engine, LaunchOptions{Headless: true}))
		require.NoError(t, err)

		assert.JSONEq(t, `{"headless": true, "port": 1027, "wsPath": "chromium"}`, string(data))
	})

	t.Run("written to a temp file", func(t *testing.T) {

		path, err := writeLaunchServerConfig(engine, LaunchOptions{ProxyServer: "http://proxy:1", Headless: true})
		require.NoError(t, err)
		defer os.Remove(path)

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var cfg launchServerConfig
		require.NoError(t, json.Unmarshal(data, &cfg))
		assert.Equal(t, 1027, cfg.Port)
		require.NotNil(t, cfg.Proxy)
		assert.Equal(t, "http://proxy:1", cfg.Proxy.Server)
	})
}

func TestScanServerOutput(t *testing.T) {

	engine, err := LookupEngine(EngineFirefox)
	require.NoError(t, err)

	output := strings.NewReader(strings.Join([]string{
		"Downloading nothing",
		"ws://127.0.0.1:1025/firefox",
		"ws://127.0.0.1:9999/other",
		"",
	}, "\n"))

	endpointCh := make(chan string, 1)
	scanServerOutput(output, engine, endpointCh)

	assert.Equal(t, "ws://127.0.0.1:1025/firefox", <-endpointCh)
	assert.Empty(t, endpointCh)
}

func shellCmd(t *testing.T, script string) *exec.Cmd {

	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("needs a posix shell")
	}

	return exec.Command("sh", "-c", script)
}

func TestServerProcess(t *testing.T) {

	engine, err := LookupEngine(EngineWebkit)
	require.NoError(t, err)

	t.Run("reports endpoint and stops on close", func(t *testing.T) {

		cmd := shellCmd(t, "echo booting; echo ws://127.0.0.1:1026/webkit; exec sleep 30")

		server, err := startServerProcess(context.Background(), engine, cmd)
		require.NoError(t, err)

		assert.Equal(t, "ws://127.0.0.1:1026/webkit", server.Endpoint())
		assert.NoError(t, server.Err())

		require.NoError(t, server.Close())

		select {
		case <-server.Done():
		case <-time.After(10 * time.Second):
			t.Fatal("server process still running")
		}

		assert.NoError(t, server.Err())
	})

	t.Run("exit before endpoint", func(t *testing.T) {

		cmd := shellCmd(t, "echo 'browser binary missing' >&2; exit 3")

		_, err := startServerProcess(context.Background(), engine, cmd)

		var launchErr *LaunchError
		require.True(t, errors.As(err, &launchErr))
		assert.Equal(t, "webkit", launchErr.Engine)
	})

	t.Run("exit after endpoint", func(t *testing.T) {

		cmd := shellCmd(t, "echo ws://127.0.0.1:1026/webkit; sleep 0.2; exit 1")

		server, err := startServerProcess(context.Background(), engine, cmd)
		require.NoError(t, err)

		select {
		case <-server.Done():
		case <-time.After(10 * time.Second):
			t.Fatal("server process did not exit")
		}

		var launchErr *LaunchError
		assert.True(t, errors.As(server.Err(), &launchErr))
	})

	t.Run("context cancelled before endpoint", func(t *testing.T) {

		cmd := shellCmd(t, "exec sleep 30")

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		_, err := startServerProcess(ctx, engine, cmd)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
