package proxy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForwardServer(t *testing.T) {

	upstream := httptest.NewServer(http.HandlerFunc(func(wrt http.ResponseWriter, req *http.Request) {
		wrt.Write([]byte("hello through the proxy"))
	}))
	defer upstream.Close()

	server, err := NewForwardServer("127.0.0.1:0", false)
	require.NoError(t, err)

	proxyUrl, err := url.Parse(server.URL())
	require.NoError(t, err)

	client := &http.Client{
		Transport: &http.Transport{Proxy: http.ProxyURL(proxyUrl)},
		Timeout:   5 * time.Second,
	}

	resp, err := client.Get(upstream.URL)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello through the proxy", string(body))

	assert.NotZero(t, server.Port())
	assert.Equal(t, "http://host.testcontainers.internal:"+strconv.Itoa(server.Port()), server.ContainerURL("host.testcontainers.internal"))

	require.NoError(t, server.Close())

	select {
	case <-server.Done():
	default:
		t.Fatal("forward proxy still serving")
	}

	assert.NoError(t, server.Err())
}

func TestForwardServerListenError(t *testing.T) {
	_, err := NewForwardServer("not an address", false)
	assert.Error(t, err)
}
