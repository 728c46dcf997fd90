package proxy

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	xproxy "golang.org/x/net/proxy"
)

func NewSocksProxyDialer(proxyUrl *url.URL) (xproxy.ContextDialer, error) {

	switch strings.ToLower(proxyUrl.Scheme) {
	case "socks", "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("unsupported proxy protocol '%s'", proxyUrl.Scheme)
	}

	if proxyUrl.Hostname() == "" {
		return nil, errors.New("invalid proxy url: host name required")
	}

	if proxyUrl.Port() == "" {
		return nil, errors.New("invalid proxy url: port required")
	}

	var proxyAuth *xproxy.Auth
	if proxyUrl.User.Username() != "" {

		proxyAuth = &xproxy.Auth{User: proxyUrl.User.Username()}

		if pass, has := proxyUrl.User.Password(); has {
			proxyAuth.Password = pass
		}
	}

	dialer, err := xproxy.SOCKS5("tcp", proxyUrl.Host, proxyAuth, xproxy.Direct)
	if err != nil {
		return nil, err
	}

	return dialer.(xproxy.ContextDialer), nil
}
