package main

import (
	"io"

	"github.com/maddsua/pwserver"
	"github.com/maddsua/pwserver/config"
	"github.com/maddsua/pwserver/proxy"
)

func newProbe(cfg config.ProbeConfig, label string, port string, output io.Writer) (*pwserver.Probe, error) {

	probe := pwserver.Probe{
		ProbeOptions: pwserver.ProbeOptions{
			Host:     cfg.Host,
			Port:     port,
			Greeting: cfg.Greeting,
			Timeout:  cfg.TimeoutValue(),
		},
		Label:  label,
		Writer: &StdoutWriter{},
		Output: output,
	}

	if proxyUrl := cfg.SocksProxyUrl(); proxyUrl != nil {

		dialer, err := proxy.NewSocksProxyDialer(proxyUrl)
		if err != nil {
			return nil, err
		}

		probe.Dialer = dialer
	}

	return &probe, nil
}
