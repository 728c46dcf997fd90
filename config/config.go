package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/maddsua/pwserver/utils"
)

const EnvPrefix = "pwserver"

type RootConfig struct {
	Probe     ProbeConfig     `yaml:"probe" json:"probe"`
	Launcher  LauncherConfig  `yaml:"launcher" json:"launcher"`
	Companion CompanionConfig `yaml:"companion" json:"companion"`
}

// ApplyEnv overrides config values with PWSERVER_* environment variables.
// Variables that aren't set leave the file values alone.
func (this *RootConfig) ApplyEnv() error {

	if err := envconfig.Process(EnvPrefix, this); err != nil {
		return fmt.Errorf("failed to read environment: %s", err.Error())
	}

	return nil
}

func (this *RootConfig) Validate() error {

	if err := this.Probe.Validate(); err != nil {
		return fmt.Errorf("invalid probe config: %s", err.Error())
	}

	if err := this.Companion.Validate(); err != nil {
		return fmt.Errorf("invalid companion config: %s", err.Error())
	}

	return nil
}

type ProbeConfig struct {
	Host       string `yaml:"host" json:"host"`
	Greeting   string `yaml:"greeting" json:"greeting"`
	Timeout    string `yaml:"timeout" json:"timeout"`
	Gate       bool   `yaml:"gate" json:"gate"`
	SocksProxy string `yaml:"socks_proxy" json:"socks_proxy" split_words:"true"`
	timeout    time.Duration
	socksUrl   *url.URL
}

func (this *ProbeConfig) Validate() error {

	if val, err := utils.ParseDuration(this.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %s", err.Error())
	} else {
		this.timeout = val
	}

	this.Host = strings.TrimSpace(this.Host)

	if this.SocksProxy == "" {
		return nil
	}

	proxyUrl, err := expandProxyUrl(this.SocksProxy)
	if err != nil {
		return err
	}

	switch strings.ToLower(proxyUrl.Scheme) {
	case "socks", "socks5", "socks5h":
	default:
		return errors.New("unsupported proxy protocol")
	}

	if proxyUrl.Hostname() == "" {
		return errors.New("invalid proxy url: host name required")
	}

	if proxyUrl.Port() == "" {
		return errors.New("invalid proxy url: port required")
	}

	this.socksUrl = proxyUrl

	return nil
}

// TimeoutValue is zero unless a probe timeout was configured.
func (this *ProbeConfig) TimeoutValue() time.Duration {
	return this.timeout
}

func (this *ProbeConfig) SocksProxyUrl() *url.URL {
	return this.socksUrl
}

type LauncherConfig struct {
	DriverDir       string `yaml:"driver_dir" json:"driver_dir" split_words:"true"`
	Install         bool   `yaml:"install" json:"install"`
	InstallBrowsers bool   `yaml:"install_browsers" json:"install_browsers" split_words:"true"`
	Verbose         bool   `yaml:"verbose" json:"verbose"`
}

type CompanionConfig struct {
	Listen  string `yaml:"listen" json:"listen"`
	Verbose bool   `yaml:"verbose" json:"verbose"`
}

func (this *CompanionConfig) Validate() error {

	if this.Listen = strings.TrimSpace(this.Listen); this.Listen == "" {
		this.Listen = "127.0.0.1:0"
	}

	return nil
}

func expandProxyUrl(val string) (*url.URL, error) {

	if strings.HasPrefix(val, "$") {

		envVal := os.Getenv(val[1:])
		if envVal == "" {
			return nil, fmt.Errorf("url variable '%s' is not defined", val)
		}

		val = envVal
	}

	parsedURL, err := url.Parse(val)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url: %s", err.Error())
	}

	return parsedURL, nil
}
