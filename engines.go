package pwserver

import (
	"fmt"
	"strings"
)

// Engine is a browser engine served by a launch-server process
// on a fixed port and WebSocket path.
type Engine struct {
	Name       string
	ListenPort int
	WsPath     string
}

const (
	EngineChromium = "chromium"
	EngineFirefox  = "firefox"
	EngineWebkit   = "webkit"
)

// Container ports are part of the image contract, don't change them
var engineTable = []Engine{
	{Name: EngineChromium, ListenPort: 1024 + 3, WsPath: EngineChromium},
	{Name: EngineFirefox, ListenPort: 1024 + 1, WsPath: EngineFirefox},
	{Name: EngineWebkit, ListenPort: 1024 + 2, WsPath: EngineWebkit},
}

func Engines() []Engine {
	result := make([]Engine, len(engineTable))
	copy(result, engineTable)
	return result
}

func LookupEngine(name string) (Engine, error) {

	name = strings.ToLower(strings.TrimSpace(name))

	for _, item := range engineTable {
		if item.Name == name {
			return item, nil
		}
	}

	return Engine{}, fmt.Errorf("unknown browser engine '%s'", name)
}

func (this Engine) String() string {
	return fmt.Sprintf("%s:%d/%s", this.Name, this.ListenPort, this.WsPath)
}
