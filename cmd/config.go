package main

import (
	"log/slog"

	"github.com/maddsua/pwserver/config"
)

func loadConfig(cli *CliFlags, overrides ...func(cfg *config.RootConfig)) (*config.RootConfig, error) {

	path := cli.Cfg

	if path == "" {
		if loc, has := config.FindConfig(config.DefaultLocations); has {
			path = loc
		}
	}

	if path != "" {
		slog.Debug("Config file located",
			slog.String("at", path))
	}

	return config.Load(path, overrides...)
}
