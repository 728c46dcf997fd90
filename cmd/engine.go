package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/maddsua/pwserver"
	"github.com/maddsua/pwserver/config"
	"github.com/spf13/cobra"
)

func engineCmd(engine pwserver.Engine, cli *CliFlags) *cobra.Command {

	var gate bool
	var probeTimeout string

	cmd := &cobra.Command{
		Use:   engine.Name + " <proxy-url> <orchestrator-port>",
		Short: fmt.Sprintf("Serve %s on port %d at /%s", engine.Name, engine.ListenPort, engine.WsPath),
		//	arguments go through unchecked, a bad port fails the probe dial
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {

			cfg, err := loadConfig(cli, func(cfg *config.RootConfig) {

				if cmd.Flags().Changed("gate") {
					cfg.Probe.Gate = gate
				}

				if cmd.Flags().Changed("probe-timeout") {
					cfg.Probe.Timeout = probeTimeout
				}
			})
			if err != nil {
				return fmt.Errorf("failed to load config: %s", err.Error())
			}

			bootstrap, err := newBootstrap(engine, cfg, args, newLauncher(cfg.Launcher), os.Stdout)
			if err != nil {
				return err
			}

			slog.Debug("Starting browser server",
				slog.String("engine", engine.Name),
				slog.Int("port", engine.ListenPort),
				slog.String("path", engine.WsPath),
				slog.String("proxy", bootstrap.ProxyUrl),
				slog.Bool("gate", bootstrap.Gate),
				slog.Duration("probe_timeout", cfg.Probe.TimeoutValue()))

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if err := runBootstrap(ctx, bootstrap); err != nil {
				return err
			}

			slog.Warn("Shutting down...")
			return nil
		},
	}

	cmd.Flags().BoolVar(&gate, "gate", false, "wait for the connectivity probe before launching the server")
	cmd.Flags().StringVar(&probeTimeout, "probe-timeout", "", "probe timeout, seconds or duration, 0 waits forever")

	return cmd
}

var runBootstrap = func(ctx context.Context, bootstrap *pwserver.Bootstrap) error {
	return bootstrap.Run(ctx)
}

// newBootstrap maps the positional arguments: the proxy url goes to the
// browser server and the orchestrator port to the probe.
func newBootstrap(engine pwserver.Engine, cfg *config.RootConfig, args []string, launcher pwserver.Launcher, output io.Writer) (*pwserver.Bootstrap, error) {

	proxyUrl, port := argAt(args, 0), argAt(args, 1)

	probe, err := newProbe(cfg.Probe, engine.Name, port, output)
	if err != nil {
		return nil, fmt.Errorf("failed to set up probe: %s", err.Error())
	}

	return &pwserver.Bootstrap{
		Engine:   engine,
		ProxyUrl: proxyUrl,
		Probe:    probe,
		Gate:     cfg.Probe.Gate,
		Output:   output,
		Launcher: launcher,
	}, nil
}

func newLauncher(cfg config.LauncherConfig) *pwserver.PlaywrightLauncher {
	return &pwserver.PlaywrightLauncher{
		PlaywrightOptions: pwserver.PlaywrightOptions{
			DriverDir:       cfg.DriverDir,
			Install:         cfg.Install,
			InstallBrowsers: cfg.InstallBrowsers,
			Verbose:         cfg.Verbose,
		},
	}
}

func argAt(args []string, idx int) string {
	if idx < len(args) {
		return args[idx]
	}
	return ""
}
