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
	"github.com/maddsua/pwserver/proxy"
	"github.com/spf13/cobra"
)

func companionCmd(cli *CliFlags) *cobra.Command {

	var listen string

	cmd := &cobra.Command{
		Use:   "companion",
		Short: "Run the forward proxy the browser servers connect through",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {

			cfg, err := loadConfig(cli, func(cfg *config.RootConfig) {
				if cmd.Flags().Changed("listen") {
					cfg.Companion.Listen = listen
				}
			})
			if err != nil {
				return fmt.Errorf("failed to load config: %s", err.Error())
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return runCompanion(ctx, cfg, os.Stdout)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "proxy listen address (default 127.0.0.1:0)")

	return cmd
}

func runCompanion(ctx context.Context, cfg *config.RootConfig, out io.Writer) error {

	server, err := proxy.NewForwardServer(cfg.Companion.Listen, cfg.Companion.Verbose)
	if err != nil {
		return err
	}

	defer func() {
		if err := server.Close(); err != nil {
			slog.Error("Failed to stop forward proxy",
				slog.String("err", err.Error()))
		}
	}()

	if err := pwserver.WaitForPort(ctx, server.URL(), pwserver.WaitOptions{}); err != nil {
		return fmt.Errorf("forward proxy not reachable: %s", err.Error())
	}

	host := cfg.Probe.Host
	if host == "" {
		host = pwserver.DefaultProbeHost
	}

	fmt.Fprintln(out, "proxy url:", server.ContainerURL(host))
	fmt.Fprintln(out, "proxy port:", server.Port())

	slog.Info("Forward proxy ready",
		slog.String("addr", server.Addr()))

	select {
	case <-ctx.Done():
		slog.Warn("Shutting down...")
		return nil
	case <-server.Done():
		if err := server.Err(); err != nil {
			return fmt.Errorf("forward proxy stopped: %s", err.Error())
		}
		return nil
	}
}
