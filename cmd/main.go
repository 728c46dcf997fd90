package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/maddsua/pwserver"
	"github.com/spf13/cobra"
)

const (
	exitProbeFailure  = 1
	exitLaunchFailure = 2
	exitFailure       = 1
)

type CliFlags struct {
	Cfg      string
	Debug    bool
	JsonLogs bool
}

func main() {

	godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		slog.Error("Exiting",
			slog.String("err", err.Error()))
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {

	var cli CliFlags

	rootCmd := &cobra.Command{
		Use:           "pwserver",
		Short:         "Playwright browser servers for containerized test runs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(cli)
		},
	}

	rootCmd.PersistentFlags().StringVar(&cli.Cfg, "cfg", "", "config file location")
	rootCmd.PersistentFlags().BoolVar(&cli.Debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&cli.JsonLogs, "json_logs", false, "log in json format")

	for _, engine := range pwserver.Engines() {
		rootCmd.AddCommand(engineCmd(engine, &cli))
	}

	rootCmd.AddCommand(companionCmd(&cli))
	rootCmd.AddCommand(waitCmd())

	return rootCmd
}

func setupLogging(cli CliFlags) {

	if os.Getenv("DEBUG") == "true" || cli.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	if os.Getenv("LOGFMT") == "json" || cli.JsonLogs {

		opts := &slog.HandlerOptions{Level: slog.LevelInfo}
		if os.Getenv("DEBUG") == "true" || cli.Debug {
			opts.Level = slog.LevelDebug
		}

		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, opts)))
	}
}

func exitCode(err error) int {

	var probeErr *pwserver.ProbeError
	var launchErr *pwserver.LaunchError

	switch {
	case errors.As(err, &probeErr):
		return exitProbeFailure
	case errors.As(err, &launchErr):
		return exitLaunchFailure
	default:
		return exitFailure
	}
}
