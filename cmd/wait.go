package main

import (
	"fmt"
	"log/slog"

	"github.com/maddsua/pwserver"
	"github.com/maddsua/pwserver/utils"
	"github.com/spf13/cobra"
)

func waitCmd() *cobra.Command {

	var retry int
	var sleeping string

	cmd := &cobra.Command{
		Use:   "wait <url>",
		Short: "Wait until something answers http requests at url",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {

			sleep, err := utils.ParseDuration(sleeping)
			if err != nil {
				return fmt.Errorf("invalid sleep value: %s", err.Error())
			}

			if err := pwserver.WaitForPort(cmd.Context(), args[0], pwserver.WaitOptions{
				Retry:    retry,
				Sleeping: sleep,
			}); err != nil {
				return err
			}

			slog.Info("Port ready",
				slog.String("url", args[0]))

			return nil
		},
	}

	cmd.Flags().IntVar(&retry, "retry", pwserver.DefaultWaitRetry, "retry attempts")
	cmd.Flags().StringVar(&sleeping, "sleep", pwserver.DefaultWaitSleeping.String(), "sleep between attempts")

	return cmd
}
