package main

import (
	"context"
	"log/slog"

	"github.com/maddsua/pwserver"
)

type StdoutWriter struct {
}

func (this *StdoutWriter) Type() string {
	return "stdout"
}

func (this *StdoutWriter) WriteProbe(ctx context.Context, entry pwserver.ProbeEntry) error {

	response := "<nil>"
	if entry.Response != nil {
		response = *entry.Response
	}

	attrs := []any{
		slog.String("id", entry.ID),
		slog.String("label", entry.Label),
		slog.String("host", entry.Host),
		slog.String("status", entry.Status.String()),
		slog.Duration("elapsed", entry.Elapsed),
		slog.String("response", response),
	}

	if entry.Status != pwserver.ProbeStatusUp {
		slog.Debug("STDOUT Probe", append(attrs, slog.String("err", entry.Error))...)
		return nil
	}

	slog.Info("STDOUT Probe", attrs...)
	return nil
}
