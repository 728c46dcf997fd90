package pwserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// WaitOptions bounds the polling. Retry is the total number of attempts,
// the first one included.
type WaitOptions struct {
	Retry    int
	Sleeping time.Duration
}

const (
	DefaultWaitRetry    = 15
	DefaultWaitSleeping = 200 * time.Millisecond
)

// WaitForPort polls addr over http until anything answers. Any status
// code counts, the point is that the listener is up.
func WaitForPort(ctx context.Context, addr string, opts WaitOptions) error {

	if opts.Retry <= 0 {
		opts.Retry = DefaultWaitRetry
	}

	if opts.Sleeping <= 0 {
		opts.Sleeping = DefaultWaitSleeping
	}

	client := retryablehttp.NewClient()
	client.RetryMax = opts.Retry - 1
	client.RetryWaitMin = opts.Sleeping
	client.RetryWaitMax = opts.Sleeping
	client.Logger = nil

	client.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {

		if ctx.Err() != nil {
			return false, ctx.Err()
		}

		if err != nil {
			slog.Debug("Port not ready",
				slog.String("addr", addr),
				slog.String("err", err.Error()),
				slog.Duration("retry_in", opts.Sleeping))
			return true, nil
		}

		return false, nil
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return fmt.Errorf("invalid wait address: %s", err.Error())
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("could not connect to %s after %d attempts: %v", addr, opts.Retry, err)
	}

	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("could not close response body: %s", err.Error())
	}

	return nil
}
