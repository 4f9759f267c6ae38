package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/kzs0/otex"
	"github.com/kzs0/otex/attr"
	"github.com/kzs0/otex/propagation"
	"github.com/kzs0/otex/trace"
	"github.com/kzs0/otex/transport"
)

func newCallCmd(flags *rootFlags) *cobra.Command {
	var (
		parent  string
		retries int
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "call <url>",
		Short: "GET a URL inside a client span and print the traceparent sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			o, err := initOtex(ctx, flags, "otex-call")
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = o.Shutdown(shutdownCtx)
			}()

			if parent != "" {
				ctx = propagation.TraceContext{}.Extract(ctx, propagation.MapCarrier{
					propagation.TraceparentHeader: parent,
				})
				if !trace.SpanContextFromContext(ctx).IsValid() {
					return fmt.Errorf("invalid --traceparent %q", parent)
				}
			}

			ctx, span := otex.NewSpan(ctx, "otex.call", trace.SpanKindInternal, attr.String("url", args[0]))
			defer span.End()

			status, sent, err := get(ctx, args[0], retries, timeout)
			if err != nil {
				span.RecordError(err)
				return err
			}
			span.SetAttr(attr.Int("http.status_code", status))

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "status:", status)
			fmt.Fprintln(out, "traceparent:", sent)
			return nil
		},
	}
	cmd.Flags().StringVar(&parent, "traceparent", "", "continue this trace instead of starting one")
	cmd.Flags().IntVar(&retries, "retries", 0, "retry failed requests with backoff")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "per-request timeout")
	return cmd
}

// get issues the request and reports the traceparent the server received on
// the final attempt.
func get(ctx context.Context, url string, retries int, timeout time.Duration) (int, string, error) {
	if retries > 0 {
		client := otex.NewRetryableClient(transport.RetryConfig{
			RetryMax: retries,
			Timeout:  timeout,
		})
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return 0, "", err
		}
		resp, err := client.Do(req)
		if err != nil {
			return 0, "", err
		}
		defer resp.Body.Close()
		return resp.StatusCode, sentTraceparent(resp.Request), nil
	}

	resp, err := otex.NewResty().SetTimeout(timeout).R().SetContext(ctx).Get(url)
	if err != nil {
		return 0, "", err
	}
	return resp.StatusCode(), sentTraceparent(resp.RawResponse.Request), nil
}

func sentTraceparent(req *http.Request) string {
	if req == nil {
		return ""
	}
	return req.Header.Get(propagation.TraceparentHeader)
}
