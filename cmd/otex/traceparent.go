package main

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/kzs0/otex/internal"
	"github.com/kzs0/otex/propagation"
	"github.com/kzs0/otex/trace"
	"github.com/kzs0/otex/trace/w3c"
)

var errZeroID = errors.New("trace-id and parent-id must not be all zeros")

type decoded struct {
	TraceID string `json:"trace_id"`
	SpanID  string `json:"span_id"`
	Flags   string `json:"flags"`
	Sampled bool   `json:"sampled"`
	Valid   bool   `json:"valid"`
}

func newTraceparentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "traceparent",
		Short: "Decode, encode and generate traceparent values",
	}
	cmd.AddCommand(newDecodeCmd(), newEncodeCmd(), newNewCmd())
	return cmd
}

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <value>",
		Short: "Print the fields of a traceparent value as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tp, err := w3c.ParseTraceparent(args[0])
			if err != nil {
				return err
			}
			sc, _ := propagation.Decode(args[0])

			out, err := sonic.ConfigStd.MarshalIndent(decoded{
				TraceID: tp.TraceID.String(),
				SpanID:  tp.SpanID.String(),
				Flags:   fmt.Sprintf("%02x", tp.Flags),
				Sampled: tp.Sampled(),
				Valid:   sc.IsValid(),
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func newEncodeCmd() *cobra.Command {
	var traceID, spanID string
	var sampled bool
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Build a traceparent value from its fields",
		RunE: func(cmd *cobra.Command, args []string) error {
			tid, err := internal.TraceIDFromHex(traceID)
			if err != nil {
				return err
			}
			sid, err := internal.SpanIDFromHex(spanID)
			if err != nil {
				return err
			}
			sc := trace.SpanContext{TraceID: tid, SpanID: sid}
			if !sc.IsValid() {
				return errZeroID
			}
			if sampled {
				sc.Flags = trace.FlagsSampled
			}
			fmt.Fprintln(cmd.OutOrStdout(), propagation.Encode(sc))
			return nil
		},
	}
	cmd.Flags().StringVar(&traceID, "trace-id", "", "32 hex characters")
	cmd.Flags().StringVar(&spanID, "span-id", "", "16 hex characters")
	cmd.Flags().BoolVar(&sampled, "sampled", true, "set the sampled flag")
	_ = cmd.MarkFlagRequired("trace-id")
	_ = cmd.MarkFlagRequired("span-id")
	return cmd
}

func newNewCmd() *cobra.Command {
	var unsampled bool
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Generate a traceparent for a fresh trace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := trace.SpanContext{
				TraceID: internal.NewTraceID(),
				SpanID:  internal.NewSpanID(),
			}
			if !unsampled {
				sc.Flags = trace.FlagsSampled
			}
			fmt.Fprintln(cmd.OutOrStdout(), propagation.Encode(sc))
			return nil
		},
	}
	cmd.Flags().BoolVar(&unsampled, "unsampled", false, "clear the sampled flag")
	return cmd
}
