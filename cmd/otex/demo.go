package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kzs0/otex"
	"github.com/kzs0/otex/attr"
	otexlog "github.com/kzs0/otex/log"
	"github.com/kzs0/otex/metric"
	"github.com/kzs0/otex/propagation"
	"github.com/kzs0/otex/trace"
)

var errInsufficientStock = errors.New("insufficient stock")

func newDemoCmd(flags *rootFlags) *cobra.Command {
	var orders int
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Emit a sample trace with nested spans, events, logs and metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("local") {
				flags.local = true
			}
			ctx := cmd.Context()
			o, err := initOtex(ctx, flags, "otex-demo")
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = o.Shutdown(shutdownCtx)
			}()

			ctx, root := otex.NewSpan(ctx, "demo.batch", trace.SpanKindInternal, attr.Int("orders", orders))
			defer root.End()
			fmt.Fprintln(cmd.OutOrStdout(), "traceparent:", propagation.Encode(root.SpanContext()))

			inFlight := otex.UpDownCounter("demo.orders.in_flight")
			g, gctx := errgroup.WithContext(ctx)
			for i := range orders {
				g.Go(trace.Bind(gctx, func(ctx context.Context) error {
					inFlight.Add(ctx, 1)
					defer inFlight.Add(ctx, -1)
					processOrder(ctx, fmt.Sprintf("order-%d", i))
					return nil
				}))
			}
			if err := g.Wait(); err != nil {
				return err
			}

			// Callbacks with fixed signatures read the span from a scope.
			scope := trace.NewScope()
			scope.Run(ctx, func() {
				notify(scope)
			})

			otex.Info(ctx, "batch complete", attr.Int("orders", orders))
			return nil
		},
	}
	cmd.Flags().IntVar(&orders, "orders", 3, "number of orders to process")
	return cmd
}

func processOrder(ctx context.Context, id string) {
	ctx, span := otex.NewSpan(ctx, "demo.order", trace.SpanKindInternal, attr.String("order.id", id))
	defer span.End()

	start := time.Now()
	defer otex.Histogram("demo.order.duration", metric.WithUnit("ms")).Since(ctx, start)

	otex.NewEvent(ctx, "order.received")
	if err := reserve(ctx, id); err != nil {
		otex.NewErrorEvent(ctx, "order.rejected", err.Error(), attr.String("order.id", id))
		otex.Warn(ctx, "order rejected", attr.String("order.id", id), attr.Error(err))
		otex.Counter("demo.orders.rejected").Inc(ctx)
		return
	}
	otex.Counter("demo.orders.accepted").Inc(ctx)
	otex.Log(ctx, otexlog.SeverityInfo, "order.accepted", "order accepted", attr.String("order.id", id))
}

func reserve(ctx context.Context, id string) error {
	_, span := otex.NewSpan(ctx, "inventory.reserve", trace.SpanKindClient)
	defer span.End()

	time.Sleep(time.Duration(5+rand.IntN(20)) * time.Millisecond)
	if rand.IntN(4) == 0 {
		span.RecordError(errInsufficientStock, attr.String("order.id", id))
		return errInsufficientStock
	}
	span.SetStatus(trace.StatusOK, "")
	return nil
}

func notify(scope *trace.Scope) {
	otex.NewEvent(scope.Current(), "batch.notified")
	otex.Gauge("demo.last_batch_unix").Set(scope.Current(), float64(time.Now().Unix()))
}
