package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/kzs0/otex"
	"github.com/kzs0/otex/attr"
	"github.com/kzs0/otex/instrumentation/otexgin"
	"github.com/kzs0/otex/metric"
	"github.com/kzs0/otex/trace"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a traced HTTP service that continues inbound traces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			o, err := initOtex(ctx, flags, "otex-serve")
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = o.Shutdown(shutdownCtx)
			}()

			gin.SetMode(gin.ReleaseMode)
			router := gin.New()
			router.Use(gin.Recovery(), otexgin.Middleware(otexgin.WithFilter(func(c *gin.Context) bool {
				return c.FullPath() != "/health"
			})))
			router.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
			router.GET("/users/:id", handleUser)

			srv := &http.Server{
				Addr:              addr,
				Handler:           router,
				ReadTimeout:       10 * time.Second,
				ReadHeaderTimeout: 5 * time.Second,
				WriteTimeout:      30 * time.Second,
				IdleTimeout:       120 * time.Second,
				MaxHeaderBytes:    1 << 20,
			}

			errCh := make(chan error, 1)
			go func() {
				otex.Info(ctx, "application server listening", attr.String("server.address", addr))
				if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				return err
			}

			otex.Info(context.Background(), "shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}

func handleUser(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	trace.SetAttr(ctx, attr.String("user.id", id))
	otex.Info(ctx, "processing user request", attr.String("path", c.Request.URL.Path))

	name, err := lookupUser(ctx, id)
	if err != nil {
		_ = c.Error(err)
		otex.Error(ctx, "request failed", attr.Error(err))
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "name": name})
}

var errUnknownUser = errors.New("unknown user")

// lookupUser stands in for a database call.
func lookupUser(ctx context.Context, id string) (string, error) {
	ctx, span := otex.NewSpan(ctx, "db.query", trace.SpanKindClient,
		attr.String("db.system", "postgresql"),
		attr.String("db.statement", "SELECT name FROM users WHERE id = $1"),
	)
	defer span.End()

	start := time.Now()
	time.Sleep(20 * time.Millisecond)
	otex.Histogram("db.query.duration", metric.WithUnit("ms")).
		Since(ctx, start, attr.String("db.system", "postgresql"))

	if id == "0" {
		otex.NewErrorEvent(ctx, "db.not_found", errUnknownUser.Error(), attr.String("user.id", id))
		return "", errUnknownUser
	}
	otex.NewEvent(ctx, "db.row", attr.Int("rows", 1))
	return "user-" + id, nil
}
