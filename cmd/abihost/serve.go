package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/govm-net/abihost/metrics"
	"github.com/govm-net/abihost/types"
)

var (
	serveAddr        string
	serveMetricsAddr string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the host as an HTTP service until interrupted",
	Long: `Run one engine behind a JSON API under /api/v1. The state backend stays open
for the life of the process, so other commands cannot use the same data dir
meanwhile. When metrics are enabled, Prometheus metrics of the served traffic
are exposed on /metrics at metrics.addr.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}
		if serveMetricsAddr != "" {
			cfg.Metrics.Enabled = true
			cfg.Metrics.Addr = serveMetricsAddr
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var m *metrics.Metrics
		if cfg.Metrics.Enabled {
			m = metrics.New()
		}
		engine, err := openEngine(ctx, m)
		if err != nil {
			return err
		}
		defer engine.Close()

		unsubscribe, err := engine.Subscribe(func(ev types.Event) {
			logger.Info("contract event",
				zap.Stringer("contract", ev.Contract),
				zap.Uint64("sequence", ev.Sequence),
				zap.ByteString("payload", ev.Payload))
		})
		if err != nil {
			return err
		}
		defer unsubscribe()

		gin.SetMode(gin.ReleaseMode)
		servers := []*http.Server{{
			Addr:              cfg.Server.Addr,
			Handler:           newRouter(engine, logger.Named("http")),
			ReadHeaderTimeout: 5 * time.Second,
		}}
		if m != nil {
			servers = append(servers, &http.Server{
				Addr:              cfg.Metrics.Addr,
				Handler:           newMetricsRouter(m),
				ReadHeaderTimeout: 5 * time.Second,
			})
		}
		return serveAll(ctx, servers)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "API listen address, overrides server.addr")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "Enable metrics on this address, overrides metrics.addr")
}

// serveAll runs servers until ctx is done or one of them fails, then shuts
// all of them down.
func serveAll(ctx context.Context, servers []*http.Server) error {
	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv *http.Server) {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("server on %s failed: %w", srv.Addr, err)
			}
		}(srv)
		logger.Info("listening", zap.String("addr", srv.Addr))
	}

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range servers {
		err = multierr.Append(err, srv.Shutdown(shutdownCtx))
	}
	return err
}
