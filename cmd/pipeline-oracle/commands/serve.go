package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"pipeline-oracle/internal/cache"
	"pipeline-oracle/internal/mcp"
	"pipeline-oracle/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the forecasting tools over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	provider := cache.NewMemoryProvider()
	defer provider.Close()
	memo := cache.NewMemo(provider, cfg.CacheTTL, cfg.StaleTTL)

	server := mcp.NewServer(cfg, orc, memo, Version)

	g, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.MetricsAddr != "" {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return err
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			log.Info().Str("addr", cfg.MetricsAddr).Msg("Metrics endpoint listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		// The stdio session ends when the client disconnects; stop the metrics server with it.
		defer cancel()
		return server.Start(ctx)
	})

	return g.Wait()
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
