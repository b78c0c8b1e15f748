package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/airtable-api/internal/api"
	"github.com/sells-group/airtable-api/internal/catalog"
	"github.com/sells-group/airtable-api/internal/geoarea"
)

var (
	servePort    int
	serveNoWarm  bool
	serveTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the geo mapping HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, cfg, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		if env.Cached != nil && !serveNoWarm {
			if err := catalog.Preload(ctx, env.Cached, cfg.Catalog.WarmConcurrency); err != nil {
				zap.L().Warn("catalog preload failed, serving cold", zap.Error(err))
			}
		}
		if env.Cached != nil && cfg.Catalog.RefreshIntervalSecs > 0 {
			interval := time.Duration(cfg.Catalog.RefreshIntervalSecs) * time.Second
			go catalog.NewRefresher(env.Cached, interval, cfg.Catalog.WarmConcurrency).Run(ctx)
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newAPIServer(env).Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSecs)*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newAPIServer builds the API server for env from the loaded config.
func newAPIServer(env *appEnv) *api.Server {
	timeout := serveTimeout
	if timeout == 0 {
		timeout = time.Duration(cfg.Server.RequestTimeoutSecs) * time.Second
	}
	opts := []api.Option{
		api.WithMetrics(env.Metrics),
		api.WithStrictPolygons(cfg.Resolver.StrictPolygons),
		api.WithCORSOrigins(cfg.Server.CORSOrigins),
		api.WithRequestTimeout(timeout),
		api.WithHealthCheck("catalog", func(r *http.Request) error {
			_, err := env.Catalog.ListAreas(r.Context(), geoarea.KindGeographicAreas)
			return err
		}),
	}
	return api.NewServer(env.Catalog, env.geocoder(), opts...)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveNoWarm, "no-warm", false, "skip preloading the Airtable catalog")
	serveCmd.Flags().DurationVar(&serveTimeout, "request-timeout", 0, "per-request timeout (default from config)")
	rootCmd.AddCommand(serveCmd)
}
