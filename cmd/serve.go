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

	"github.com/sells-group/carbon-estimator/internal/api"
	"github.com/sells-group/carbon-estimator/internal/config"
	"github.com/sells-group/carbon-estimator/internal/web"
)

const shutdownTimeout = 10 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and map UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		client, err := newEarthEngineClient(ctx, cfg.EarthEngine)
		if err != nil {
			return err
		}
		reducer := newReducer(client, cfg)

		router, err := buildRouter(cfg, reducer)
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      router,
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("dataset", reducer.Dataset()),
			zap.Duration("reduce_timeout", reducer.Timeout()),
			zap.String("frontend_origin", cfg.Server.FrontendOrigin),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// buildRouter wires the API handler and the embedded UI.
func buildRouter(c *config.Config, reducer api.Reducer) (http.Handler, error) {
	static, err := web.Handler()
	if err != nil {
		return nil, err
	}
	h := api.NewHandler(reducer, api.Options{
		FrontendOrigin: c.Server.FrontendOrigin,
		MaxBodyBytes:   c.Server.MaxBodyBytes,
		DebugErrors:    c.Server.DebugErrors,
		Version:        version,
		Dataset:        c.EarthEngine.Dataset,
		Static:         static,
	})
	return h.Routes(), nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
