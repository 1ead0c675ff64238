package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/g-uva/kube-carbon-scheduler/pkg/api"
	"github.com/g-uva/kube-carbon-scheduler/pkg/config"
	"github.com/g-uva/kube-carbon-scheduler/pkg/engine"
	"github.com/g-uva/kube-carbon-scheduler/pkg/history"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand(g *globals) *cobra.Command {
	var (
		listen  string
		offline offlineFlags
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve decisions over HTTP",
		Long: `Serve decisions over HTTP.

Routes:
  POST /v1/decisions        one decision
  POST /v1/decisions/batch  many decisions, in request order
  GET  /v1/fairness         region selection counts
  GET  /healthz
  GET  /metrics             Prometheus metrics

When redis.url is set the selection history lives in Redis and is shared
between replicas.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig(offline)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.HTTP.Listen = listen
			}

			extra, closeHistory, err := g.historyOption(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeHistory()

			e, err := g.buildEngine(cfg, extra...)
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              cfg.HTTP.Listen,
				Handler:           api.NewRouter(api.NewHandler(e, g.log)),
				ReadHeaderTimeout: 10 * time.Second,
			}
			return g.serve(cmd.Context(), srv)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address, overrides http.listen")
	offline.register(cmd)

	return cmd
}

func (g *globals) historyOption(ctx context.Context, cfg *config.Config) ([]engine.Option, func(), error) {
	if cfg.Redis.URL == "" {
		g.log.Info().Msg("selection history kept in memory")
		return nil, func() {}, nil
	}
	client, err := history.Connect(cfg.Redis.URL)
	if err != nil {
		return nil, nil, err
	}
	h := history.NewRedisHistory(client, cfg.Redis.Key)
	if err := h.Ping(ctx); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}
	g.log.Info().Str("key", cfg.Redis.Key).Msg("selection history kept in redis")
	return []engine.Option{engine.WithHistory(h)}, func() { client.Close() }, nil
}

func (g *globals) serve(ctx context.Context, srv *http.Server) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		g.log.Info().Str("addr", srv.Addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	g.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
