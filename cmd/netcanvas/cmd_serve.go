package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/HerbHall/netcanvas/internal/labserver"
	"github.com/HerbHall/netcanvas/internal/ui"
)

const shutdownTimeout = 10 * time.Second

func (c *cli) serveCmd() *cobra.Command {
	var addr, token, seed string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an in-memory lab service for local work and demos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.load(); err != nil {
				return err
			}
			if !cmd.Flags().Changed("addr") {
				addr = c.settings.Serve.Addr
			}
			if !cmd.Flags().Changed("token") {
				token = c.settings.Serve.Token
			}

			lab := labserver.NewLab()
			if seed != "" {
				doc, err := readDocument(seed, cmd.InOrStdin())
				if err != nil {
					return err
				}
				if _, err := lab.Create(doc.Payload()); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			srv := labserver.New(addr, lab, token, c.logger)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			stopMetrics := serveMetrics(c.settings.Metrics.Addr, reg, c.logger)
			defer stopMetrics()

			out := cmd.OutOrStdout()
			ui.Banner(out, "lab service")
			ui.Success(out, "Listening on http://%s", addr)
			if token == "" {
				ui.Failure(out, "No serve.token set: any bearer token is accepted")
			}

			select {
			case <-ctx.Done():
			case err := <-errCh:
				return err
			}
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				c.logger.Error("lab service shutdown", zap.Error(err))
			}
			return <-errCh
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default serve.addr)")
	cmd.Flags().StringVar(&token, "token", "", "bearer token clients must present (default serve.token)")
	cmd.Flags().StringVar(&seed, "seed", "", "YAML topology document to preload")
	return cmd
}

// serveMetrics exposes reg on addr in the background. An empty addr
// disables it. The returned func stops the listener.
func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) func() {
	if addr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics listener", zap.String("addr", addr), zap.Error(err))
		}
	}()
	logger.Info("metrics exposed", zap.String("addr", addr))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
