package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpAdapter "github.com/aretw0/voiceloop/pkg/adapters/http"
	"github.com/aretw0/voiceloop/pkg/observability"
	"github.com/aretw0/voiceloop/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Host sessions over HTTP",
	Long: `Starts the session API. Each session gets a speech bridge: clients read
directives from GET /sessions/{id}/stream (or /directives) and report speech
events to POST /sessions/{id}/events. Metrics are served on a separate address.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.close()

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics := observability.NewMetrics(reg)

		eng, err := newEngine(cmd, observability.LoggingHooks(logger).Merge(metrics.Hooks()))
		if err != nil {
			return err
		}

		streams := httpAdapter.NewStreamManager(logger)
		hub, err := eng.NewHub(st.manager(),
			session.WithCommitObserver(streams.ObserveCommit),
			session.WithDirectiveObserver(streams.ObserveDirective),
		)
		if err != nil {
			return err
		}

		api := &http.Server{
			Addr:    cfg.Server.Addr,
			Handler: httpAdapter.NewHandler(hub, httpAdapter.WithLogger(logger), httpAdapter.WithStreams(streams)),
		}
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		metricsSrv := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: metricsMux}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return listen(api, "api") })
		g.Go(func() error { return listen(metricsSrv, "metrics") })
		g.Go(func() error {
			<-gctx.Done()
			logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			sessions := hub.List()
			if err := hub.Shutdown(shutdownCtx); err != nil {
				logger.Warn("sessions did not stop in time", "err", err)
			}
			for _, s := range sessions {
				streams.End(s.ID)
			}
			return errors.Join(api.Shutdown(shutdownCtx), metricsSrv.Shutdown(shutdownCtx))
		})

		if err := g.Wait(); err != nil {
			return err
		}
		logger.Info("server stopped gracefully")
		return nil
	},
}

func listen(srv *http.Server, name string) error {
	logger.Info("listening", "server", name, "address", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addDialogueFlags(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "API listen address")
	serveCmd.Flags().String("metrics-addr", ":9090", "metrics listen address")
}
