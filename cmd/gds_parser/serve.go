package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"gds_parser/internal/api"
	"gds_parser/internal/feed"
	"gds_parser/internal/metrics"
)

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newServeCommand(flags *globalFlags) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the parse API:

  POST /api/v1/parse     extract a text/plain or JSON reservation
  POST /api/v1/explain   row-by-row trace
  GET  /api/v1/parses    browse the parse log (needs storage.sqlite_path)
  GET  /health, /metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := newApp(ctx, flags, true)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.persist(ctx); err != nil {
				return err
			}

			metrics.Register()

			cfg := api.Config{
				Port:        a.cfg.API.Port,
				AuthEnabled: a.cfg.API.AuthEnabled,
				APIKeys:     a.cfg.API.APIKeys,
			}
			if port > 0 {
				cfg.Port = port
			}

			var parseLog api.ParseLogReader
			if a.db.Log != nil {
				parseLog = a.db.Log
			}
			return api.NewServer(a.pipeline, parseLog, a.logger, cfg).Run(ctx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (overrides api.port)")
	return cmd
}

func newListenCommand(flags *globalFlags) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Consume reservations from NATS",
		Long: `Join the configured NATS queue group, extract every message received on
nats.subject and, when nats.result_subject is set, publish the extraction.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := newApp(ctx, flags, true)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.persist(ctx); err != nil {
				return err
			}

			if a.cfg.NATS.URL == "" {
				return errors.New("nats.url is not configured")
			}
			metrics.Register()

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return feed.Run(ctx, feed.Config{
					URL:           a.cfg.NATS.URL,
					Subject:       a.cfg.NATS.Subject,
					QueueGroup:    a.cfg.NATS.QueueGroup,
					ResultSubject: a.cfg.NATS.ResultSubject,
				}, a.pipeline, a.logger)
			})

			if metricsAddr != "" {
				srv := &http.Server{Addr: metricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 10 * time.Second}
				g.Go(func() error {
					a.logger.Info("metrics listening", slog.String("addr", metricsAddr))
					if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
						return err
					}
					return nil
				})
				g.Go(func() error {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return srv.Shutdown(shutdownCtx)
				})
			}

			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve /metrics on this address, e.g. :9100")
	return cmd
}
