package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/trogers1052/price-ingest/internal/api"
	"github.com/trogers1052/price-ingest/internal/kafka"
)

// serveCmd exposes the HTTP trigger and read API, and consumes Kafka
// ingestion requests when brokers are configured
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and Kafka ingestion trigger",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return fail("failed to start server", err)
		}
		defer a.Close()

		handler := api.NewHandler(a.coordinator, a.db, cfg.Ingest.Symbols, cfg.Ingest.WindowDays)
		srv := &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           api.SetupRoutes(handler),
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return ctx },
		}

		consumerDone := make(chan struct{})
		if len(cfg.Kafka.Brokers) > 0 {
			consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.RequestsTopic, cfg.Kafka.GroupID,
				a.coordinator, cfg.Ingest.Symbols, cfg.Ingest.WindowDays)
			go func() {
				defer close(consumerDone)
				if err := consumer.Start(ctx); err != nil {
					slog.Error("kafka consumer stopped", "error", err)
				}
			}()
		} else {
			close(consumerDone)
		}

		serveErr := make(chan error, 1)
		go func() {
			slog.Info("server started", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		select {
		case <-ctx.Done():
		case err := <-serveErr:
			if err != nil {
				stop()
				<-consumerDone
				return fail("server error", err)
			}
		}

		<-consumerDone

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		slog.Info("server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
