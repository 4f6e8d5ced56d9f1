package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eduxora/stageflow/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the progress HTTP service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("close backends", "error", err)
		}
	}()

	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	if a.worker != nil {
		go func() {
			if err := a.worker.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("refresh worker stopped", "error", err)
			}
		}()
	}

	srv := server.New(a.lifecycle, server.Options{Logger: logger, ServiceName: "stageflow"}).
		HTTPServer(cfg.Server.Addr, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			"address", cfg.Server.Addr,
			"store", cfg.Store.Driver,
			"queue", cfg.Queue.Driver,
		)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
	}

	stopWorker()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		if err := srv.Close(); err != nil {
			logger.Error("server close error", "error", err)
		}
		return err
	}
	logger.Info("server stopped gracefully")
	return nil
}
