// Command idp-api serves the internal developer platform API over the
// storage backend selected at startup.
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

	"go.uber.org/zap"

	"github.com/angryss/idp/infrastructure/config"
	"github.com/angryss/idp/infrastructure/di"
	"github.com/angryss/idp/interfaces/http/rest"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "idp-api:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := di.ProvideLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := di.NewContainer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := container.Shutdown(); err != nil {
			logger.Error("shutdown incomplete", zap.Error(err))
		}
	}()

	router := rest.NewRouter(cfg, container.Repositories, container.Metrics, logger)
	server := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("address", cfg.ServerAddress),
			zap.String("provider", string(cfg.DatabaseProvider)),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
