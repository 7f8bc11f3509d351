// Package main запускает HTTP-сервер StaySync.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/staysync/internal/config"
	"github.com/mmeshcher/staysync/internal/fixtures"
	"github.com/mmeshcher/staysync/internal/handler"
	"github.com/mmeshcher/staysync/internal/middleware"
	"github.com/mmeshcher/staysync/internal/mirror"
	"github.com/mmeshcher/staysync/internal/repository"
	"github.com/mmeshcher/staysync/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	local, err := repository.NewSQLiteStore(cfg.LocalDBPath)
	if err != nil {
		sugar.Fatalw("local database initialization error", "error", err.Error(), "path", cfg.LocalDBPath)
	}
	defer local.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	settings, err := mirror.LoadSettings(ctx, local, cfg.InitialSettings())
	if err != nil {
		sugar.Fatalw("load settings error", "error", err.Error())
	}

	demo, err := fixtures.Demo()
	if err != nil {
		sugar.Fatalw("demo fixtures error", "error", err.Error())
	}

	m := mirror.New(ctx, local, settings, mirror.Options{
		Fixtures:      demo,
		Logger:        logger.Named("mirror"),
		RemoteTimeout: cfg.RemoteTimeout,
	})

	svc := service.NewService(m, service.WithLogger(logger.Named("service")))
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.SessionSecret)
	h := handler.NewHandler(svc, logger, authMiddleware, cfg.LoginRateLimit)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting staysync server",
			"addr", cfg.RunAddress,
			"dataSource", settings.DataSource,
			"demoMode", settings.DemoMode,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
