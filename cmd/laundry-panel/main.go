// Package main запускает HTTP-сервер панели прачечной.
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

	"github.com/savelevab/laundry-panel/internal/auth"
	"github.com/savelevab/laundry-panel/internal/backend"
	"github.com/savelevab/laundry-panel/internal/config"
	"github.com/savelevab/laundry-panel/internal/handler"
	"github.com/savelevab/laundry-panel/internal/middleware"
	"github.com/savelevab/laundry-panel/internal/store"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	client := backend.NewClient(cfg.BackendAddress)

	var authenticator auth.Authenticator
	if cfg.OfflineLogin {
		sugar.Infow("using built-in accounts for login")
		authenticator = auth.NewStaticAuthenticator()
	} else {
		authenticator = auth.NewBackendAuthenticator(client)
	}

	orders := store.NewOrders(client)
	users := store.NewUsers(client)

	sessions := middleware.NewAuthMiddleware(cfg.SessionSecret, cfg.SessionTTL)

	h, err := handler.NewHandler(orders, users, authenticator, client, sessions, logger, cfg.PageSize)
	if err != nil {
		sugar.Fatalw("handler initialization error", "error", err.Error())
	}

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting laundry panel", "addr", cfg.RunAddress, "backend", cfg.BackendAddress)
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
