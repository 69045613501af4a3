package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	_ "github.com/noah-isme/insight-compliance-api/api/swagger"
	"github.com/noah-isme/insight-compliance-api/internal/app"
	"github.com/noah-isme/insight-compliance-api/pkg/config"
	"github.com/noah-isme/insight-compliance-api/pkg/logger"
	"github.com/noah-isme/insight-compliance-api/pkg/tracing"
)

// @title INSIGHT Compliance API
// @version 1.0.0
// @description Survey compliance tracking for the INSIGHT study
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.Env, logr)
	if err != nil {
		logr.Warn("tracing disabled", zap.Error(err))
	}

	container, err := app.New(ctx, cfg, logr, app.Options{Exports: true, Cache: true})
	if err != nil {
		logr.Fatal("failed to build application", zap.Error(err))
	}
	container.Start(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.NewRouter(container),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("http shutdown", zap.Error(err))
	}
	if err := container.Close(); err != nil {
		logr.Error("close backends", zap.Error(err))
	}
	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			logr.Warn("tracing shutdown", zap.Error(err))
		}
	}
}
