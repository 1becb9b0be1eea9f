package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"

	"kvstore/internal/apperrors"
	"kvstore/internal/config"
	"kvstore/internal/di"
)

func main() {
	configPath := flag.String("config", os.Getenv("KVSTORE_CONFIG"), "path to the YAML config file")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	container, err := di.Build(ctx, cfg)
	if err != nil {
		if container != nil && container.Logger != nil {
			container.Logger.Fatal("failed to initialize dependency graph", zap.Error(err))
		}
		log.Fatalf("failed to initialize dependency graph: %v", err)
	}
	defer container.Close()

	if !container.Pool.IsConnected() {
		container.Logger.Fatal("startup fatal: zero backend sessions established",
			zap.Error(apperrors.StartupFatal("pool established no sessions at boot")))
	}

	if err := container.Store.Migrate(ctx); err != nil {
		container.Logger.Fatal("failed to migrate backend schema", zap.Error(err))
	}

	config.Watch(*configPath, container.Logger)

	handler := container.Router.Setup()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		container.Logger.Info("starting server",
			zap.String("address", cfg.Addr()),
			zap.String("environment", cfg.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			container.Logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	container.Logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		container.Logger.Error("server shutdown error", zap.Error(err))
	}

	log.Println("server stopped")
}
