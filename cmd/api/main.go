package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"recipehub/internal/config"
	"recipehub/internal/database"
	"recipehub/internal/domain/upload"
	"recipehub/internal/logging"
	jwtsvc "recipehub/internal/pkg/jwt"
	"recipehub/internal/server"
	"recipehub/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("invalid configuration", "error", err)
	}
	logger := logging.Setup(cfg.LogLevel)
	if config.IsProdLike(cfg.AppEnv) {
		gin.SetMode(gin.ReleaseMode)
	}
	logger.Info("config loaded",
		"env", cfg.AppEnv, "uploads_dir", cfg.UploadsDir, "storage", cfg.Storage.Type,
		"process_timeout", cfg.ProcessTimeout.String(), "concurrency", cfg.ProcessConcurrency)

	// no writable storage, no server
	dirs, err := upload.EnsureDirectories(cfg.UploadsDir)
	if err != nil {
		logging.Fatal("upload directories", "error", err)
	}
	logger.Info("upload directories ready", "dirs", dirs)

	registry, err := cfg.UploadRegistry()
	if err != nil {
		logging.Fatal("upload targets", "error", err)
	}

	mirror, err := storage.New(cfg.Storage)
	if err != nil {
		logging.Fatal("object storage", "error", err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logging.Fatal("database connect", "error", err)
	}
	if err := database.Migrate(db, &upload.MediaUpload{}); err != nil {
		logging.Fatal("database migrate", "error", err)
	}

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	router, err := server.NewRouter(server.Deps{
		Config:   cfg,
		DB:       db,
		JWT:      jwtsvc.New(cfg.JWTSecret, cfg.JWTTTL),
		Registry: registry,
		Mirror:   mirror,
		Metrics:  metrics,
		Logger:   logger,
	})
	if err != nil {
		logging.Fatal("build router", "error", err)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("http server", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ProcessTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
}
