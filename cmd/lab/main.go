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

	"cmt-backend/internal/config"
	"cmt-backend/internal/logger"
	"cmt-backend/internal/service"
	"cmt-backend/internal/storage/mysql"
	"cmt-backend/internal/testdef"
)

func main() {
	cfg := config.MustConfig()

	log := logger.Setup(cfg.Env)

	storage, err := mysql.New(*cfg)
	if err != nil {
		log.Error("failed to open db", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer storage.Close()

	if err := storage.Migrate(); err != nil {
		log.Error("failed to migrate db", slog.String("error", err.Error()))
		os.Exit(1)
	}

	catalog, err := loadCatalog(cfg.DefinitionsDir)
	if err != nil {
		log.Error("failed to load test definitions", slog.String("error", err.Error()))
		os.Exit(1)
	}

	services := Services{
		Templates:   service.NewTemplateService(log, storage),
		Definitions: service.NewDefinitionService(log, catalog),
		Reports:     service.NewReportService(log, storage, catalog),
	}

	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      routes(*cfg, log, storage, services),
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("server started", slog.String("address", cfg.Address), slog.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop server", slog.String("error", err.Error()))
	}

	log.Info("server stopped")
}

// loadCatalog reads definitions from dir, or the built-in set when dir is empty.
func loadCatalog(dir string) (*testdef.Catalog, error) {
	if dir == "" {
		return testdef.Builtin()
	}
	return testdef.Load(os.DirFS(dir))
}
