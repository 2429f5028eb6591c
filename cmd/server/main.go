package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lumenhq/dam/internal/bootstrap"
	"github.com/lumenhq/dam/internal/config"
	"github.com/lumenhq/dam/internal/modules/handler"
	"github.com/lumenhq/dam/internal/modules/repo"
	"github.com/lumenhq/dam/internal/router"
	"github.com/lumenhq/dam/internal/telemetry"
	"github.com/samber/do"
	"go.uber.org/zap"
)

//	@title						DAM Ingest API
//	@version					0.1.0
//	@description				Asset ingestion for the digital asset manager.
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
func main() {
	inj := bootstrap.BuildContainer()
	cfg := do.MustInvoke[*config.Config](inj)
	log := do.MustInvoke[*zap.Logger](inj)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// before any instrumented client is built
	otel, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		log.Fatal("telemetry setup", zap.Error(err))
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := router.NewRouter(router.RouterDeps{
		Config:       cfg,
		Log:          log,
		Users:        do.MustInvoke[repo.UserRepo](inj),
		AssetHandler: do.MustInvoke[*handler.AssetHandler](inj),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr), zap.String("dispatch_backend", cfg.Dispatch.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	// closes the publisher and any other started service that can shut down
	if err := inj.Shutdown(); err != nil {
		log.Warn("container shutdown", zap.Error(err))
	}
	if err := otel.Shutdown(shutdownCtx); err != nil {
		log.Warn("telemetry shutdown", zap.Error(err))
	}
}
