package main

import (
	"context"
	"log"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/pprofhandler"
	"go.uber.org/zap"

	apiHandler "github.com/lexdesk/officeauth/api/handler"
	"github.com/lexdesk/officeauth/internal/app"
	"github.com/lexdesk/officeauth/internal/config"
	"github.com/lexdesk/officeauth/internal/middleware"
	"github.com/lexdesk/officeauth/internal/router"
	"github.com/lexdesk/officeauth/internal/services/lifecycle"
	"github.com/lexdesk/officeauth/pkg/httpcontext"
	"github.com/lexdesk/officeauth/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
		Service:  cfg.AppName,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	application, err := app.Build(appCtx, cfg, zapLogger, manager)
	if err != nil {
		_ = manager.Shutdown(context.Background())
		zapLogger.Fatal("startup failed", zap.Error(err))
	}

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Auth:   apiHandler.NewAuthHandler(application.Directory, application.Pipeline, application.Metrics, ctxAdapter, zapLogger),
		Access: apiHandler.NewAccessHandler(application.Pipeline, ctxAdapter, zapLogger),
		Health: apiHandler.NewHealthHandler(application.Monitor, ctxAdapter, zapLogger),
	}
	if cfg.HTTP.EnableMetrics {
		handlers.Metrics = application.Metrics.Handler()
	}
	if cfg.HTTP.EnablePprof {
		handlers.Pprof = pprofhandler.PprofHandler
	}

	authMiddleware := middleware.BearerAuth(application.Directory, cfg.Auth.SessionTimeout, zapLogger)
	r := router.New(handlers, authMiddleware, application.Metrics.Instrument)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	manager.Go("http_server", func() error {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		return server.ListenAndServe(cfg.Address())
	})
	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
