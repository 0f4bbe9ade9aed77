package main

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/anime-import/internal/platform/config"
	"github.com/example/anime-import/internal/platform/httpserver"
	"github.com/example/anime-import/internal/platform/logging"
	"github.com/example/anime-import/internal/platform/run"
	"github.com/example/anime-import/services/importer/internal/app"
	impcfg "github.com/example/anime-import/services/importer/internal/config"
	"github.com/example/anime-import/services/importer/internal/handlers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.NewWithOptions(cfg.LogLevel, logging.Options{File: cfg.LogFile})
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ic, err := impcfg.Load()
	if err != nil {
		log.Error("load importer config", zap.Error(err))
		run.Exit(1)
	}

	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	a, err := app.New(initCtx, ic, log)
	cancel()
	if err != nil {
		log.Error("init importer", zap.Error(err))
		run.Exit(1)
	}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		ReadyFunc:   a.Ready,
		CORSOrigins: ic.CORSOrigin,
		Logger:      log,
	})
	handlers.Register(r, a.Routes())

	// Synchronous bulk imports can take minutes.
	srv := httpserver.New(httpserver.Options{
		Addr:         cfg.HTTP.Addr,
		ServiceName:  cfg.ServiceName,
		Logger:       log,
		Router:       r,
		WriteTimeout: 15 * time.Minute,
	})

	runner := run.New(log)
	runner.ShutdownTimeout = cfg.ShutdownTimeout
	code := runner.WithSignals(func(ctx context.Context) error {
		a.Start(ctx)
		runner.OnDone(ctx, srv.Shutdown)
		return srv.Start(log)
	})

	a.Close()
	log.Info("exit", zap.Int("code", code))
	_ = log.Sync()
	run.Exit(code)
}
