package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/menezmethod/routerhelper/internal/config"
	"github.com/menezmethod/routerhelper/internal/handler"
	"github.com/menezmethod/routerhelper/internal/helper"
	"github.com/menezmethod/routerhelper/internal/logging"
	"github.com/menezmethod/routerhelper/internal/middleware"
	"github.com/menezmethod/routerhelper/internal/observability"
	"github.com/menezmethod/routerhelper/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (optional, env vars work without it)")
	flag.Parse()

	// Load configuration: defaults -> YAML file -> env vars.
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	check, err := helper.ParsePrefixCheck(cfg.Routing.PrefixCheck)
	if err != nil {
		logger.Error("invalid routing config", "err", err)
		os.Exit(1)
	}

	srv := server.New(cfg, logger)
	helper.Register(srv, helper.Options{Logger: logger, PrefixCheck: check}, func() {
		logger.Info("route helper installed",
			"plugin", helper.Attributes.Name,
			"prefix_check", check.String(),
		)
	})

	if err := handler.Register(srv.EntryPoint(), handler.Deps{
		Routes:   srv,
		Upstream: cfg.Upstream,
		Logger:   logger,
	}); err != nil {
		logger.Error("failed to register routes", "err", err)
		os.Exit(1)
	}
	logger.Info("routes registered", "count", len(srv.Routes()))

	httpSrv := srv.HTTP(cfg.Server)

	// Optional OpenTelemetry tracing: wrap handler so all requests are traced.
	// The server renames each span to its route pattern.
	var tp *observability.TracerProvider
	if cfg.Observability.OTelEnabled {
		var errOTel error
		tp, errOTel = observability.NewTracerProvider(context.Background(), cfg.Observability.OTelEndpoint, cfg.Observability.OTelServiceName)
		if errOTel != nil {
			logger.Error("otel tracer provider failed", "err", errOTel)
			os.Exit(1)
		}
		serviceName := cfg.Observability.OTelServiceName
		httpSrv.Handler = middleware.Chain(httpSrv.Handler,
			func(h http.Handler) http.Handler { return observability.HTTPHandler(h, serviceName) },
		)
		logger.Info("opentelemetry tracing enabled", "endpoint", cfg.Observability.OTelEndpoint)
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", "addr", cfg.Server.Addr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	<-stop
	logger.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if tp != nil {
		_ = tp.Shutdown(ctx)
	}
	server.Shutdown(ctx, httpSrv, logger)
	logger.Info("server stopped")
}

func newLogger(cfg config.Log) *slog.Logger {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		level = slog.LevelInfo
	}

	// colorable translates ANSI colors for Windows consoles.
	if cfg.Format == "console" && cfg.CloudFormat == "" {
		return logging.Console(colorable.NewColorable(os.Stdout), level, isatty.IsTerminal(os.Stdout.Fd()))
	}
	return logging.NewLogger(os.Stdout, level, cfg.Format, cfg.CloudFormat)
}
