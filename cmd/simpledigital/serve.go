package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mephissto/simple-digital/internal/adapter/eventloop"
	cfhttp "github.com/mephissto/simple-digital/internal/adapter/http"
	cfnats "github.com/mephissto/simple-digital/internal/adapter/nats"
	cfotel "github.com/mephissto/simple-digital/internal/adapter/otel"
	"github.com/mephissto/simple-digital/internal/adapter/ws"
	"github.com/mephissto/simple-digital/internal/config"
	"github.com/mephissto/simple-digital/internal/logger"
	"github.com/mephissto/simple-digital/internal/middleware"
	"github.com/mephissto/simple-digital/internal/port/host"
	"github.com/mephissto/simple-digital/internal/service"
)

const (
	throttlePruneInterval = time.Minute
	throttleMaxIdle       = 10 * time.Minute
)

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultConfigFile, "YAML config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	slog.SetDefault(logger.New(cfg.Logging))

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"host", cfg.Host.Kind,
		"log_level", cfg.Logging.Level,
		"send_timeout", cfg.Relay.SendTimeout,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---

	shutdownTelemetry, err := cfotel.Setup(ctx, cfg.Telemetry, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	metrics, err := cfotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Host ---

	loop := eventloop.New(cfg.Host.QueueSize)
	g, gctx := errgroup.WithContext(ctx)

	routes := cfhttp.RouterConfig{Service: cfg.Logging.Service, Host: cfg.Host.Kind}

	var rt host.Runtime
	switch cfg.Host.Kind {
	case config.HostWebSocket:
		bridge := ws.NewBridge(loop,
			ws.WithTokenHash(cfg.Bridge.TokenHash),
			ws.WithWriteTimeout(cfg.Bridge.WriteTimeout),
			ws.WithOriginPatterns(cfg.Bridge.OriginPatterns...),
			ws.WithReadLimit(int64(cfg.Bridge.ReadLimit)),
		)
		rt = bridge
		routes.BridgePath = cfg.Bridge.Path
		routes.Bridge = bridge.HandleWS
		routes.Bridges = bridge

		if cfg.Bridge.RateLimit > 0 {
			throttle := middleware.NewThrottle(cfg.Bridge.RateLimit, cfg.Bridge.RateBurst)
			routes.Throttle = throttle.Handler
			g.Go(func() error {
				throttle.Prune(gctx, throttlePruneInterval, throttleMaxIdle)
				return nil
			})
		}
		if cfg.Bridge.TokenHash == "" {
			slog.Warn("bridge authentication disabled")
		}

	case config.HostNATS:
		natsHost, err := cfnats.Connect(ctx, cfg.NATS.URL, cfg.NATS.Durable, loop)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = natsHost.Close() }()
		rt = natsHost
		g.Go(func() error { return natsHost.Start(gctx) })
	}

	// --- Relay ---

	service.NewRelay(rt,
		service.WithMetrics(metrics),
		service.WithSendTimeout(cfg.Relay.SendTimeout),
	).Register()

	g.Go(func() error {
		if err := loop.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("event loop: %w", err)
		}
		return nil
	})

	// --- HTTP ---

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           cfhttp.NewRouter(routes),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g.Go(func() error {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if dropped := loop.DroppedCount(); dropped > 0 {
		slog.Warn("lifecycle events dropped", "count", dropped)
	}
	return err
}
