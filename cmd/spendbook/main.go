package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"spendbook/internal/amqp"
	"spendbook/internal/cache"
	"spendbook/internal/cli"
	"spendbook/internal/config"
	apphttp "spendbook/internal/http"
	"spendbook/internal/log"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, os.Stdout).WithComponent(log.ComponentApp)

	if err != nil {
		logger.Error("Configuration validation failed",
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, cancel := cli.SignalContext(context.Background(), logger)
	defer cancel()

	st, res, err := cli.OpenStore(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Error("Failed to close storage backend", log.FieldError, err.Error())
		}
	}()

	opts := []apphttp.Option{
		apphttp.WithLogger(logger),
		apphttp.WithDashboardCache(cfg.DashboardCacheSize, cfg.DashboardCacheTTL),
	}
	if p, ok := res.Persister.(apphttp.Pinger); ok {
		opts = append(opts, apphttp.WithPinger(p))
	}
	srv := apphttp.NewServer(":"+cfg.Port, st, opts...)

	cacheManager := cache.NewManager(logger)
	cacheManager.Register(srv.DashboardCache())

	g, gctx := errgroup.WithContext(ctx)

	if cfg.AMQPEnabled() {
		publisher := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, logger)
		defer publisher.Close()
		// A broker that is down at startup is retried on the first change.
		_ = publisher.Connect(gctx)
		unsubscribe := st.Subscribe(publisher.Observer())
		defer unsubscribe()
		g.Go(func() error { return publisher.Run(gctx) })
	} else {
		logger.Info("Change feed disabled - no AMQP_URL provided")
	}

	g.Go(func() error { return cacheManager.Run(gctx, time.Minute) })
	g.Go(func() error { return srv.RateLimiter().Run(gctx) })

	g.Go(func() error {
		logger.Info("Starting spendbook server",
			"port", cfg.Port,
			log.FieldBackend, cfg.DataBackend,
			"store_version", st.Version())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server", log.FieldOperation, log.OpShutdown)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
