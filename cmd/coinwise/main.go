package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"coinwise/internal/cache"
	"coinwise/internal/cli"
	"coinwise/internal/core"
	"coinwise/internal/events"
	apphttp "coinwise/internal/http"
	"coinwise/internal/log"
	"coinwise/internal/services"
)

const (
	sessionCacheSize  = 1000
	walletCacheSize   = 1000
	taxonomyCacheSize = 1000
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	backends := cli.InitBackends(logger, cfg)

	// Events are optional: without AMQP_URL, or when the broker is down at
	// startup, mutations simply go unannounced.
	var publisher events.Publisher
	if cfg.AMQPURL != "" {
		p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey, logger)
		if err != nil {
			logger.Warn("Transaction events disabled", log.FieldError, err)
		} else {
			publisher = p
		}
	}

	sessions := cache.NewLRUCache[core.User](sessionCacheSize, cfg.SessionCacheTTL)
	wallets := cache.NewLRUCache[core.Wallet](walletCacheSize, cfg.CacheTTL)
	taxonomy := cache.NewLRUCache[services.Taxonomy](taxonomyCacheSize, cfg.CacheTTL)

	caches := cache.NewManager(logger)
	caches.Register(sessions)
	caches.Register(wallets)
	caches.Register(taxonomy)
	caches.StartCleanup(5 * time.Minute)

	transactions := services.NewTransactionService(publisher, wallets, logger, taxonomy)

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Factory:            backends.Factory,
		Auth:               backends.Remote,
		Guests:             backends.Guests,
		Backend:            backends.Remote,
		Transactions:       transactions,
		Categories:         services.NewCategoryService(taxonomy, logger),
		Insights:           services.NewInsightService(logger),
		Sessions:           sessions,
		Caches:             caches,
		CookieSecure:       cfg.CookieSecure,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Logger:             logger,
	})
	if err != nil {
		logger.Error("Failed to configure server", log.FieldError, err)
		os.Exit(1)
	}

	// Backend calls may take up to BACKEND_TIMEOUT; leave room to answer.
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = cfg.BackendTimeout + 10*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := transactions.Close(); err != nil {
			logger.Error("Failed to close event publisher", log.FieldError, err)
		}
		if err := backends.Cleanup(); err != nil {
			logger.Error("Failed to close guest store", log.FieldError, err)
		}
	})

	logger.Info("Starting coinwise server",
		"port", cfg.Port,
		"guest_store", cfg.GuestStore,
		"backend_url", cfg.BackendURL,
		"events", publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
