package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/avatarctic/novel-reader/go/configs"
	"github.com/avatarctic/novel-reader/go/internal/application/services"
	"github.com/avatarctic/novel-reader/go/internal/core/ports"
	"github.com/avatarctic/novel-reader/go/internal/infrastructure/apiclient"
	"github.com/avatarctic/novel-reader/go/internal/infrastructure/bbolt"
	"github.com/avatarctic/novel-reader/go/internal/infrastructure/cache"
	"github.com/avatarctic/novel-reader/go/internal/infrastructure/db"
	"github.com/avatarctic/novel-reader/go/internal/infrastructure/health"
	"github.com/avatarctic/novel-reader/go/internal/infrastructure/httpserver"
	"github.com/avatarctic/novel-reader/go/internal/infrastructure/memstore"
	"github.com/avatarctic/novel-reader/go/internal/infrastructure/redis"
	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger := newLogger(cfg.Log)
	logger.WithField("backend", cfg.Store.Backend).Info("Starting novel reader cache...")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var checkers []ports.HealthChecker

	// Redis backs the push channel and, optionally, the store
	var redisClient *goredis.Client
	if cfg.Store.Backend == "redis" || cfg.Events.Channel != "" {
		redisClient, err = redis.NewRedisClient(&cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to Redis:", err)
		}
		defer redisClient.Close()
		checkers = append(checkers, health.NewRedisHealthChecker(redisClient))
		logger.Info("Connected to Redis successfully")
	}

	store, storeChecker, closeStore, err := openStore(cfg, redisClient, logger)
	if err != nil {
		logger.Fatal("Failed to open cache store:", err)
	}
	defer closeStore()
	if storeChecker != nil {
		checkers = append(checkers, storeChecker)
	}

	client, err := apiclient.New(apiclient.Config{
		BaseURL:         cfg.API.BaseURL,
		Timeout:         cfg.API.Timeout,
		MaxResponseSize: cfg.API.MaxResponseSize,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to configure API client:", err)
	}

	metrics := cache.NewMetrics(registry)
	records := cache.NewRecordCache(store, cache.RecordCacheConfig{
		Prefix:     cfg.Cache.RecordPrefix,
		DefaultTTL: cfg.Cache.DefaultTTL,
		EvictCount: cfg.Cache.EvictCount,
	}, logger, metrics)

	avatars, err := cache.NewBlobCache(store, client, cache.BlobCacheConfig{
		Name:         "avatars",
		Prefix:       cfg.Cache.AvatarPrefix,
		TTL:          cfg.Cache.BlobTTL,
		MaxItemSize:  cfg.Cache.BlobMaxItemBytes,
		EvictCount:   cfg.Cache.EvictCount,
		SoftKeyLimit: cfg.Cache.BlobSoftKeyLimit,
		Endpoint:     func(id int64) string { return client.URL(fmt.Sprintf("/users/%d/avatar", id)) },
		DefaultURL:   cfg.API.DefaultAvatar,
	}, logger, metrics)
	if err != nil {
		logger.Fatal("Failed to create avatar cache:", err)
	}
	covers, err := cache.NewBlobCache(store, client, cache.BlobCacheConfig{
		Name:         "covers",
		Prefix:       cfg.Cache.CoverPrefix,
		TTL:          cfg.Cache.BlobTTL,
		MaxItemSize:  cfg.Cache.BlobMaxItemBytes,
		EvictCount:   cfg.Cache.EvictCount,
		SoftKeyLimit: cfg.Cache.BlobSoftKeyLimit,
		Endpoint:     func(id int64) string { return client.URL(fmt.Sprintf("/novels/%d/cover", id)) },
		DefaultURL:   cfg.API.DefaultCover,
	}, logger, metrics)
	if err != nil {
		logger.Fatal("Failed to create cover cache:", err)
	}

	coordinator := services.NewCacheCoordinator(records, avatars, covers, services.CachePolicy{
		ListTTL:      cfg.Cache.ListTTL,
		EntityTTL:    cfg.Cache.EntityTTL,
		TaxonomyTTL:  cfg.Cache.TaxonomyTTL,
		AggregateTTL: cfg.Cache.AggregateTTL,
	}, logger)
	bus := services.NewMutationBus(logger)
	bus.Subscribe(coordinator)

	catalogService := services.NewCatalogService(client, client, bus, records, coordinator, logger)
	mediaService := services.NewMediaService(avatars, covers)

	subCtx, stopSubscriber := context.WithCancel(context.Background())
	subDone := make(chan struct{})
	if cfg.Events.Channel != "" {
		subscriber := redis.NewEventSubscriber(redisClient, cfg.Events.Channel, bus, logger)
		go func() {
			defer close(subDone)
			if err := subscriber.Run(subCtx); err != nil {
				logger.WithError(err).Error("Push event subscriber stopped")
			}
		}()
	} else {
		close(subDone)
	}

	serverConfig := &httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	server := httpserver.NewServer(serverConfig, logger, httpserver.ServerDeps{
		Catalog:        catalogService,
		Media:          mediaService,
		Cache:          coordinator,
		Events:         bus,
		HealthCheckers: checkers,
		Registry:       registry,
	})

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown:", err)
	}
	stopSubscriber()
	<-subDone
	// let in-flight image downloads land before the store closes
	mediaService.Wait()

	logger.Info("Server exited")
}

func newLogger(cfg config.LogConfig) *logrus.Logger {
	logger := logrus.New()
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(level)
	}
	return logger
}

// openStore opens the configured key-value backend. The returned close func is always
// safe to call.
func openStore(cfg *config.Config, redisClient *goredis.Client, logger *logrus.Logger) (ports.KeyValueStore, ports.HealthChecker, func(), error) {
	switch cfg.Store.Backend {
	case "memory":
		store := memstore.New(cfg.Store.MaxBytes)
		return store, health.NewStoreHealthChecker("memory", store), func() {}, nil

	case "bbolt":
		store, err := bbolt.Open(cfg.Store.Path, cfg.Store.MaxBytes)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.WithField("path", cfg.Store.Path).Info("Opened bbolt cache store")
		return store, store, func() {
			if err := store.Close(); err != nil {
				logger.WithError(err).Warn("Failed to close bbolt store")
			}
		}, nil

	case "redis":
		return redis.NewStore(redisClient, cfg.Store.KeyPrefix), nil, func() {}, nil

	case "postgres":
		database, err := db.NewDatabaseWithConfig(&cfg.Database)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := database.Migrate(); err != nil {
			_ = database.Close()
			return nil, nil, nil, err
		}
		logger.Info("Connected to database successfully")
		return db.NewKVStore(database, cfg.Store.MaxBytes), health.NewDBHealthChecker(database), func() {
			_ = database.Close()
		}, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}
