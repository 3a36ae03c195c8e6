package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"todo-sync/internal/cache"
	"todo-sync/internal/config"
	"todo-sync/internal/handlers"
	"todo-sync/internal/monitoring"
	"todo-sync/internal/remote"
	"todo-sync/internal/repository"
	"todo-sync/internal/session"
	"todo-sync/internal/store"
	"todo-sync/internal/sync"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if !cfg.IsProduction() {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	recordStore, err := store.Open(cfg.Store.Path, cfg.Store.KeyPrefix, cfg.Store.QuotaBytes, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Store.Path).Msg("failed to open record store")
	}

	taskRepo := repository.NewTaskRepository(recordStore, logger)
	categoryRepo := repository.NewCategoryRepository(recordStore, logger)
	idmap := sync.NewIDMap(recordStore, logger)

	var redisCache *cache.RedisCache
	if cfg.Redis.Enabled {
		redisCache = cache.NewRedisCache(&cache.CacheConfig{
			Addr:         cfg.GetRedisAddr(),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
	}
	multiCache := cache.NewMultiLevelCache(redisCache)

	sessions := session.NewManager(logger)
	tokens := session.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	opts := sync.Options{
		LocalTasks:      taskRepo,
		LocalCategories: categoryRepo,
		Session:         sessions,
		Store:           recordStore,
		IDMap:           idmap,
		Cache:           multiCache,
		MinSyncInterval: cfg.Sync.MinSyncInterval,
		Logger:          logger,
	}

	var monitor *session.ConnectivityMonitor
	if cfg.RemoteEnabled() {
		client, err := remote.Dial(cfg.GetRemoteDSN(), logger)
		if err != nil {
			logger.Error().Err(err).Msg("remote service unreachable, starting local-only")
		} else {
			resolver := remote.NewCategoryResolver(categoryRepo, idmap, logger)
			remoteCats := remote.NewCategoryAdapter(client)
			opts.RemoteTasks = remote.NewTaskAdapter(client, resolver)
			opts.RemoteCategories = remoteCats
			opts.RemotePusher = remoteCats
			opts.RemoteClient = client

			monitor = session.NewConnectivityMonitor(sessions, client.Ping, cfg.Sync.ProbeTimeout, logger)
			if err := monitor.Start(cfg.Sync.ProbeInterval); err != nil {
				logger.Error().Err(err).Msg("failed to start connectivity monitor")
			}

			monitoring.RegisterHealthCheck("remote", client.Ping)
		}
	}

	coordinator := sync.NewCoordinator(opts)
	coordinator.Bootstrap(context.Background())

	monitoring.RegisterHealthCheck("store", func(ctx context.Context) error {
		return recordStore.Ping(ctx)
	})
	monitoring.SetSyncStateProvider(func() map[string]string {
		return map[string]string{
			"tasks":      coordinator.State(sync.CollectionTasks).String(),
			"categories": coordinator.State(sync.CollectionCategories).String(),
		}
	})

	router := handlers.SetupRouter(handlers.RouterDeps{
		Config:      cfg,
		Coordinator: coordinator,
		Sessions:    sessions,
		Tokens:      tokens,
		Logger:      logger,
	})

	server := &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	if monitor != nil {
		monitor.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}
}
