package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/carvault/ingestor/common/config"
	"github.com/carvault/ingestor/common/db"
	"github.com/carvault/ingestor/common/logger"
	redisWrapper "github.com/carvault/ingestor/common/redis"
	"github.com/carvault/ingestor/common/store"
	"github.com/carvault/ingestor/common/telemetry"
	"github.com/redis/go-redis/v9"
)

// Setup initializes all service components
// This is the main entry point for the service
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	// Apply options
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	components := &Components{
		cleanupFuncs: make([]func() error, 0),
	}

	// 1. Load configuration
	var err error
	if options.customConfig != nil {
		components.Config = options.customConfig
	} else {
		components.Config, err = config.Load(serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	// 2. Initialize logger
	if options.customLogger != nil {
		components.Logger = options.customLogger
	} else {
		components.Logger = logger.New(
			components.Config.Service.LogLevel,
			components.Config.Service.LogFormat,
		)
	}

	components.Logger.Info("initializing service",
		"service", serviceName,
		"environment", components.Config.Service.Environment,
	)

	// 3. Initialize the record store
	if err := setupStore(ctx, components); err != nil {
		return nil, err
	}

	// 4. Initialize Redis (optional, used for completion signaling)
	if !options.skipRedis && components.Config.Redis.Enabled {
		if err := setupRedis(ctx, components); err != nil {
			components.Shutdown(ctx)
			return nil, err
		}
	}

	// 5. Initialize telemetry
	if !options.skipTelemetry && components.Config.Telemetry.EnableMetrics {
		components.Telemetry = telemetry.New(
			components.Config.Telemetry.PprofPort,
			components.Config.Telemetry.MetricsPort,
			components.Config.Telemetry.EnablePprof,
			components.Logger,
		)

		if err := components.Telemetry.Start(ctx); err != nil {
			components.Logger.Warn("failed to start telemetry", "error", err)
			// Don't fail startup if telemetry fails
		}
	}

	components.Logger.Info("service initialization complete",
		"service", serviceName,
		"store", components.Config.Store.Type,
		"redis", components.Redis != nil,
		"telemetry", components.Telemetry != nil,
	)

	return components, nil
}

func setupStore(ctx context.Context, components *Components) error {
	cfg := components.Config

	components.Logger.Info("initializing store", "type", cfg.Store.Type)

	switch cfg.Store.Type {
	case config.StoreMemory:
		components.Store = store.NewMemoryStore()

	case config.StoreBolt:
		boltStore, err := store.NewBoltStore(cfg.Store.BoltPath)
		if err != nil {
			return fmt.Errorf("failed to open bolt store: %w", err)
		}
		components.Store = boltStore

	case config.StorePostgres:
		database, err := db.New(ctx, cfg, components.Logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		components.DB = database
		components.addCleanup(func() error {
			database.Close()
			return nil
		})

		if err := database.Migrate(ctx); err != nil {
			components.Shutdown(ctx)
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		components.Store = store.NewPostgresStore(database)

	default:
		return fmt.Errorf("unknown store type: %s", cfg.Store.Type)
	}

	components.addCleanup(func() error {
		components.Logger.Info("closing store")
		return components.Store.Close()
	})
	return nil
}

func setupRedis(ctx context.Context, components *Components) error {
	cfg := components.Config

	components.Logger.Info("connecting to redis", "addr", cfg.Redis.Addr)

	client := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	components.Redis = redisWrapper.NewClient(client, components.Logger)
	components.addCleanup(func() error {
		components.Logger.Info("closing redis connection")
		return components.Redis.Close()
	})
	return nil
}
