package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lyzr/workflow-router/common/clients"
	"github.com/lyzr/workflow-router/common/config"
	"github.com/lyzr/workflow-router/common/db"
	"github.com/lyzr/workflow-router/common/logger"
	rediscommon "github.com/lyzr/workflow-router/common/redis"
	"github.com/lyzr/workflow-router/common/store"
	"github.com/lyzr/workflow-router/common/store/memory"
	"github.com/lyzr/workflow-router/common/store/postgres"
	"github.com/lyzr/workflow-router/common/store/rest"
	"github.com/lyzr/workflow-router/common/store/sqlite"
	"github.com/lyzr/workflow-router/common/telemetry"
)

// Setup initializes all service components
// This is the main entry point for all binaries
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
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
		"store", components.Config.Store.Backend,
	)

	// 3. Telemetry comes before the store so the store can be instrumented
	if !options.skipTelemetry {
		components.Telemetry = telemetry.New(components.Config.Telemetry.PprofPort, components.Logger)
		if components.Config.Telemetry.EnablePprof {
			if err := components.Telemetry.Start(ctx); err != nil {
				components.Logger.Warn("failed to start telemetry", "error", err)
			}
			components.addCleanup(func() error {
				return components.Telemetry.Stop(context.Background())
			})
		}
	}

	// 4. Initialize the store
	backend := options.customStore
	if backend == nil {
		backend, err = openStore(ctx, components)
		if err != nil {
			components.Shutdown(ctx)
			return nil, err
		}
	}
	if components.Telemetry != nil {
		backend = components.Telemetry.InstrumentBackend(backend)
	}
	components.Store = backend
	components.addCleanup(func() error {
		components.Logger.Info("closing store")
		return backend.Close()
	})

	if options.storeInitHook != nil {
		components.Logger.Info("running store init hook")
		if err := options.storeInitHook(ctx, components.Store); err != nil {
			components.Shutdown(ctx)
			return nil, fmt.Errorf("store init hook failed: %w", err)
		}
	}

	// 5. Redis is optional; without it locks and caches stay in-process
	if !options.skipRedis && components.Config.Redis.Addr != "" {
		components.Logger.Info("connecting to redis", "addr", components.Config.Redis.Addr)
		components.Redis, err = rediscommon.Dial(ctx, rediscommon.Options{
			Addr:     components.Config.Redis.Addr,
			Password: components.Config.Redis.Password,
			DB:       components.Config.Redis.DB,
		}, components.Logger)
		if err != nil {
			components.Shutdown(ctx)
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		components.addCleanup(func() error {
			components.Logger.Info("closing redis")
			return components.Redis.Close()
		})
	}

	components.Logger.Info("service initialization complete",
		"service", serviceName,
		"db", components.DB != nil,
		"redis", components.Redis != nil,
		"telemetry", components.Telemetry != nil,
	)

	return components, nil
}

func openStore(ctx context.Context, c *Components) (store.Backend, error) {
	cfg := c.Config
	switch cfg.Store.Backend {
	case config.StorePostgres:
		c.Logger.Info("connecting to database")
		database, err := db.New(ctx, cfg.DatabaseURL(), cfg.Database, c.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		c.DB = database
		pg := postgres.New(database, c.Logger)
		if err := pg.EnsureSchema(ctx); err != nil {
			database.Close()
			return nil, err
		}
		return pg, nil

	case config.StoreSQLite:
		b, err := sqlite.Open(ctx, cfg.Store.SQLitePath, c.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return b, nil

	case config.StoreREST:
		httpClient := clients.NewHTTPClient(&http.Client{Timeout: 30 * time.Second}, c.Logger)
		return rest.New(rest.Config{BaseURL: cfg.Store.RESTURL, APIKey: cfg.Store.RESTKey}, httpClient, c.Logger), nil

	case config.StoreMemory:
		c.Logger.Warn("using in-memory store; data is lost on exit")
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
}
