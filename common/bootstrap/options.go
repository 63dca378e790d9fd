package bootstrap

import (
	"context"

	"github.com/lyzr/workflow-router/common/config"
	"github.com/lyzr/workflow-router/common/logger"
	"github.com/lyzr/workflow-router/common/store"
)

// Option configures the bootstrap process
type Option func(*options)

type options struct {
	skipRedis     bool
	skipTelemetry bool
	customLogger  *logger.Logger
	customConfig  *config.Config
	customStore   store.Backend
	storeInitHook func(context.Context, store.Backend) error
}

// WithoutRedis skips redis even when REDIS_ADDR is set
func WithoutRedis() Option {
	return func(o *options) {
		o.skipRedis = true
	}
}

// WithoutTelemetry skips telemetry initialization
func WithoutTelemetry() Option {
	return func(o *options) {
		o.skipTelemetry = true
	}
}

// WithCustomLogger uses a custom logger instead of creating one
func WithCustomLogger(log *logger.Logger) Option {
	return func(o *options) {
		o.customLogger = log
	}
}

// WithCustomConfig uses a custom config instead of loading from env
func WithCustomConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.customConfig = cfg
	}
}

// WithStore uses an already opened backend instead of STORE_BACKEND
func WithStore(b store.Backend) Option {
	return func(o *options) {
		o.customStore = b
	}
}

// WithStoreInitHook runs a custom function once the store is open
// Useful for seeding data
func WithStoreInitHook(hook func(context.Context, store.Backend) error) Option {
	return func(o *options) {
		o.storeInitHook = hook
	}
}

func defaultOptions() *options {
	return &options{}
}
