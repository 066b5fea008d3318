package cache

import (
	"context"
	"fmt"

	"github.com/erp/dre/internal/domain/dre"
	"github.com/erp/dre/internal/infrastructure/config"
	"go.uber.org/zap"
)

// SettingsStoreFactory creates settings stores based on configuration
type SettingsStoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// SettingsStoreFactoryOption is a functional option for configuring the factory
type SettingsStoreFactoryOption func(*SettingsStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) SettingsStoreFactoryOption {
	return func(f *SettingsStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to the
// in-memory store. Default is true.
func WithInMemoryFallback(allow bool) SettingsStoreFactoryOption {
	return func(f *SettingsStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewSettingsStoreFactory creates a new factory
func NewSettingsStoreFactory(cfg config.RedisConfig, opts ...SettingsStoreFactoryOption) *SettingsStoreFactory {
	f := &SettingsStoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore returns the Redis store when Redis is enabled and reachable,
// otherwise the in-memory store if fallback is allowed. The returned close
// function is never nil.
func (f *SettingsStoreFactory) CreateStore(ctx context.Context) (dre.SettingsStore, func() error, error) {
	noop := func() error { return nil }

	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory settings store")
		return NewInMemorySettingsStore(), noop, nil
	}

	store, err := NewRedisSettingsStore(ctx, RedisConfig{
		Addr:      f.redisConfig.Addr(),
		Password:  f.redisConfig.Password,
		DB:        f.redisConfig.DB,
		KeyPrefix: f.redisConfig.KeyPrefix,
	})
	if err == nil {
		f.logger.Info("Using Redis settings store", zap.String("addr", f.redisConfig.Addr()))
		return store, store.Close, nil
	}

	if !f.allowInMemoryFallback {
		return nil, noop, fmt.Errorf("redis required for settings but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory settings store. "+
		"Settings will not be shared between instances.",
		zap.Error(err),
	)
	return NewInMemorySettingsStore(), noop, nil
}
