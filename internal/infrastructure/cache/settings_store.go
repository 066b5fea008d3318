// Package cache holds the settings stores of the DRE service: a Redis backed
// store for shared deployments and an in-process store for tests and the CLI.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/erp/dre/internal/domain/dre"
	"github.com/erp/dre/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "dre:settings:"

func validateOwner(owner string) error {
	if strings.TrimSpace(owner) == "" {
		return shared.NewDomainError("INVALID_OWNER", "Settings owner cannot be empty")
	}
	return nil
}

// RedisSettingsStore keeps one JSON document per owner
type RedisSettingsStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// NewRedisSettingsStore connects to Redis and verifies the connection
func NewRedisSettingsStore(ctx context.Context, cfg RedisConfig) (*RedisSettingsStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisSettingsStoreWithClient(client, cfg.KeyPrefix), nil
}

// NewRedisSettingsStoreWithClient creates a store with an existing Redis client
func NewRedisSettingsStoreWithClient(client *redis.Client, keyPrefix string) *RedisSettingsStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisSettingsStore{client: client, keyPrefix: keyPrefix}
}

// Load returns the stored settings or the defaults when nothing was saved
func (s *RedisSettingsStore) Load(ctx context.Context, owner string) (dre.Settings, error) {
	if err := validateOwner(owner); err != nil {
		return dre.Settings{}, err
	}
	raw, err := s.client.Get(ctx, s.keyPrefix+owner).Bytes()
	if errors.Is(err, redis.Nil) {
		return dre.DefaultSettings(), nil
	}
	if err != nil {
		return dre.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}

	settings := dre.DefaultSettings()
	if err := json.Unmarshal(raw, &settings); err != nil {
		return dre.Settings{}, fmt.Errorf("failed to decode settings of %s: %w", owner, err)
	}
	return settings, nil
}

// Save validates and stores the settings without expiry
func (s *RedisSettingsStore) Save(ctx context.Context, owner string, settings dre.Settings) error {
	if err := validateOwner(owner); err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := s.client.Set(ctx, s.keyPrefix+owner, raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable
func (s *RedisSettingsStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (s *RedisSettingsStore) Close() error {
	return s.client.Close()
}

// InMemorySettingsStore keeps settings in a map. State is not shared
// across processes.
type InMemorySettingsStore struct {
	mu       sync.RWMutex
	settings map[string][]byte
}

// NewInMemorySettingsStore creates an empty in-memory store
func NewInMemorySettingsStore() *InMemorySettingsStore {
	return &InMemorySettingsStore{settings: make(map[string][]byte)}
}

// Load returns a copy of the stored settings or the defaults
func (s *InMemorySettingsStore) Load(_ context.Context, owner string) (dre.Settings, error) {
	if err := validateOwner(owner); err != nil {
		return dre.Settings{}, err
	}
	s.mu.RLock()
	raw, ok := s.settings[owner]
	s.mu.RUnlock()

	settings := dre.DefaultSettings()
	if !ok {
		return settings, nil
	}
	// stored encoded so callers never share slices with the store
	if err := json.Unmarshal(raw, &settings); err != nil {
		return dre.Settings{}, err
	}
	return settings, nil
}

// Save validates and stores the settings
func (s *InMemorySettingsStore) Save(_ context.Context, owner string, settings dre.Settings) error {
	if err := validateOwner(owner); err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.settings[owner] = raw
	s.mu.Unlock()
	return nil
}

var (
	_ dre.SettingsStore = (*RedisSettingsStore)(nil)
	_ dre.SettingsStore = (*InMemorySettingsStore)(nil)
)
