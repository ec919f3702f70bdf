package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/resscene"
	"github.com/aretw0/resscene/internal/adapters/file"
	"github.com/aretw0/resscene/internal/config"
	"github.com/aretw0/resscene/pkg/adapters/homeassistant"
	"github.com/aretw0/resscene/pkg/adapters/memory"
	"github.com/aretw0/resscene/pkg/adapters/redis"
	"github.com/aretw0/resscene/pkg/adapters/sqlite"
	"github.com/aretw0/resscene/pkg/domain"
	"github.com/aretw0/resscene/pkg/persistence/middleware"
)

// buildEngine assembles an engine from the configuration. extra options are
// applied last.
func buildEngine(ctx context.Context, cfg config.Config, logger *slog.Logger, extra ...resscene.Option) (*resscene.Engine, error) {
	opts := []resscene.Option{
		resscene.WithLogger(logger),
		resscene.WithCallDelay(cfg.Scenes.CallDelay),
		resscene.WithDefaults(domain.SceneOptions{
			RestoreLightAttributes: domain.Bool(cfg.Scenes.RestoreLightAttributes),
			ActionTimeout:          domain.Duration(cfg.Scenes.ActionTimeout),
		}),
	}

	switch cfg.Store.Backend {
	case config.BackendMemory:
		opts = append(opts, resscene.WithRepository(memory.NewStore()))
	case config.BackendFile:
		opts = append(opts, resscene.WithRepository(file.New(cfg.Store.Path)))
	case config.BackendSQLite:
		store, err := sqlite.Open(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, resscene.WithRepository(store), resscene.WithCloser(store))
	case config.BackendRedis:
		store := redis.New(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, redis.WithPrefix(cfg.Redis.Prefix))
		if err := store.Client().Ping(ctx).Err(); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Address, err)
		}
		opts = append(opts, resscene.WithRepository(store), resscene.WithCloser(store))
		if cfg.Redis.Locking {
			opts = append(opts, resscene.WithLocker(redis.NewLocker(store.Client(), cfg.Redis.Prefix)))
		}
	}

	var mws []middleware.Middleware
	if len(cfg.Redact) > 0 {
		mws = append(mws, middleware.NewRedactMiddleware(cfg.Redact))
	}
	if cfg.Encryption.Key != "" {
		active, fallbacks, err := cfg.EncryptionKeys()
		if err != nil {
			return nil, err
		}
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallbacks,
		}))
	}
	opts = append(opts, resscene.WithMiddleware(mws...))
	opts = append(opts, extra...)

	return resscene.New(newHost(cfg, logger), opts...)
}

// newHost returns the Home Assistant client, or an empty in-memory host when
// no instance is configured so that stored scenes can still be managed offline.
func newHost(cfg config.Config, logger *slog.Logger) resscene.Host {
	if cfg.HomeAssistant.URL == "" {
		logger.Warn("No Home Assistant URL configured; using an empty in-memory host")
		return memory.NewHost()
	}
	return homeassistant.New(cfg.HomeAssistant.URL, cfg.HomeAssistant.Token, homeassistant.WithLogger(logger))
}
