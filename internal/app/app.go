// Package app assembles the recipebook server out of its fx modules.
package app

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/cache"
	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/config"
	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/db"
	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/logger"
	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/metrics"
	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/proto"
	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/service"
	"github.com/Rogue-Bear-Innovations/recipebook-back/internal/transport"
)

var (
	// Base is what every command needs: configuration, logging and storage.
	Base = fx.Options(
		fx.Provide(
			config.NewConfig,
			logger.New,
			NewStore,
		),
		fx.WithLogger(func(l *zap.SugaredLogger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Desugar()}
		}),
	)

	// Server runs the HTTP API and the gRPC service.
	Server = fx.Options(
		Base,
		fx.Provide(
			metrics.New,
			NewLinkCache,
		),
		service.Module,
		transport.Module,
		proto.Module,
	)
)

// NewStore opens the storage backend named by DB_DRIVER.
func NewStore(lc fx.Lifecycle, cfg *config.Config, l *zap.SugaredLogger) (service.Store, error) {
	if cfg.DBDriver == config.DriverMemory {
		l.Warn("using in-memory storage, data is lost on restart")
		return db.NewMemoryStore(), nil
	}

	gormDB, err := db.NewGormClient(cfg)
	if err != nil {
		return nil, err
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get sql db")
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			l.Info("Closing database connection.")
			return sqlDB.Close()
		},
	})
	return db.NewGormStore(gormDB), nil
}

// NewLinkCache connects to Redis when REDIS_ADDR is set. Without it short
// links are resolved from storage on every hit. An unreachable Redis does not
// stop startup: the breaker keeps calls away from it and reads fall back to
// storage until it answers again.
func NewLinkCache(lc fx.Lifecycle, cfg *config.Config, l *zap.SugaredLogger) (service.LinkCache, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}

	c := cache.NewLinkCache(cfg.RedisAddr)
	if err := c.Ping(context.Background()); err != nil {
		l.Warnw("short link cache unreachable, serving from storage", "addr", cfg.RedisAddr, "error", err)
	} else {
		l.Infow("short link cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return c.Close()
		},
	})
	return c, nil
}
