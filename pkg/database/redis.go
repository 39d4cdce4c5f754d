package database

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-querycache/pkg/config"
)

// ErrRedisNotConfigured is returned when the redis cache store is selected
// without a host.
var ErrRedisNotConfigured = errors.New("redis host is not configured")

// RedisOptions maps loaded settings onto client options.
func RedisOptions(cfg *config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:       net.JoinHostPort(config.ResolveHostForDocker(cfg.Host), strconv.Itoa(cfg.Port)),
		Password:   cfg.Password,
		DB:         cfg.DB,
		ClientName: ApplicationName,
	}
}

// NewRedisClient connects to the redis cache store and verifies it with a ping.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	if cfg.Host == "" {
		return nil, ErrRedisNotConfigured
	}

	opts := RedisOptions(cfg)
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Connected to Redis",
		zap.String("addr", opts.Addr),
		zap.Int("db", opts.DB),
		zap.String("key_prefix", cfg.KeyPrefix),
	)
	return client, nil
}
