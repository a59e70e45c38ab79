package redis

import (
	"context"

	"wisefido-survival/internal/common/config"

	"github.com/go-redis/redis/v8"
)

// NewRedisClient builds a client from RedisConfig; zero pool and timeout
// fields keep the go-redis defaults
func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
}

// Ping checks connectivity
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}

// Close closes the client when set
func Close(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
