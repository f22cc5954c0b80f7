package clients

import (
	"context"

	"github.com/jimlawless/whereami"
	"github.com/pixloft/go-backend/internal/cfg"
	"github.com/pixloft/go-backend/pkg/e"
	r "github.com/redis/go-redis/v9"
)

// RedisClient оборачивает клиент go-redis, собранный из конфигурации.
type RedisClient struct {
	Client *r.Client
}

func NewRedisClient(cfg *cfg.RedisCfg) *RedisClient {
	return &RedisClient{
		Client: r.NewClient(&r.Options{
			Addr:         cfg.Addr,
			Username:     cfg.User,
			Password:     cfg.Password,
			DB:           cfg.DB,
			MaxRetries:   cfg.MaxRetries,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.Timeout,
			WriteTimeout: cfg.Timeout,
		}),
	}
}

// Ping проверяет соединение с Redis.
func (c *RedisClient) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Close закрывает соединение клиента.
func (c *RedisClient) Close() error {
	return c.Client.Close()
}
