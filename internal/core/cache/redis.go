package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"go-gin-gorm-auth/internal/core/config"
)

// 认证链路上的 Redis 调用要快速失败
const (
	dialTimeout = 2 * time.Second
	ioTimeout   = 500 * time.Millisecond
	loadTimeout = 5 * time.Second
)

type Cache struct {
	RDB *redis.Client
	sf  singleflight.Group
}

func New(c config.Redis) *Cache {
	return NewWithClient(redis.NewClient(&redis.Options{
		Addr:         c.Addr,
		Password:     c.Password,
		DB:           c.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
	}))
}

func NewWithClient(rdb *redis.Client) *Cache { return &Cache{RDB: rdb} }

func (c *Cache) Ping(ctx context.Context) error { return c.RDB.Ping(ctx).Err() }

func (c *Cache) Close() error { return c.RDB.Close() }

// GetOrLoad 未命中或 Redis 不可用时回源；并发回源按 key 合并。
// Redis 读报错（非 redis.Nil）时不再回写。
func (c *Cache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error) {
	b, err := c.RDB.Get(ctx, key).Bytes()
	if err == nil {
		return b, nil
	}
	writeBack := errors.Is(err, redis.Nil)

	v, err, _ := c.sf.Do(key, func() (any, error) {
		// 合并的调用共享一次回源，不跟随单个调用方取消
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		b, e := load(lctx)
		if e != nil {
			return nil, e
		}
		if writeBack {
			_ = c.RDB.Set(lctx, key, b, ttl).Err()
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Cache) Del(ctx context.Context, keys ...string) error {
	return c.RDB.Del(ctx, keys...).Err()
}
