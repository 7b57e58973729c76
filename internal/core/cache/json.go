package cache

import (
	"context"
	"encoding/json"
	"time"

	"go-gin-gorm-auth/internal/domain"
)

func GetOrLoadJSON[T any](
	c *Cache,
	ctx context.Context,
	key string,
	ttl time.Duration,
	load func(ctx context.Context) (*T, error),
) (*T, error) {
	b, err := c.GetOrLoad(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, e := load(ctx)
		if e != nil {
			return nil, e
		}
		// v 为 nil 时写入 "null"，负缓存防击穿
		return json.Marshal(v)
	})
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return nil, nil
	}
	var out T
	if e := json.Unmarshal(b, &out); e != nil {
		return nil, e
	}
	return &out, nil
}

type UserLoader func(ctx context.Context, id string) (*domain.User, error)

// Profiles /me 资料读缓存；c 为 nil 时直接回源
type Profiles struct {
	c    *Cache
	load UserLoader
	ttl  time.Duration
}

func NewProfiles(c *Cache, load UserLoader, ttl time.Duration) *Profiles {
	return &Profiles{c: c, load: load, ttl: ttl}
}

func ProfileKey(id string) string { return "auth:profile:" + id }

func (p *Profiles) Get(ctx context.Context, id string) (*domain.User, error) {
	if p.c == nil {
		return p.load(ctx, id)
	}
	return GetOrLoadJSON(p.c, ctx, ProfileKey(id), p.ttl, func(ctx context.Context) (*domain.User, error) {
		return p.load(ctx, id)
	})
}

func (p *Profiles) Invalidate(ctx context.Context, id string) {
	if p.c == nil {
		return
	}
	_ = p.c.Del(ctx, ProfileKey(id))
}
