package cache

import (
	"context"
	"time"
)

const revokedPrefix = "auth:revoked:"

// Revoke 实现 auth.RevocationStore；key 随会话过期自动删除
func (c *Cache) Revoke(ctx context.Context, id string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.RDB.Set(ctx, revokedPrefix+id, 1, ttl).Err()
}

// IsRevoked Redis 出错时返回错误，由调用方拒绝请求
func (c *Cache) IsRevoked(ctx context.Context, id string) (bool, error) {
	n, err := c.RDB.Exists(ctx, revokedPrefix+id).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
