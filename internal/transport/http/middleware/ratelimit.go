package middleware

import (
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	resp "go-gin-gorm-auth/internal/transport/http/response"
)

// RateLimit 全局令牌桶限速
func RateLimit(rps rate.Limit, burst int) gin.HandlerFunc {
	lim := rate.NewLimiter(rps, burst)
	return func(c *gin.Context) {
		if lim.Allow() {
			c.Next()
			return
		}
		Abort(c, resp.CodeTooManyRequests, "too many requests")
	}
}

// 每 IP 桶数量上限，超过后整体重置
const maxIPBuckets = 10000

// RateLimitPerIP 每 IP 限速（登录/注册入口，配合账号锁定）
func RateLimitPerIP(rps rate.Limit, burst int) gin.HandlerFunc {
	var mu sync.Mutex
	buckets := make(map[string]*rate.Limiter)
	return func(c *gin.Context) {
		ip := c.ClientIP()
		mu.Lock()
		lim, ok := buckets[ip]
		if !ok {
			if len(buckets) >= maxIPBuckets {
				buckets = make(map[string]*rate.Limiter)
			}
			lim = rate.NewLimiter(rps, burst)
			buckets[ip] = lim
		}
		mu.Unlock()
		if lim.Allow() {
			c.Next()
			return
		}
		Abort(c, resp.CodeTooManyRequests, "too many requests")
	}
}
