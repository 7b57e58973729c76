package middleware

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"

	resp "go-gin-gorm-auth/internal/transport/http/response"
)

// ConcurrencyLimit 限制同时在处理的请求数（bcrypt 是 CPU 密集，保护 CPU 与 DB）
func ConcurrencyLimit(max int64) gin.HandlerFunc {
	sem := semaphore.NewWeighted(max)
	return func(c *gin.Context) {
		if err := sem.Acquire(c.Request.Context(), 1); err != nil {
			Abort(c, resp.CodeTooManyRequests, "server busy")
			return
		}
		defer sem.Release(1)
		c.Next()
	}
}
