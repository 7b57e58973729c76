package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	resp "go-gin-gorm-auth/internal/transport/http/response"
)

// Timeout 给请求上下文加截止时间，DB / Redis / bcrypt 之前的检查据此中断。
// handler 已经写了响应（如 408 取消信封）就不再覆盖。
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		if c.Writer.Written() {
			return
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			Abort(c, resp.CodeTimeout, "timeout")
		}
	}
}
