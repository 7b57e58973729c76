package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	resp "go-gin-gorm-auth/internal/transport/http/response"
)

// MaxBodyBytes 限制请求体大小；凭据接口只需要很小的 body
func MaxBodyBytes(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
		if len(c.Errors) > 0 && !c.Writer.Written() {
			Abort(c, resp.CodeBadRequest, "request body too large")
		}
	}
}
