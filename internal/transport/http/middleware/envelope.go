package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	resp "go-gin-gorm-auth/internal/transport/http/response"
)

// KeyRespCode 本次响应的业务码，供访问日志与指标使用
const KeyRespCode = "respCode"

// Abort 终止链路并写失败信封
func Abort(c *gin.Context, code int, msg string) {
	c.Set(KeyRespCode, code)
	c.AbortWithStatusJSON(http.StatusOK, resp.Error(code, msg))
}

// RespCode 未记录业务码时按 HTTP 状态推断
func RespCode(c *gin.Context) int {
	if v, ok := c.Get(KeyRespCode); ok {
		if code, ok := v.(int); ok {
			return code
		}
	}
	if s := c.Writer.Status(); s != http.StatusOK {
		return s
	}
	return resp.CodeOK
}
