package server

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	mdw "go-gin-gorm-auth/internal/transport/http/middleware"
	resp "go-gin-gorm-auth/internal/transport/http/response"
)

type Options struct {
	Env          string   // prod 时切到 release 模式
	AllowOrigins []string // 为空不挂 CORS
}

// NewRouter 基础引擎：panic 兜底 + CORS；业务中间件由 router 包追加
func NewRouter(l *zap.Logger, o Options) *gin.Engine {
	if o.Env == "prod" || o.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(ginzap.CustomRecoveryWithZap(l, true, func(c *gin.Context, _ any) {
		mdw.Abort(c, resp.CodeServerError, "internal error")
	}))
	if len(o.AllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     o.AllowOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
			ExposeHeaders:    []string{"X-Request-ID"},
			AllowCredentials: true, // 会话 cookie
			MaxAge:           12 * time.Hour,
		}))
	}
	return r
}

// BuildServer errLog 为 nil 时用标准库默认输出
func BuildServer(addr string, handler http.Handler, rt, wt, it time.Duration, errLog *log.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       rt,
		ReadHeaderTimeout: rt,
		WriteTimeout:      wt,
		IdleTimeout:       it,
		MaxHeaderBytes:    1 << 20, // 1MB
		ErrorLog:          errLog,
	}
}

func Addr(host string, port int) string { return fmt.Sprintf("%s:%d", host, port) }
