package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"go-gin-gorm-auth/internal/core/server"
	mdw "go-gin-gorm-auth/internal/transport/http/middleware"
)

type Options struct {
	Env            string
	AllowOrigins   []string
	RequestTimeout time.Duration
	// Ready /health 探活；nil 只报告进程存活
	Ready func(ctx context.Context) error
	// Modules nil 时用默认 registry
	Modules *Registry
}

func NewAPIEngine(l *zap.Logger, o Options) *gin.Engine {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 10 * time.Second
	}
	if o.Modules == nil {
		o.Modules = defaultRegistry
	}

	r := server.NewRouter(l, server.Options{Env: o.Env, AllowOrigins: o.AllowOrigins})

	// 中间件
	r.Use(
		mdw.RequestID(),
		mdw.RateLimit(200, 400),
		mdw.ConcurrencyLimit(300),
		mdw.MaxBodyBytes(64<<10),
		mdw.Timeout(o.RequestTimeout),
		mdw.Metrics(),
		mdw.AccessLog(l, "/health", "/metrics"),
	)

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		if o.Ready != nil {
			if err := o.Ready(c.Request.Context()); err != nil {
				l.Warn("health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"ok": 0})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"ok": 1})
	})
	r.GET("/metrics", mdw.MetricsHandler())

	// 前缀
	api := r.Group("/api/v1")
	o.Modules.MountAll(api)

	return r
}
