package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"go-gin-gorm-auth/internal/core/auth"
	"go-gin-gorm-auth/internal/core/cache"
	"go-gin-gorm-auth/internal/core/config"
	"go-gin-gorm-auth/internal/core/database"
	"go-gin-gorm-auth/internal/core/logger"
	"go-gin-gorm-auth/internal/core/server"
	"go-gin-gorm-auth/internal/domain"
	"go-gin-gorm-auth/internal/repo"
	"go-gin-gorm-auth/internal/service"
	"go-gin-gorm-auth/internal/transport/http/handler"
	"go-gin-gorm-auth/internal/transport/http/router"
	"go-gin-gorm-auth/pkg/utils"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load(os.Getenv("CONFIG_PATH"))
	log, cleanup := logger.New(cfg.Log)
	defer cleanup()
	defer logger.RedirectStdLog(log, zapcore.InfoLevel)()

	// 数据库（失败会直接 Fatal）
	db := mustOpenDB(cfg, log)
	log.Info("database connected", zap.String("driver", cfg.DB.Driver))

	if cfg.DB.AutoMigrate {
		if err := db.AutoMigrate(&domain.User{}); err != nil {
			log.Fatal("automigrate failed", zap.Error(err))
		}
		log.Info("automigrate done")
	}

	// Redis 可选：没配置时吊销表放进程内，资料不缓存
	var (
		rc          *cache.Cache
		revocations auth.RevocationStore = auth.NewMemoryRevocations()
	)
	if cfg.Redis.Addr != "" {
		rc = cache.New(cfg.Redis)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rc.Ping(ctx)
		cancel()
		if err != nil {
			log.Fatal("redis ping", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		defer rc.Close()
		revocations = rc
		log.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
	} else {
		log.Warn("redis not configured, revocations are in-process only")
	}

	// 依赖
	users := repo.NewUserRepo(db)
	authSvc := service.NewAuthService(users, utils.NewHasher(cfg.Auth.BcryptCost), service.Policy{
		MaxLoginAttempts: cfg.Auth.MaxLoginAttempts,
		LockoutDuration:  cfg.Auth.LockoutDuration(),
	}, service.WithLogger(log.Named("auth")))
	sessions := auth.NewSessions(&auth.JWTer{
		Secret: []byte(cfg.JWT.Secret),
		Issuer: cfg.JWT.Issuer,
		TTL:    time.Duration(cfg.JWT.AccessTokenTTLMin) * time.Minute,
	}, revocations)
	profiles := cache.NewProfiles(rc, users.FindByID, time.Duration(cfg.Redis.ProfileTTLSec)*time.Second)

	router.Register(handler.NewAuthHandler(authSvc, sessions, profiles, handler.CookieOptions{
		Name:   cfg.JWT.CookieName,
		Secure: cfg.JWT.CookieSecure,
	}, log.Named("http")))

	r := router.NewAPIEngine(log, router.Options{
		Env:            cfg.App.Env,
		AllowOrigins:   cfg.App.HTTP.AllowOrigins,
		RequestTimeout: time.Duration(cfg.App.HTTP.RequestTimeoutSec) * time.Second,
		Ready:          pinger(db),
	})

	// HTTP Server
	addr := server.Addr(cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	srv := server.BuildServer(
		addr, r,
		time.Duration(cfg.App.HTTP.ReadTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.WriteTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.IdleTimeoutSec)*time.Second,
		logger.ToStdLogger(log.Named("http"), zapcore.WarnLevel),
	)

	// 启动日志
	host4human := cfg.App.HTTP.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.HTTP.Port)
	log.Info("auth api starting",
		zap.String("addr", addr),
		zap.String("health", baseURL+"/health"),
		zap.String("api_v1", baseURL+"/api/v1"),
		zap.Int("max_login_attempts", authSvc.Policy().MaxLoginAttempts),
		zap.Duration("lockout", authSvc.Policy().LockoutDuration),
	)

	// 异步启动
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("auth api start FAILED", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("shutdown", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("auth api stopped gracefully")
}

func mustOpenDB(cfg *config.Config, l *zap.Logger) *gorm.DB {
	db, err := database.NewGorm(database.OptsFromConfig(cfg.DB), l)
	if err != nil {
		l.Fatal("db open", zap.Error(err))
	}
	return db
}

func pinger(db *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}
