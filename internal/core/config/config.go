package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host              string
	Port              int
	ReadTimeoutSec    int
	WriteTimeoutSec   int
	IdleTimeoutSec    int
	RequestTimeoutSec int
	AllowOrigins      []string // 为空不启用 CORS
}

type App struct {
	Name string
	Env  string
	HTTP HTTP
}

type Log struct {
	Level string
	JSON  bool
	File  LogFile
}

// LogFile 可选文件输出（lumberjack 切割）
type LogFile struct {
	Enable     bool
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type JWT struct {
	Secret            string
	Issuer            string
	AccessTokenTTLMin int
	CookieName        string
	CookieSecure      bool
}

type Redis struct {
	Addr          string `mapstructure:"addr"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	ProfileTTLSec int    `mapstructure:"profilettlsec"`
}

type DB struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	LogLevel           string
}

// Auth 锁定策略与哈希成本
type Auth struct {
	MaxLoginAttempts   int
	LockoutDurationMin int
	BcryptCost         int
}

func (a Auth) LockoutDuration() time.Duration {
	return time.Duration(a.LockoutDurationMin) * time.Minute
}

type Config struct {
	App   App
	Log   Log
	JWT   JWT
	DB    DB
	Redis Redis `mapstructure:"redis"`
	Auth  Auth
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "auth-api")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 8080)
	v.SetDefault("app.http.readtimeoutsec", 5)
	v.SetDefault("app.http.writetimeoutsec", 10)
	v.SetDefault("app.http.idletimeoutsec", 60)
	v.SetDefault("app.http.requesttimeoutsec", 10)
	v.SetDefault("app.http.alloworigins", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.file.enable", false)
	v.SetDefault("log.file.filename", "logs/app.log")
	v.SetDefault("log.file.compress", false)
	v.SetDefault("log.file.maxsizemb", 100)
	v.SetDefault("log.file.maxbackups", 7)
	v.SetDefault("log.file.maxagedays", 30)

	// 环境变量只覆盖已知 key，没有默认值的也要登记
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.cookiesecure", false)
	v.SetDefault("jwt.issuer", "auth-api")
	v.SetDefault("jwt.accesstokenttlmin", 60)
	v.SetDefault("jwt.cookiename", "session")

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.username", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.automigrate", false)
	v.SetDefault("db.maxopenconns", 20)
	v.SetDefault("db.maxidleconns", 10)
	v.SetDefault("db.connmaxlifetimemin", 30)
	v.SetDefault("db.loglevel", "warn")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.profilettlsec", 30)

	v.SetDefault("auth.maxloginattempts", 5)
	v.SetDefault("auth.lockoutdurationmin", 15)
	v.SetDefault("auth.bcryptcost", 12)
}

// LoadE path 为空时读 CONFIG_PATH，再退回 ./configs/config.local.yaml；
// 默认路径的文件不存在时只用默认值 + 环境变量
func LoadE(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	explicit := true
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
			explicit = false
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load 失败直接退出
func Load(path string) *Config {
	c, err := LoadE(path)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return c
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}
	if c.Auth.MaxLoginAttempts <= 0 {
		return fmt.Errorf("auth.maxLoginAttempts must be positive, got %d", c.Auth.MaxLoginAttempts)
	}
	if c.Auth.LockoutDurationMin <= 0 {
		return fmt.Errorf("auth.lockoutDurationMin must be positive, got %d", c.Auth.LockoutDurationMin)
	}
	return nil
}
