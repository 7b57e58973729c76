package database

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"

	"go-gin-gorm-auth/internal/core/config"
)

var ErrUnsupportedDriver = errors.New("unsupported db driver")

type Opts struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	LogLevel           string
}

func OptsFromConfig(c config.DB) Opts {
	return Opts{
		Driver:             c.Driver,
		DSN:                c.DSN,
		Username:           c.Username,
		Password:           c.Password,
		MaxOpenConns:       c.MaxOpenConns,
		MaxIdleConns:       c.MaxIdleConns,
		ConnMaxLifetimeMin: c.ConnMaxLifetimeMin,
		LogLevel:           c.LogLevel,
	}
}

// Dialector 按驱动名选择；mysql 的 DSN 先做 JDBC/URL 兼容处理
func Dialector(o Opts, l *zap.Logger) (gorm.Dialector, error) {
	switch o.Driver {
	case "postgres":
		return postgres.Open(o.DSN), nil
	case "mysql":
		dsn := normalizeMySQLDSN(o.DSN, o.Username, o.Password)
		l.Info("mysql dsn", zap.String("dsn", maskDSN(dsn)))
		return mysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, o.Driver)
	}
}

func NewGorm(o Opts, l *zap.Logger) (*gorm.DB, error) {
	dial, err := Dialector(o, l)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dial, &gorm.Config{
		Logger:         NewGormLogger(l, o.LogLevel),
		TranslateError: true, // 唯一冲突 → gorm.ErrDuplicatedKey
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(o.MaxOpenConns)
	sqlDB.SetMaxIdleConns(o.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(o.ConnMaxLifetimeMin) * time.Minute)
	db = db.
		Session(&gorm.Session{
			PrepareStmt:            true, // 预编译缓存，提高 QPS
			SkipDefaultTransaction: true, // 只在需要时手动开 Tx
		})
	return db, nil
}

// NewGormLogger gorm 日志走 zap
func NewGormLogger(l *zap.Logger, level string) logger.Interface {
	lvl := logger.Warn
	switch level {
	case "silent":
		lvl = logger.Silent
	case "error":
		lvl = logger.Error
	case "info":
		lvl = logger.Info
	}
	return logger.New(zapWriter{l.WithOptions(zap.AddCallerSkip(3)).Sugar()}, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  lvl,
		IgnoreRecordNotFoundError: true,
	})
}

type zapWriter struct{ s *zap.SugaredLogger }

func (w zapWriter) Printf(format string, args ...interface{}) { w.s.Infof(format, args...) }

// maskDSN user:pass@tcp(...) → user:****@tcp(...)
func maskDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	if at <= 0 {
		return dsn
	}
	colon := strings.Index(dsn[:at], ":")
	if colon < 0 {
		return dsn
	}
	return dsn[:colon+1] + "****" + dsn[at:]
}

// JDBC / Navicat 参数 → go-sql-driver 参数；空串表示直接丢弃
var jdbcParams = map[string]string{
	"characterEncoding":    "charset",
	"serverTimezone":       "loc",
	"useSSL":               "tls",
	"useUnicode":           "",
	"zeroDateTimeBehavior": "",
}

var mysqlDefaults = map[string]string{"parseTime": "true", "charset": "utf8mb4"}

// normalizeMySQLDSN mysql:// 与 jdbc:mysql:// 改写成 user:pass@tcp(host)/db?...；
// 原生 DSN 原样返回
func normalizeMySQLDSN(input, userOverride, passOverride string) string {
	in := strings.TrimPrefix(strings.TrimSpace(input), "jdbc:")
	if !strings.HasPrefix(in, "mysql://") {
		return in
	}
	u, err := url.Parse(in)
	if err != nil {
		return in // 交给驱动报错
	}

	q := u.Query()
	pass, _ := u.User.Password()
	user := firstNonEmpty(userOverride, q.Get("user"), u.User.Username())
	pass = firstNonEmpty(passOverride, q.Get("password"), pass)
	q.Del("user")
	q.Del("password")

	out := url.Values{}
	for k, vs := range q {
		to, isJDBC := jdbcParams[k]
		switch {
		case !isJDBC:
			out[k] = vs
		case to == "" || q.Get(to) != "":
			// 丢弃，或显式的驱动参数优先
		case to == "tls":
			out.Set(to, sslMode(q.Get(k)))
		default:
			out.Set(to, q.Get(k))
		}
	}
	for k, v := range mysqlDefaults {
		if out.Get(k) == "" {
			out.Set(k, v)
		}
	}

	cred := user
	if pass != "" {
		cred += ":" + pass
	}
	if cred != "" {
		cred += "@"
	}
	return fmt.Sprintf("%stcp(%s)/%s?%s", cred, u.Host, strings.TrimPrefix(u.Path, "/"), out.Encode())
}

// sslMode useSSL 的取值映射到 tls
func sslMode(v string) string {
	switch strings.ToLower(v) {
	case "true", "1":
		return "true"
	case "skip-verify", "preferred":
		return strings.ToLower(v)
	default:
		return "false"
	}
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
