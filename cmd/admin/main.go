// admin 运维命令：列出账号、停用/启用、解除锁定。直接操作数据库，不经过 HTTP。
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"go-gin-gorm-auth/internal/core/cache"
	"go-gin-gorm-auth/internal/core/config"
	"go-gin-gorm-auth/internal/core/database"
	"go-gin-gorm-auth/internal/core/logger"
	"go-gin-gorm-auth/internal/domain"
	"go-gin-gorm-auth/internal/repo"
	"go-gin-gorm-auth/internal/service"
)

const usage = `usage: admin [-config path] <command> [args]

commands:
  list [-offset N] [-limit N]   list accounts, newest first
  deactivate <email>            block logins for an account
  activate <email>              re-enable an account
  unlock <email>                clear a lockout and failure counter
`

// accounts AccountAdmin 的命令行视图
type accounts interface {
	Deactivate(ctx context.Context, email string) (*domain.User, error)
	Activate(ctx context.Context, email string) (*domain.User, error)
	Unlock(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, offset, limit int) ([]domain.User, int64, error)
}

func main() {
	_ = godotenv.Load()

	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	cfgPath := fs.String("config", os.Getenv("CONFIG_PATH"), "config file")
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	_ = fs.Parse(os.Args[1:])
	if fs.NArg() == 0 {
		fs.Usage()
		os.Exit(2)
	}

	cfg := config.Load(*cfgPath)
	log, cleanup := logger.New(cfg.Log)
	defer cleanup()

	db, err := database.NewGorm(database.OptsFromConfig(cfg.DB), log)
	if err != nil {
		log.Fatal("db open", zap.Error(err))
	}

	admin := service.NewAccountAdmin(repo.NewUserRepo(db), service.WithLogger(log.Named("admin")))
	if cfg.Redis.Addr != "" {
		rc := cache.New(cfg.Redis)
		defer rc.Close()
		admin.OnChange(func(ctx context.Context, u *domain.User) {
			if err := rc.Del(ctx, cache.ProfileKey(u.ID)); err != nil {
				log.Warn("profile cache invalidate", zap.String("user_id", u.ID), zap.Error(err))
			}
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := run(ctx, admin, fs.Args(), os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "admin:", err)
		cleanup()
		os.Exit(1)
	}
}

var errUsage = errors.New("bad usage")

func run(ctx context.Context, a accounts, args []string, out io.Writer) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "list":
		fs := flag.NewFlagSet("list", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		offset := fs.Int("offset", 0, "rows to skip")
		limit := fs.Int("limit", 20, "rows to return (1-100)")
		if err := fs.Parse(rest); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		users, total, err := a.List(ctx, *offset, *limit)
		if err != nil {
			return err
		}
		return printJSON(out, map[string]any{"total": total, "items": users})

	case "deactivate", "activate", "unlock":
		if len(rest) != 1 {
			return fmt.Errorf("%w: %s <email>", errUsage, cmd)
		}
		op := map[string]func(context.Context, string) (*domain.User, error){
			"deactivate": a.Deactivate,
			"activate":   a.Activate,
			"unlock":     a.Unlock,
		}[cmd]
		u, err := op(ctx, rest[0])
		if err != nil {
			return err
		}
		return printJSON(out, u)

	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
