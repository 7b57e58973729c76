package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"go-gin-gorm-auth/internal/domain"
)

// AccountAdmin 运维侧操作：停用/启用/解锁。不经过登录状态机。
type AccountAdmin struct {
	repo        domain.UserRepository
	now         func() time.Time
	log         *zap.Logger
	afterChange func(ctx context.Context, u *domain.User)
}

func NewAccountAdmin(repo domain.UserRepository, opts ...Option) *AccountAdmin {
	o := buildOptions(opts)
	return &AccountAdmin{repo: repo, now: o.now, log: o.log}
}

// OnChange 提交成功后回调（如清理资料缓存）
func (a *AccountAdmin) OnChange(fn func(ctx context.Context, u *domain.User)) { a.afterChange = fn }

func (a *AccountAdmin) Deactivate(ctx context.Context, email string) (*domain.User, error) {
	return a.mutate(ctx, "deactivate", email, func(u *domain.User) { u.IsActive = false })
}

func (a *AccountAdmin) Activate(ctx context.Context, email string) (*domain.User, error) {
	return a.mutate(ctx, "activate", email, func(u *domain.User) { u.IsActive = true })
}

func (a *AccountAdmin) Unlock(ctx context.Context, email string) (*domain.User, error) {
	return a.mutate(ctx, "unlock", email, func(u *domain.User) {
		u.LockedUntil = nil
		u.LoginAttempts = 0
	})
}

func (a *AccountAdmin) List(ctx context.Context, offset, limit int) ([]domain.User, int64, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return a.repo.List(ctx, offset, limit)
}

func (a *AccountAdmin) mutate(ctx context.Context, op, email string, fn func(u *domain.User)) (*domain.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, ErrInvalidInput
	}
	uow, err := a.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: begin: %w", op, err)
	}
	defer func() { _ = uow.Rollback() }()

	u, err := uow.FindByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("%s: lookup: %w", op, err)
	}
	if u == nil {
		return nil, ErrAccountNotFound
	}
	fn(u)
	u.UpdatedAt = a.now().UTC()
	if err := uow.Update(u); err != nil {
		return nil, fmt.Errorf("%s: update: %w", op, err)
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}
	a.log.Info("account "+op, zap.String("user_id", u.ID))
	if a.afterChange != nil {
		a.afterChange(ctx, u)
	}
	return u, nil
}
