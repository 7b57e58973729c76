package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"go-gin-gorm-auth/internal/domain"
	"go-gin-gorm-auth/pkg/utils"
)

const (
	DefaultMaxLoginAttempts = 5
	DefaultLockoutDuration  = 15 * time.Minute

	// bcrypt 只使用前 72 字节，超长直接拒绝
	maxPasswordBytes = 72
)

type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(pw, hashed string) bool
}

// Policy 锁定策略
type Policy struct {
	MaxLoginAttempts int
	LockoutDuration  time.Duration
}

func (p Policy) withDefaults() Policy {
	if p.MaxLoginAttempts <= 0 {
		p.MaxLoginAttempts = DefaultMaxLoginAttempts
	}
	if p.LockoutDuration <= 0 {
		p.LockoutDuration = DefaultLockoutDuration
	}
	return p
}

type Option func(*options)

type options struct {
	now func() time.Time
	log *zap.Logger
}

func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }
func WithLogger(l *zap.Logger) Option       { return func(o *options) { o.log = l } }

func buildOptions(opts []Option) options {
	o := options{now: time.Now, log: zap.NewNop()}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// AuthService 注册与登录；每次调用一个工作单元，读-改-写后提交。
// 不加进程内锁：注册唯一性靠唯一索引，并发失败计数允许丢失更新。
type AuthService struct {
	repo   domain.UserRepository
	hasher PasswordHasher
	policy Policy
	now    func() time.Time
	log    *zap.Logger
}

func NewAuthService(repo domain.UserRepository, hasher PasswordHasher, policy Policy, opts ...Option) *AuthService {
	o := buildOptions(opts)
	return &AuthService{
		repo:   repo,
		hasher: hasher,
		policy: policy.withDefaults(),
		now:    o.now,
		log:    o.log,
	}
}

func (s *AuthService) Policy() Policy { return s.policy }

// NormalizeEmail 账号唯一键
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) Register(ctx context.Context, email, password string) (*domain.User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" || len(password) > maxPasswordBytes {
		return nil, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return nil, canceled(ctx, err)
	}

	// bcrypt 在事务外执行，不占连接池
	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, s.fail(ctx, ErrRegistrationFailed, "register: hash", email, err)
	}

	uow, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, s.fail(ctx, ErrRegistrationFailed, "register: begin", email, err)
	}
	defer func() { _ = uow.Rollback() }()

	existing, err := uow.FindByEmail(email)
	if err != nil {
		return nil, s.fail(ctx, ErrRegistrationFailed, "register: lookup", email, err)
	}
	if existing != nil {
		return nil, ErrDuplicateAccount
	}

	now := s.now().UTC()
	u := &domain.User{
		ID:           utils.NewID(),
		Email:        email,
		PasswordHash: hashed,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// 预检之后仍可能并发插入，以唯一索引为准
	if err := uow.Insert(u); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, ErrDuplicateAccount
		}
		return nil, s.fail(ctx, ErrRegistrationFailed, "register: insert", email, err)
	}
	if err := uow.Commit(); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, ErrDuplicateAccount
		}
		return nil, s.fail(ctx, ErrRegistrationFailed, "register: commit", email, err)
	}
	s.log.Info("account registered", zap.String("user_id", u.ID))
	return u, nil
}

// Authenticate 顺序：查找 → 锁定 → 停用 → 校验密码。
// 未知邮箱与密码错误返回同一个错误。
// 校验密码在事务外进行；事务内重读账号并重新检查锁定，再写计数。
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	if err := ctx.Err(); err != nil {
		return nil, canceled(ctx, err)
	}

	snap, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, s.fail(ctx, ErrAuthenticationFailed, "authenticate: lookup", email, err)
	}
	if err := s.gate(snap, s.now().UTC()); err != nil {
		return nil, err
	}
	ok := s.hasher.Verify(password, snap.PasswordHash)

	uow, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, s.fail(ctx, ErrAuthenticationFailed, "authenticate: begin", email, err)
	}
	defer func() { _ = uow.Rollback() }()

	u, err := uow.FindByEmail(email)
	if err != nil {
		return nil, s.fail(ctx, ErrAuthenticationFailed, "authenticate: reload", email, err)
	}
	now := s.now().UTC()
	// 校验期间可能被并发的失败尝试锁定或被停用
	if err := s.gate(u, now); err != nil {
		return nil, err
	}
	if !ok || u.PasswordHash != snap.PasswordHash {
		return nil, s.recordFailure(ctx, uow, u, now)
	}

	u.LoginAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &now
	u.UpdatedAt = now
	if err := uow.Update(u); err != nil {
		return nil, s.fail(ctx, ErrAuthenticationFailed, "authenticate: update", email, err)
	}
	if err := uow.Commit(); err != nil {
		return nil, s.fail(ctx, ErrAuthenticationFailed, "authenticate: commit", email, err)
	}
	return u, nil
}

// gate 不存在 / 锁定中 / 已停用时拒绝；锁定期内不校验密码、不改计数
func (s *AuthService) gate(u *domain.User, now time.Time) error {
	switch {
	case u == nil:
		return ErrInvalidCredentials
	case u.IsLocked(now):
		return newLockedError(*u.LockedUntil, u.LockRemaining(now))
	case !u.IsActive:
		return ErrAccountDeactivated
	}
	return nil
}

// recordFailure 计数 +1；达到上限则锁定并清零
func (s *AuthService) recordFailure(ctx context.Context, uow domain.UserUnitOfWork, u *domain.User, now time.Time) error {
	u.LoginAttempts++
	var locked *LockedError
	if u.LoginAttempts >= s.policy.MaxLoginAttempts {
		until := now.Add(s.policy.LockoutDuration)
		u.LockedUntil = &until
		u.LoginAttempts = 0
		locked = newLockedError(until, s.policy.LockoutDuration)
	}
	u.UpdatedAt = now

	if err := uow.Update(u); err != nil {
		return s.fail(ctx, ErrAuthenticationFailed, "authenticate: record failure", u.Email, err)
	}
	if err := uow.Commit(); err != nil {
		return s.fail(ctx, ErrAuthenticationFailed, "authenticate: commit failure", u.Email, err)
	}
	if locked != nil {
		s.log.Warn("account locked",
			zap.String("user_id", u.ID),
			zap.Time("locked_until", locked.Until),
		)
		return locked
	}
	return ErrInvalidCredentials
}

// fail 意外错误只记日志，对外降级为通用错误
func (s *AuthService) fail(ctx context.Context, generic error, op, email string, err error) error {
	if isCanceled(ctx, err) {
		return canceled(ctx, err)
	}
	s.log.Error(op+" failed", zap.String("email", email), zap.Error(err))
	return generic
}
