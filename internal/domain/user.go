package domain

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateEmail 唯一索引冲突（以数据库约束为准）
var ErrDuplicateEmail = errors.New("email already exists")

type User struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	Email         string     `gorm:"uniqueIndex;size:191;not null" json:"email"` // 已小写
	PasswordHash  string     `gorm:"size:100;not null" json:"-"`
	IsActive      bool       `gorm:"not null" json:"isActive"`
	LoginAttempts int        `gorm:"not null" json:"-"`
	LockedUntil   *time.Time `json:"lockedUntil,omitempty"`
	LastLoginAt   *time.Time `json:"lastLoginAt,omitempty"`
	// 时间戳由服务层用注入的时钟写入，关闭 gorm 自动填充
	CreatedAt time.Time `gorm:"autoCreateTime:false" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false" json:"updatedAt"`
}

func (User) TableName() string { return "users" }

// IsLocked lockedUntil <= now 即视为已解锁，无需写库
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// LockRemaining 剩余锁定时长；未锁定返回 0
func (u *User) LockRemaining(now time.Time) time.Duration {
	if !u.IsLocked(now) {
		return 0
	}
	return u.LockedUntil.Sub(now)
}

// UserUnitOfWork 一次读-改-写；Commit 之前的写入对其他读者不保证可见
type UserUnitOfWork interface {
	FindByEmail(email string) (*User, error) // 不存在返回 (nil, nil)
	Insert(u *User) error                    // 冲突返回 ErrDuplicateEmail
	Update(u *User) error                    // 按 id 全量覆盖可变字段
	Commit() error
	Rollback() error // Commit 之后调用无副作用
}

type UserRepository interface {
	Begin(ctx context.Context) (UserUnitOfWork, error)
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error) // 事务外只读快照
	List(ctx context.Context, offset, limit int) ([]User, int64, error)
}
