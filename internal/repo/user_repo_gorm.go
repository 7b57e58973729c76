package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"go-gin-gorm-auth/internal/domain"
)

type UserRepo struct{ db *gorm.DB }

func NewUserRepo(db *gorm.DB) *UserRepo { return &UserRepo{db: db} }

var _ domain.UserRepository = (*UserRepo)(nil)

// Begin 开启事务；ctx 取消会中断后续语句
func (r *UserRepo) Begin(ctx context.Context) (domain.UserUnitOfWork, error) {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &userTx{tx: tx}, nil
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return findByEmail(r.db.WithContext(ctx), email)
}

func (r *UserRepo) List(ctx context.Context, offset, limit int) ([]domain.User, int64, error) {
	var users []domain.User
	// Session 之后链可复用，Count 不会污染 Find
	tx := r.db.WithContext(ctx).Model(&domain.User{}).Session(&gorm.Session{})
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := tx.Offset(offset).Limit(limit).Order("created_at desc").Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

type userTx struct {
	tx   *gorm.DB
	done bool
}

func (t *userTx) FindByEmail(email string) (*domain.User, error) {
	return findByEmail(t.tx, email)
}

func findByEmail(db *gorm.DB, email string) (*domain.User, error) {
	var u domain.User
	err := db.First(&u, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (t *userTx) Insert(u *domain.User) error {
	if err := t.tx.Create(u).Error; err != nil {
		if isDupKey(err) {
			return domain.ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// Update Select("*") 保证零值（attempts=0、locked_until=NULL）也写回
func (t *userTx) Update(u *domain.User) error {
	return t.tx.Model(u).Select("*").Omit("id", "created_at").Updates(u).Error
}

func (t *userTx) Commit() error {
	t.done = true
	return t.tx.Commit().Error
}

func (t *userTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback().Error
}

func isDupKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// 驱动未开 TranslateError 时按消息兜底
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation")
}
