package service

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/bcrypt"

	"go-gin-gorm-auth/internal/domain"
	"go-gin-gorm-auth/pkg/utils"
)

// memUserRepo 写入在 Commit 时落盘；邮箱唯一性在 Insert 时占位，模拟唯一索引
type memUserRepo struct {
	mu       sync.Mutex
	byEmail  map[string]domain.User
	reserved map[string]bool

	beginErr  error
	findErr   error
	insertErr error
	updateErr error
	commitErr error

	commits atomic.Int32
	open    atomic.Int32 // 未结束的事务数
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byEmail: map[string]domain.User{}, reserved: map[string]bool{}}
}

func (r *memUserRepo) Begin(ctx context.Context) (domain.UserUnitOfWork, error) {
	if r.beginErr != nil {
		return nil, r.beginErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.open.Add(1)
	return &memTx{repo: r, ctx: ctx, pending: map[string]domain.User{}}, nil
}

func (r *memUserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, ok := r.get(email)
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *memUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byEmail {
		if u.ID == id {
			cp := u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) List(_ context.Context, offset, limit int) ([]domain.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]domain.User, 0, len(r.byEmail))
	for _, u := range r.byEmail {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Email < all[j].Email })
	total := int64(len(all))
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

// get 测试断言用：读取已提交状态
func (r *memUserRepo) get(email string) (domain.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byEmail[email]
	return u, ok
}

func (r *memUserRepo) put(u domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byEmail[u.Email] = u
}

func (r *memUserRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byEmail)
}

type memTx struct {
	repo     *memUserRepo
	ctx      context.Context
	pending  map[string]domain.User
	inserted []string
	done     bool
}

func (t *memTx) FindByEmail(email string) (*domain.User, error) {
	if t.repo.findErr != nil {
		return nil, t.repo.findErr
	}
	if err := t.ctx.Err(); err != nil {
		return nil, err
	}
	u, ok := t.repo.get(email)
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (t *memTx) Insert(u *domain.User) error {
	if t.repo.insertErr != nil {
		return t.repo.insertErr
	}
	if err := t.ctx.Err(); err != nil {
		return err
	}
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	if _, ok := t.repo.byEmail[u.Email]; ok || t.repo.reserved[u.Email] {
		return domain.ErrDuplicateEmail
	}
	t.repo.reserved[u.Email] = true
	t.inserted = append(t.inserted, u.Email)
	t.pending[u.Email] = *u
	return nil
}

func (t *memTx) Update(u *domain.User) error {
	if t.repo.updateErr != nil {
		return t.repo.updateErr
	}
	if err := t.ctx.Err(); err != nil {
		return err
	}
	t.pending[u.Email] = *u
	return nil
}

func (t *memTx) Commit() error {
	if t.repo.commitErr != nil {
		return t.repo.commitErr
	}
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	for email, u := range t.pending {
		t.repo.byEmail[email] = u
	}
	for _, e := range t.inserted {
		delete(t.repo.reserved, e)
	}
	t.done = true
	t.repo.open.Add(-1)
	t.repo.commits.Add(1)
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.repo.open.Add(-1)
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	for _, e := range t.inserted {
		delete(t.repo.reserved, e)
	}
	t.pending = nil
	return nil
}

// countingHasher 统计 Verify 调用次数；onCall 在每次 Hash/Verify 前调用
type countingHasher struct {
	inner    *utils.Hasher
	verifies atomic.Int32
	hashErr  error
	onCall   func()
}

func newCountingHasher() *countingHasher {
	return &countingHasher{inner: utils.NewHasher(bcrypt.MinCost)}
}

func (h *countingHasher) Hash(pw string) (string, error) {
	if h.onCall != nil {
		h.onCall()
	}
	if h.hashErr != nil {
		return "", h.hashErr
	}
	return h.inner.Hash(pw)
}

func (h *countingHasher) Verify(pw, hashed string) bool {
	if h.onCall != nil {
		h.onCall()
	}
	h.verifies.Add(1)
	return h.inner.Verify(pw, hashed)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
