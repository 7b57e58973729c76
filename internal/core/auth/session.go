package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go-gin-gorm-auth/pkg/utils"
)

var (
	ErrInvalidSession = errors.New("invalid session")
	ErrSessionRevoked = errors.New("session revoked")
)

// RevocationStore 记录已吊销的会话 ID，ttl 到期后可自动清除
type RevocationStore interface {
	Revoke(ctx context.Context, id string, ttl time.Duration) error
	IsRevoked(ctx context.Context, id string) (bool, error)
}

type Session struct {
	ID        string    `json:"-"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Sessions 登录成功后签发会话；登出时吊销
type Sessions struct {
	JWT         *JWTer
	Revocations RevocationStore
}

func NewSessions(j *JWTer, rs RevocationStore) *Sessions {
	return &Sessions{JWT: j, Revocations: rs}
}

func (s *Sessions) IssueSession(_ context.Context, principalID, displayIdentity string) (*Session, error) {
	id := utils.NewID()
	tok, exp, err := s.JWT.Issue(id, principalID, displayIdentity)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}
	return &Session{ID: id, Token: tok, ExpiresAt: exp}, nil
}

// Validate 签名/过期/吊销都通过才返回 claims
func (s *Sessions) Validate(ctx context.Context, token string) (*Claims, error) {
	c, err := s.JWT.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	if c.ID == "" {
		return nil, ErrInvalidSession
	}
	revoked, err := s.Revocations.IsRevoked(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrSessionRevoked
	}
	return c, nil
}

// RevokeSession 已过期或已吊销的会话视为成功
func (s *Sessions) RevokeSession(ctx context.Context, token string) error {
	c, err := s.JWT.Parse(token)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	// 多留一个解析容差，避免 leeway 窗口内复活
	ttl := c.ExpiresAt.Time.Sub(s.JWT.now()) + 60*time.Second
	return s.Revocations.Revoke(ctx, c.ID, ttl)
}

// MemoryRevocations 单实例部署或未配置 Redis 时使用
type MemoryRevocations struct {
	mu  sync.Mutex
	ids map[string]time.Time
	now func() time.Time
}

func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{ids: map[string]time.Time{}, now: time.Now}
}

func (m *MemoryRevocations) Revoke(_ context.Context, id string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, exp := range m.ids {
		if !exp.After(now) {
			delete(m.ids, k)
		}
	}
	m.ids[id] = now.Add(ttl)
	return nil
}

func (m *MemoryRevocations) IsRevoked(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.ids[id]
	return ok && exp.After(m.now()), nil
}
