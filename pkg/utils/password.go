package utils

import "golang.org/x/crypto/bcrypt"

// DefaultBcryptCost 交互式登录的默认工作因子
const DefaultBcryptCost = 12

// Hasher bcrypt 密码哈希；明文密码不落库、不打日志
type Hasher struct {
	Cost int
}

// NewHasher cost<=0 取默认值，并夹到 bcrypt 允许范围内
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = DefaultBcryptCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// Hash 每次调用随机盐，同一明文得到不同摘要
func (h *Hasher) Hash(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify 摘要格式非法时返回 false，不报错
func (h *Hasher) Verify(pw, hashed string) bool {
	if hashed == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(pw)) == nil
}
