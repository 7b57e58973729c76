package utils

import "github.com/google/uuid"

// NewID 用户 ID / 会话 jti
func NewID() string { return uuid.NewString() }
