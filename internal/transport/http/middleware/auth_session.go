package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"go-gin-gorm-auth/internal/core/auth"
	resp "go-gin-gorm-auth/internal/transport/http/response"
)

const (
	KeyUserID = "userId"
	KeyEmail  = "email"
	KeyClaims = "claims"
	KeyToken  = "token"
)

type SessionValidator interface {
	Validate(ctx context.Context, token string) (*auth.Claims, error)
}

// BearerOrCookie 先取 Authorization: Bearer，再取会话 cookie
func BearerOrCookie(c *gin.Context, cookieName string) string {
	if ah := c.GetHeader("Authorization"); strings.HasPrefix(ah, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(ah, "Bearer "))
	}
	if cookieName != "" {
		if v, err := c.Cookie(cookieName); err == nil {
			return v
		}
	}
	return ""
}

func AuthSession(v SessionValidator, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := BearerOrCookie(c, cookieName)
		if tok == "" {
			Abort(c, resp.CodeUnauthorized, "missing token")
			return
		}
		claims, err := v.Validate(c.Request.Context(), tok)
		switch {
		case err == nil:
		case errors.Is(err, auth.ErrSessionRevoked):
			Abort(c, resp.CodeUnauthorized, "session revoked")
			return
		case errors.Is(err, auth.ErrInvalidSession):
			Abort(c, resp.CodeUnauthorized, "invalid token")
			return
		default:
			// 吊销表不可用：拒绝而不是放行
			_ = c.Error(err)
			Abort(c, resp.CodeServerError, "session check failed")
			return
		}
		c.Set(KeyClaims, claims)
		c.Set(KeyUserID, claims.UID)
		c.Set(KeyEmail, claims.Email)
		c.Set(KeyToken, tok)
		c.Next()
	}
}
