package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"go-gin-gorm-auth/internal/core/auth"
	"go-gin-gorm-auth/internal/domain"
	"go-gin-gorm-auth/internal/service"
	httpez "go-gin-gorm-auth/internal/transport/http/ez"
	mdw "go-gin-gorm-auth/internal/transport/http/middleware"
)

type Authenticator interface {
	Register(ctx context.Context, email, password string) (*domain.User, error)
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
}

type SessionManager interface {
	mdw.SessionValidator
	IssueSession(ctx context.Context, principalID, displayIdentity string) (*auth.Session, error)
	RevokeSession(ctx context.Context, token string) error
}

type ProfileReader interface {
	Get(ctx context.Context, id string) (*domain.User, error)
	Invalidate(ctx context.Context, id string)
}

type CookieOptions struct {
	Name   string
	Secure bool
}

var (
	loginResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "auth_login_results_total", Help: "Login attempts by outcome"},
		[]string{"result"},
	)
	registerResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "auth_register_results_total", Help: "Registrations by outcome"},
		[]string{"result"},
	)
)

func init() { prometheus.MustRegister(loginResults, registerResults) }

// AuthHandler /auth/* 与 /me
type AuthHandler struct {
	svc      Authenticator
	sessions SessionManager
	profiles ProfileReader
	cookie   CookieOptions
	log      *zap.Logger

	// /auth 入口每 IP 限速
	AuthRPS   rate.Limit
	AuthBurst int
}

func NewAuthHandler(svc Authenticator, sessions SessionManager, profiles ProfileReader, cookie CookieOptions, l *zap.Logger) *AuthHandler {
	if l == nil {
		l = zap.NewNop()
	}
	if cookie.Name == "" {
		cookie.Name = "session"
	}
	return &AuthHandler{
		svc: svc, sessions: sessions, profiles: profiles, cookie: cookie, log: l,
		AuthRPS: 2, AuthBurst: 20,
	}
}

func (h *AuthHandler) Priority() int { return 10 }

type credentialsIn struct {
	Email    string `json:"email"`
	Password string `json:"password" binding:"max=1024"`
}

type userOut struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	IsActive    bool       `json:"isActive"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func toUserOut(u *domain.User) userOut {
	return userOut{ID: u.ID, Email: u.Email, IsActive: u.IsActive, LastLoginAt: u.LastLoginAt, CreatedAt: u.CreatedAt}
}

type registerOut struct {
	User userOut `json:"user"`
}

type loginOut struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      userOut   `json:"user"`
}

type lockedData struct {
	RemainingMinutes int       `json:"remainingMinutes"`
	LockedUntil      time.Time `json:"lockedUntil"`
}

func (h *AuthHandler) MountAPI(api *gin.RouterGroup) {
	pub := httpez.New(api.Group("/auth", mdw.RateLimitPerIP(h.AuthRPS, h.AuthBurst)))
	authed := httpez.New(api.Group("", mdw.AuthSession(h.sessions, h.cookie.Name)))

	httpez.RegisterAction(pub, httpez.Action[credentialsIn, registerOut]{
		Method:  http.MethodPost,
		Path:    "/register",
		Binder:  httpez.BindJSON,
		Handler: h.register,
	})
	httpez.RegisterAction(pub, httpez.Action[credentialsIn, loginOut]{
		Method:  http.MethodPost,
		Path:    "/login",
		Binder:  httpez.BindJSON,
		Handler: h.login,
	})
	httpez.RegisterAction(authed, httpez.Action[struct{}, struct{}]{
		Method:  http.MethodPost,
		Path:    "/auth/logout",
		Binder:  httpez.BindNone,
		Auth:    true,
		Handler: h.logout,
	})
	httpez.RegisterAction(authed, httpez.Action[struct{}, userOut]{
		Method:  http.MethodGet,
		Path:    "/me",
		Binder:  httpez.BindNone,
		Auth:    true,
		Handler: h.me,
	})
}

func (h *AuthHandler) register(c *gin.Context, in *credentialsIn) (registerOut, error) {
	u, err := h.svc.Register(c.Request.Context(), in.Email, in.Password)
	if err != nil {
		result, aerr := registerError(err)
		registerResults.WithLabelValues(result).Inc()
		return registerOut{}, aerr
	}
	registerResults.WithLabelValues("success").Inc()
	return registerOut{User: toUserOut(u)}, nil
}

func registerError(err error) (string, error) {
	switch {
	case errors.Is(err, service.ErrOperationCanceled):
		return "canceled", httpez.Canceled(err)
	case errors.Is(err, service.ErrInvalidInput):
		return "invalid", httpez.BadRequest(err.Error())
	case errors.Is(err, service.ErrDuplicateAccount):
		return "duplicate", httpez.Conflict(err.Error())
	default:
		return "error", httpez.Internal(service.ErrRegistrationFailed.Error(), err)
	}
}

func (h *AuthHandler) login(c *gin.Context, in *credentialsIn) (loginOut, error) {
	ctx := c.Request.Context()
	u, err := h.svc.Authenticate(ctx, in.Email, in.Password)
	if err != nil {
		result, aerr := loginError(err)
		loginResults.WithLabelValues(result).Inc()
		return loginOut{}, aerr
	}

	s, err := h.sessions.IssueSession(ctx, u.ID, u.Email)
	if err != nil {
		loginResults.WithLabelValues("error").Inc()
		return loginOut{}, httpez.Internal("issue session failed", err)
	}
	// 登录会改 lastLoginAt / 计数器，旧资料作废
	h.profiles.Invalidate(ctx, u.ID)
	h.setCookie(c, s.Token, time.Until(s.ExpiresAt))
	loginResults.WithLabelValues("success").Inc()
	return loginOut{Token: s.Token, ExpiresAt: s.ExpiresAt, User: toUserOut(u)}, nil
}

func loginError(err error) (string, error) {
	var le *service.LockedError
	switch {
	case errors.Is(err, service.ErrOperationCanceled):
		return "canceled", httpez.Canceled(err)
	case errors.As(err, &le):
		return "locked", httpez.Locked(le.Error(), lockedData{RemainingMinutes: le.RemainingMinutes, LockedUntil: le.Until})
	case errors.Is(err, service.ErrAccountDeactivated):
		return "deactivated", httpez.Forbidden(err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		return "invalid_credentials", httpez.Unauthorized(err.Error())
	default:
		return "error", httpez.Internal(service.ErrAuthenticationFailed.Error(), err)
	}
}

func (h *AuthHandler) logout(c *gin.Context, _ *struct{}) (struct{}, error) {
	if err := h.sessions.RevokeSession(c.Request.Context(), c.GetString(mdw.KeyToken)); err != nil {
		if errors.Is(err, auth.ErrInvalidSession) {
			return struct{}{}, httpez.Unauthorized("invalid token")
		}
		return struct{}{}, httpez.Internal("logout failed", err)
	}
	h.setCookie(c, "", -time.Second)
	h.log.Debug("session revoked", zap.String("user_id", c.GetString(mdw.KeyUserID)))
	return struct{}{}, nil
}

func (h *AuthHandler) me(c *gin.Context, _ *struct{}) (userOut, error) {
	u, err := h.profiles.Get(c.Request.Context(), c.GetString(mdw.KeyUserID))
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return userOut{}, httpez.Canceled(err)
	case err != nil:
		return userOut{}, httpez.Internal("load profile failed", err)
	case u == nil:
		return userOut{}, httpez.NotFound("user not found")
	case !u.IsActive:
		return userOut{}, httpez.Forbidden(service.ErrAccountDeactivated.Error())
	}
	return toUserOut(u), nil
}

// setCookie maxAge <= 0 时删除 cookie
func (h *AuthHandler) setCookie(c *gin.Context, value string, maxAge time.Duration) {
	secs := int(maxAge.Seconds())
	if maxAge <= 0 {
		secs = -1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, value, secs, "/", "", h.cookie.Secure, true)
}
