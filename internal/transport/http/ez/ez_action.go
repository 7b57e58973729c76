package ez

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	mdw "go-gin-gorm-auth/internal/transport/http/middleware"
	resp "go-gin-gorm-auth/internal/transport/http/response"
)

type EZ struct{ g *gin.RouterGroup }

func New(g *gin.RouterGroup) EZ { return EZ{g: g} }

// 绑定方式
type Binder string

const (
	BindJSON  Binder = "json"  // 从 JSON 绑定
	BindQuery Binder = "query" // 从 URL ?a=b 绑定
	BindNone  Binder = "none"  // 不绑定，自己从 c.Param / c.PostForm 取
)

// 统一错误对象（配合 resp.ErrorData(int, msg, data)）
type AErr struct {
	Code int
	Msg  string
	Data any
	Err  error
}

func (e *AErr) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "action error"
}

func (e *AErr) Unwrap() error { return e.Err }

func BadRequest(msg string) error   { return &AErr{Code: resp.CodeBadRequest, Msg: msg} }
func Unauthorized(msg string) error { return &AErr{Code: resp.CodeUnauthorized, Msg: msg} }
func Forbidden(msg string) error    { return &AErr{Code: resp.CodeForbidden, Msg: msg} }
func NotFound(msg string) error     { return &AErr{Code: resp.CodeNotFound, Msg: msg} }
func Conflict(msg string) error     { return &AErr{Code: resp.CodeConflict, Msg: msg} }
func Canceled(err error) error {
	return &AErr{Code: resp.CodeCanceled, Msg: "request canceled", Err: err}
}
func Locked(msg string, data any) error {
	return &AErr{Code: resp.CodeLocked, Msg: msg, Data: data}
}

// Internal msg 返回给客户端，err 只进 gin 错误链（日志）
func Internal(msg string, err error) error {
	return &AErr{Code: resp.CodeServerError, Msg: msg, Err: err}
}

// 动作定义：I 入参，O 出参
type Action[I any, O any] struct {
	Method  string // "GET" | "POST" | "PUT" | "DELETE"
	Path    string // 例："/auth/login"
	Binder  Binder
	Auth    bool // 是否要求登录（检查 userId）
	Handler func(c *gin.Context, in *I) (O, error)
}

// write 写信封并记录业务码
func write(c *gin.Context, r resp.Resp) {
	c.Set(mdw.KeyRespCode, r.Code)
	c.JSON(http.StatusOK, r)
}

// toResp AErr 原样映射；其它错误只回通用 500，细节留在 c.Errors
func toResp(err error) resp.Resp {
	var ae *AErr
	if errors.As(err, &ae) {
		return resp.ErrorData(ae.Code, ae.Error(), ae.Data)
	}
	return resp.Error(resp.CodeServerError, "")
}

// RegisterAction 在当前 EZ 下注册动作接口
func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	h := func(c *gin.Context) {
		if a.Auth && c.GetString(mdw.KeyUserID) == "" {
			write(c, resp.Error(resp.CodeUnauthorized, "unauthorized"))
			return
		}

		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = c.ShouldBindJSON(&in)
		case BindQuery:
			bindErr = c.ShouldBindQuery(&in)
		default: // BindNone: 不绑定
		}
		if bindErr != nil {
			write(c, resp.Error(resp.CodeBadRequest, bindErr.Error()))
			return
		}

		out, err := a.Handler(c, &in)
		if err != nil {
			_ = c.Error(err)
			write(c, toResp(err))
			return
		}
		write(c, resp.OK(out))
	}

	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, h)
	case http.MethodPut:
		e.g.PUT(a.Path, h)
	case http.MethodDelete:
		e.g.DELETE(a.Path, h)
	default: // 默认 POST
		e.g.POST(a.Path, h)
	}
}
