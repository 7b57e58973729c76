package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// 预期内的失败，handler 负责映射成响应码
var (
	ErrInvalidInput         = errors.New("email and password are required")
	ErrDuplicateAccount     = errors.New("an account with this email already exists")
	ErrRegistrationFailed   = errors.New("registration failed")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrAccountLocked        = errors.New("account locked")
	ErrAccountDeactivated   = errors.New("account deactivated")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrAccountNotFound      = errors.New("account not found")

	// ErrOperationCanceled 调用方取消/超时；既不是成功也不是凭据错误
	ErrOperationCanceled = errors.New("operation canceled")
)

// LockedError errors.Is(err, ErrAccountLocked) 为 true
type LockedError struct {
	Until            time.Time
	RemainingMinutes int
}

// newLockedError remaining 按分钟向上取整，锁定中至少 1
func newLockedError(until time.Time, remaining time.Duration) *LockedError {
	mins := int(math.Ceil(remaining.Minutes()))
	if mins < 1 {
		mins = 1
	}
	return &LockedError{Until: until, RemainingMinutes: mins}
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked, try again in %d minute(s)", e.RemainingMinutes)
}

func (e *LockedError) Is(target error) bool { return target == ErrAccountLocked }

func isCanceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func canceled(ctx context.Context, err error) error {
	cause := ctx.Err()
	if cause == nil {
		cause = err
	}
	return fmt.Errorf("%w: %w", ErrOperationCanceled, cause)
}
