package model

import (
	"errors"
	"fmt"
)

// 业务错误定义
//
// HTTP 状态码映射：
//   - ErrInvalidURL         → 400
//   - ErrUnauthenticated    → 401
//   - ErrForbidden          → 403
//   - ErrNotFound           → 404
//   - ErrDuplicateConflict  → 409
//   - ErrCollisionExhausted → 503，调用方可以稍后重试
var (
	ErrInvalidURL         = errors.New("invalid url")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("short link not found")
	ErrDuplicateConflict  = errors.New("url has already been shortened")
	ErrCollisionExhausted = errors.New("could not reserve a unique short code, try again")
)

// DuplicateError 携带已存在的记录，方便调用方定位
type DuplicateError struct {
	Existing *ShortLink
}

func (e *DuplicateError) Error() string {
	if e.Existing == nil {
		return ErrDuplicateConflict.Error()
	}
	return fmt.Sprintf("%s: id=%d code=%s", ErrDuplicateConflict, e.Existing.ID, e.Existing.ShortCode)
}

func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicateConflict
}
