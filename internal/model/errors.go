// Package model 提供领域数据模型与统一错误分类
package model

import (
	"errors"
	"fmt"
)

// ErrorKind 错误类别
type ErrorKind string

const (
	KindNotFound        ErrorKind = "not_found"        // 资源不存在
	KindInvalidArgument ErrorKind = "invalid_argument" // 参数错误
	KindUnsupported     ErrorKind = "unsupported"      // 不支持的类型或配置
	KindProvider        ErrorKind = "provider"         // 外部服务错误
	KindRateLimited     ErrorKind = "rate_limited"     // 外部服务限流
	KindMalformed       ErrorKind = "malformed"        // 响应格式错误
	KindExhausted       ErrorKind = "exhausted"        // 重试次数耗尽
	KindInternal        ErrorKind = "internal"         // 内部错误
)

// ErrNotFound 通用的不存在错误
var ErrNotFound = errors.New("not found")

// OpError 带操作上下文和类别的错误
type OpError struct {
	Op   string
	Kind ErrorKind
	Path string
	Err  error
}

// Error 实现 error 接口
func (e *OpError) Error() string {
	if e == nil {
		return "<nil>"
	}
	base := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Path != "" {
		base += " (" + e.Path + ")"
	}
	if e.Err != nil {
		base += ": " + e.Err.Error()
	}
	return base
}

// Unwrap 返回底层错误
func (e *OpError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError 创建 OpError
func NewError(op string, kind ErrorKind, err error) *OpError {
	return &OpError{Op: op, Kind: kind, Err: err}
}

// IsKind 判断错误链中是否包含指定类别
func IsKind(err error, kind ErrorKind) bool {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Kind == kind
	}
	return false
}

// KindOf 返回错误类别，非 OpError 视为内部错误
func KindOf(err error) ErrorKind {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return KindInternal
}
