// Package errors 定义业务错误码和错误处理
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind 错误类别，调用方据此区分处理方式
type Kind string

const (
	KindUnknown             Kind = "unknown"
	KindNotFound            Kind = "not_found"
	KindInvalidState        Kind = "invalid_state"
	KindValidation          Kind = "validation"
	KindConflict            Kind = "conflict"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindStore               Kind = "store"
	KindUnauthorized        Kind = "unauthorized"
)

// AppError 应用错误
type AppError struct {
	Code    int    `json:"code"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 实现 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 按错误码比较，WithMessage/WithError 派生出的错误仍与原错误相等
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New 创建新的应用错误
func New(code int, kind Kind, message string) *AppError {
	return &AppError{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
}

// WithMessage 修改错误消息
func (e *AppError) WithMessage(message string) *AppError {
	return &AppError{
		Code:    e.Code,
		Kind:    e.Kind,
		Message: message,
		Err:     e.Err,
	}
}

// WithMessagef 格式化错误消息
func (e *AppError) WithMessagef(format string, args ...interface{}) *AppError {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// WithError 添加原始错误
func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:    e.Code,
		Kind:    e.Kind,
		Message: e.Message,
		Err:     err,
	}
}

// 通用错误码 (1000-1999)
var (
	ErrUnknown         = New(1000, KindUnknown, "未知错误")
	ErrInvalidParams   = New(1001, KindValidation, "参数错误")
	ErrNotFound        = New(1002, KindNotFound, "资源不存在")
	ErrAlreadyExists   = New(1003, KindConflict, "资源已存在")
	ErrDatabaseError   = New(1004, KindStore, "数据库错误")
	ErrCacheError      = New(1005, KindStore, "缓存错误")
	ErrInternalError   = New(1006, KindUnknown, "内部错误")
	ErrStoreTimeout    = New(1007, KindStore, "数据库操作超时")
	ErrOperationFailed = New(1009, KindUnknown, "操作失败")
)

// 认证错误码 (2000-2999)
var (
	ErrUnauthorized     = New(2000, KindUnauthorized, "未登录")
	ErrTokenExpired     = New(2001, KindUnauthorized, "登录已过期")
	ErrTokenInvalid     = New(2002, KindUnauthorized, "无效的令牌")
	ErrPermissionDenied = New(2004, KindUnauthorized, "权限不足")
)

// 推广员错误码 (3000-3999)
var (
	ErrAffiliateNotFound     = New(3000, KindNotFound, "推广员不存在")
	ErrAffiliateStatus       = New(3001, KindInvalidState, "推广员状态不允许该操作")
	ErrAffiliateNotActive    = New(3002, KindInvalidState, "推广员未激活")
	ErrReferralCodeExists    = New(3003, KindConflict, "推广码已存在")
	ErrReferralNotFound      = New(3004, KindNotFound, "推广链接不存在")
	ErrCustomerReferred      = New(3005, KindConflict, "该客户已绑定推广员")
	ErrReferralCodeExhausted = New(3006, KindConflict, "生成推广码失败，请重试")
)

// 佣金错误码 (4000-4999)
var (
	ErrCommissionNotFound = New(4000, KindNotFound, "佣金记录不存在")
	ErrCommissionExists   = New(4001, KindConflict, "该订单已生成佣金")
	ErrCommissionStatus   = New(4002, KindInvalidState, "佣金状态不允许该操作")
	ErrOrderAmountInvalid = New(4003, KindValidation, "订单金额无效")
)

// 提现错误码 (5000-5999)
var (
	ErrPayoutNotFound          = New(5000, KindNotFound, "提现记录不存在")
	ErrPayoutDetailsMissing    = New(5001, KindValidation, "未配置收款信息，请先完善收款方式")
	ErrBalanceInsufficient     = New(5002, KindInsufficientBalance, "可提现余额不足")
	ErrPayoutAmountInvalid     = New(5003, KindValidation, "提现金额无效")
	ErrPayoutMethodUnsupported = New(5004, KindValidation, "不支持的提现方式")
)

// IsAppError 判断是否为应用错误
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetAppError 获取应用错误
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrUnknown.WithError(err)
}

// KindOf 返回错误类别，非应用错误归为 unknown
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// IsKind 判断错误是否属于指定类别
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
