package errs

import "net/http"

// ===== 业务错误码 =====
//
// 1xxx 入参校验；11xx 鉴权；12xx 冲突；13xx 存储；14xx 部署/配置。
const (
	CodeInvalidPayload = 1001 // 内容为空/字段缺失
	CodeContentTooLong = 1002
	CodeBadMsgID       = 1003 // clientMessageId 不是合法 UUID v4
	CodeBadTimestamp   = 1004 // clientCreatedAt 不是 RFC3339

	CodeTokenMissing = 1101
	CodeTokenExpired = 1102
	CodeTokenInvalid = 1103
	CodeUserUnknown  = 1104 // 鉴权通过但不是已知用户

	CodeIDConflict = 1201 // 同一 id 不同内容

	CodeStoreTransient = 1301 // 存储瞬时错误（可重试）
	CodeStoreFailed    = 1302 // 重试耗尽/不可恢复

	CodeNotConfigured = 1401 // 服务未装配
)

var (
	ErrInvalidPayload = NewCodeError(CodeInvalidPayload, "invalid payload")
	ErrContentTooLong = NewCodeError(CodeContentTooLong, "content too long")
	ErrBadMsgID       = NewCodeError(CodeBadMsgID, "malformed client message id")
	ErrBadTimestamp   = NewCodeError(CodeBadTimestamp, "malformed client timestamp")

	ErrTokenMissing = NewCodeError(CodeTokenMissing, "token missing")
	ErrTokenExpired = NewCodeError(CodeTokenExpired, "token expired")
	ErrTokenInvalid = NewCodeError(CodeTokenInvalid, "token invalid")
	ErrUserUnknown  = NewCodeError(CodeUserUnknown, "unknown user")

	ErrIDConflict = NewCodeError(CodeIDConflict, "message id conflict")

	ErrStoreTransient = NewCodeError(CodeStoreTransient, "storage transient failure")
	ErrStoreFailed    = NewCodeError(CodeStoreFailed, "storage write failed")

	ErrNotConfigured = NewCodeError(CodeNotConfigured, "service not configured")
)

// HTTPStatusOf 业务码 → HTTP 状态码（发送端点响应用）
func HTTPStatusOf(code int) int {
	switch code {
	case CodeInvalidPayload, CodeContentTooLong, CodeBadMsgID, CodeBadTimestamp:
		return http.StatusBadRequest
	case CodeTokenMissing, CodeTokenExpired, CodeTokenInvalid:
		return http.StatusUnauthorized
	case CodeUserUnknown:
		return http.StatusForbidden
	case CodeIDConflict:
		return http.StatusConflict
	case CodeNotConfigured:
		return http.StatusServiceUnavailable
	case CodeStoreTransient, CodeStoreFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
