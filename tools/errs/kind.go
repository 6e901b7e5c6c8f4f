package errs

import (
	"context"
	"errors"
	"net"
	"net/http"
)

// ErrorKind 是重试/分类逻辑前置的闭集归一化结果。
// 任何传输层错误形态（HTTP 状态码、驱动错误、net 错误、业务 CodeError）
// 都必须先映射进这个枚举，分类逻辑只看 Kind，不看原始错误。
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation          // 请求不合法，重试无意义
	KindAuthMissing         // 凭证缺失/拿不到，稍后再试
	KindAuthExpired         // 凭证过期，可刷新后原地重试一次
	KindForbidden           // 身份不被接受
	KindNotFound
	KindConflict    // 同 id 不同内容，永久失败
	KindRateLimited // 限流，退避后重试
	KindTransient   // 网络/超时/5xx/存储瞬时
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthMissing:
		return "auth_missing"
	case KindAuthExpired:
		return "auth_expired"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Retryable 报告该类错误是否允许自动退避重试。
// 永久类是闭集：validation / forbidden / not_found / conflict。
// 未知错误按瞬时处理（网络层的怪错误大多是瞬时的）。
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindValidation, KindForbidden, KindNotFound, KindConflict:
		return false
	default:
		return true
	}
}

// KindOfHTTPStatus HTTP 状态码 → ErrorKind
func KindOfHTTPStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuthExpired
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500:
		return KindTransient
	case status >= 400:
		return KindValidation
	default:
		return KindUnknown
	}
}

// KindError 传输边界归一化后的错误：只带 Kind 和原始描述。
// 客户端把 HTTP 状态/网络错误先折叠成它，分类逻辑统一走 KindOf。
type KindError struct {
	Kind ErrorKind
	Msg  string
}

func (e *KindError) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Msg
}

func NewKindError(kind ErrorKind, msg string) error {
	return &KindError{Kind: kind, Msg: msg}
}

// KindOf err 链 → ErrorKind。优先已归一化的 KindError，
// 其次业务 CodeError，最后 context/net。
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var kindErr *KindError
	if errors.As(err, &kindErr) {
		return kindErr.Kind
	}
	var codeErr *CodeError
	if errors.As(err, &codeErr) {
		switch codeErr.Code {
		case CodeInvalidPayload, CodeContentTooLong, CodeBadMsgID, CodeBadTimestamp:
			return KindValidation
		case CodeTokenMissing:
			return KindAuthMissing
		case CodeTokenExpired, CodeTokenInvalid:
			return KindAuthExpired
		case CodeUserUnknown:
			return KindForbidden
		case CodeIDConflict:
			return KindConflict
		case CodeStoreTransient, CodeStoreFailed, CodeNotConfigured:
			return KindTransient
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}
	return KindUnknown
}
