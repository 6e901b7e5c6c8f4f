package mongoutil

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

const (
	defaultMaxPoolSize = 100
	defaultMaxRetry    = 3
)

func (config *Config) ValidateAndSetDefaults() error {
	if config.MaxPoolSize <= 0 {
		config.MaxPoolSize = defaultMaxPoolSize
	}
	if config.MaxRetry <= 0 {
		config.MaxRetry = defaultMaxRetry
	}
	if config.AuthSource == "" {
		config.AuthSource = "admin"
	}
	return nil
}

// shouldRetry determines whether a connect error should trigger a retry.
func shouldRetry(ctx context.Context, err error) bool {
	select {
	case <-ctx.Done():
		return false
	default:
		var cmdErr mongo.CommandError
		if errors.As(err, &cmdErr) {
			// 13=Unauthorized 18=AuthenticationFailed，重试无意义
			return cmdErr.Code != 13 && cmdErr.Code != 18
		}
		return true
	}
}

// 瞬时类服务端错误码（可有限次重试整个写入）
// 6 HostUnreachable / 7 HostNotFound / 89 NetworkTimeout / 91 ShutdownInProgress
// 189 PrimarySteppedDown / 262 ExceededTimeLimit / 24 LockTimeout / 112 WriteConflict
var transientCodes = map[int32]struct{}{
	6: {}, 7: {}, 24: {}, 89: {}, 91: {}, 112: {}, 189: {}, 262: {},
}

// IsTransient reports whether err is an infrastructure hiccup worth
// retrying with bounded attempts: timeouts, network errors, retryable
// write labels and the transient server codes above. Duplicate key is
// never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if mongo.IsDuplicateKeyError(err) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return true
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		if cmdErr.HasErrorLabel("RetryableWriteError") || cmdErr.HasErrorLabel("TransientTransactionError") {
			return true
		}
		_, ok := transientCodes[cmdErr.Code]
		return ok
	}
	var wexc mongo.WriteException
	if errors.As(err, &wexc) {
		for _, we := range wexc.WriteErrors {
			if _, ok := transientCodes[int32(we.Code)]; ok {
				return true
			}
		}
	}
	return false
}
