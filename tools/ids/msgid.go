package ids

import (
	"github.com/google/uuid"
)

// NewMsgID 生成客户端消息幂等ID（UUID v4）
func NewMsgID() string {
	return uuid.NewString()
}

// ValidMsgID 校验外部调用方传入的 clientMessageId：必须是标准
// 36 字符形态的 v4 UUID（uuid.Parse 还认花括号/无连字符等变体，这里不收）。
// Drainer 自己生成的 id 不走这里。
func ValidMsgID(s string) bool {
	if len(s) != 36 {
		return false
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	return u.Version() == 4
}
