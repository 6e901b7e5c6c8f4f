package outbox

import "time"

type Status string

const (
	StatusPending Status = "pending" // 等待投递（含退避等待中）
	StatusFailed  Status = "failed"  // 永久失败，等用户手动重试
)

// MaxAge 超过这个年龄的未投递消息视为被放弃，清扫时静默删除。
const MaxAge = 7 * 24 * time.Hour

// Item 一条排队待发的消息。投递成功即从存储删除，不存在第三种状态。
// 以 ClientMsgID 为键，同一 id 同时至多存在一条（替换语义）。
// 只有 Drainer 会改它；UI 只 enqueue 和读。
type Item struct {
	ClientMsgID    string    `json:"clientMessageId"` // 幂等键，创建后不变
	FromUserID     string    `json:"fromUserId"`
	ToID           string    `json:"toId"`
	ConversationID string    `json:"conversationId,omitempty"` // 空 = legacy/未分会话
	Content        string    `json:"content"`                  // 已 trim，非空
	CreatedAt      time.Time `json:"createdAt"`                // 客户端时钟，创建时定格；既是权威发送时间也是过期依据
	AttemptCount   int       `json:"attemptCount"`             // 每次失败的尝试 +1
	NextAttemptAt  time.Time `json:"nextAttemptAt"`            // 未到点不尝试
	Status         Status    `json:"status"`
	LastError      string    `json:"lastError,omitempty"` // 给 UI 看的最后一次失败原因
}

// Expired 是否超过 7 天年龄上限
func (it *Item) Expired(now time.Time) bool {
	return now.Sub(it.CreatedAt) > MaxAge
}

// Clock 可注入时钟，测试里推进虚拟时间。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// SystemClock 真实时钟
func SystemClock() Clock { return realClock{} }
