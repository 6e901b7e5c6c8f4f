package model

import (
	"time"
)

const MessageTableName = "message"

// Message 服务端持久化的一条聊天消息。
//
// 创建后不可变：Id/FromID/ToID/Content/ConversationID/ClientMsgID/ClientCreatedAt
// 永不修改；Timestamp 在创建时赋值一次（服务端发送时间），之后不再更新。
// 只由幂等写入服务创建，永不 update，删除仅发生在整库重置（范围外）。
//
// ID 等于 ClientMsgID（客户端给了的话），否则服务端生成；Content 已 trim、非空；
// ConversationID 为空表示 legacy 消息（早于会话拆分）；ClientCreatedAt 是
// 客户端本地时钟，与服务端的 Timestamp 分开保存。
type Message struct {
	ID              string     `bson:"_id" json:"id"`
	FromID          string     `bson:"from_id" json:"fromId"`
	ToID            string     `bson:"to_id" json:"toId"`
	Content         string     `bson:"content" json:"content"`
	Timestamp       time.Time  `bson:"timestamp" json:"timestamp"`
	ConversationID  string     `bson:"conversation_id,omitempty" json:"conversationId,omitempty"`
	ClientMsgID     string     `bson:"client_msg_id,omitempty" json:"clientMessageId,omitempty"`
	ClientCreatedAt *time.Time `bson:"client_created_at,omitempty" json:"clientCreatedAt,omitempty"`
}

func (m *Message) GetTableName() string {
	return MessageTableName
}

// SameImmutable 逐字段比较不可变部分（重放检测用；Timestamp 不参与）。
func (m *Message) SameImmutable(o *Message) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.ID != o.ID || m.FromID != o.FromID || m.ToID != o.ToID ||
		m.Content != o.Content || m.ConversationID != o.ConversationID ||
		m.ClientMsgID != o.ClientMsgID {
		return false
	}
	switch {
	case m.ClientCreatedAt == nil && o.ClientCreatedAt == nil:
		return true
	case m.ClientCreatedAt == nil || o.ClientCreatedAt == nil:
		return false
	default:
		return m.ClientCreatedAt.Equal(*o.ClientCreatedAt)
	}
}
