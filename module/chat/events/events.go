// Package events 定义实时流上的 subject 约定与事件编解码。
// 服务端写入成功后发布，客户端同步器订阅。
package events

import (
	"encoding/json"
	"time"

	"SCProject/module/chat/model"
	"SCProject/service/natsx"
)

// MsgSubject 某个会话的新消息事件。legacy 消息没有会话ID，走专门 subject。
func MsgSubject(conversationID string) string {
	if conversationID == "" {
		return "im.msg.legacy"
	}
	return "im.msg." + conversationID
}

// ReadSubject 某用户在某会话的已读水位变更事件（跨设备同步用）。
func ReadSubject(userID, conversationID string) string {
	return "im.read." + userID + "." + conversationID
}

// ReadEvent 水位变更。ReadAt 容忍多种表示（RFC3339 字符串 / Unix ms），
// 消费方用 NormalizeStamp 归一。
type ReadEvent struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
	ReadAt         any    `json:"readAt"`
}

func PublishMessage(s natsx.Stream, m *model.Message) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.Publish(MsgSubject(m.ConversationID), b)
}

func DecodeMessage(data []byte) (*model.Message, error) {
	var m model.Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func PublishRead(s natsx.Stream, userID, conversationID string, readAt time.Time) error {
	b, err := json.Marshal(ReadEvent{
		UserID:         userID,
		ConversationID: conversationID,
		ReadAt:         readAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}
	return s.Publish(ReadSubject(userID, conversationID), b)
}

func DecodeRead(data []byte) (*ReadEvent, error) {
	var e ReadEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
