package readstate

import (
	"time"

	"SCProject/module/chat/conv"
	"SCProject/module/chat/model"
)

// DeriveUnread 从实时消息流推未读数：归属该会话（精确匹配，legacy
// 无会话ID的老消息永远计入，避免悄悄藏掉历史数据）、不是自己发的、
// 且时间在水位之后。纯函数，消息流或水位一变就重算，不走定时器。
//
// legacy 消息会同时计入一对用户的两个会话，可能双算。历史数据
// 拆不出方向，已知歧义，按显示优先处理。
func DeriveUnread(msgs []model.Message, userID, conversationID string, watermark time.Time) int {
	n := 0
	for i := range msgs {
		m := &msgs[i]
		if !conv.MatchesConversation(m, conversationID) {
			continue
		}
		if m.FromID == userID {
			continue
		}
		if m.Timestamp.After(watermark) {
			n++
		}
	}
	return n
}
