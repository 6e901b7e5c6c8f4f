// Package conv 负责会话ID的生成与消息归属判断。
//
// 同一对用户之间存在两个方向相反的会话：A 作为 santa 给 B 的，
// 和 B 作为 santa 给 A 的。会话ID带角色标记，交换两个参与者
// 得到的是另一个同样确定的ID。
package conv

import (
	"sort"

	"SCProject/module/chat/model"
)

// ConversationID santa 方向的会话ID，确定性拼接。
func ConversationID(santaID, recipientID string) string {
	return "santa_" + santaID + "_recipient_" + recipientID
}

// IsLegacy 没有会话ID的消息是拆分会话之前的历史数据。
// legacy 消息同时归属同一对用户之间的两个会话：历史数据拆不出方向，
// 宁可两边都显示也不能藏掉。
func IsLegacy(m *model.Message) bool {
	return m.ConversationID == ""
}

// betweenPair 消息的参与者恰好是 {a, b}（方向不限）
func betweenPair(m *model.Message, a, b string) bool {
	return (m.FromID == a && m.ToID == b) || (m.FromID == b && m.ToID == a)
}

// MatchesConversation 消息是否归属 target 会话：legacy 全匹配，否则精确匹配。
func MatchesConversation(m *model.Message, target string) bool {
	return IsLegacy(m) || m.ConversationID == target
}

// FilterForConversation 取出属于 target 会话的消息，按时间升序。
// 入参不被修改。
func FilterForConversation(msgs []model.Message, userA, userB, target string) []model.Message {
	out := make([]model.Message, 0, len(msgs))
	for i := range msgs {
		m := &msgs[i]
		if betweenPair(m, userA, userB) && MatchesConversation(m, target) {
			out = append(out, *m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
