package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTableNames(t *testing.T) {
	require.Equal(t, MessageTableName, (&Message{}).GetTableName())
	require.Equal(t, LastReadTableName, (&LastRead{}).GetTableName())
}

func TestSameImmutable(t *testing.T) {
	at := time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)
	base := func() *Message {
		return &Message{
			ID: "m1", FromID: "A", ToID: "B", Content: "hi",
			ConversationID: "santa_A_recipient_B", ClientMsgID: "m1",
			Timestamp: at,
		}
	}

	a, b := base(), base()
	require.True(t, a.SameImmutable(b))

	// Timestamp 不参与比较（重放时服务端会重新赋值）
	b.Timestamp = at.Add(time.Hour)
	require.True(t, a.SameImmutable(b))

	b = base()
	b.Content = "bye"
	require.False(t, a.SameImmutable(b))

	// ClientCreatedAt 按时间值比较，不比指针
	ca := at.Add(-time.Minute)
	cb := ca
	a.ClientCreatedAt, b = &ca, base()
	b.ClientCreatedAt = &cb
	require.True(t, a.SameImmutable(b))

	b.ClientCreatedAt = nil
	require.False(t, a.SameImmutable(b))

	var nilMsg *Message
	require.False(t, a.SameImmutable(nilMsg))
	require.True(t, nilMsg.SameImmutable(nil))
}
