package conv

import (
	"testing"
	"time"

	"SCProject/module/chat/model"

	"github.com/stretchr/testify/require"
)

func msg(id, from, to, convID string, at time.Time) model.Message {
	return model.Message{ID: id, FromID: from, ToID: to, ConversationID: convID, Timestamp: at}
}

func TestConversationIDDirectional(t *testing.T) {
	ab := ConversationID("A", "B")
	ba := ConversationID("B", "A")
	require.Equal(t, "santa_A_recipient_B", ab)
	require.Equal(t, "santa_B_recipient_A", ba)
	require.NotEqual(t, ab, ba)
	// 同入参永远同结果
	require.Equal(t, ab, ConversationID("A", "B"))
}

func TestIsLegacy(t *testing.T) {
	legacy := msg("1", "A", "B", "", time.Now())
	scoped := msg("2", "A", "B", ConversationID("A", "B"), time.Now())
	require.True(t, IsLegacy(&legacy))
	require.False(t, IsLegacy(&scoped))
}

func TestLegacyMatchesBothConversations(t *testing.T) {
	legacy := msg("1", "A", "B", "", time.Now())
	require.True(t, MatchesConversation(&legacy, ConversationID("A", "B")))
	require.True(t, MatchesConversation(&legacy, ConversationID("B", "A")))
}

func TestFilterForConversation(t *testing.T) {
	base := time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)
	ab := ConversationID("A", "B")
	ba := ConversationID("B", "A")

	msgs := []model.Message{
		msg("m2", "B", "A", ab, base.Add(2*time.Minute)),
		msg("m1", "A", "B", ab, base),
		msg("m3", "A", "B", ba, base.Add(time.Minute)), // 另一个方向的会话
		msg("m4", "A", "C", ab, base),                  // 参与者不对
	}

	got := FilterForConversation(msgs, "A", "B", ab)
	require.Len(t, got, 2)
	require.Equal(t, "m1", got[0].ID)
	require.Equal(t, "m2", got[1].ID)
}

func TestFilterIncludesLegacy(t *testing.T) {
	base := time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)
	ab := ConversationID("A", "B")

	msgs := []model.Message{
		msg("new", "A", "B", ab, base.Add(time.Hour)),
		msg("old", "B", "A", "", base),
	}
	got := FilterForConversation(msgs, "A", "B", ab)
	require.Len(t, got, 2)
	require.Equal(t, "old", got[0].ID)
	require.Equal(t, "new", got[1].ID)
}

func TestFilterStableOnEqualTimestamps(t *testing.T) {
	at := time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)
	ab := ConversationID("A", "B")
	msgs := []model.Message{
		msg("x", "A", "B", ab, at),
		msg("y", "A", "B", ab, at),
	}
	got := FilterForConversation(msgs, "A", "B", ab)
	require.Equal(t, []string{got[0].ID, got[1].ID}, []string{"x", "y"})
}
