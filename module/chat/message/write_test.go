package message

import (
	"context"
	"testing"
	"time"

	"SCProject/module/chat/conv"
	"SCProject/module/chat/model"
	"SCProject/tools/errs"

	"github.com/stretchr/testify/require"
)

func newTestService(repo Repo) *Service {
	s := NewService(repo)
	s.sleep = func(time.Duration) {} // 测试里不真睡
	return s
}

func draft(id, from, to, content string) *model.Message {
	return &model.Message{
		ID:             id,
		FromID:         from,
		ToID:           to,
		Content:        content,
		ConversationID: conv.ConversationID(from, to),
		ClientMsgID:    id,
	}
}

func TestWriteCreates(t *testing.T) {
	repo := NewMemRepo()
	svc := newTestService(repo)

	res, err := svc.Write(context.Background(), draft("id-1", "A", "B", "hi"))
	require.NoError(t, err)
	require.True(t, res.Created)
	require.False(t, res.Replayed)
	require.False(t, res.Message.Timestamp.IsZero())
	require.Equal(t, 1, repo.Len())
}

func TestWriteGeneratesIDWhenAbsent(t *testing.T) {
	repo := NewMemRepo()
	svc := newTestService(repo)

	res, err := svc.Write(context.Background(), &model.Message{FromID: "A", ToID: "B", Content: "hi"})
	require.NoError(t, err)
	require.True(t, res.Created)
	require.NotEmpty(t, res.Message.ID)
}

func TestWriteIdempotentReplay(t *testing.T) {
	repo := NewMemRepo()
	svc := newTestService(repo)
	in := draft("id-1", "A", "B", "hi")

	first, err := svc.Write(context.Background(), in)
	require.NoError(t, err)
	require.True(t, first.Created)

	// 同 id 同内容再打 N 次：都只是重放，存储里始终一条
	for i := 0; i < 3; i++ {
		res, err := svc.Write(context.Background(), in)
		require.NoError(t, err)
		require.False(t, res.Created)
		require.True(t, res.Replayed)
		require.Equal(t, first.Message.ID, res.Message.ID)
		// 重放返回的是存量记录，连 Timestamp 都是第一次的
		require.Equal(t, first.Message.Timestamp, res.Message.Timestamp)
	}
	require.Equal(t, 1, repo.Len())
}

func TestWriteConflictOnDifferentContent(t *testing.T) {
	repo := NewMemRepo()
	svc := newTestService(repo)

	first, err := svc.Write(context.Background(), draft("id-1", "A", "B", "hi"))
	require.NoError(t, err)

	res, err := svc.Write(context.Background(), draft("id-1", "A", "B", "bye"))
	require.Error(t, err)
	require.Equal(t, errs.CodeIDConflict, errs.CodeOf(err))
	require.NotNil(t, res)
	require.True(t, res.Conflict)

	// 存量未被覆盖
	stored, err := repo.Get(context.Background(), "id-1")
	require.NoError(t, err)
	require.Equal(t, "hi", stored.Content)
	require.Equal(t, first.Message.Timestamp, stored.Timestamp)
}

func TestWriteRetriesTransientThenSucceeds(t *testing.T) {
	repo := NewMemRepo()
	svc := newTestService(repo)

	fails := 2
	repo.InsertHook = func(*model.Message) error {
		if fails > 0 {
			fails--
			return errs.ErrStoreTransient.WrapMsg("unavailable")
		}
		return nil
	}

	res, err := svc.Write(context.Background(), draft("id-1", "A", "B", "hi"))
	require.NoError(t, err)
	require.True(t, res.Created)
	require.Equal(t, 1, repo.Len())
}

func TestWriteTransientExhausted(t *testing.T) {
	repo := NewMemRepo()
	svc := newTestService(repo)
	repo.InsertHook = func(*model.Message) error {
		return errs.ErrStoreTransient.WrapMsg("unavailable")
	}

	_, err := svc.Write(context.Background(), draft("id-1", "A", "B", "hi"))
	require.Error(t, err)
	require.Equal(t, errs.CodeStoreFailed, errs.CodeOf(err))
	require.Equal(t, 0, repo.Len())
}

func TestWriteNonTransientPropagates(t *testing.T) {
	repo := NewMemRepo()
	svc := newTestService(repo)
	calls := 0
	boom := errs.New("schema validation failed")
	repo.InsertHook = func(*model.Message) error {
		calls++
		return boom
	}

	_, err := svc.Write(context.Background(), draft("id-1", "A", "B", "hi"))
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls) // 不重试
}

func TestListConversation(t *testing.T) {
	repo := NewMemRepo()
	svc := newTestService(repo)
	// 递增的确定性时钟，写入顺序即时间顺序
	base := time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)
	seq := 0
	svc.now = func() time.Time {
		seq++
		return base.Add(time.Duration(seq) * time.Second)
	}
	ab := conv.ConversationID("A", "B")
	ba := conv.ConversationID("B", "A")

	_, err := svc.Write(context.Background(), draft("m1", "A", "B", "one"))
	require.NoError(t, err)
	_, err = svc.Write(context.Background(), draft("m2", "B", "A", "two")) // 落在 ba 会话
	require.NoError(t, err)
	require.NotEqual(t, ab, ba)
	_, err = svc.Write(context.Background(), &model.Message{ID: "m3", FromID: "B", ToID: "A", Content: "three", ConversationID: ab})
	require.NoError(t, err)

	got, err := svc.ListConversation(context.Background(), "A", "B", ab)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "m1", got[0].ID)
	require.Equal(t, "m3", got[1].ID)

	desc, err := svc.ListConversationDesc(context.Background(), "A", "B", ab)
	require.NoError(t, err)
	require.Equal(t, []string{desc[0].ID, desc[1].ID}, []string{"m3", "m1"})
}
