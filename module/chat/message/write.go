package message

import (
	"context"
	"errors"
	"time"

	"SCProject/logger"
	"SCProject/module/chat/conv"
	"SCProject/module/chat/model"
	"SCProject/tools/errs"
	"SCProject/tools/ids"
)

const (
	writeMaxAttempts = 3
	writeRetryDelay  = 100 * time.Millisecond // 线性退避：delay * 已失败次数
)

// WriteResult 一次幂等写入的规范结果。
// Replayed=true 表示这是一次丢了响应的请求重放，没有产生新的副作用。
type WriteResult struct {
	Created  bool           `json:"created"`
	Replayed bool           `json:"replayed,omitempty"`
	Conflict bool           `json:"conflict,omitempty"`
	Message  *model.Message `json:"message,omitempty"`
}

// Service 幂等写入服务：同一个 messageId 重复调用至多落一条消息，
// 调用方总能拿到规范结果。无锁，无共享状态，原子性全部交给存储层
// 的单文档创建，多个客户端/同一客户端的多次重试可安全并发。
type Service struct {
	repo  Repo
	now   func() time.Time
	sleep func(time.Duration)
}

func NewService(repo Repo) *Service {
	return &Service{repo: repo, now: time.Now, sleep: time.Sleep}
}

// Write create-if-absent + 重放检测。
//
// in.ID 为空时服务端生成；Timestamp 在这里赋值一次（服务端时间），
// 之后永不变。瞬时存储错误整体重试 writeMaxAttempts 次；
// 耗尽返回 ErrStoreFailed。同 id 不同内容返回 ErrIDConflict，不覆盖。
func (s *Service) Write(ctx context.Context, in *model.Message) (*WriteResult, error) {
	m := *in
	if m.ID == "" {
		m.ID = ids.NewMsgID()
	}
	m.Timestamp = s.now().UTC()

	var lastErr error
	for attempt := 1; attempt <= writeMaxAttempts; attempt++ {
		err := s.repo.Insert(ctx, &m)
		if err == nil {
			return &WriteResult{Created: true, Message: &m}, nil
		}

		if errors.Is(err, ErrDuplicateID) {
			return s.resolveExisting(ctx, &m)
		}

		if errs.CodeOf(err) == errs.CodeNotConfigured {
			// 没装配不是瞬时错误，重试没意义
			return nil, err
		}

		if errs.KindOf(err) == errs.KindTransient {
			lastErr = err
			logger.Warnf("message insert transient failure, attempt %d/%d: %v", attempt, writeMaxAttempts, err)
			if attempt < writeMaxAttempts {
				s.sleep(writeRetryDelay * time.Duration(attempt))
			}
			continue
		}

		// 非瞬时、非已存在：立刻上抛，不重试
		return nil, err
	}
	return nil, errs.ErrStoreFailed.WrapMsg("insert retries exhausted", "lastErr", lastErr)
}

// resolveExisting id 已占用：取出存量，逐字段比较不可变部分。
// 全等 = 重放（响应丢了的那次请求又来了）；不等 = 冲突，存量不动。
func (s *Service) resolveExisting(ctx context.Context, m *model.Message) (*WriteResult, error) {
	existing, err := s.repo.Get(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	if existing.SameImmutable(m) {
		return &WriteResult{Created: false, Replayed: true, Message: existing}, nil
	}
	return &WriteResult{Conflict: true, Message: existing},
		errs.ErrIDConflict.WrapMsg("same id, different content", "id", m.ID)
}

// ListConversation 拉某对用户在 target 会话里的消息（升序，legacy 包含）。
func (s *Service) ListConversation(ctx context.Context, userA, userB, target string) ([]model.Message, error) {
	all, err := s.repo.ListPair(ctx, userA, userB)
	if err != nil {
		return nil, err
	}
	return conv.FilterForConversation(all, userA, userB, target), nil
}

// ListConversationDesc 同上但新的在前（消息流视图用）。
func (s *Service) ListConversationDesc(ctx context.Context, userA, userB, target string) ([]model.Message, error) {
	msgs, err := s.ListConversation(ctx, userA, userB, target)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
