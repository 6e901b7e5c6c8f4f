package readstate

import (
	"context"
	"sync"
	"time"
)

// MemWatermarks 内存持久层：单测用，也能当无后端时的降级实现。
// Set 同样遵守 max-with-previous 单调约定。
type MemWatermarks struct {
	mu sync.Mutex
	m  map[rsKey]time.Time

	GetHook func(userID, conversationID string) error // 故障注入
	SetHook func(userID, conversationID string) error

	sets int
}

func NewMemWatermarks() *MemWatermarks {
	return &MemWatermarks{m: make(map[rsKey]time.Time)}
}

func (w *MemWatermarks) Get(_ context.Context, userID, conversationID string) (time.Time, bool, error) {
	if w.GetHook != nil {
		if err := w.GetHook(userID, conversationID); err != nil {
			return time.Time{}, false, err
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	at, ok := w.m[rsKey{userID, conversationID}]
	return at, ok, nil
}

func (w *MemWatermarks) Set(_ context.Context, userID, conversationID string, at time.Time) (time.Time, error) {
	if w.SetHook != nil {
		if err := w.SetHook(userID, conversationID); err != nil {
			return time.Time{}, err
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	k := rsKey{userID, conversationID}
	cur := w.m[k]
	if at.After(cur) {
		cur = at.UTC()
		w.m[k] = cur
	}
	w.sets++
	return cur, nil
}

// SetCount 落库次数（防抖合并断言用）
func (w *MemWatermarks) SetCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sets
}
