package message

import (
	"context"
	"sort"
	"sync"

	"SCProject/module/chat/model"
)

// MemRepo 内存实现：单测里既当存储用，也当假服务端用。
// InsertHook 可注入故障（返回非 nil 即替代真实插入的结果）。
type MemRepo struct {
	mu         sync.Mutex
	byID       map[string]model.Message
	InsertHook func(m *model.Message) error
}

func NewMemRepo() *MemRepo {
	return &MemRepo{byID: make(map[string]model.Message)}
}

func (r *MemRepo) Insert(_ context.Context, m *model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.InsertHook != nil {
		if err := r.InsertHook(m); err != nil {
			return err
		}
	}
	if _, ok := r.byID[m.ID]; ok {
		return ErrDuplicateID
	}
	r.byID[m.ID] = *m
	return nil
}

func (r *MemRepo) Get(_ context.Context, id string) (*model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := m
	return &cp, nil
}

func (r *MemRepo) ListPair(_ context.Context, a, b string) ([]model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Message
	for _, m := range r.byID {
		if (m.FromID == a && m.ToID == b) || (m.FromID == b && m.ToID == a) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Len 当前持久化的消息条数（断言“恰好落了一条”用）
func (r *MemRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
