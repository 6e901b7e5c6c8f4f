package message

import (
	"context"

	"SCProject/module/chat/model"
	"SCProject/tools/errs"
)

// 仓库层的归一化哨兵错误。实现负责把驱动错误翻译成这两个，
// 瞬时基础设施错误用 errs.ErrStoreTransient 包装，其余原样上抛。
var (
	ErrDuplicateID = errs.New("message id already exists")
	ErrNotFound    = errs.New("message not found")
)

// Repo 消息存储边界。原子性要求：Insert 对同一 id 并发调用时
// 至多成功一次，其余返回 ErrDuplicateID（靠存储本身的单文档原子创建）。
type Repo interface {
	Insert(ctx context.Context, m *model.Message) error
	Get(ctx context.Context, id string) (*model.Message, error)
	// ListPair 返回 a、b 之间（双向）的全部消息，按 Timestamp 升序。
	ListPair(ctx context.Context, a, b string) ([]model.Message, error)
}
