package natsx

import (
	"sync"

	"github.com/nats-io/nats.go"
)

// Handler 收到一条实时事件
type Handler func(subject string, data []byte)

// Stream 是“可发布 + 可活订阅”的能力边界。
// 生产实现是 NATS（Client/Registry），测试实现是 MemStream。
type Stream interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, h Handler) (cancel func(), err error)
}

// Registry 按 subject 维护引用计数的共享订阅：
// 同一个 subject 只建一条底层 NATS 订阅，N 个消费者挂在上面，
// 归零时退订。替代进程级单例订阅的隐式全局状态。
type Registry struct {
	c *Client

	mu   sync.Mutex
	subs map[string]*regEntry
}

type regEntry struct {
	sub      *nats.Subscription
	nextID   int
	handlers map[int]Handler
}

func NewRegistry(c *Client) *Registry {
	return &Registry{c: c, subs: make(map[string]*regEntry)}
}

func (r *Registry) Publish(subject string, data []byte) error {
	return r.c.Publish(subject, data)
}

// Subscribe 挂一个消费者；返回的 cancel 幂等。
func (r *Registry) Subscribe(subject string, h Handler) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.subs[subject]
	if !ok {
		e = &regEntry{handlers: make(map[int]Handler)}
		sub, err := r.c.nc.Subscribe(subject, func(m *nats.Msg) {
			r.dispatch(m.Subject, append([]byte(nil), m.Data...))
		})
		if err != nil {
			return nil, err
		}
		e.sub = sub
		r.subs[subject] = e
	}

	id := e.nextID
	e.nextID++
	e.handlers[id] = h

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			entry, ok := r.subs[subject]
			if !ok {
				return
			}
			delete(entry.handlers, id)
			if len(entry.handlers) == 0 {
				_ = entry.sub.Unsubscribe()
				delete(r.subs, subject)
			}
		})
	}
	return cancel, nil
}

func (r *Registry) dispatch(subject string, data []byte) {
	r.mu.Lock()
	e, ok := r.subs[subject]
	var hs []Handler
	if ok {
		hs = make([]Handler, 0, len(e.handlers))
		for _, h := range e.handlers {
			hs = append(hs, h)
		}
	}
	r.mu.Unlock()
	for _, h := range hs {
		h(subject, data)
	}
}
