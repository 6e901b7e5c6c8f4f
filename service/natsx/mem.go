package natsx

import "sync"

// MemStream 进程内 Stream 实现：单元测试、以及 NATS 未装配时的降级。
// 投递是同步的，便于测试里对“收到事件后重算”做确定性断言。
type MemStream struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]Handler
}

func NewMemStream() *MemStream {
	return &MemStream{subs: make(map[string]map[int]Handler)}
}

func (s *MemStream) Publish(subject string, data []byte) error {
	s.mu.Lock()
	var hs []Handler
	for _, h := range s.subs[subject] {
		hs = append(hs, h)
	}
	s.mu.Unlock()
	for _, h := range hs {
		h(subject, append([]byte(nil), data...))
	}
	return nil
}

func (s *MemStream) Subscribe(subject string, h Handler) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs[subject] == nil {
		s.subs[subject] = make(map[int]Handler)
	}
	id := s.nextID
	s.nextID++
	s.subs[subject][id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs[subject], id)
			if len(s.subs[subject]) == 0 {
				delete(s.subs, subject)
			}
		})
	}, nil
}
