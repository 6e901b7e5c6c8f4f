package outbox

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"SCProject/tools/errs"
	"SCProject/tools/ids"

	pkgerr "github.com/pkg/errors"
)

// Store 本机持久化的发件箱：一个命名文件里存一个 Item JSON 数组。
// 每次变更先同步落盘再返回，UI 操作后立刻崩溃也不丢已排队的消息。
// 变更后广播给订阅者（不做按用户过滤，过滤是消费方的事）。
type Store struct {
	path  string
	clock Clock

	mu     sync.Mutex
	items  map[string]*Item // key = ClientMsgID
	nextID int
	subs   map[int]func()
}

// NewStore 打开（或创建）发件箱文件并加载存量。clock 传 nil 用真实时钟。
func NewStore(path string, clock Clock) (*Store, error) {
	if clock == nil {
		clock = SystemClock()
	}
	s := &Store{
		path:  path,
		clock: clock,
		items: make(map[string]*Item),
		subs:  make(map[int]func()),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return pkgerr.Wrap(err, "outbox read")
	}
	if len(b) == 0 {
		return nil
	}
	var arr []Item
	if err := json.Unmarshal(b, &arr); err != nil {
		return pkgerr.Wrap(err, "outbox decode")
	}
	for i := range arr {
		it := arr[i]
		s.items[it.ClientMsgID] = &it
	}
	return nil
}

// persist 落盘：临时文件 + rename，写一半断电也不会留下坏文件。
// 调用方必须持锁。
func (s *Store) persist() error {
	arr := make([]Item, 0, len(s.items))
	for _, it := range s.items {
		arr = append(arr, *it)
	}
	sort.Slice(arr, func(i, j int) bool { return arr[i].CreatedAt.Before(arr[j].CreatedAt) })
	b, err := json.Marshal(arr)
	if err != nil {
		return pkgerr.Wrap(err, "outbox encode")
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".outbox-*")
	if err != nil {
		return pkgerr.Wrap(err, "outbox tmp")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return pkgerr.Wrap(err, "outbox write")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return pkgerr.Wrap(err, "outbox close")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return pkgerr.Wrap(err, "outbox rename")
	}
	return nil
}

// notify 持锁拷出订阅者，松锁后回调（回调里可能再进 Store）。
func (s *Store) snapshotSubs() []func() {
	out := make([]func(), 0, len(s.subs))
	for _, f := range s.subs {
		out = append(out, f)
	}
	return out
}

func fire(subs []func()) {
	for _, f := range subs {
		f()
	}
}

// Enqueue 排队一条待发消息并立即落盘。返回创建的 Item，
// 调用方拿 ClientMsgID 做后续关联。
func (s *Store) Enqueue(fromUserID, toID, conversationID, content string) (*Item, error) {
	content = strings.TrimSpace(content)
	if content == "" || fromUserID == "" || toID == "" {
		return nil, errs.ErrInvalidPayload.WrapMsg("content, fromUserId and toId are required")
	}
	now := s.clock.Now().UTC()
	it := &Item{
		ClientMsgID:    ids.NewMsgID(),
		FromUserID:     fromUserID,
		ToID:           toID,
		ConversationID: conversationID,
		Content:        content,
		CreatedAt:      now,
		AttemptCount:   0,
		NextAttemptAt:  now,
		Status:         StatusPending,
	}

	s.mu.Lock()
	s.items[it.ClientMsgID] = it
	if err := s.persist(); err != nil {
		delete(s.items, it.ClientMsgID)
		s.mu.Unlock()
		return nil, err
	}
	cp := *it
	subs := s.snapshotSubs()
	s.mu.Unlock()

	fire(subs)
	return &cp, nil
}

// ListPending 该用户该会话里还没送达的条目（pending + failed，
// 不含过期），按 CreatedAt 升序。conversationID 为空匹配全部。
func (s *Store) ListPending(fromUserID, conversationID string) []Item {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Item
	for _, it := range s.items {
		if it.FromUserID != fromUserID {
			continue
		}
		if conversationID != "" && it.ConversationID != conversationID {
			continue
		}
		if it.Expired(now) {
			continue
		}
		out = append(out, *it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Retry 用户点了失败气泡上的重试：重置为 pending、立即可尝试、清掉错误。
// 返回是否找到了条目。
func (s *Store) Retry(fromUserID, clientMsgID string) bool {
	s.mu.Lock()
	it, ok := s.items[clientMsgID]
	if !ok || it.FromUserID != fromUserID {
		s.mu.Unlock()
		return false
	}
	it.Status = StatusPending
	it.NextAttemptAt = s.clock.Now().UTC()
	it.LastError = ""
	_ = s.persist()
	subs := s.snapshotSubs()
	s.mu.Unlock()

	fire(subs)
	return true
}

// PurgeExpired 清掉超过 7 天的条目（送达的条目 Drainer 已即时删除，
// 这里主要是过期清扫）。fromUserID 为空清全部用户。返回删除数。
func (s *Store) PurgeExpired(fromUserID string) int {
	now := s.clock.Now()
	s.mu.Lock()
	removed := 0
	for id, it := range s.items {
		if fromUserID != "" && it.FromUserID != fromUserID {
			continue
		}
		if it.Expired(now) {
			delete(s.items, id)
			removed++
		}
	}
	var subs []func()
	if removed > 0 {
		_ = s.persist()
		subs = s.snapshotSubs()
	}
	s.mu.Unlock()

	fire(subs)
	return removed
}

// Subscribe 每次存储变更（任何用户）回调一次；返回退订函数。
func (s *Store) Subscribe(cb func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = cb
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
		})
	}
}

// get 活读单条（Drainer 逐条处理前重新取一次最新状态）。
func (s *Store) get(clientMsgID string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[clientMsgID]
	if !ok {
		return Item{}, false
	}
	return *it, true
}

// remove 投递确认后删除；返回是否存在。
func (s *Store) remove(clientMsgID string) bool {
	s.mu.Lock()
	_, ok := s.items[clientMsgID]
	if ok {
		delete(s.items, clientMsgID)
		_ = s.persist()
	}
	var subs []func()
	if ok {
		subs = s.snapshotSubs()
	}
	s.mu.Unlock()

	fire(subs)
	return ok
}

// mutate 持锁原位改一条并落盘。
func (s *Store) mutate(clientMsgID string, fn func(*Item)) bool {
	s.mu.Lock()
	it, ok := s.items[clientMsgID]
	if ok {
		fn(it)
		_ = s.persist()
	}
	var subs []func()
	if ok {
		subs = s.snapshotSubs()
	}
	s.mu.Unlock()

	fire(subs)
	return ok
}
