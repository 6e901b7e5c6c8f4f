package readstate

import (
	"context"
	"sync"
	"time"

	"SCProject/logger"
	"SCProject/module/chat/events"
	"SCProject/module/chat/model"
	"SCProject/service/natsx"
)

// State 单个会话水位的本地状态机：UNKNOWN → HYDRATING → SYNCED。
// 首次持久化读取完成（SYNCED）之前算出来的未读数只是临时值，
// UI 不应该拿它闪角标。
type State int

const (
	StateUnknown State = iota
	StateHydrating
	StateSynced
)

// WatermarkStore 水位的持久层边界。
// Set 要求单调（实现用 max-with-previous），返回落库后的实际值。
type WatermarkStore interface {
	Get(ctx context.Context, userID, conversationID string) (time.Time, bool, error)
	Set(ctx context.Context, userID, conversationID string, at time.Time) (time.Time, error)
}

// Clock 可注入时钟
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

const defaultDebounce = 2 * time.Second

type rsKey struct {
	user string
	conv string
}

type entry struct {
	state      State
	watermark  time.Time
	flush      flusher
	cancelLive func()
}

// Synchronizer 维护每个 (userId, conversationId) 的已读水位：
// 内存缓存立即生效（角标马上清掉），持久化写防抖合并（约 2s 窗口，
// 取最后一次的时间），跨设备变更经实时流回灌缓存。
type Synchronizer struct {
	store    WatermarkStore
	stream   natsx.Stream // 可为 nil（无实时能力时只剩本地语义）
	clock    Clock
	debounce time.Duration

	mu      sync.Mutex
	entries map[rsKey]*entry

	nextWatcher int
	watchers    map[int]func(userID, conversationID string)
}

type Options struct {
	Debounce time.Duration
	Clock    Clock
}

func NewSynchronizer(store WatermarkStore, stream natsx.Stream, opts *Options) *Synchronizer {
	s := &Synchronizer{
		store:    store,
		stream:   stream,
		clock:    realClock{},
		debounce: defaultDebounce,
		entries:  make(map[rsKey]*entry),
		watchers: make(map[int]func(string, string)),
	}
	if opts != nil {
		if opts.Debounce > 0 {
			s.debounce = opts.Debounce
		}
		if opts.Clock != nil {
			s.clock = opts.Clock
		}
	}
	return s
}

func (s *Synchronizer) entryLocked(k rsKey) *entry {
	e, ok := s.entries[k]
	if !ok {
		e = &entry{state: StateUnknown}
		s.entries[k] = e
	}
	return e
}

// Watermark 取水位：缓存命中直接回；否则打一次持久层（HYDRATING），
// 没读过返回 NeverRead。结果缓存，之后都走内存。
func (s *Synchronizer) Watermark(ctx context.Context, userID, conversationID string) (time.Time, State, error) {
	k := rsKey{userID, conversationID}

	s.mu.Lock()
	e := s.entryLocked(k)
	if e.state == StateSynced {
		wm, st := e.watermark, e.state
		s.mu.Unlock()
		return wm, st, nil
	}
	e.state = StateHydrating
	s.mu.Unlock()

	durable, found, err := s.store.Get(ctx, userID, conversationID)
	if err != nil {
		// 留在 HYDRATING，下次再试；先把现有缓存给出去（临时值）
		s.mu.Lock()
		wm := e.watermark
		if wm.IsZero() {
			wm = NeverRead
		}
		s.mu.Unlock()
		return wm, StateHydrating, err
	}

	s.mu.Lock()
	if found {
		e.watermark = maxTime(e.watermark, durable)
	}
	if e.watermark.IsZero() {
		e.watermark = NeverRead
	}
	e.state = StateSynced
	wm := e.watermark
	s.mu.Unlock()

	s.ensureLive(userID, conversationID)
	s.notify(userID, conversationID)
	return wm, StateSynced, nil
}

// MarkRead 乐观立即把内存水位推到“现在”（角标瞬间清零），
// 持久化写进防抖状态机。短窗口内的重复调用合并成一次落库，
// 用最后一次的时间。
func (s *Synchronizer) MarkRead(userID, conversationID string) {
	now := s.clock.Now().UTC()
	k := rsKey{userID, conversationID}

	s.mu.Lock()
	e := s.entryLocked(k)
	e.watermark = maxTime(e.watermark, now)
	s.scheduleFlushLocked(k, e, now)
	s.mu.Unlock()

	s.notify(userID, conversationID)
}

// FlushNow 立刻执行挂起的持久化写（页面卸载、测试里用）。
func (s *Synchronizer) FlushNow(ctx context.Context, userID, conversationID string) {
	k := rsKey{userID, conversationID}
	s.mu.Lock()
	e, ok := s.entries[k]
	if !ok || e.flush.phase != phasePending {
		s.mu.Unlock()
		return
	}
	if e.flush.timer != nil {
		e.flush.timer.Stop()
	}
	s.mu.Unlock()
	s.flush(ctx, k)
}

// OnChange 水位一变（本地 markRead、hydration、跨设备事件）回调；
// 消费方在回调里重算未读数。返回退订函数。
func (s *Synchronizer) OnChange(cb func(userID, conversationID string)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextWatcher
	s.nextWatcher++
	s.watchers[id] = cb
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.watchers, id)
		})
	}
}

// WatchMessages 订阅某会话的实时消息流；消息一到回调一次，
// 消费方拿最新消息集 + 当前水位重算。返回退订函数。
func (s *Synchronizer) WatchMessages(conversationID string, cb func(*model.Message)) (func(), error) {
	if s.stream == nil {
		return func() {}, nil
	}
	return s.stream.Subscribe(events.MsgSubject(conversationID), func(_ string, data []byte) {
		m, err := events.DecodeMessage(data)
		if err != nil {
			logger.Warnf("bad message event: %v", err)
			return
		}
		cb(m)
	})
}

func (s *Synchronizer) notify(userID, conversationID string) {
	s.mu.Lock()
	ws := make([]func(string, string), 0, len(s.watchers))
	for _, w := range s.watchers {
		ws = append(ws, w)
	}
	s.mu.Unlock()
	for _, w := range ws {
		w(userID, conversationID)
	}
}

// ensureLive 给 (user, conv) 挂上水位变更的实时订阅：
// 另一台设备 markRead 后，这台的缓存（和派生的未读数）跟着动，
// 本机不需要自己调 markRead。
func (s *Synchronizer) ensureLive(userID, conversationID string) {
	if s.stream == nil {
		return
	}
	k := rsKey{userID, conversationID}

	s.mu.Lock()
	e := s.entryLocked(k)
	if e.cancelLive != nil {
		s.mu.Unlock()
		return
	}
	// 占位，防止并发重复订阅
	e.cancelLive = func() {}
	s.mu.Unlock()

	cancel, err := s.stream.Subscribe(events.ReadSubject(userID, conversationID), func(_ string, data []byte) {
		ev, err := events.DecodeRead(data)
		if err != nil {
			logger.Warnf("bad read event: %v", err)
			return
		}
		at, ok := NormalizeStamp(ev.ReadAt)
		if !ok {
			return
		}
		s.mu.Lock()
		cur := s.entryLocked(k)
		if at.After(cur.watermark) {
			cur.watermark = at
			s.mu.Unlock()
			s.notify(userID, conversationID)
			return
		}
		s.mu.Unlock()
	})
	if err != nil {
		logger.Warnf("read watermark subscribe failed, user=%s conv=%s: %v", userID, conversationID, err)
		s.mu.Lock()
		e.cancelLive = nil
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	e.cancelLive = cancel
	s.mu.Unlock()
}

// Close 退掉所有实时订阅，停掉挂起的防抖定时器。
func (s *Synchronizer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.cancelLive != nil {
			e.cancelLive()
			e.cancelLive = nil
		}
		if e.flush.timer != nil {
			e.flush.timer.Stop()
		}
	}
}
