package readstate

import (
	"context"
	"time"

	"SCProject/logger"
	"SCProject/module/chat/events"
)

// 防抖落库的显式状态机（每个 (userId, conversationId) 一台）：
//
//	Idle → PendingWrite(timer) → Flushed → Idle
//
// PendingWrite 期间再来 markRead 只更新待写值，不重置定时器；
// Flushed 发现期间又有新值，回到 PendingWrite 重新排一轮。
type flushPhase int

const (
	phaseIdle flushPhase = iota
	phasePending
	phaseFlushed
)

type flusher struct {
	phase flushPhase
	timer *time.Timer
	value time.Time // 待写入的水位（取最后一次 markRead 的时间）
}

// scheduleFlushLocked 调用方必须持 s.mu。
func (s *Synchronizer) scheduleFlushLocked(k rsKey, e *entry, at time.Time) {
	e.flush.value = maxTime(e.flush.value, at)
	if e.flush.phase == phasePending {
		return
	}
	e.flush.phase = phasePending
	e.flush.timer = time.AfterFunc(s.debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.flush(ctx, k)
	})
}

// flush 把待写值落到持久层，成功后广播跨设备事件。
// 持久层返回的是 $max 之后的实际值，可能比本地新（别的设备先写了），
// 一并回灌缓存。
func (s *Synchronizer) flush(ctx context.Context, k rsKey) {
	s.mu.Lock()
	e, ok := s.entries[k]
	if !ok || e.flush.phase != phasePending {
		s.mu.Unlock()
		return
	}
	value := e.flush.value
	e.flush.phase = phaseFlushed
	s.mu.Unlock()

	applied, err := s.store.Set(ctx, k.user, k.conv, value)
	if err != nil {
		// 落库失败：值还在，回到 PendingWrite 等下一轮
		logger.Warnf("watermark flush failed, user=%s conv=%s: %v", k.user, k.conv, err)
		s.mu.Lock()
		e.flush.phase = phaseIdle
		s.scheduleFlushLocked(k, e, value)
		s.mu.Unlock()
		return
	}

	if s.stream != nil {
		if perr := events.PublishRead(s.stream, k.user, k.conv, applied); perr != nil {
			logger.Warnf("read event publish failed, user=%s conv=%s: %v", k.user, k.conv, perr)
		}
	}

	s.mu.Lock()
	if applied.After(e.watermark) {
		e.watermark = applied
	}
	if e.flush.value.After(value) {
		// Flushed 期间又有新 markRead：重开一轮
		pending := e.flush.value
		e.flush.phase = phaseIdle
		s.scheduleFlushLocked(k, e, pending)
	} else {
		e.flush.phase = phaseIdle
		e.flush.value = time.Time{}
	}
	s.mu.Unlock()
}
