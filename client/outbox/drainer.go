package outbox

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"SCProject/logger"
	"SCProject/tools/errs"
)

// 退避参数：delay = min(cap, base * 2^(n-1)) + jitter(0..1s)
const (
	backoffBase   = 2 * time.Second
	backoffCap    = 5 * time.Minute
	backoffJitter = time.Second
)

// SendRequest 投递到网络边界的载荷。
type SendRequest struct {
	ToID            string
	Content         string
	ConversationID  string
	ClientMsgID     string
	ClientCreatedAt time.Time // = Item.CreatedAt
}

// Sender 网络边界。实现负责把传输层失败归一成 errs 可识别的错误
// （HTTP 实现见 client/sendapi）。
type Sender interface {
	Send(ctx context.Context, token string, req SendRequest) error
}

// Connectivity 在线判定；离线时直接改期，不浪费一次必败的尝试。
type Connectivity interface {
	Online() bool
}

// CredentialSource 凭证来源。Token 拿不到不算永久失败（凭证晚点会有），
// Refresh 在收到“过期”响应后原地换新一次。
type CredentialSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// DrainStats 一轮排空的账目。
type DrainStats struct {
	Delivered int
	Retried   int
	Failed    int
	Skipped   int
}

type drainRun struct {
	done  chan struct{}
	stats DrainStats
	err   error
}

// Drainer 重试引擎：按用户一轮一轮把发件箱排空。
// 单用户单飞：同一用户已有一轮在跑时，后来的调用挂在同一轮上等结果，
// 保证同一条消息不会被并发发两次。
type Drainer struct {
	store  *Store
	sender Sender
	conn   Connectivity
	creds  CredentialSource
	clock  Clock
	jitter func() time.Duration

	mu       sync.Mutex
	inflight map[string]*drainRun

	onJoin func(fromUserID string) // 测试钩子：调用方挂上已在途轮次时触发
}

func NewDrainer(store *Store, sender Sender, conn Connectivity, creds CredentialSource) *Drainer {
	d := &Drainer{
		store:    store,
		sender:   sender,
		conn:     conn,
		creds:    creds,
		clock:    store.clock,
		jitter:   func() time.Duration { return time.Duration(rand.Int63n(int64(backoffJitter))) },
		inflight: make(map[string]*drainRun),
	}
	return d
}

// Drain 给某个用户跑一轮投递。已有在途轮次时挂上去等同一份结果。
func (d *Drainer) Drain(ctx context.Context, fromUserID string) (DrainStats, error) {
	d.mu.Lock()
	if run, ok := d.inflight[fromUserID]; ok {
		d.mu.Unlock()
		if d.onJoin != nil {
			d.onJoin(fromUserID)
		}
		select {
		case <-run.done:
			return run.stats, run.err
		case <-ctx.Done():
			return DrainStats{}, ctx.Err()
		}
	}
	run := &drainRun{done: make(chan struct{})}
	d.inflight[fromUserID] = run
	d.mu.Unlock()

	run.stats, run.err = d.drainOnce(ctx, fromUserID)

	d.mu.Lock()
	delete(d.inflight, fromUserID)
	d.mu.Unlock()
	close(run.done)
	return run.stats, run.err
}

// drainOnce 一轮：清扫 → 快照（旧的在前）→ 逐条顺序处理。
// 条目 N 的尝试没结束不开始 N+1，保证单用户投递顺序。
func (d *Drainer) drainOnce(ctx context.Context, fromUserID string) (DrainStats, error) {
	var st DrainStats

	d.store.PurgeExpired(fromUserID)

	snapshot := d.store.ListPending(fromUserID, "")
	for i := range snapshot {
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		default:
		}
		d.processItem(ctx, snapshot[i].ClientMsgID, &st)
	}
	return st, nil
}

func (d *Drainer) processItem(ctx context.Context, clientMsgID string, st *DrainStats) {
	// 活读：别的流程（用户重试、另一个清扫）可能已经动过它
	it, ok := d.store.get(clientMsgID)
	if !ok {
		st.Skipped++
		return
	}
	now := d.clock.Now()
	if it.Status == StatusFailed {
		// 永久失败，等用户手动重试
		st.Skipped++
		return
	}
	if it.NextAttemptAt.After(now) {
		st.Skipped++
		return
	}

	// 离线：改期，不烧尝试次数
	if d.conn != nil && !d.conn.Online() {
		d.reschedule(&it, "offline", false)
		st.Retried++
		return
	}

	// 凭证：拿不到同样只是改期（凭证稍后可能就有了）
	token, err := d.creds.Token(ctx)
	if err != nil || token == "" {
		d.reschedule(&it, "credential unavailable", false)
		st.Retried++
		return
	}

	err = d.sender.Send(ctx, token, sendReq(&it))
	if err != nil && errs.KindOf(err) == errs.KindAuthExpired {
		// 纯粹的鉴权打嗝不值得走一遍退避：换新凭证原地再试一次
		if fresh, rerr := d.creds.Refresh(ctx); rerr == nil && fresh != "" {
			err = d.sender.Send(ctx, fresh, sendReq(&it))
		}
	}

	if err == nil {
		d.store.remove(it.ClientMsgID)
		st.Delivered++
		return
	}

	kind := errs.KindOf(err)
	if kind.Retryable() {
		d.reschedule(&it, err.Error(), true)
		st.Retried++
		return
	}

	// 永久失败：转 failed，留错误给 UI，自动重试到此为止
	logger.Warnf("outbox item failed permanently, id=%s kind=%s: %v", it.ClientMsgID, kind, err)
	d.store.mutate(it.ClientMsgID, func(cur *Item) {
		cur.Status = StatusFailed
		cur.LastError = err.Error()
	})
	st.Failed++
}

// reschedule 指数退避改期。burnAttempt=false 的场景（离线/无凭证）
// 不增加 AttemptCount —— 没有真的尝试过。
func (d *Drainer) reschedule(it *Item, reason string, burnAttempt bool) {
	attempts := it.AttemptCount
	if burnAttempt {
		attempts++
	}
	delay := backoffDelay(attempts) + d.jitter()
	next := d.clock.Now().UTC().Add(delay)
	d.store.mutate(it.ClientMsgID, func(cur *Item) {
		if burnAttempt {
			cur.AttemptCount = attempts
		}
		cur.NextAttemptAt = next
		cur.LastError = reason
	})
}

// backoffDelay min(cap, base * 2^(n-1))，n 至少按 1 算。
func backoffDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := backoffBase
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= backoffCap {
			return backoffCap
		}
	}
	if delay > backoffCap {
		delay = backoffCap
	}
	return delay
}

func sendReq(it *Item) SendRequest {
	return SendRequest{
		ToID:            it.ToID,
		Content:         it.Content,
		ConversationID:  it.ConversationID,
		ClientMsgID:     it.ClientMsgID,
		ClientCreatedAt: it.CreatedAt,
	}
}
