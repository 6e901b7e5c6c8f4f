package mgo

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	mgo "SCProject/data/database/mgo/mongoutil"
	"SCProject/logger"
	"SCProject/tools/safe"

	"go.mongodb.org/mongo-driver/mongo"
)

type MongoManager struct {
	mu        sync.RWMutex
	client    *mgo.Client
	readyCh   chan struct{} // 首次就绪通知；只会被 close 一次
	readyOnce sync.Once

	lastErr atomic.Value // error
}

var globalMgr MongoManager

// StartAsync 后台重试首连，连上即 close readyCh 并退出；
// 之后的掉线/重连由驱动的连接池自己处理。
func StartAsync(ctx context.Context, cfg *mgo.Config) {
	if globalMgr.readyCh == nil {
		globalMgr.readyCh = make(chan struct{})
	}

	safe.Go(func() {
		const (
			baseBackoff = 200 * time.Millisecond
			maxBackoff  = 5 * time.Second
		)

		backoff := baseBackoff
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			cli, err := mgo.NewMongoDB(ctx, cfg)
			if err != nil {
				globalMgr.lastErr.Store(err)
				logger.Warnf("mongo connect failed, retry in %s: %v", backoff, err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(backoff):
				}
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				continue
			}

			globalMgr.mu.Lock()
			globalMgr.client = cli
			globalMgr.mu.Unlock()
			globalMgr.readyOnce.Do(func() { close(globalMgr.readyCh) })
			logger.Infof("mongo connected, db=%s", cfg.Database)
			return
		}
	})
}

// WaitReady blocks until the first successful connect or ctx is done.
func WaitReady(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-globalMgr.readyCh:
		return nil
	}
}

// GetDB 获取数据库句柄；未就绪时返回 nil（调用方需判空 → 503）
func GetDB() *mongo.Database {
	globalMgr.mu.RLock()
	defer globalMgr.mu.RUnlock()
	if globalMgr.client == nil {
		return nil
	}
	return globalMgr.client.GetDB()
}
