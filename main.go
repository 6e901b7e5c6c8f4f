package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SCProject/global"
	"SCProject/logger"
	mid "SCProject/middleware"
	midsec "SCProject/middleware/security"
	"SCProject/module/chat/handler"
	"SCProject/module/chat/message"
	"SCProject/service/mgo"
	"SCProject/service/natsx"
	"SCProject/service/storage"
	redissrv "SCProject/service/storage/redis"
	"SCProject/tools/safe"

	"github.com/gin-gonic/gin"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := global.Load(os.Getenv("SC_CONFIG")); err != nil {
		logger.Errorf("config load failed: %v", err)
		os.Exit(1)
	}

	global.ConfigRedis()
	global.ConfigMgo(ctx)
	registry := global.ConfigNats()

	// mongo 首连等一会；超时也继续起（写入路径对未就绪回 503）
	waitCtx, waitCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := mgo.WaitReady(waitCtx); err != nil {
		logger.Warnf("mongo not ready yet, serving degraded: %v", err)
	}
	waitCancel()

	r := gin.New()
	r.Use(gin.Recovery())

	send := buildSendHandler(registry)
	authOpts := midsec.DefaultOptions(global.GetJwtSecret())
	mid.POST(r, "/api/chat/send", send.Handle, mid.RouteOpt{IsAuth: true, Auth: authOpts})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	addr := fmt.Sprintf(":%d", global.Global.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	safe.Go(func() {
		logger.Infof("api node %s listening on %s", global.Global.NodeID, addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("http serve: %v", err)
		}
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	_ = redissrv.Close()
	logger.Infof("bye")
}

// buildSendHandler 装配发送端点。仓库层自己按次取 DB 句柄，
// mongo 晚就绪/掉线期间写入路径回 503。
func buildSendHandler(registry *natsx.Registry) *handler.SendHandler {
	h := &handler.SendHandler{
		Users: directoryFromConfig(),
		Svc:   message.NewService(message.NewDefaultMongoRepo()),
	}
	if registry != nil {
		h.Events = registry
	}
	if rdb := redissrv.Get(); rdb != nil {
		h.Dedupe = storage.NewRedisDedupe(rdb, "")
	} else {
		h.Dedupe = storage.NewMemDedupe()
	}
	return h
}

func directoryFromConfig() handler.StaticDirectory {
	d := handler.StaticDirectory{}
	for _, u := range global.Global.Users {
		d[u] = struct{}{}
	}
	return d
}
