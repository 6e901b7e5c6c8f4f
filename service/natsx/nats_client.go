package natsx

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// Config 客户端配置
type Config struct {
	Servers       []string
	Name          string
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// Client 统一客户端（Core 模式；实时流不需要 JetStream 持久化，
// 错过的消息由 mongo 查询路径兜底）
type Client struct {
	cfg Config
	nc  *nats.Conn
}

// NewClient 连接 NATS
func NewClient(cfg Config) (*Client, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("nats servers missing")
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, nc: nc}, nil
}

// Close 优雅关闭
func (c *Client) Close() {
	if c.nc != nil {
		c.nc.Close()
	}
}

// Publish 发送原始字节
func (c *Client) Publish(subject string, data []byte) error {
	msg := nats.NewMsg(subject)
	msg.Data = data
	return c.nc.PublishMsg(msg)
}

// PublishJSON 序列化后发送
func (c *Client) PublishJSON(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Publish(subject, b)
}
