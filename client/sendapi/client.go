// Package sendapi 发送端点的 HTTP 客户端，Drainer 的网络边界实现。
package sendapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"SCProject/client/outbox"
	"SCProject/tools/errs"
)

const defaultTimeout = 15 * time.Second

type Client struct {
	base string // 形如 http://host:port
	hc   *http.Client
}

func NewClient(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{base: base, hc: hc}
}

type wireRequest struct {
	ToID            string `json:"toId"`
	Content         string `json:"content"`
	ConversationID  string `json:"conversationId,omitempty"`
	ClientMessageID string `json:"clientMessageId,omitempty"`
	ClientCreatedAt string `json:"clientCreatedAt,omitempty"`
}

// Send 投一条。非 2xx 统一折叠成 KindError，上层只看 Kind。
// 网络层错误原样上抛（errs.KindOf 会归为瞬时）。
func (c *Client) Send(ctx context.Context, token string, req outbox.SendRequest) error {
	body, err := json.Marshal(wireRequest{
		ToID:            req.ToID,
		Content:         req.Content,
		ConversationID:  req.ConversationID,
		ClientMessageID: req.ClientMsgID,
		ClientCreatedAt: req.ClientCreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/chat/send", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// 带上服务端的错误描述，UI 的 lastError 能看懂
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	kind := errs.KindOfHTTPStatus(resp.StatusCode)
	return errs.NewKindError(kind, fmt.Sprintf("http %d: %s", resp.StatusCode, bytes.TrimSpace(detail)))
}
