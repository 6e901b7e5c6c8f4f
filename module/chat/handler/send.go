package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"SCProject/logger"
	midsec "SCProject/middleware/security"
	"SCProject/module/chat/events"
	"SCProject/module/chat/message"
	"SCProject/module/chat/model"
	"SCProject/service/natsx"
	"SCProject/service/storage"
	"SCProject/tools/errs"
	"SCProject/tools/ids"

	"github.com/gin-gonic/gin"
)

const maxContentLen = 4000

// UserDirectory 参与者名册是外部协作方，这里只要一个判定。
type UserDirectory interface {
	IsKnown(ctx context.Context, userID string) (bool, error)
}

// StaticDirectory 固定名单实现（配置里给 userId 列表）。
type StaticDirectory map[string]struct{}

func (d StaticDirectory) IsKnown(_ context.Context, userID string) (bool, error) {
	_, ok := d[userID]
	return ok, nil
}

// PushDispatcher 推送派发是外部协作方；失败只记日志（fail-open）。
type PushDispatcher interface {
	Dispatch(ctx context.Context, m *model.Message) error
}

// SendRequest POST /api/chat/send 的请求体。
type SendRequest struct {
	ToID            string `json:"toId"`
	Content         string `json:"content"`
	ConversationID  string `json:"conversationId,omitempty"`
	ClientMessageID string `json:"clientMessageId,omitempty"`
	ClientCreatedAt string `json:"clientCreatedAt,omitempty"` // RFC3339
}

// SendResponse 200 响应体。
type SendResponse struct {
	Success  bool           `json:"success"`
	Message  *model.Message `json:"message"`
	Replayed bool           `json:"replayed,omitempty"`
}

type SendHandler struct {
	Svc    *message.Service // nil = 未装配 → 503
	Users  UserDirectory
	Events natsx.Stream        // 可为 nil；发布失败 fail-open
	Dedupe storage.DedupeStore // 重放时压掉重复副作用
	Push   PushDispatcher      // 可为 nil
}

// Handle 幂等发送端点。
// 消息落库成功后，事件发布/推送派发的任何失败都不改变 200 结果。
func (h *SendHandler) Handle(c *gin.Context) {
	if h.Svc == nil {
		abortWith(c, errs.ErrNotConfigured)
		return
	}

	fromID := c.GetString(midsec.CtxUserIDKey)
	if fromID == "" {
		abortWith(c, errs.ErrTokenMissing)
		return
	}

	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, errs.ErrInvalidPayload.WithDetail("bad json"))
		return
	}

	m, cerr := h.validate(fromID, &req)
	if cerr != nil {
		abortWith(c, *cerr)
		return
	}

	known, err := h.Users.IsKnown(c.Request.Context(), fromID)
	if err != nil {
		abortWith(c, errs.ErrStoreFailed.WithDetail("directory lookup failed"))
		return
	}
	if !known {
		abortWith(c, errs.ErrUserUnknown)
		return
	}

	res, err := h.Svc.Write(c.Request.Context(), m)
	if err != nil {
		if res != nil && res.Conflict {
			abortWith(c, errs.ErrIDConflict)
			return
		}
		logger.Errorf("message write failed: %v", err)
		switch errs.CodeOf(err) {
		case errs.CodeNotConfigured:
			abortWith(c, errs.ErrNotConfigured)
		case errs.CodeStoreFailed, errs.CodeStoreTransient:
			abortWith(c, errs.ErrStoreFailed)
		default:
			abortWith(c, errs.ErrStoreFailed.WithDetail("downstream unavailable"))
		}
		return
	}

	if res.Created {
		h.fireSideEffects(c.Request.Context(), res.Message)
	}

	c.JSON(http.StatusOK, SendResponse{
		Success:  true,
		Message:  res.Message,
		Replayed: res.Replayed,
	})
}

// validate 入参校验 + 组装待写消息。
func (h *SendHandler) validate(fromID string, req *SendRequest) (*model.Message, *errs.CodeError) {
	content := strings.TrimSpace(req.Content)
	if content == "" || req.ToID == "" {
		e := errs.ErrInvalidPayload.WithDetail("content and toId are required")
		return nil, &e
	}
	if len(content) > maxContentLen {
		return nil, &errs.ErrContentTooLong
	}
	if req.ClientMessageID != "" && !ids.ValidMsgID(req.ClientMessageID) {
		return nil, &errs.ErrBadMsgID
	}

	var clientCreatedAt *time.Time
	if req.ClientCreatedAt != "" {
		t, err := time.Parse(time.RFC3339, req.ClientCreatedAt)
		if err != nil {
			return nil, &errs.ErrBadTimestamp
		}
		tt := t.UTC()
		clientCreatedAt = &tt
	}

	return &model.Message{
		ID:              req.ClientMessageID, // 空则服务端生成
		FromID:          fromID,
		ToID:            req.ToID,
		Content:         content,
		ConversationID:  req.ConversationID,
		ClientMsgID:     req.ClientMessageID,
		ClientCreatedAt: clientCreatedAt,
	}, nil
}

// fireSideEffects 落库后的非关键副作用：实时事件 + 推送。
// Dedupe 兜底：同一条消息（极端情况下 Created 的响应丢了又重放成功）
// 不派发第二次。
func (h *SendHandler) fireSideEffects(ctx context.Context, m *model.Message) {
	if h.Dedupe != nil {
		seen, err := h.Dedupe.SeenOnce(ctx, m.ID, 0)
		if err != nil {
			logger.Warnf("dedupe check failed, dispatching anyway: %v", err)
		} else if seen {
			return
		}
	}
	if h.Events != nil {
		if err := events.PublishMessage(h.Events, m); err != nil {
			logger.Errorf("message event publish failed, id=%s: %v", m.ID, err)
		}
	}
	if h.Push != nil {
		if err := h.Push.Dispatch(ctx, m); err != nil {
			logger.Errorf("push dispatch failed, id=%s: %v", m.ID, err)
		}
	}
}

func abortWith(c *gin.Context, e errs.CodeError) {
	c.AbortWithStatusJSON(errs.HTTPStatusOf(e.Code), e)
}
