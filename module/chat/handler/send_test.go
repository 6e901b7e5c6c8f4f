package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	midsec "SCProject/middleware/security"
	"SCProject/module/chat/conv"
	"SCProject/module/chat/events"
	"SCProject/module/chat/message"
	"SCProject/module/chat/model"
	"SCProject/service/natsx"
	"SCProject/service/storage"
	"SCProject/tools/errs"
	sec "SCProject/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("unit-test-secret")

type fixture struct {
	router *gin.Engine
	repo   *message.MemRepo
	stream *natsx.MemStream
}

func newFixture(t *testing.T, mutate func(*SendHandler)) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := message.NewMemRepo()
	stream := natsx.NewMemStream()
	h := &SendHandler{
		Svc:    message.NewService(repo),
		Users:  StaticDirectory{"alice": {}, "bob": {}},
		Events: stream,
		Dedupe: storage.NewMemDedupe(),
	}
	if mutate != nil {
		mutate(h)
	}

	r := gin.New()
	opts := midsec.DefaultOptions(testSecret)
	r.POST("/api/chat/send", midsec.Middleware(opts), h.Handle)
	return &fixture{router: r, repo: repo, stream: stream}
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	tok, _, err := sec.Generate(sec.DefaultOptions(testSecret), userID)
	require.NoError(t, err)
	return tok
}

func (f *fixture) post(t *testing.T, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, "/api/chat/send", &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeSend(t *testing.T, w *httptest.ResponseRecorder) SendResponse {
	t.Helper()
	var resp SendResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestSendCreates(t *testing.T) {
	f := newFixture(t, nil)
	ab := conv.ConversationID("alice", "bob")

	var published int
	unsub, err := f.stream.Subscribe(events.MsgSubject(ab), func(string, []byte) { published++ })
	require.NoError(t, err)
	defer unsub()

	w := f.post(t, tokenFor(t, "alice"), SendRequest{ToID: "bob", Content: "hi", ConversationID: ab})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeSend(t, w)
	require.True(t, resp.Success)
	require.False(t, resp.Replayed)
	require.Equal(t, "alice", resp.Message.FromID)
	require.NotEmpty(t, resp.Message.ID)
	require.Equal(t, 1, f.repo.Len())
	require.Equal(t, 1, published)
}

func TestSendReplayIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	ab := conv.ConversationID("alice", "bob")

	var published int
	unsub, err := f.stream.Subscribe(events.MsgSubject(ab), func(string, []byte) { published++ })
	require.NoError(t, err)
	defer unsub()

	body := SendRequest{
		ToID: "bob", Content: "hi", ConversationID: ab,
		ClientMessageID: "b2f7c6b0-8e85-4d3a-9f63-0a4f6a1d2e3f",
	}
	token := tokenFor(t, "alice")

	first := f.post(t, token, body)
	require.Equal(t, http.StatusOK, first.Code)

	second := f.post(t, token, body)
	require.Equal(t, http.StatusOK, second.Code)
	resp := decodeSend(t, second)
	require.True(t, resp.Replayed)
	require.Equal(t, body.ClientMessageID, resp.Message.ID)

	// 存储一条，事件也只发了一次
	require.Equal(t, 1, f.repo.Len())
	require.Equal(t, 1, published)
}

func TestSendConflictOnSameIDDifferentContent(t *testing.T) {
	f := newFixture(t, nil)
	token := tokenFor(t, "alice")
	id := "b2f7c6b0-8e85-4d3a-9f63-0a4f6a1d2e3f"

	w := f.post(t, token, SendRequest{ToID: "bob", Content: "hi", ClientMessageID: id})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.post(t, token, SendRequest{ToID: "bob", Content: "bye", ClientMessageID: id})
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, 1, f.repo.Len())
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t, nil)
	token := tokenFor(t, "alice")

	cases := []struct {
		name string
		body SendRequest
	}{
		{"empty content", SendRequest{ToID: "bob", Content: "   "}},
		{"missing toId", SendRequest{Content: "hi"}},
		{"content too long", SendRequest{ToID: "bob", Content: strings.Repeat("x", maxContentLen+1)}},
		{"bad client msg id", SendRequest{ToID: "bob", Content: "hi", ClientMessageID: "not-a-uuid"}},
		{"bad timestamp", SendRequest{ToID: "bob", Content: "hi", ClientCreatedAt: "yesterday"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.post(t, token, tc.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	require.Equal(t, 0, f.repo.Len())
}

func TestSendRejectsBadJSON(t *testing.T) {
	f := newFixture(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/chat/send", strings.NewReader("{nope"))
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, "alice"))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendUnauthorized(t *testing.T) {
	f := newFixture(t, nil)
	body := SendRequest{ToID: "bob", Content: "hi"}

	w := f.post(t, "", body)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.post(t, "garbage-token", body)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// 别人的密钥签的 token 同样不认
	forged, _, err := sec.Generate(sec.DefaultOptions([]byte("other-secret")), "alice")
	require.NoError(t, err)
	w = f.post(t, forged, body)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSendForbiddenForUnknownUser(t *testing.T) {
	f := newFixture(t, nil)
	w := f.post(t, tokenFor(t, "mallory"), SendRequest{ToID: "bob", Content: "hi"})
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, 0, f.repo.Len())
}

func TestSendUnavailableWhenNotConfigured(t *testing.T) {
	f := newFixture(t, func(h *SendHandler) { h.Svc = nil })
	w := f.post(t, tokenFor(t, "alice"), SendRequest{ToID: "bob", Content: "hi"})
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSendSideEffectFailureDoesNotBreakResponse(t *testing.T) {
	f := newFixture(t, func(h *SendHandler) { h.Push = failingPush{} })
	w := f.post(t, tokenFor(t, "alice"), SendRequest{ToID: "bob", Content: "hi"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, f.repo.Len())
}

type failingPush struct{}

func (failingPush) Dispatch(_ context.Context, _ *model.Message) error {
	return errs.New("push gateway down")
}
