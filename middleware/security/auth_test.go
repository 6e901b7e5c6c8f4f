package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	sec "SCProject/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("mw-test-secret")

func newAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", Middleware(DefaultOptions(testSecret)), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(CtxUserIDKey))
	})
	return r
}

func get(r *gin.Engine, header, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMiddlewareAcceptsBothTokenForms(t *testing.T) {
	r := newAuthRouter(t)
	token, _, err := sec.Generate(sec.DefaultOptions(testSecret), "alice")
	require.NoError(t, err)

	// 标准形态：Authorization: Bearer <tok>（HTTP 头名不分大小写，
	// 和默认配置的 "authorization" 是同一个头）
	w := get(r, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "alice", w.Body.String())

	// 前缀大小写无关
	w = get(r, "Authorization", "bEaReR "+token)
	require.Equal(t, http.StatusOK, w.Code)

	// 裸 token 也认
	w = get(r, "authorization", token)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "alice", w.Body.String())
}

func TestMiddlewareRejects(t *testing.T) {
	r := newAuthRouter(t)

	w := get(r, "", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(r, "Authorization", "Bearer ")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(r, "Authorization", "Bearer not-a-jwt")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	forged, _, err := sec.Generate(sec.DefaultOptions([]byte("other")), "alice")
	require.NoError(t, err)
	w = get(r, "Authorization", "Bearer "+forged)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
