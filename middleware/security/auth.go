package security

import (
	"net/http"
	"strings"

	"SCProject/tools/errs"
	sec "SCProject/tools/security"

	"github.com/gin-gonic/gin"
)

// —— context key ——
// 后续 handler 统一用这俩 key 读取
const (
	CtxAuthKey   = "authorization" // 原始 token
	CtxUserIDKey = "authUserId"    // 校验后的 sub
)

type Options struct {
	HeaderToken               string // 默认 "authorization"
	EnableAuthorizationBearer bool   // 默认 true，兼容 Authorization: Bearer xxx
	JWT                       sec.Options
}

func DefaultOptions(secret []byte) *Options {
	return &Options{
		HeaderToken:               CtxAuthKey,
		EnableAuthorizationBearer: true,
		JWT:                       sec.DefaultOptions(secret),
	}
}

func Middleware(opts *Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 头名大小写不敏感，默认的 "authorization" 和标准的
		// Authorization: Bearer xxx 是同一个头，裸 token 和
		// Bearer 前缀两种形态都要认。
		token := bearerToken(c.GetHeader(opts.HeaderToken))

		if token == "" && opts.EnableAuthorizationBearer {
			token = bearerToken(c.GetHeader("Authorization"))
		}

		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenMissing)
			return
		}

		userID, err := sec.Verify(opts.JWT, token)
		if err != nil {
			if sec.IsExpired(err) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenExpired)
			} else {
				c.AbortWithStatusJSON(http.StatusUnauthorized, errs.ErrTokenInvalid)
			}
			return
		}

		c.Set(CtxAuthKey, token)
		c.Set(CtxUserIDKey, userID)
		c.Next()
	}
}

// bearerToken 去掉可选的 "Bearer " 前缀（大小写不敏感）并 trim。
func bearerToken(v string) string {
	v = strings.TrimSpace(v)
	const prefix = "bearer "
	if len(v) >= len(prefix) && strings.EqualFold(v[:len(prefix)], prefix) {
		return strings.TrimSpace(v[len(prefix):])
	}
	return v
}
