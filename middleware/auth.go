package middleware

import (
	"strings"

	"campustrade_go/utils"

	"github.com/gin-gonic/gin"
)

// gin.Context 中的键
const (
	ContextKeyUserID    = "user_id"
	ContextKeyRequestID = "request_id"
)

// Authenticator 将凭证解析为调用者ID
type Authenticator interface {
	Authenticate(credential string) (string, error)
}

// AuthMiddleware 校验 Authorization: Bearer <token>，并写入调用者ID
func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			utils.Abort(c, utils.Unauthenticated("authorization header is required"))
			return
		}
		if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			utils.Abort(c, utils.Unauthenticated("authorization header must use the Bearer scheme"))
			return
		}

		userID, err := auth.Authenticate(header)
		if err != nil {
			utils.Abort(c, err)
			return
		}

		c.Set(ContextKeyUserID, userID)
		c.Next()
	}
}

// CurrentUserID 当前调用者ID，未认证时为空
func CurrentUserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}
