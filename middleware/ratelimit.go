package middleware

import (
	"time"

	"campustrade_go/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimit 按调用者（未登录时按IP）限流，client 为 nil 时不限流
func RateLimit(client *redis.Client, scope string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil {
			c.Next()
			return
		}

		key := CurrentUserID(c)
		if key == "" {
			key = "ip:" + c.ClientIP()
		}

		allowed, err := utils.APIRateLimit(c.Request.Context(), client, scope+":"+key, limit, window)
		if err != nil {
			// Redis异常时放行
			logger.Warn("rate limiter unavailable", zap.Error(err))
		}
		if !allowed {
			utils.Abort(c, utils.RateLimited("too many requests, please try again later"))
			return
		}
		c.Next()
	}
}
