package utils

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Response 统一响应结构
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody 错误信息
type ErrorBody struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// PageData 分页数据
type PageData struct {
	Items interface{} `json:"items"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

// Paginate 分页响应
func Paginate(c *gin.Context, items interface{}, total int64, page, limit int) {
	Success(c, PageData{Items: items, Total: total, Page: page, Limit: limit})
}

// Fail 错误响应，状态码由错误类型决定
func Fail(c *gin.Context, err error) {
	appErr := AsAppError(err)
	if appErr.Code == CodeInternal && appErr.Cause != nil {
		_ = c.Error(appErr.Cause)
	}
	c.JSON(appErr.HTTPStatus(), Response{
		Success: false,
		Error:   &ErrorBody{Code: appErr.Code, Message: appErr.Message},
	})
}

// Abort 错误响应并终止后续处理器
func Abort(c *gin.Context, err error) {
	Fail(c, err)
	c.Abort()
}

// APIRateLimit API限流（使用Redis的INCR和EXPIRE）
func APIRateLimit(ctx context.Context, client *redis.Client, key string, limit int, window time.Duration) (bool, error) {
	if client == nil || limit <= 0 {
		return true, nil
	}

	redisKey := fmt.Sprintf("ratelimit:api:%s", key)
	count, err := client.Incr(ctx, redisKey).Result()
	if err != nil {
		return true, err
	}

	// 第一次请求时设置过期时间，失败时放行并返回错误，下一个请求会补设
	if count == 1 {
		if err := client.Expire(ctx, redisKey, window).Err(); err != nil {
			return true, err
		}
	}

	allowed := count <= int64(limit)
	if !allowed {
		// 计数键没有过期时间会导致永久限流
		ttl, err := client.TTL(ctx, redisKey).Result()
		if err != nil {
			return false, err
		}
		if ttl == -1 {
			if err := client.Expire(ctx, redisKey, window).Err(); err != nil {
				return false, err
			}
		}
	}
	return allowed, nil
}
