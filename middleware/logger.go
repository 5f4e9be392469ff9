package middleware

import (
	"context"
	"encoding/json"
	"time"

	"campustrade_go/config"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	accessLogStream       = "access_logs"
	accessLogStreamMaxLen = 100000
	accessLogWorkers      = 3
	accessLogQueueSize    = 1000
)

var (
	logger           = zap.NewNop()
	accessLogChannel chan *AccessLog
)

// AccessLog 访问日志结构
type AccessLog struct {
	Time       time.Time `json:"time"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Query      string    `json:"query,omitempty"`
	IP         string    `json:"ip"`
	UserAgent  string    `json:"user_agent,omitempty"`
	StatusCode int       `json:"status_code"`
	Latency    int64     `json:"latency_ms"`
	UserID     string    `json:"user_id,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// InitLogger 初始化日志系统
func InitLogger(mode string) error {
	var zapConfig zap.Config

	if mode == gin.DebugMode || mode == "" {
		// 开发环境 - 控制台输出
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		// 生产环境 - JSON格式
		zapConfig = zap.NewProductionConfig()
	}
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	built, err := zapConfig.Build()
	if err != nil {
		return err
	}
	logger = built

	// 启动日志处理worker池
	accessLogChannel = make(chan *AccessLog, accessLogQueueSize)
	for i := 0; i < accessLogWorkers; i++ {
		go func() {
			for accessLog := range accessLogChannel {
				accessLog.write()
			}
		}()
	}

	return nil
}

// GetLogger 获取全局日志实例
func GetLogger() *zap.Logger {
	return logger
}

// write 记录结构化日志，并写入Redis Stream（用于日志分析和监控）
func (al *AccessLog) write() {
	logger.Info("access_log",
		zap.String("method", al.Method),
		zap.String("path", al.Path),
		zap.String("query", al.Query),
		zap.String("ip", al.IP),
		zap.String("user_agent", al.UserAgent),
		zap.Int("status_code", al.StatusCode),
		zap.Int64("latency_ms", al.Latency),
		zap.String("user_id", al.UserID),
		zap.String("request_id", al.RequestID),
		zap.String("error", al.Error),
	)

	if config.RedisClient == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	logData, _ := json.Marshal(al)
	err := config.RedisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: accessLogStream,
		MaxLen: accessLogStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"timestamp":   al.Time.Unix(),
			"method":      al.Method,
			"path":        al.Path,
			"status_code": al.StatusCode,
			"latency_ms":  al.Latency,
			"ip":          al.IP,
			"user_id":     al.UserID,
			"full_data":   string(logData),
		},
	}).Err()
	if err != nil {
		logger.Debug("failed to write access log to redis", zap.Error(err))
	}
}

// Logger 返回访问日志中间件
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		// 请求ID
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(ContextKeyRequestID, requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()

		accessLog := &AccessLog{
			Time:       start,
			Method:     c.Request.Method,
			Path:       c.Request.URL.Path,
			Query:      c.Request.URL.RawQuery,
			IP:         c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
			StatusCode: c.Writer.Status(),
			Latency:    time.Since(start).Milliseconds(),
			UserID:     c.GetString(ContextKeyUserID),
			RequestID:  requestID,
		}
		if len(c.Errors) > 0 {
			accessLog.Error = c.Errors.String()
		}

		// 将日志放入队列（异步处理），队列满时丢弃，保证请求不被阻塞
		if accessLogChannel == nil {
			return
		}
		select {
		case accessLogChannel <- accessLog:
		default:
			logger.Warn("access log channel is full, dropping log",
				zap.String("method", accessLog.Method),
				zap.String("path", accessLog.Path))
		}
	}
}

// ErrorLogger 错误日志记录
func ErrorLogger(msg string, fields ...zap.Field) {
	logger.Error(msg, fields...)
}

// InfoLogger 信息日志记录
func InfoLogger(msg string, fields ...zap.Field) {
	logger.Info(msg, fields...)
}

// FlushLogger 刷新日志缓冲区
func FlushLogger() {
	_ = logger.Sync()
}
