package config

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RedisClient 全局 Redis 客户端实例，未启用时为 nil
var RedisClient *redis.Client

// InitializeRedis 初始化 Redis 客户端
func InitializeRedis() error {
	if !GetServerConfig().RedisEnabled {
		log.Println("ℹ️  Redis is disabled in configuration")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         GetEnv("REDIS_ADDR", "localhost:6379"),
		Password:     GetEnv("REDIS_PASSWORD", ""),
		DB:           GetEnvInt("REDIS_DB", 0),
		PoolSize:     10,              // 连接池大小
		MinIdleConns: 5,               // 最小空闲连接
		MaxRetries:   3,               // 最大重试次数
		DialTimeout:  5 * time.Second, // 连接超时
		ReadTimeout:  3 * time.Second, // 读取超时
		WriteTimeout: 3 * time.Second, // 写入超时
		PoolTimeout:  4 * time.Second, // 从连接池获取连接的超时
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	RedisClient = client
	log.Println("✅ Redis client initialized successfully")
	return nil
}

// CloseRedis 关闭 Redis 连接
func CloseRedis() error {
	if RedisClient != nil {
		return RedisClient.Close()
	}
	return nil
}

// ServerConfig 服务器配置结构
type ServerConfig struct {
	Port         string
	Mode         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	RedisEnabled bool // Redis是否启用
}

// GetServerConfig 获取服务器配置
func GetServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:         GetEnv("SERVER_PORT", "8080"),
		Mode:         GetEnv("GIN_MODE", "debug"),
		ReadTimeout:  GetEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
		WriteTimeout: GetEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		RedisEnabled: GetEnvBool("REDIS_ENABLED", true),
	}
}

// SetupRouter 创建Gin实例并注册健康检查
func SetupRouter() *gin.Engine {
	gin.SetMode(GetServerConfig().Mode)

	r := gin.New()
	r.Use(gin.Recovery()) // 恢复panic

	// 健康检查端点（包括数据库和Redis状态）
	r.GET("/health", healthHandler)

	return r
}

func healthHandler(c *gin.Context) {
	health := gin.H{
		"status":  "ok",
		"message": "Server is running",
	}

	// 检查数据库状态
	if DB != nil {
		if sqlDB, err := DB.DB(); err != nil {
			health["database"] = "error"
		} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
			health["database"] = "disconnected"
		} else {
			health["database"] = "connected"
		}
	} else {
		health["database"] = "not initialized"
	}

	// 检查Redis状态
	if RedisClient != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := RedisClient.Ping(ctx).Err(); err == nil {
			health["redis"] = "connected"
		} else {
			health["redis"] = "disconnected"
		}
	} else {
		health["redis"] = "not initialized"
	}

	if NATSConn != nil {
		health["nats"] = NATSConn.Status().String()
	}

	c.JSON(http.StatusOK, health)
}

// NewHTTPServer 创建HTTP服务器
func NewHTTPServer(handler http.Handler) *http.Server {
	cfg := GetServerConfig()
	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}
