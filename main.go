package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campustrade_go/config"
	"campustrade_go/events"
	"campustrade_go/metrics"
	"campustrade_go/middleware"
	"campustrade_go/routes"
	"campustrade_go/services"
	"campustrade_go/websocket"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, using system environment variables")
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// 设置环境
	env := os.Getenv("GIN_MODE")
	if env == "" {
		env = "debug"
		_ = os.Setenv("GIN_MODE", env)
	}

	// 初始化日志系统
	if err := middleware.InitLogger(env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer middleware.FlushLogger()
	logger := middleware.GetLogger()

	// 初始化数据库
	if err := config.InitDatabase(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer config.CloseDatabase()

	// 初始化Redis（失败时降级运行：无缓存、无限流、单实例推送）
	if err := config.InitializeRedis(); err != nil {
		log.Printf("⚠️  Redis unavailable, continuing without it: %v", err)
	}
	defer config.CloseRedis()

	// 初始化NATS
	if err := config.InitNATS(); err != nil {
		log.Printf("⚠️  NATS unavailable, continuing without it: %v", err)
	}
	defer config.CloseNATS()

	registry := metrics.New()
	jwtService := config.GetJWTService()
	listingCache := services.NewListingCache(config.RedisClient, config.GetEnvDuration("LISTING_CACHE_TTL", 10*time.Minute), logger)

	messageService := services.NewMessageService(config.DB, registry, logger)

	// 初始化websocket
	hub := websocket.NewHub(jwtService, messageService, config.RedisClient, logger)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := hub.Start(ctx); err != nil {
		logger.Warn("websocket relay subscription failed, running single instance", zap.Error(err))
	}
	defer hub.Close()

	orderService := services.NewOrderService(config.DB,
		services.WithOrderPublisher(buildPublisher(hub, logger)),
		services.WithOrderListingCache(listingCache),
		services.WithOrderMetrics(registry),
		services.WithOrderLogger(logger),
	)

	// 设置路由
	r := config.SetupRouter()
	routes.SetupRoutes(r, &routes.Dependencies{
		Auth:           jwtService,
		Redis:          config.RedisClient,
		Metrics:        registry,
		Hub:            hub,
		AuthService:    services.NewAuthService(config.DB, jwtService, logger),
		UserService:    services.NewUserService(config.DB),
		ListingService: services.NewListingService(config.DB, listingCache, logger),
		OrderService:   orderService,
		MessageService: messageService,
	})

	srv := config.NewHTTPServer(r)
	go func() {
		logger.Info("🚀 server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
}

// buildPublisher 组合已启用的订单事件发布者
func buildPublisher(hub *websocket.Hub, logger *zap.Logger) events.Publisher {
	publishers := events.Multi{hub}

	if config.NATSConn != nil {
		natsPublisher, err := events.NewNATSPublisher(config.NATSConn)
		if err != nil {
			logger.Warn("nats publisher disabled", zap.Error(err))
		} else {
			publishers = append(publishers, natsPublisher)
		}
	}

	if config.RedisClient != nil {
		publishers = append(publishers, events.NewRedisStreamPublisher(config.RedisClient))
	}

	return publishers
}
