package routes

import (
	"time"

	"campustrade_go/config"
	"campustrade_go/controllers"
	"campustrade_go/metrics"
	"campustrade_go/middleware"
	"campustrade_go/services"
	"campustrade_go/websocket"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// 认证接口限流窗口，次数由 RATE_LIMIT_PER_MINUTE 配置
const authRateWindow = time.Minute

// Dependencies 路由依赖的服务
type Dependencies struct {
	Auth           middleware.Authenticator
	Redis          *redis.Client
	Metrics        *metrics.Registry
	Hub            *websocket.Hub
	AuthService    *services.AuthService
	UserService    *services.UserService
	ListingService *services.ListingService
	OrderService   *services.OrderService
	MessageService *services.MessageService
}

// SetupRoutes 设置路由
func SetupRoutes(r *gin.Engine, deps *Dependencies) {
	// 应用全局中间件
	r.Use(middleware.CORS())
	r.Use(middleware.Logger())
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	requireAuth := middleware.AuthMiddleware(deps.Auth)

	authController := controllers.NewAuthController(deps.AuthService)
	userController := controllers.NewUserController(deps.UserService)
	listingController := controllers.NewListingController(deps.ListingService)
	orderController := controllers.NewOrderController(deps.OrderService)

	var relay controllers.MessageRelay
	if deps.Hub != nil {
		relay = deps.Hub
	}
	messageController := controllers.NewMessageController(deps.MessageService, relay)

	api := r.Group("/api")
	{
		// ====== 认证路由 (无需认证) ======
		auth := api.Group("/auth", middleware.RateLimit(deps.Redis, "auth", config.GetEnvInt("RATE_LIMIT_PER_MINUTE", 20), authRateWindow))
		{
			auth.POST("/register", authController.Register)
			auth.POST("/login", authController.Login)
		}

		// ====== 用户路由 ======
		users := api.Group("/users")
		{
			users.GET("/me", requireAuth, userController.GetMe)
			users.PUT("/me", requireAuth, userController.UpdateMe)
			users.GET("/me/stats", requireAuth, userController.GetMyStats)
			users.GET("/:id", userController.GetUser)
		}

		// ====== 商品路由 ======
		listings := api.Group("/listings")
		{
			listings.GET("", listingController.GetListings)
			listings.GET("/mine", requireAuth, listingController.GetMyListings)
			listings.GET("/favorites", requireAuth, listingController.GetFavorites)
			listings.GET("/:id", listingController.GetListing)
			listings.POST("", requireAuth, listingController.CreateListing)
			listings.PUT("/:id", requireAuth, listingController.UpdateListing)
			listings.DELETE("/:id", requireAuth, listingController.DeleteListing)
			listings.POST("/:id/favorite", requireAuth, listingController.ToggleFavorite)
		}

		// ====== 订单路由 ======
		orders := api.Group("/orders", requireAuth)
		{
			orders.POST("", orderController.CreateOrder)
			orders.GET("", orderController.ListOrders)
			orders.GET("/:id", orderController.GetOrder)
			orders.PATCH("/:id", orderController.UpdateOrder)
			orders.POST("/:id/pay", orderController.PayOrder)
		}

		// ====== 私信路由 ======
		messages := api.Group("/messages", requireAuth)
		{
			messages.GET("/conversations", messageController.GetConversations)
			messages.GET("/:peerId", messageController.GetHistory)
			messages.POST("", messageController.SendMessage)
		}
	}

	// ====== WebSocket路由 ======
	if deps.Hub != nil {
		r.GET("/ws", deps.Hub.HandleConnection)
	}
}
