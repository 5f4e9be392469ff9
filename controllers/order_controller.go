package controllers

import (
	"strings"

	"campustrade_go/middleware"
	"campustrade_go/models"
	"campustrade_go/services"
	"campustrade_go/utils"

	"github.com/gin-gonic/gin"
)

// OrderController 订单控制器
type OrderController struct {
	orderService *services.OrderService
}

// NewOrderController 创建订单控制器实例
func NewOrderController(orderService *services.OrderService) *OrderController {
	return &OrderController{orderService: orderService}
}

// CreateOrderRequest 下单请求，listingId 为旧客户端字段
type CreateOrderRequest struct {
	ListingID       string `json:"listing_id"`
	LegacyListingID string `json:"listingId"`
}

func (req *CreateOrderRequest) listingID() string {
	if id := strings.TrimSpace(req.ListingID); id != "" {
		return id
	}
	return strings.TrimSpace(req.LegacyListingID)
}

// UpdateOrderRequest 订单操作请求
type UpdateOrderRequest struct {
	Action models.OrderAction `json:"action" binding:"required"`
}

// OrderView 订单详情，附带当前用户可执行的操作
type OrderView struct {
	*models.Order
	AvailableActions []models.OrderAction `json:"available_actions"`
}

// CreateOrder 下单
// @Summary 下单
// @Tags orders
// @Router /api/orders [post]
func (oc *OrderController) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := utils.BindAndValidate(c, &req); err != nil {
		utils.Fail(c, err)
		return
	}

	listingID := req.listingID()
	if listingID == "" {
		utils.Fail(c, utils.Validation("listing_id is required"))
		return
	}

	order, err := oc.orderService.CreateOrder(c.Request.Context(), listingID, middleware.CurrentUserID(c))
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.Created(c, order)
}

// ListOrders 我买到的 / 我卖出的订单
// @Summary 订单列表
// @Tags orders
// @Param role query string false "buy 或 sell" default(buy)
// @Param status query string false "订单状态"
// @Router /api/orders [get]
func (oc *OrderController) ListOrders(c *gin.Context) {
	role := c.Query("role")
	if role == "" {
		// 兼容旧参数名
		role = c.Query("type")
	}

	orders, err := oc.orderService.ListOrders(c.Request.Context(), middleware.CurrentUserID(c), role, c.Query("status"))
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.Success(c, orders)
}

// GetOrder 订单详情
// @Summary 订单详情
// @Tags orders
// @Router /api/orders/{id} [get]
func (oc *OrderController) GetOrder(c *gin.Context) {
	actorID := middleware.CurrentUserID(c)

	order, err := oc.orderService.GetOrder(c.Request.Context(), c.Param("id"), actorID)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.Success(c, OrderView{
		Order:            order,
		AvailableActions: services.AvailableActions(order.Status, oc.orderService.RoleOf(order, actorID)),
	})
}

// UpdateOrder 执行订单操作（pay / ship / confirm / cancel）
// @Summary 订单操作
// @Tags orders
// @Router /api/orders/{id} [patch]
func (oc *OrderController) UpdateOrder(c *gin.Context) {
	var req UpdateOrderRequest
	if err := utils.BindAndValidate(c, &req); err != nil {
		utils.Fail(c, err)
		return
	}

	status, err := oc.orderService.Transition(c.Request.Context(), c.Param("id"), req.Action, middleware.CurrentUserID(c))
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.Success(c, gin.H{"status": status})
}

// PayOrder 模拟支付，与 PATCH action=pay 走同一状态流转
// @Summary 支付订单
// @Tags orders
// @Router /api/orders/{id}/pay [post]
func (oc *OrderController) PayOrder(c *gin.Context) {
	result, err := oc.orderService.Pay(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.Success(c, result)
}
