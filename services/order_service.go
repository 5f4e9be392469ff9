package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campustrade_go/config"
	"campustrade_go/events"
	"campustrade_go/metrics"
	"campustrade_go/models"
	"campustrade_go/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 订单列表的角色筛选
const (
	OrderRoleBuy  = "buy"
	OrderRoleSell = "sell"
)

// PaymentMethodSimulated 模拟支付，不调用任何外部支付渠道
const PaymentMethodSimulated = "simulated"

// OrderService 订单生命周期服务
// 商品状态与订单状态只能通过 CreateOrder 和 Transition 修改
type OrderService struct {
	db        *gorm.DB
	publisher events.Publisher
	cache     *ListingCache
	metrics   *metrics.Registry
	logger    *zap.Logger
	now       func() time.Time
}

// OrderServiceOption 订单服务可选配置
type OrderServiceOption func(*OrderService)

// WithOrderPublisher 设置订单事件发布者
func WithOrderPublisher(p events.Publisher) OrderServiceOption {
	return func(s *OrderService) { s.publisher = p }
}

// WithOrderListingCache 设置商品缓存，商品状态变化时失效
func WithOrderListingCache(c *ListingCache) OrderServiceOption {
	return func(s *OrderService) { s.cache = c }
}

// WithOrderMetrics 设置指标
func WithOrderMetrics(m *metrics.Registry) OrderServiceOption {
	return func(s *OrderService) { s.metrics = m }
}

// WithOrderLogger 设置日志
func WithOrderLogger(l *zap.Logger) OrderServiceOption {
	return func(s *OrderService) { s.logger = l }
}

// NewOrderService 创建订单服务实例
func NewOrderService(db *gorm.DB, opts ...OrderServiceOption) *OrderService {
	s := &OrderService{
		db:        db,
		publisher: events.Noop{},
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PaymentInfo 模拟支付结果
type PaymentInfo struct {
	OrderID string    `json:"order_id"`
	Amount  float64   `json:"amount"`
	PaidAt  time.Time `json:"paid_at"`
	Method  string    `json:"method"`
}

// PaymentResult 支付接口返回
type PaymentResult struct {
	Message     string        `json:"message"`
	Order       *models.Order `json:"order"`
	PaymentInfo PaymentInfo   `json:"payment_info"`
}

// CreateOrder 创建订单，商品置为已售与订单写入在同一事务内完成
func (s *OrderService) CreateOrder(ctx context.Context, listingID, buyerID string) (*models.Order, error) {
	if buyerID == "" {
		return nil, s.fail("create", utils.Unauthenticated("actor is required"))
	}
	if listingID == "" {
		return nil, s.fail("create", utils.Validation("listing_id is required"))
	}

	var order *models.Order
	err := config.RunInTransaction(ctx, s.db, func(tx *gorm.DB) error {
		order = nil

		// 1. 买家必须是有效账号（已注销的账号不能下单）
		if err := tx.Where("id = ?", buyerID).First(&models.User{}).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.Unauthenticated("buyer account does not exist")
			}
			return err
		}

		// 2. 读取商品
		var listing models.Listing
		if err := tx.Where("id = ?", listingID).First(&listing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NotFound("listing %s not found", listingID)
			}
			return err
		}

		// 3. 不能购买自己发布的商品（与商品状态无关）
		if listing.SellerID == buyerID {
			return utils.Forbidden("cannot buy your own listing")
		}

		// 4. 商品必须可售
		if listing.Status != models.ListingAvailable {
			return utils.InvalidState("listing is already sold or delisted")
		}

		// 5. CAS：只有仍为 available 时才能置为 sold
		res := tx.Model(&models.Listing{}).
			Where("id = ? AND status = ?", listing.ID, models.ListingAvailable).
			Update("status", models.ListingSold)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.InvalidState("listing is already sold or delisted")
		}

		// 6. 写入订单，金额为当前价格快照
		created := &models.Order{
			ListingID: listing.ID,
			BuyerID:   buyerID,
			Amount:    listing.Price,
			Status:    models.OrderPending,
		}
		if err := tx.Create(created).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		listing.Status = models.ListingSold
		created.Listing = &listing
		order = created
		return nil
	})
	if err != nil {
		return nil, s.fail("create", err)
	}

	s.cache.Invalidate(ctx, order.ListingID)
	if s.metrics != nil {
		s.metrics.OrdersCreated.Inc()
	}
	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("listing_id", order.ListingID),
		zap.String("buyer_id", buyerID),
		zap.Float64("amount", order.Amount),
	)
	s.publish(ctx, events.OrderEvent{
		Type:       events.SubjectOrderCreated,
		OrderID:    order.ID,
		ListingID:  order.ListingID,
		BuyerID:    order.BuyerID,
		SellerID:   order.SellerID(),
		To:         order.Status,
		ActorID:    buyerID,
		Amount:     order.Amount,
		OccurredAt: order.CreatedAt,
	})

	return order, nil
}

// Transition 执行订单操作，返回新状态
func (s *OrderService) Transition(ctx context.Context, orderID string, action models.OrderAction, actorID string) (models.OrderStatus, error) {
	order, err := s.transition(ctx, orderID, action, actorID)
	if err != nil {
		return "", err
	}
	return order.Status, nil
}

// Pay 模拟支付，等同于 pay 操作
func (s *OrderService) Pay(ctx context.Context, orderID, actorID string) (*PaymentResult, error) {
	order, err := s.transition(ctx, orderID, models.ActionPay, actorID)
	if err != nil {
		return nil, err
	}

	return &PaymentResult{
		Message: "payment completed",
		Order:   order,
		PaymentInfo: PaymentInfo{
			OrderID: order.ID,
			Amount:  order.Amount,
			PaidAt:  *order.PaidAt,
			Method:  PaymentMethodSimulated,
		},
	}, nil
}

func (s *OrderService) transition(ctx context.Context, orderID string, action models.OrderAction, actorID string) (*models.Order, error) {
	if actorID == "" {
		return nil, s.fail("transition", utils.Unauthenticated("actor is required"))
	}
	if !action.IsValid() {
		return nil, s.fail("transition", utils.Validation("unknown action %q", action))
	}

	var (
		updated models.Order
		from    models.OrderStatus
	)
	err := config.RunInTransaction(ctx, s.db, func(tx *gorm.DB) error {
		// 1. 读取订单及商品
		var order models.Order
		if err := tx.Preload("Listing").Where("id = ?", orderID).First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NotFound("order %s not found", orderID)
			}
			return err
		}
		if order.Listing == nil {
			return fmt.Errorf("order %s references missing listing %s", order.ID, order.ListingID)
		}

		// 2. 终态拒绝一切操作
		if order.Status.IsTerminal() {
			return utils.InvalidState("cannot %s order: order is already %s", action, order.Status)
		}

		// 3. 只有买卖双方可以操作
		role := roleOf(&order, actorID)
		if role == 0 {
			return utils.Forbidden("not a participant of this order")
		}

		// 4. 角色必须能执行该操作，例如买家不能发货
		if !RolesFor(action).Allows(role) {
			return utils.Forbidden("%s is not allowed to %s this order", role, action)
		}

		// 5. 查找转换规则，同一操作在不同状态下允许的角色可能不同
		rule, ok := LookupTransition(order.Status, action)
		if !ok {
			return utils.InvalidState("cannot %s order in status %s", action, order.Status)
		}
		if !rule.Allowed.Allows(role) {
			return utils.Forbidden("%s is not allowed to %s this order", role, action)
		}

		// 6. CAS 写入新状态
		now := s.now()
		from = order.Status
		column := stampTransition(&order, rule.To, now)
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, from).
			Updates(map[string]interface{}{"status": rule.To, column: now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.InvalidState("order %s is no longer %s", order.ID, from)
		}
		order.Status = rule.To

		// 7. 取消订单时商品恢复可售
		if rule.ResetsListing {
			res := tx.Model(&models.Listing{}).
				Where("id = ? AND status = ?", order.ListingID, models.ListingSold).
				Update("status", models.ListingAvailable)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("listing %s is not sold while order %s is %s", order.ListingID, order.ID, from)
			}
			order.Listing.Status = models.ListingAvailable
		}

		updated = order
		return nil
	})
	if err != nil {
		return nil, s.fail("transition", err)
	}

	rule, _ := LookupTransition(from, action)
	if rule.ResetsListing {
		s.cache.Invalidate(ctx, updated.ListingID)
	}
	if s.metrics != nil {
		s.metrics.OrderTransitions.WithLabelValues(string(action), string(updated.Status)).Inc()
	}
	s.logger.Info("order transitioned",
		zap.String("order_id", updated.ID),
		zap.String("action", string(action)),
		zap.String("from", string(from)),
		zap.String("to", string(updated.Status)),
		zap.String("actor_id", actorID),
	)
	s.publish(ctx, events.OrderEvent{
		Type:       events.SubjectOrderStatusUpdated,
		OrderID:    updated.ID,
		ListingID:  updated.ListingID,
		BuyerID:    updated.BuyerID,
		SellerID:   updated.SellerID(),
		Action:     action,
		From:       from,
		To:         updated.Status,
		ActorID:    actorID,
		Amount:     updated.Amount,
		OccurredAt: s.now(),
	})

	return &updated, nil
}

// GetOrder 获取订单详情，仅买卖双方可见
func (s *OrderService) GetOrder(ctx context.Context, orderID, actorID string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Preload("Listing").
		Preload("Listing.Seller").
		Preload("Buyer").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, s.fail("get", utils.NotFound("order %s not found", orderID))
		}
		return nil, s.fail("get", err)
	}
	if order.Listing == nil {
		return nil, s.fail("get", fmt.Errorf("order %s references missing listing %s", order.ID, order.ListingID))
	}

	if roleOf(&order, actorID) == 0 {
		return nil, s.fail("get", utils.Forbidden("not a participant of this order"))
	}
	return &order, nil
}

// RoleOf 调用者在订单中的角色
func (s *OrderService) RoleOf(order *models.Order, actorID string) OrderRole {
	return roleOf(order, actorID)
}

// ListOrders 我买到的 / 我卖出的订单，按创建时间倒序
func (s *OrderService) ListOrders(ctx context.Context, actorID, role, status string) ([]models.Order, error) {
	if actorID == "" {
		return nil, s.fail("list", utils.Unauthenticated("actor is required"))
	}

	query := s.db.WithContext(ctx).
		Model(&models.Order{}).
		Preload("Listing").
		Preload("Listing.Seller").
		Preload("Buyer")

	switch role {
	case "", OrderRoleBuy:
		query = query.Where("orders.buyer_id = ?", actorID)
	case OrderRoleSell:
		query = query.
			Joins("JOIN listings ON listings.id = orders.listing_id").
			Where("listings.seller_id = ?", actorID)
	default:
		return nil, s.fail("list", utils.Validation("role must be one of: buy sell"))
	}

	if status != "" && status != "all" {
		st := models.OrderStatus(status)
		if !st.IsValid() {
			return nil, s.fail("list", utils.Validation("unknown order status %q", status))
		}
		query = query.Where("orders.status = ?", st)
	}

	orders := []models.Order{}
	if err := query.Order("orders.created_at DESC").Find(&orders).Error; err != nil {
		return nil, s.fail("list", err)
	}
	return orders, nil
}

// publish 发布失败只记录日志，不影响已提交的事务
func (s *OrderService) publish(ctx context.Context, event events.OrderEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishOrderEvent(ctx, event); err != nil {
		s.logger.Warn("failed to publish order event",
			zap.String("type", event.Type),
			zap.String("order_id", event.OrderID),
			zap.Error(err),
		)
	}
}

// fail 统一错误出口：转换为业务错误并记录指标
func (s *OrderService) fail(operation string, err error) error {
	appErr := utils.AsAppError(err)
	if s.metrics != nil {
		s.metrics.OrderErrors.WithLabelValues(operation, string(appErr.Code)).Inc()
	}
	if appErr.Code == utils.CodeInternal {
		s.logger.Error("order operation failed", zap.String("operation", operation), zap.Error(err))
	}
	return appErr
}
