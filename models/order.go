package models

import (
	"time"

	"gorm.io/gorm"
)

// OrderStatus 订单状态
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderShipped   OrderStatus = "shipped"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

// OrderStatuses 所有合法的订单状态
var OrderStatuses = []OrderStatus{OrderPending, OrderPaid, OrderShipped, OrderCompleted, OrderCancelled}

// IsValid 是否为已知状态
func (s OrderStatus) IsValid() bool {
	for _, status := range OrderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsTerminal 终态不再接受任何操作
func (s OrderStatus) IsTerminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

// OrderAction 订单操作
type OrderAction string

const (
	ActionPay     OrderAction = "pay"
	ActionShip    OrderAction = "ship"
	ActionConfirm OrderAction = "confirm"
	ActionCancel  OrderAction = "cancel"
)

// IsValid 是否为已知操作
func (a OrderAction) IsValid() bool {
	switch a {
	case ActionPay, ActionShip, ActionConfirm, ActionCancel:
		return true
	}
	return false
}

// Order 订单模型
type Order struct {
	ID          string      `gorm:"type:varchar(36);primaryKey" json:"id"`
	ListingID   string      `gorm:"type:varchar(36);index;not null" json:"listing_id"`
	BuyerID     string      `gorm:"type:varchar(36);index;not null" json:"buyer_id"`
	Amount      float64     `gorm:"type:decimal(10,2);not null;comment:下单时的价格快照" json:"amount"`
	Status      OrderStatus `gorm:"type:varchar(20);index;not null;default:pending" json:"status"`
	PaidAt      *time.Time  `json:"paid_at,omitempty"`
	ShippedAt   *time.Time  `json:"shipped_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	CancelledAt *time.Time  `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time   `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`

	// 关联关系
	Listing *Listing `gorm:"foreignKey:ListingID" json:"listing,omitempty"`
	Buyer   *User    `gorm:"foreignKey:BuyerID" json:"buyer,omitempty"`
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

// BeforeCreate 创建前钩子
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = generateUUID()
	}
	if o.Status == "" {
		o.Status = OrderPending
	}
	return nil
}

// SellerID 订单卖家（来自关联商品）
func (o *Order) SellerID() string {
	if o.Listing == nil {
		return ""
	}
	return o.Listing.SellerID
}
