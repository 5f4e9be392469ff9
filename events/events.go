// Package events 发布订单领域事件，供通知、统计等下游消费。
package events

import (
	"context"
	"errors"
	"time"

	"campustrade_go/models"
)

// 事件类型，同时用作 NATS subject
const (
	SubjectOrderCreated       = "order.created"
	SubjectOrderStatusUpdated = "order.status.updated"
)

// OrderEvent 订单事件
type OrderEvent struct {
	Type       string             `json:"type"`
	OrderID    string             `json:"order_id"`
	ListingID  string             `json:"listing_id"`
	BuyerID    string             `json:"buyer_id"`
	SellerID   string             `json:"seller_id"`
	Action     models.OrderAction `json:"action,omitempty"`
	From       models.OrderStatus `json:"from,omitempty"`
	To         models.OrderStatus `json:"to"`
	ActorID    string             `json:"actor_id"`
	Amount     float64            `json:"amount"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// Publisher 订单事件发布者
type Publisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// Multi 将事件依次发布给多个发布者，汇总所有错误
type Multi []Publisher

func (m Multi) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.PublishOrderEvent(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Noop 丢弃所有事件
type Noop struct{}

func (Noop) PublishOrderEvent(context.Context, OrderEvent) error { return nil }
