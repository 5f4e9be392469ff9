package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSPublisher 通过 NATS 发布订单事件
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher 创建 NATS 发布者
func NewNATSPublisher(conn *nats.Conn) (*NATSPublisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("NATS connection cannot be nil")
	}
	return &NATSPublisher{conn: conn}, nil
}

func (p *NATSPublisher) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event for subject %s: %w", event.Type, err)
	}

	if err := p.conn.Publish(event.Type, data); err != nil {
		return fmt.Errorf("failed to publish order event to NATS subject %s: %w", event.Type, err)
	}
	return nil
}
