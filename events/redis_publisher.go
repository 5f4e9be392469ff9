package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	// OrderEventStream 订单事件 Redis Stream
	OrderEventStream = "order_events"
	// orderEventStreamMaxLen Stream 近似保留长度
	orderEventStreamMaxLen = 100000
)

// RedisStreamPublisher 将订单事件写入 Redis Stream
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
}

// NewRedisStreamPublisher 创建 Redis Stream 发布者
func NewRedisStreamPublisher(client *redis.Client) *RedisStreamPublisher {
	return &RedisStreamPublisher{client: client, stream: OrderEventStream}
}

func (p *RedisStreamPublisher) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: orderEventStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"type":      event.Type,
			"order_id":  event.OrderID,
			"status":    string(event.To),
			"actor_id":  event.ActorID,
			"timestamp": event.OccurredAt.Unix(),
			"full_data": string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to append order event to stream %s: %w", p.stream, err)
	}
	return nil
}
