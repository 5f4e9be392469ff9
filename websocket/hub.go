// Package websocket 实时通道：私信转发与订单状态推送。
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"campustrade_go/events"
	"campustrade_go/models"
	"campustrade_go/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// relayChannel 多实例之间转发消息的 Redis 频道
	relayChannel = "chat:relay"
	// onlineUsersKey 在线用户集合
	onlineUsersKey = "online:users"

	sendBufferSize = 256
	redisTimeout   = 2 * time.Second
)

// 消息类型
const (
	TypeSendMessage    = "send_message"
	TypeReceiveMessage = "receive_message"
	TypeMessageSent    = "message_sent"
	TypeRead           = "read"
	TypePing           = "ping"
	TypePong           = "pong"
	TypeError          = "error"
	TypeOrderUpdate    = "order_update"
)

// WSMessage WebSocket消息结构
type WSMessage struct {
	Type       string      `json:"type"`
	ReceiverID string      `json:"receiver_id,omitempty"`
	PeerID     string      `json:"peer_id,omitempty"`
	Content    string      `json:"content,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Timestamp  int64       `json:"timestamp"`
	From       string      `json:"from,omitempty"`
}

// relayEnvelope Redis 上转发的消息，Origin 用于跳过本实例发出的消息
type relayEnvelope struct {
	Origin  string     `json:"origin"`
	UserID  string     `json:"user_id"`
	Message *WSMessage `json:"message"`
}

// Authenticator 将凭证解析为用户ID
type Authenticator interface {
	Authenticate(credential string) (string, error)
}

// MessageStore 私信持久化
type MessageStore interface {
	SendMessage(ctx context.Context, senderID, receiverID, content string) (*models.Message, error)
	MarkRead(ctx context.Context, actorID, peerID string) (int64, error)
}

// Hub 管理所有连接，一个用户可以有多个连接
type Hub struct {
	instanceID string
	auth       Authenticator
	messages   MessageStore
	redis      *redis.Client
	logger     *zap.Logger
	upgrader   websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}

	pubsub *redis.PubSub
	wg     sync.WaitGroup
}

// NewHub 创建连接中心，redisClient 为 nil 时只在本实例内转发
func NewHub(auth Authenticator, messages MessageStore, redisClient *redis.Client, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		instanceID: uuid.NewString(),
		auth:       auth,
		messages:   messages,
		redis:      redisClient,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 移动端不携带 Origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]map[*Client]struct{}),
	}
}

// Start 订阅 Redis 频道（多实例部署时同步消息）
func (h *Hub) Start(ctx context.Context) error {
	if h.redis == nil {
		return nil
	}

	h.pubsub = h.redis.Subscribe(ctx, relayChannel)
	if _, err := h.pubsub.Receive(ctx); err != nil {
		_ = h.pubsub.Close()
		h.pubsub = nil
		return err
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for msg := range h.pubsub.Channel() {
			var env relayEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				h.logger.Warn("invalid relay payload", zap.Error(err))
				continue
			}
			if env.Origin == h.instanceID || env.Message == nil {
				continue
			}
			h.deliverLocal(env.UserID, env.Message)
		}
	}()

	h.logger.Info("websocket hub subscribed to relay channel", zap.String("instance_id", h.instanceID))
	return nil
}

// Close 关闭订阅和所有连接
func (h *Hub) Close() {
	if h.pubsub != nil {
		_ = h.pubsub.Close()
	}
	h.wg.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conns := range h.clients {
		for client := range conns {
			_ = client.conn.Close()
		}
	}
}

// HandleConnection 认证后将HTTP连接升级为WebSocket连接
func (h *Hub) HandleConnection(c *gin.Context) {
	credential := c.Query("token")
	if credential == "" {
		credential = c.GetHeader("Authorization")
	}
	userID, err := h.auth.Authenticate(credential)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade connection", zap.String("user_id", userID), zap.Error(err))
		return
	}

	client := newClient(h, userID, conn)
	h.register(client)

	go client.writePump()
	go client.readPump()
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	conns, ok := h.clients[client.userID]
	if !ok {
		conns = make(map[*Client]struct{})
		h.clients[client.userID] = conns
	}
	conns[client] = struct{}{}
	h.mu.Unlock()

	if !ok {
		h.setOnline(client.userID, true)
	}
	h.logger.Info("websocket connected", zap.String("user_id", client.userID))
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	conns, ok := h.clients[client.userID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := conns[client]; !exists {
		h.mu.Unlock()
		return
	}
	delete(conns, client)
	lastConn := len(conns) == 0
	if lastConn {
		delete(h.clients, client.userID)
	}
	close(client.send)
	h.mu.Unlock()

	if lastConn {
		h.setOnline(client.userID, false)
	}
	h.logger.Info("websocket disconnected", zap.String("user_id", client.userID))
}

// setOnline 更新Redis在线用户集合
func (h *Hub) setOnline(userID string, online bool) {
	if h.redis == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	var err error
	if online {
		err = h.redis.SAdd(ctx, onlineUsersKey, userID).Err()
	} else {
		err = h.redis.SRem(ctx, onlineUsersKey, userID).Err()
	}
	if err != nil {
		h.logger.Warn("failed to update online users", zap.String("user_id", userID), zap.Error(err))
	}
}

// SendToUser 推送给用户的所有连接，包括其他实例上的连接
func (h *Hub) SendToUser(userID string, msg *WSMessage) {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().Unix()
	}
	h.deliverLocal(userID, msg)

	if h.redis == nil {
		return
	}
	payload, err := json.Marshal(relayEnvelope{Origin: h.instanceID, UserID: userID, Message: msg})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	if err := h.redis.Publish(ctx, relayChannel, payload).Err(); err != nil {
		h.logger.Warn("failed to publish relay message", zap.String("user_id", userID), zap.Error(err))
	}
}

// deliverLocal 推送给本实例上该用户的连接，返回投递的连接数
func (h *Hub) deliverLocal(userID string, msg *WSMessage) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for client := range h.clients[userID] {
		if client.trySend(msg) {
			delivered++
		}
	}
	return delivered
}

// RelayMessage 将已保存的私信推送给接收者
func (h *Hub) RelayMessage(message *models.Message) {
	h.SendToUser(message.ReceiverID, &WSMessage{
		Type:      TypeReceiveMessage,
		Data:      message,
		From:      message.SenderID,
		Timestamp: message.CreatedAt.Unix(),
	})
}

// PublishOrderEvent 订单状态变化时通知买卖双方（包括操作者的其他设备）
func (h *Hub) PublishOrderEvent(_ context.Context, event events.OrderEvent) error {
	for _, userID := range []string{event.BuyerID, event.SellerID} {
		if userID == "" {
			continue
		}
		h.SendToUser(userID, &WSMessage{
			Type:      TypeOrderUpdate,
			Data:      event,
			From:      event.ActorID,
			Timestamp: event.OccurredAt.Unix(),
		})
	}
	return nil
}

// IsConnected 用户在本实例上是否有连接
func (h *Hub) IsConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// OnlineUsers 在线用户列表（Redis不可用时只返回本实例的用户）
func (h *Hub) OnlineUsers(ctx context.Context) ([]string, error) {
	if h.redis != nil {
		return h.redis.SMembers(ctx, onlineUsersKey).Result()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	users := make([]string, 0, len(h.clients))
	for userID := range h.clients {
		users = append(users, userID)
	}
	return users, nil
}
