package websocket

import (
	"context"
	"time"

	"campustrade_go/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxFrameSize   = 8 * 1024
	storeOpTimeout = 5 * time.Second
)

// Client WebSocket客户端
type Client struct {
	hub    *Hub
	userID string
	conn   *websocket.Conn
	send   chan *WSMessage
}

func newClient(hub *Hub, userID string, conn *websocket.Conn) *Client {
	return &Client{
		hub:    hub,
		userID: userID,
		conn:   conn,
		send:   make(chan *WSMessage, sendBufferSize),
	}
}

// trySend 非阻塞写入发送队列，调用方需持有 hub.mu 读锁
func (c *Client) trySend(msg *WSMessage) bool {
	select {
	case c.send <- msg:
		return true
	default:
		// 发送队列满了，断开连接
		c.hub.logger.Warn("client send queue is full, closing connection", zap.String("user_id", c.userID))
		go c.conn.Close()
		return false
	}
}

// reply 回复当前连接
func (c *Client) reply(msg *WSMessage) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c.userID][c]; ok {
		c.trySend(msg)
	}
}

// readPump 从WebSocket连接读取消息
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read error", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		msg.From = c.userID
		msg.Timestamp = time.Now().Unix()
		c.handleMessage(&msg)
	}
}

// writePump 向WebSocket连接写入消息
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// 通道关闭
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.hub.logger.Warn("websocket write error", zap.String("user_id", c.userID), zap.Error(err))
				return
			}

		case <-ticker.C:
			// 发送心跳
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 处理接收到的消息
func (c *Client) handleMessage(msg *WSMessage) {
	switch msg.Type {
	case TypeSendMessage:
		c.handleSendMessage(msg)
	case TypeRead:
		c.handleRead(msg)
	case TypePing:
		c.reply(&WSMessage{Type: TypePong, Timestamp: time.Now().Unix()})
	default:
		c.replyError(utils.Validation("unknown message type %q", msg.Type))
	}
}

// handleSendMessage 保存私信后推送给接收者，并回执发送者
func (c *Client) handleSendMessage(msg *WSMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()

	stored, err := c.hub.messages.SendMessage(ctx, c.userID, msg.ReceiverID, msg.Content)
	if err != nil {
		c.replyError(err)
		return
	}

	c.hub.RelayMessage(stored)
	c.reply(&WSMessage{Type: TypeMessageSent, Data: stored, Timestamp: time.Now().Unix()})
}

// handleRead 标记对方发来的消息为已读
func (c *Client) handleRead(msg *WSMessage) {
	if msg.PeerID == "" {
		c.replyError(utils.Validation("peer_id is required"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()

	if _, err := c.hub.messages.MarkRead(ctx, c.userID, msg.PeerID); err != nil {
		c.replyError(err)
		return
	}
	c.hub.SendToUser(msg.PeerID, &WSMessage{Type: TypeRead, PeerID: c.userID, From: c.userID})
}

func (c *Client) replyError(err error) {
	appErr := utils.AsAppError(err)
	c.reply(&WSMessage{
		Type:      TypeError,
		Data:      utils.ErrorBody{Code: appErr.Code, Message: appErr.Message},
		Timestamp: time.Now().Unix(),
	})
}
