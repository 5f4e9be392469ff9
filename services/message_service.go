package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"campustrade_go/metrics"
	"campustrade_go/models"
	"campustrade_go/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MaxMessageLength 单条消息最大字符数
const MaxMessageLength = 1000

// conversationScanLimit 构建会话列表时扫描的最近消息条数
const conversationScanLimit = 500

// MessageService 私信服务
type MessageService struct {
	db      *gorm.DB
	metrics *metrics.Registry
	logger  *zap.Logger
}

// NewMessageService 创建私信服务实例
func NewMessageService(db *gorm.DB, m *metrics.Registry, logger *zap.Logger) *MessageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageService{db: db, metrics: m, logger: logger}
}

// Conversation 会话摘要
type Conversation struct {
	Peer        models.PublicUser `json:"peer"`
	LastMessage models.Message    `json:"last_message"`
	UnreadCount int64             `json:"unread_count"`
}

// SendMessage 持久化一条私信
func (ms *MessageService) SendMessage(ctx context.Context, senderID, receiverID, content string) (*models.Message, error) {
	// 1. 参数校验
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, utils.Validation("message content is required")
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return nil, utils.Validation("message content must be at most %d characters", MaxMessageLength)
	}
	if receiverID == "" {
		return nil, utils.Validation("receiver_id is required")
	}
	if senderID == receiverID {
		return nil, utils.Validation("cannot send a message to yourself")
	}

	db := ms.db.WithContext(ctx)

	// 2. 双方必须存在
	var sender models.User
	if err := db.Where("id = ?", senderID).First(&sender).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.Unauthenticated("sender does not exist")
		}
		return nil, utils.Internal(err)
	}
	var receiverCount int64
	if err := db.Model(&models.User{}).Where("id = ?", receiverID).Count(&receiverCount).Error; err != nil {
		return nil, utils.Internal(err)
	}
	if receiverCount == 0 {
		return nil, utils.NotFound("user %s not found", receiverID)
	}

	// 3. 写入消息
	message := models.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Type:       models.MessageTypeText,
	}
	if err := db.Create(&message).Error; err != nil {
		return nil, utils.Internal(err)
	}
	message.Sender = &sender

	if ms.metrics != nil {
		ms.metrics.ChatMessages.Inc()
	}
	ms.logger.Debug("message stored",
		zap.String("message_id", message.ID),
		zap.String("sender_id", senderID),
		zap.String("receiver_id", receiverID),
	)
	return &message, nil
}

// GetHistory 与某人的聊天记录（按时间倒序分页），并将对方发来的消息标记为已读
func (ms *MessageService) GetHistory(ctx context.Context, actorID, peerID string, page, limit int) ([]models.Message, int64, error) {
	q := NewPagination(page, limit)

	query := ms.db.WithContext(ctx).Model(&models.Message{}).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", actorID, peerID, peerID, actorID).
		Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, utils.Internal(err)
	}

	messages := []models.Message{}
	if err := query.
		Order("created_at DESC").
		Limit(q.Limit).
		Offset(q.Offset()).
		Find(&messages).Error; err != nil {
		return nil, 0, utils.Internal(err)
	}

	if _, err := ms.MarkRead(ctx, actorID, peerID); err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

// MarkRead 将 peer 发给 actor 的消息标记为已读，返回更新条数
func (ms *MessageService) MarkRead(ctx context.Context, actorID, peerID string) (int64, error) {
	res := ms.db.WithContext(ctx).Model(&models.Message{}).
		Where("sender_id = ? AND receiver_id = ? AND is_read = ?", peerID, actorID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, utils.Internal(res.Error)
	}
	return res.RowsAffected, nil
}

// UnreadCount 未读消息总数
func (ms *MessageService) UnreadCount(ctx context.Context, actorID string) (int64, error) {
	var count int64
	if err := ms.db.WithContext(ctx).Model(&models.Message{}).
		Where("receiver_id = ? AND is_read = ?", actorID, false).
		Count(&count).Error; err != nil {
		return 0, utils.Internal(err)
	}
	return count, nil
}

// ListConversations 会话列表，按最后一条消息时间倒序
func (ms *MessageService) ListConversations(ctx context.Context, actorID string) ([]Conversation, error) {
	db := ms.db.WithContext(ctx)

	var recent []models.Message
	if err := db.
		Where("sender_id = ? OR receiver_id = ?", actorID, actorID).
		Order("created_at DESC").
		Limit(conversationScanLimit).
		Find(&recent).Error; err != nil {
		return nil, utils.Internal(err)
	}

	var (
		order  []string
		byPeer = make(map[string]*Conversation)
	)
	for _, msg := range recent {
		peerID := msg.SenderID
		if peerID == actorID {
			peerID = msg.ReceiverID
		}

		conv, ok := byPeer[peerID]
		if !ok {
			conv = &Conversation{LastMessage: msg}
			byPeer[peerID] = conv
			order = append(order, peerID)
		}
		if msg.ReceiverID == actorID && !msg.IsRead {
			conv.UnreadCount++
		}
	}

	if len(order) == 0 {
		return []Conversation{}, nil
	}

	var peers []models.User
	if err := db.Where("id IN ?", order).Find(&peers).Error; err != nil {
		return nil, utils.Internal(err)
	}
	for i := range peers {
		if conv, ok := byPeer[peers[i].ID]; ok {
			conv.Peer = peers[i].Public()
		}
	}

	conversations := make([]Conversation, 0, len(order))
	for _, peerID := range order {
		conv := byPeer[peerID]
		if conv.Peer.ID == "" {
			conv.Peer.ID = peerID
		}
		conversations = append(conversations, *conv)
	}
	return conversations, nil
}
