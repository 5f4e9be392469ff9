package models

import (
	"time"

	"gorm.io/gorm"
)

// MessageTypeText 文本消息
const MessageTypeText = "text"

// Message 私信消息模型
type Message struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	SenderID   string    `gorm:"type:varchar(36);index:idx_message_pair;not null" json:"sender_id"`
	ReceiverID string    `gorm:"type:varchar(36);index:idx_message_pair;index;not null" json:"receiver_id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Type       string    `gorm:"type:varchar(20);default:text" json:"type"`
	IsRead     bool      `gorm:"default:false" json:"is_read"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`

	// 关联关系
	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

// TableName 指定表名
func (Message) TableName() string {
	return "messages"
}

// BeforeCreate 创建前钩子
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = generateUUID()
	}
	if m.Type == "" {
		m.Type = MessageTypeText
	}
	return nil
}
