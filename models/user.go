package models

import (
	"time"

	"gorm.io/gorm"
)

// User 用户模型
type User struct {
	ID        string         `gorm:"type:varchar(36);primaryKey;comment:用户ID (UUID)" json:"id"`
	Phone     string         `gorm:"type:varchar(20);uniqueIndex;not null;comment:手机号" json:"phone,omitempty"`
	Password  string         `gorm:"type:varchar(255);not null;comment:密码哈希" json:"-"` // 不返回给前端
	Nickname  string         `gorm:"type:varchar(50);not null;comment:昵称" json:"nickname"`
	Avatar    string         `gorm:"type:varchar(255);comment:头像" json:"avatar,omitempty"`
	Bio       string         `gorm:"type:text;comment:个人简介" json:"bio,omitempty"`
	CreatedAt time.Time      `gorm:"comment:创建时间" json:"created_at"`
	UpdatedAt time.Time      `gorm:"comment:更新时间" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index;comment:删除时间" json:"-"` // 软删除
}

// PublicUser 对外展示的用户信息（不含手机号）
type PublicUser struct {
	ID        string    `json:"id"`
	Nickname  string    `json:"nickname"`
	Avatar    string    `json:"avatar,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}

// BeforeCreate 创建前钩子
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = generateUUID()
	}
	return nil
}

// Public 转换为公开信息
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Nickname:  u.Nickname,
		Avatar:    u.Avatar,
		Bio:       u.Bio,
		CreatedAt: u.CreatedAt,
	}
}
