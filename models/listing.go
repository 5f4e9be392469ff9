package models

import (
	"time"

	"gorm.io/gorm"
)

// ListingStatus 商品状态
type ListingStatus string

const (
	ListingAvailable ListingStatus = "available"
	ListingSold      ListingStatus = "sold"
	ListingRemoved   ListingStatus = "removed"
)

// ListingConditions 商品成色（固定取值）
var ListingConditions = []string{"全新", "9成新", "8成新", "7成新", "6成新以下"}

// Listing 二手商品发布模型
type Listing struct {
	ID            string        `gorm:"type:varchar(36);primaryKey" json:"id"`
	Title         string        `gorm:"type:varchar(100);not null;index" json:"title"`
	Description   string        `gorm:"type:text" json:"description"`
	Price         float64       `gorm:"type:decimal(10,2);not null" json:"price"`
	Images        []string      `gorm:"type:text;serializer:json" json:"images"`
	Condition     string        `gorm:"type:varchar(20);comment:全新,9成新,8成新,7成新,6成新以下" json:"condition"`
	Category      string        `gorm:"type:varchar(50);index" json:"category"`
	SellerID      string        `gorm:"type:varchar(36);index;not null" json:"seller_id"`
	Status        ListingStatus `gorm:"type:varchar(20);index;default:available;comment:available,sold,removed" json:"status"`
	FavoriteCount int64         `gorm:"default:0" json:"favorite_count"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`

	// 关联关系
	Seller *User `gorm:"foreignKey:SellerID" json:"seller,omitempty"`
}

// Favorite 收藏模型
type Favorite struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(36);uniqueIndex:idx_favorite_user_listing;not null" json:"user_id"`
	ListingID string    `gorm:"type:varchar(36);uniqueIndex:idx_favorite_user_listing;index;not null" json:"listing_id"`
	CreatedAt time.Time `json:"created_at"`

	// 关联关系
	Listing *Listing `gorm:"foreignKey:ListingID" json:"listing,omitempty"`
}

// TableName 指定表名
func (Listing) TableName() string {
	return "listings"
}

func (Favorite) TableName() string {
	return "favorites"
}

// BeforeCreate 创建前钩子
func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = generateUUID()
	}
	if l.Status == "" {
		l.Status = ListingAvailable
	}
	return nil
}

func (f *Favorite) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = generateUUID()
	}
	return nil
}
