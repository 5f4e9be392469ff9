package services

import (
	"testing"

	"campustrade_go/config"
	"campustrade_go/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB 每个测试独立的内存数据库，单连接保证事务串行
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := config.OpenDatabase(&config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		LogLevel:     logger.Silent,
		MaxIdleConns: 1,
		MaxOpenConns: 1,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedUser(t *testing.T, db *gorm.DB, nickname string) *models.User {
	t.Helper()

	user := &models.User{
		Phone:    "138" + uuid.NewString()[:8],
		Password: "hashed",
		Nickname: nickname,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedListing(t *testing.T, db *gorm.DB, sellerID string, price float64) *models.Listing {
	t.Helper()

	listing := &models.Listing{
		Title:       "高等数学 第七版",
		Description: "九成新，有少量笔记",
		Price:       price,
		Images:      []string{"https://img.example.com/1.jpg"},
		Condition:   "9成新",
		Category:    "教材",
		SellerID:    sellerID,
		Status:      models.ListingAvailable,
	}
	require.NoError(t, db.Create(listing).Error)
	return listing
}

func listingStatus(t *testing.T, db *gorm.DB, id string) models.ListingStatus {
	t.Helper()

	var listing models.Listing
	require.NoError(t, db.Where("id = ?", id).First(&listing).Error)
	return listing.Status
}
