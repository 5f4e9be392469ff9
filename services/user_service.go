package services

import (
	"context"
	"errors"
	"strings"

	"campustrade_go/models"
	"campustrade_go/utils"

	"gorm.io/gorm"
)

// dealStatuses 计入成交统计的订单状态
var dealStatuses = []models.OrderStatus{models.OrderPaid, models.OrderShipped, models.OrderCompleted}

// UserService 用户资料服务
type UserService struct {
	db *gorm.DB
}

// NewUserService 创建用户服务实例
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// UpdateProfileRequest 修改资料请求
type UpdateProfileRequest struct {
	Nickname *string `json:"nickname" binding:"omitempty,min=2,max=50"`
	Avatar   *string `json:"avatar" binding:"omitempty,max=255,image_uri"`
	Bio      *string `json:"bio" binding:"omitempty,max=200"`
}

// UserStats 个人交易统计
type UserStats struct {
	Published int64 `json:"published"`
	Sold      int64 `json:"sold"`
	Bought    int64 `json:"bought"`
}

// GetUser 获取用户
func (us *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := us.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("user %s not found", id)
		}
		return nil, utils.Internal(err)
	}
	return &user, nil
}

// UpdateProfile 修改个人资料
func (us *UserService) UpdateProfile(ctx context.Context, id string, req *UpdateProfileRequest) (*models.User, error) {
	if err := utils.Validate(req); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Nickname != nil {
		updates["nickname"] = strings.TrimSpace(*req.Nickname)
	}
	if req.Avatar != nil {
		updates["avatar"] = *req.Avatar
	}
	if req.Bio != nil {
		updates["bio"] = strings.TrimSpace(*req.Bio)
	}

	user, err := us.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return user, nil
	}

	if err := us.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, utils.Internal(err)
	}
	return us.GetUser(ctx, id)
}

// GetStats 发布数、卖出数、买到数
func (us *UserService) GetStats(ctx context.Context, id string) (*UserStats, error) {
	db := us.db.WithContext(ctx)
	var stats UserStats

	if err := db.Model(&models.Listing{}).
		Where("seller_id = ? AND status <> ?", id, models.ListingRemoved).
		Count(&stats.Published).Error; err != nil {
		return nil, utils.Internal(err)
	}

	if err := db.Model(&models.Order{}).
		Joins("JOIN listings ON listings.id = orders.listing_id").
		Where("listings.seller_id = ? AND orders.status IN ?", id, dealStatuses).
		Count(&stats.Sold).Error; err != nil {
		return nil, utils.Internal(err)
	}

	if err := db.Model(&models.Order{}).
		Where("buyer_id = ? AND status IN ?", id, dealStatuses).
		Count(&stats.Bought).Error; err != nil {
		return nil, utils.Internal(err)
	}

	return &stats, nil
}
