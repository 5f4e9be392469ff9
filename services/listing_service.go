package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"campustrade_go/config"
	"campustrade_go/models"
	"campustrade_go/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ListingService 商品发布服务
type ListingService struct {
	db     *gorm.DB
	cache  *ListingCache
	logger *zap.Logger
}

// NewListingService 创建商品服务实例
func NewListingService(db *gorm.DB, cache *ListingCache, logger *zap.Logger) *ListingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListingService{db: db, cache: cache, logger: logger}
}

// CreateListingRequest 发布商品请求
type CreateListingRequest struct {
	Title       string   `json:"title" binding:"required,min=2,max=50"`
	Description string   `json:"description" binding:"required,min=10,max=2000"`
	Price       float64  `json:"price" binding:"required,gte=0.01"`
	Images      []string `json:"images" binding:"required,min=1,max=9,dive,image_uri"`
	Condition   string   `json:"condition" binding:"required,listing_condition"`
	Category    string   `json:"category" binding:"required,max=50"`
}

// UpdateListingRequest 编辑商品请求，状态不可通过编辑修改
type UpdateListingRequest struct {
	Title       *string  `json:"title" binding:"omitempty,min=2,max=50"`
	Description *string  `json:"description" binding:"omitempty,min=10,max=2000"`
	Price       *float64 `json:"price" binding:"omitempty,gte=0.01"`
	Images      []string `json:"images" binding:"omitempty,min=1,max=9,dive,image_uri"`
	Condition   *string  `json:"condition" binding:"omitempty,listing_condition"`
	Category    *string  `json:"category" binding:"omitempty,min=1,max=50"`
}

// apply 将修改写入 listing，返回需要更新的列
func (req *UpdateListingRequest) apply(listing *models.Listing) []string {
	var columns []string
	if req.Title != nil {
		listing.Title = strings.TrimSpace(*req.Title)
		columns = append(columns, "title")
	}
	if req.Description != nil {
		listing.Description = strings.TrimSpace(*req.Description)
		columns = append(columns, "description")
	}
	if req.Price != nil {
		listing.Price = *req.Price
		columns = append(columns, "price")
	}
	if len(req.Images) > 0 {
		listing.Images = req.Images
		columns = append(columns, "images")
	}
	if req.Condition != nil {
		listing.Condition = *req.Condition
		columns = append(columns, "condition")
	}
	if req.Category != nil {
		listing.Category = strings.TrimSpace(*req.Category)
		columns = append(columns, "category")
	}
	return columns
}

// ListingQuery 商品列表筛选
type ListingQuery struct {
	Pagination
	Status   string
	Category string
	SellerID string
}

// CreateListing 发布商品
func (ls *ListingService) CreateListing(ctx context.Context, sellerID string, req *CreateListingRequest) (*models.Listing, error) {
	if sellerID == "" {
		return nil, utils.Unauthenticated("actor is required")
	}
	if err := utils.Validate(req); err != nil {
		return nil, err
	}

	listing := models.Listing{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Price:       req.Price,
		Images:      req.Images,
		Condition:   req.Condition,
		Category:    strings.TrimSpace(req.Category),
		SellerID:    sellerID,
		Status:      models.ListingAvailable,
	}
	if err := ls.db.WithContext(ctx).Create(&listing).Error; err != nil {
		return nil, utils.Internal(err)
	}

	ls.logger.Info("listing created", zap.String("listing_id", listing.ID), zap.String("seller_id", sellerID))
	return &listing, nil
}

// GetListing 商品详情（优先读缓存），已下架商品不可见
func (ls *ListingService) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	cached, version, ok := ls.cache.Get(ctx, id)
	if ok {
		return cached, nil
	}

	var listing models.Listing
	err := ls.db.WithContext(ctx).Preload("Seller").Where("id = ? AND status <> ?", id, models.ListingRemoved).First(&listing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("listing %s not found", id)
		}
		return nil, utils.Internal(err)
	}

	ls.cache.Set(ctx, &listing, version)
	return &listing, nil
}

// ListListings 商品列表，默认只返回可售商品
func (ls *ListingService) ListListings(ctx context.Context, q ListingQuery) ([]models.Listing, int64, error) {
	q.Normalize()

	query := ls.db.WithContext(ctx).Model(&models.Listing{})
	switch q.Status {
	case "":
		query = query.Where("status = ?", models.ListingAvailable)
	case string(models.ListingAvailable), string(models.ListingSold):
		query = query.Where("status = ?", q.Status)
	default:
		return nil, 0, utils.Validation("status must be one of: available sold")
	}
	if q.Category != "" {
		query = query.Where("category = ?", q.Category)
	}
	if q.SellerID != "" {
		query = query.Where("seller_id = ?", q.SellerID)
	}

	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, utils.Internal(err)
	}

	listings := []models.Listing{}
	if err := query.
		Preload("Seller").
		Order("created_at DESC").
		Limit(q.Limit).
		Offset(q.Offset()).
		Find(&listings).Error; err != nil {
		return nil, 0, utils.Internal(err)
	}
	return listings, total, nil
}

// ListMyListings 我发布的商品（含已售，不含已下架）
func (ls *ListingService) ListMyListings(ctx context.Context, sellerID string) ([]models.Listing, error) {
	listings := []models.Listing{}
	if err := ls.db.WithContext(ctx).
		Where("seller_id = ? AND status <> ?", sellerID, models.ListingRemoved).
		Order("created_at DESC").
		Find(&listings).Error; err != nil {
		return nil, utils.Internal(err)
	}
	return listings, nil
}

// UpdateListing 编辑商品，仅发布者可操作
// 已生成订单的价格为快照，此处改价不影响已有订单
func (ls *ListingService) UpdateListing(ctx context.Context, actorID, id string, req *UpdateListingRequest) (*models.Listing, error) {
	if err := utils.Validate(req); err != nil {
		return nil, err
	}

	var listing models.Listing
	err := config.RunInTransaction(ctx, ls.db, func(tx *gorm.DB) error {
		if err := ls.loadOwned(tx, actorID, id, &listing); err != nil {
			return err
		}
		if listing.Status == models.ListingRemoved {
			return utils.InvalidState("listing has been removed")
		}

		columns := req.apply(&listing)
		if len(columns) == 0 {
			return nil
		}
		listing.UpdatedAt = time.Now()
		columns = append(columns, "updated_at")
		return tx.Model(&listing).Select(columns).Updates(&listing).Error
	})
	if err != nil {
		return nil, utils.AsAppError(err)
	}

	ls.cache.Invalidate(ctx, id)
	return &listing, nil
}

// DeleteListing 下架商品（软删除），只允许在可售状态下进行
func (ls *ListingService) DeleteListing(ctx context.Context, actorID, id string) error {
	err := config.RunInTransaction(ctx, ls.db, func(tx *gorm.DB) error {
		var listing models.Listing
		if err := ls.loadOwned(tx, actorID, id, &listing); err != nil {
			return err
		}

		res := tx.Model(&models.Listing{}).
			Where("id = ? AND status = ?", id, models.ListingAvailable).
			Update("status", models.ListingRemoved)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.InvalidState("listing is %s and cannot be removed", listing.Status)
		}
		return nil
	})
	if err != nil {
		return utils.AsAppError(err)
	}

	ls.cache.Invalidate(ctx, id)
	ls.logger.Info("listing removed", zap.String("listing_id", id), zap.String("seller_id", actorID))
	return nil
}

// ToggleFavorite 收藏/取消收藏，返回当前是否已收藏
func (ls *ListingService) ToggleFavorite(ctx context.Context, userID, listingID string) (bool, error) {
	var isFavorite bool
	err := config.RunInTransaction(ctx, ls.db, func(tx *gorm.DB) error {
		var listing models.Listing
		if err := tx.Where("id = ? AND status <> ?", listingID, models.ListingRemoved).First(&listing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NotFound("listing %s not found", listingID)
			}
			return err
		}

		var favorite models.Favorite
		err := tx.Where("user_id = ? AND listing_id = ?", userID, listingID).First(&favorite).Error
		switch {
		case err == nil:
			if err := tx.Delete(&favorite).Error; err != nil {
				return err
			}
			isFavorite = false
			return tx.Model(&models.Listing{}).
				Where("id = ? AND favorite_count > 0", listingID).
				UpdateColumn("favorite_count", gorm.Expr("favorite_count - 1")).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(&models.Favorite{UserID: userID, ListingID: listingID}).Error; err != nil {
				return err
			}
			isFavorite = true
			return tx.Model(&models.Listing{}).
				Where("id = ?", listingID).
				UpdateColumn("favorite_count", gorm.Expr("favorite_count + 1")).Error
		default:
			return err
		}
	})
	if err != nil {
		return false, utils.AsAppError(err)
	}

	ls.cache.Invalidate(ctx, listingID)
	return isFavorite, nil
}

// ListFavorites 我的收藏
func (ls *ListingService) ListFavorites(ctx context.Context, userID string) ([]models.Listing, error) {
	listings := []models.Listing{}
	err := ls.db.WithContext(ctx).
		Joins("JOIN favorites ON favorites.listing_id = listings.id").
		Where("favorites.user_id = ? AND listings.status <> ?", userID, models.ListingRemoved).
		Order("favorites.created_at DESC").
		Find(&listings).Error
	if err != nil {
		return nil, utils.Internal(err)
	}
	return listings, nil
}

// loadOwned 读取商品并校验发布者
func (ls *ListingService) loadOwned(tx *gorm.DB, actorID, id string, listing *models.Listing) error {
	if err := tx.Where("id = ?", id).First(listing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFound("listing %s not found", id)
		}
		return err
	}
	if listing.SellerID != actorID {
		return utils.Forbidden("only the seller can modify this listing")
	}
	return nil
}
