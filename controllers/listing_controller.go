package controllers

import (
	"strconv"

	"campustrade_go/middleware"
	"campustrade_go/services"
	"campustrade_go/utils"

	"github.com/gin-gonic/gin"
)

// ListingController 商品控制器
type ListingController struct {
	listingService *services.ListingService
}

// NewListingController 创建商品控制器实例
func NewListingController(listingService *services.ListingService) *ListingController {
	return &ListingController{listingService: listingService}
}

// GetListings 获取商品列表
// @Summary 获取商品列表
// @Tags listings
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Param status query string false "状态筛选" default(available)
// @Param category query string false "分类"
// @Param seller_id query string false "卖家"
// @Router /api/listings [get]
func (lc *ListingController) GetListings(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	query := services.ListingQuery{
		Pagination: services.NewPagination(page, limit),
		Status:     c.Query("status"),
		Category:   c.Query("category"),
		SellerID:   c.Query("seller_id"),
	}

	listings, total, err := lc.listingService.ListListings(c.Request.Context(), query)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.Paginate(c, listings, total, query.Page, query.Limit)
}

// GetListing 获取商品详情
// @Router /api/listings/{id} [get]
func (lc *ListingController) GetListing(c *gin.Context) {
	listing, err := lc.listingService.GetListing(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.Success(c, listing)
}

// CreateListing 发布商品
// @Router /api/listings [post]
func (lc *ListingController) CreateListing(c *gin.Context) {
	var req services.CreateListingRequest
	if err := utils.BindAndValidate(c, &req); err != nil {
		utils.Fail(c, err)
		return
	}

	listing, err := lc.listingService.CreateListing(c.Request.Context(), middleware.CurrentUserID(c), &req)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.Created(c, listing)
}

// UpdateListing 编辑商品
// @Router /api/listings/{id} [put]
func (lc *ListingController) UpdateListing(c *gin.Context) {
	var req services.UpdateListingRequest
	if err := utils.BindAndValidate(c, &req); err != nil {
		utils.Fail(c, err)
		return
	}

	listing, err := lc.listingService.UpdateListing(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), &req)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.Success(c, listing)
}

// DeleteListing 下架商品
// @Router /api/listings/{id} [delete]
func (lc *ListingController) DeleteListing(c *gin.Context) {
	if err := lc.listingService.DeleteListing(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		utils.Fail(c, err)
		return
	}

	utils.Success(c, gin.H{"message": "listing removed"})
}

// ToggleFavorite 收藏 / 取消收藏
// @Router /api/listings/{id}/favorite [post]
func (lc *ListingController) ToggleFavorite(c *gin.Context) {
	favorited, err := lc.listingService.ToggleFavorite(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.Success(c, gin.H{"is_favorite": favorited})
}

// GetFavorites 我的收藏
// @Router /api/listings/favorites [get]
func (lc *ListingController) GetFavorites(c *gin.Context) {
	listings, err := lc.listingService.ListFavorites(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.Success(c, listings)
}

// GetMyListings 我发布的商品
// @Router /api/listings/mine [get]
func (lc *ListingController) GetMyListings(c *gin.Context) {
	listings, err := lc.listingService.ListMyListings(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.Success(c, listings)
}
