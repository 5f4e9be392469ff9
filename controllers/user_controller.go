package controllers

import (
	"campustrade_go/middleware"
	"campustrade_go/services"
	"campustrade_go/utils"

	"github.com/gin-gonic/gin"
)

// UserController 用户控制器
type UserController struct {
	userService *services.UserService
}

// NewUserController 创建用户控制器实例
func NewUserController(userService *services.UserService) *UserController {
	return &UserController{userService: userService}
}

// GetMe 当前用户信息
// @Router /api/users/me [get]
func (uc *UserController) GetMe(c *gin.Context) {
	user, err := uc.userService.GetUser(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.Success(c, user)
}

// UpdateMe 修改个人资料
// @Router /api/users/me [put]
func (uc *UserController) UpdateMe(c *gin.Context) {
	var req services.UpdateProfileRequest
	if err := utils.BindAndValidate(c, &req); err != nil {
		utils.Fail(c, err)
		return
	}

	user, err := uc.userService.UpdateProfile(c.Request.Context(), middleware.CurrentUserID(c), &req)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.Success(c, user)
}

// GetMyStats 个人交易统计
// @Router /api/users/me/stats [get]
func (uc *UserController) GetMyStats(c *gin.Context) {
	stats, err := uc.userService.GetStats(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.Success(c, stats)
}

// GetUser 用户公开资料
// @Router /api/users/{id} [get]
func (uc *UserController) GetUser(c *gin.Context) {
	user, err := uc.userService.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.Success(c, user.Public())
}
