package controllers

import (
	"campustrade_go/services"
	"campustrade_go/utils"

	"github.com/gin-gonic/gin"
)

// AuthController 认证控制器
type AuthController struct {
	authService *services.AuthService
}

// NewAuthController 创建认证控制器实例
func NewAuthController(authService *services.AuthService) *AuthController {
	return &AuthController{authService: authService}
}

// Register 用户注册
// @Summary 用户注册
// @Description 手机号注册，返回用户信息和token
// @Tags auth
// @Router /api/auth/register [post]
func (ac *AuthController) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := utils.BindAndValidate(c, &req); err != nil {
		utils.Fail(c, err)
		return
	}

	result, err := ac.authService.Register(c.Request.Context(), &req)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.Created(c, result)
}

// Login 用户登录
// @Summary 用户登录
// @Tags auth
// @Router /api/auth/login [post]
func (ac *AuthController) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := utils.BindAndValidate(c, &req); err != nil {
		utils.Fail(c, err)
		return
	}

	result, err := ac.authService.Login(c.Request.Context(), &req)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.Success(c, result)
}
