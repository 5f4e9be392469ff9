package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"campustrade_go/config"
	"campustrade_go/models"
	"campustrade_go/utils"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthService 注册登录服务
type AuthService struct {
	db         *gorm.DB
	jwtService *config.JWTService
	logger     *zap.Logger
}

// NewAuthService 创建认证服务实例
func NewAuthService(db *gorm.DB, jwtService *config.JWTService, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{db: db, jwtService: jwtService, logger: logger}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Phone    string `json:"phone" binding:"required,cn_phone"`
	Password string `json:"password" binding:"required,min=6,max=100"`
	Nickname string `json:"nickname" binding:"omitempty,min=2,max=50"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Phone    string `json:"phone" binding:"required,cn_phone"`
	Password string `json:"password" binding:"required"`
}

// AuthResult 注册/登录结果
type AuthResult struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// Register 用户注册
func (as *AuthService) Register(ctx context.Context, req *RegisterRequest) (*AuthResult, error) {
	if err := utils.Validate(req); err != nil {
		return nil, err
	}
	db := as.db.WithContext(ctx)

	// 1. 检查手机号是否已注册
	var count int64
	if err := db.Model(&models.User{}).Where("phone = ?", req.Phone).Count(&count).Error; err != nil {
		return nil, utils.Internal(err)
	}
	if count > 0 {
		return nil, utils.Validation("phone number is already registered")
	}

	// 2. 密码加密
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, utils.Internal(fmt.Errorf("failed to hash password: %w", err))
	}

	// 3. 默认昵称与头像
	nickname := req.Nickname
	if nickname == "" {
		nickname = "用户" + req.Phone[len(req.Phone)-4:]
	}

	user := models.User{
		Phone:    req.Phone,
		Password: string(hashedPassword),
		Nickname: nickname,
		Avatar:   "https://api.dicebear.com/7.x/avataaars/svg?seed=" + url.QueryEscape(req.Phone),
	}
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, utils.Validation("phone number is already registered")
		}
		return nil, utils.Internal(fmt.Errorf("failed to create user: %w", err))
	}

	// 4. 生成JWT token
	token, err := as.jwtService.GenerateToken(user.ID, user.Nickname)
	if err != nil {
		return nil, utils.Internal(fmt.Errorf("failed to generate token: %w", err))
	}

	as.logger.Info("user registered", zap.String("user_id", user.ID))
	return &AuthResult{User: &user, Token: token}, nil
}

// Login 用户登录
func (as *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResult, error) {
	if err := utils.Validate(req); err != nil {
		return nil, err
	}

	var user models.User
	if err := as.db.WithContext(ctx).Where("phone = ?", req.Phone).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.Unauthenticated("invalid phone or password")
		}
		return nil, utils.Internal(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		as.logger.Info("login failed", zap.String("user_id", user.ID))
		return nil, utils.Unauthenticated("invalid phone or password")
	}

	token, err := as.jwtService.GenerateToken(user.ID, user.Nickname)
	if err != nil {
		return nil, utils.Internal(fmt.Errorf("failed to generate token: %w", err))
	}

	return &AuthResult{User: &user, Token: token}, nil
}
