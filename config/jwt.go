package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"campustrade_go/utils"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig JWT配置结构
type JWTConfig struct {
	SecretKey      string
	ExpirationTime time.Duration
	Issuer         string
}

// GetJWTConfig 获取JWT配置
func GetJWTConfig() *JWTConfig {
	return &JWTConfig{
		SecretKey:      GetEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		ExpirationTime: GetEnvDuration("JWT_EXPIRATION", time.Hour*24*7), // 默认7天
		Issuer:         "campustrade",
	}
}

// Claims JWT声明结构
type Claims struct {
	UserID   string `json:"user_id"`
	Nickname string `json:"nickname,omitempty"`
	jwt.RegisteredClaims
}

// JWTService JWT服务，同时充当请求身份校验
type JWTService struct {
	config *JWTConfig
}

// NewJWTService 创建JWT服务实例
func NewJWTService(cfg *JWTConfig) *JWTService {
	if cfg == nil {
		cfg = GetJWTConfig()
	}
	return &JWTService{config: cfg}
}

// GenerateToken 生成JWT token
func (s *JWTService) GenerateToken(userID, nickname string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   userID,
		Nickname: nickname,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.ExpirationTime)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.SecretKey))
}

// ValidateToken 验证JWT token
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// 验证签名算法
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.SecretKey), nil
	}, jwt.WithIssuer(s.config.Issuer))

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// Authenticate 解析凭证（"Bearer <token>" 或裸 token），返回调用者ID
func (s *JWTService) Authenticate(credential string) (string, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return "", utils.Unauthenticated("missing credential")
	}

	if scheme, token, found := strings.Cut(credential, " "); found {
		if !strings.EqualFold(scheme, "Bearer") {
			return "", utils.Unauthenticated("unsupported authorization scheme")
		}
		credential = strings.TrimSpace(token)
	}

	claims, err := s.ValidateToken(credential)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", utils.Unauthenticated("token expired")
		}
		return "", utils.Unauthenticated("invalid token")
	}
	return claims.UserID, nil
}

var (
	jwtService     *JWTService
	jwtServiceOnce sync.Once
)

// GetJWTService 获取JWT服务实例（全局单例）
func GetJWTService() *JWTService {
	jwtServiceOnce.Do(func() {
		jwtService = NewJWTService(GetJWTConfig())
	})
	return jwtService
}
