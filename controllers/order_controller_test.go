package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"campustrade_go/config"
	"campustrade_go/middleware"
	"campustrade_go/models"
	"campustrade_go/services"
	"campustrade_go/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type envelope struct {
	Success bool             `json:"success"`
	Data    json.RawMessage  `json:"data"`
	Error   *utils.ErrorBody `json:"error"`
}

type OrderControllerSuite struct {
	suite.Suite
	db      *gorm.DB
	jwt     *config.JWTService
	router  *gin.Engine
	seller  *models.User
	buyer   *models.User
	other   *models.User
	listing *models.Listing
}

func TestOrderControllerSuite(t *testing.T) {
	suite.Run(t, new(OrderControllerSuite))
}

func (s *OrderControllerSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	db, err := config.OpenDatabase(&config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		LogLevel:     logger.Silent,
		MaxIdleConns: 1,
		MaxOpenConns: 1,
	})
	s.Require().NoError(err)
	s.T().Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	s.db = db

	s.jwt = config.NewJWTService(&config.JWTConfig{SecretKey: "test-secret", ExpirationTime: time.Hour, Issuer: "campustrade"})

	s.seller = s.createUser("卖家")
	s.buyer = s.createUser("买家")
	s.other = s.createUser("路人")
	s.listing = &models.Listing{
		Title:       "概率论与数理统计",
		Description: "浙大第四版，无笔记",
		Price:       35,
		Images:      []string{"https://img.example.com/p.jpg"},
		Condition:   "9成新",
		Category:    "教材",
		SellerID:    s.seller.ID,
	}
	s.Require().NoError(db.Create(s.listing).Error)

	controller := NewOrderController(services.NewOrderService(db))
	s.router = gin.New()
	orders := s.router.Group("/api/orders", middleware.AuthMiddleware(s.jwt))
	{
		orders.POST("", controller.CreateOrder)
		orders.GET("", controller.ListOrders)
		orders.GET("/:id", controller.GetOrder)
		orders.PATCH("/:id", controller.UpdateOrder)
		orders.POST("/:id/pay", controller.PayOrder)
	}
}

func (s *OrderControllerSuite) createUser(nickname string) *models.User {
	user := &models.User{Phone: "139" + uuid.NewString()[:8], Password: "x", Nickname: nickname}
	s.Require().NoError(s.db.Create(user).Error)
	return user
}

func (s *OrderControllerSuite) do(method, path string, user *models.User, body interface{}) (int, envelope) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		token, err := s.jwt.GenerateToken(user.ID, user.Nickname)
		s.Require().NoError(err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp envelope
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

func (s *OrderControllerSuite) createOrder(user *models.User) models.Order {
	code, resp := s.do(http.MethodPost, "/api/orders", user, gin.H{"listing_id": s.listing.ID})
	s.Require().Equal(http.StatusCreated, code)
	s.Require().True(resp.Success)

	var order models.Order
	s.Require().NoError(json.Unmarshal(resp.Data, &order))
	return order
}

func (s *OrderControllerSuite) TestCreateOrder() {
	order := s.createOrder(s.buyer)

	s.Equal(models.OrderPending, order.Status)
	s.Equal(35.0, order.Amount)
	s.Equal(s.buyer.ID, order.BuyerID)
}

func (s *OrderControllerSuite) TestCreateOrderAcceptsLegacyField() {
	code, resp := s.do(http.MethodPost, "/api/orders", s.buyer, gin.H{"listingId": s.listing.ID})
	s.Equal(http.StatusCreated, code)
	s.True(resp.Success)
}

func (s *OrderControllerSuite) TestCreateOrderErrors() {
	tests := []struct {
		name   string
		user   *models.User
		body   interface{}
		status int
		code   utils.ErrorCode
	}{
		{"unauthenticated", nil, gin.H{"listing_id": s.listing.ID}, http.StatusUnauthorized, utils.CodeUnauthenticated},
		{"missing listing id", s.buyer, gin.H{}, http.StatusBadRequest, utils.CodeValidation},
		{"unknown listing", s.buyer, gin.H{"listing_id": "missing"}, http.StatusNotFound, utils.CodeNotFound},
		{"own listing", s.seller, gin.H{"listing_id": s.listing.ID}, http.StatusForbidden, utils.CodeForbidden},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			code, resp := s.do(http.MethodPost, "/api/orders", tt.user, tt.body)
			s.Equal(tt.status, code)
			s.False(resp.Success)
			s.Require().NotNil(resp.Error)
			s.Equal(tt.code, resp.Error.Code)
			s.NotEmpty(resp.Error.Message)
		})
	}

	s.createOrder(s.buyer)
	code, resp := s.do(http.MethodPost, "/api/orders", s.other, gin.H{"listing_id": s.listing.ID})
	s.Equal(http.StatusBadRequest, code)
	s.Equal(utils.CodeInvalidState, resp.Error.Code)
}

func (s *OrderControllerSuite) TestLifecycleOverHTTP() {
	order := s.createOrder(s.buyer)
	path := "/api/orders/" + order.ID

	code, resp := s.do(http.MethodGet, path, s.buyer, nil)
	s.Require().Equal(http.StatusOK, code)
	var view struct {
		Status           models.OrderStatus   `json:"status"`
		AvailableActions []models.OrderAction `json:"available_actions"`
		Listing          *models.Listing      `json:"listing"`
	}
	s.Require().NoError(json.Unmarshal(resp.Data, &view))
	s.Equal(models.OrderPending, view.Status)
	s.Equal([]models.OrderAction{models.ActionPay, models.ActionCancel}, view.AvailableActions)
	s.Require().NotNil(view.Listing)
	s.Equal(s.listing.ID, view.Listing.ID)

	code, resp = s.do(http.MethodPost, path+"/pay", s.buyer, nil)
	s.Require().Equal(http.StatusOK, code)
	var payment services.PaymentResult
	s.Require().NoError(json.Unmarshal(resp.Data, &payment))
	s.Equal(services.PaymentMethodSimulated, payment.PaymentInfo.Method)
	s.Equal(models.OrderPaid, payment.Order.Status)

	code, resp = s.do(http.MethodPatch, path, s.buyer, gin.H{"action": "ship"})
	s.Equal(http.StatusForbidden, code)
	s.Equal(utils.CodeForbidden, resp.Error.Code)

	code, resp = s.do(http.MethodPatch, path, s.seller, gin.H{"action": "ship"})
	s.Require().Equal(http.StatusOK, code)
	s.JSONEq(`{"status":"shipped"}`, string(resp.Data))

	code, resp = s.do(http.MethodPatch, path, s.buyer, gin.H{"action": "confirm"})
	s.Require().Equal(http.StatusOK, code)
	s.JSONEq(`{"status":"completed"}`, string(resp.Data))

	code, resp = s.do(http.MethodPatch, path, s.seller, gin.H{"action": "cancel"})
	s.Equal(http.StatusBadRequest, code)
	s.Equal(utils.CodeInvalidState, resp.Error.Code)
}

func (s *OrderControllerSuite) TestWrongRoleOnPendingOrderIsForbidden() {
	order := s.createOrder(s.buyer)
	path := "/api/orders/" + order.ID

	code, resp := s.do(http.MethodPatch, path, s.buyer, gin.H{"action": "ship"})
	s.Equal(http.StatusForbidden, code)
	s.Equal(utils.CodeForbidden, resp.Error.Code)

	code, resp = s.do(http.MethodPatch, path, s.seller, gin.H{"action": "confirm"})
	s.Equal(http.StatusForbidden, code)
	s.Equal(utils.CodeForbidden, resp.Error.Code)

	code, resp = s.do(http.MethodGet, path, s.buyer, nil)
	s.Require().Equal(http.StatusOK, code)
	var view struct {
		Status models.OrderStatus `json:"status"`
	}
	s.Require().NoError(json.Unmarshal(resp.Data, &view))
	s.Equal(models.OrderPending, view.Status)
}

func (s *OrderControllerSuite) TestUpdateOrderValidation() {
	order := s.createOrder(s.buyer)
	path := "/api/orders/" + order.ID

	code, resp := s.do(http.MethodPatch, path, s.buyer, gin.H{})
	s.Equal(http.StatusBadRequest, code)
	s.Equal(utils.CodeValidation, resp.Error.Code)

	code, resp = s.do(http.MethodPatch, path, s.buyer, gin.H{"action": "refund"})
	s.Equal(http.StatusBadRequest, code)
	s.Equal(utils.CodeValidation, resp.Error.Code)

	code, resp = s.do(http.MethodPatch, "/api/orders/missing", s.buyer, gin.H{"action": "pay"})
	s.Equal(http.StatusNotFound, code)
	s.Equal(utils.CodeNotFound, resp.Error.Code)
}

func (s *OrderControllerSuite) TestGetOrderForbiddenForStranger() {
	order := s.createOrder(s.buyer)

	code, resp := s.do(http.MethodGet, "/api/orders/"+order.ID, s.other, nil)
	s.Equal(http.StatusForbidden, code)
	s.Equal(utils.CodeForbidden, resp.Error.Code)
}

func (s *OrderControllerSuite) TestListOrders() {
	order := s.createOrder(s.buyer)

	var orders []models.Order

	code, resp := s.do(http.MethodGet, "/api/orders", s.buyer, nil)
	s.Require().Equal(http.StatusOK, code)
	s.Require().NoError(json.Unmarshal(resp.Data, &orders))
	s.Require().Len(orders, 1)
	s.Equal(order.ID, orders[0].ID)

	code, resp = s.do(http.MethodGet, "/api/orders?role=sell&status=pending", s.seller, nil)
	s.Require().Equal(http.StatusOK, code)
	s.Require().NoError(json.Unmarshal(resp.Data, &orders))
	s.Len(orders, 1)

	code, resp = s.do(http.MethodGet, "/api/orders?type=sell&status=paid", s.seller, nil)
	s.Require().Equal(http.StatusOK, code)
	s.Require().NoError(json.Unmarshal(resp.Data, &orders))
	s.Empty(orders)

	code, resp = s.do(http.MethodGet, "/api/orders?role=rent", s.seller, nil)
	s.Equal(http.StatusBadRequest, code)
	s.Equal(utils.CodeValidation, resp.Error.Code)
}

func TestOrderViewEmbedsOrderFields(t *testing.T) {
	view := OrderView{
		Order:            &models.Order{ID: "o-1", Status: models.OrderPaid},
		AvailableActions: []models.OrderAction{models.ActionShip},
	}

	data, err := json.Marshal(view)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "o-1", decoded["id"])
	assert.Equal(t, "paid", decoded["status"])
	assert.Equal(t, []interface{}{"ship"}, decoded["available_actions"])
}
