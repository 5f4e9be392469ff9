package controllers

import (
	"strconv"

	"campustrade_go/middleware"
	"campustrade_go/models"
	"campustrade_go/services"
	"campustrade_go/utils"

	"github.com/gin-gonic/gin"
)

// MessageRelay 将已保存的私信实时推送给接收者
type MessageRelay interface {
	RelayMessage(message *models.Message)
}

// MessageController 私信控制器
type MessageController struct {
	messageService *services.MessageService
	relay          MessageRelay
}

// NewMessageController 创建私信控制器实例，relay 可以为 nil
func NewMessageController(messageService *services.MessageService, relay MessageRelay) *MessageController {
	return &MessageController{messageService: messageService, relay: relay}
}

// SendMessageRequest 发送私信请求
type SendMessageRequest struct {
	ReceiverID string `json:"receiver_id" binding:"required"`
	Content    string `json:"content" binding:"required"`
}

// GetConversations 会话列表
// @Router /api/messages/conversations [get]
func (mc *MessageController) GetConversations(c *gin.Context) {
	conversations, err := mc.messageService.ListConversations(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.Success(c, conversations)
}

// GetHistory 与某人的聊天记录
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Router /api/messages/{peerId} [get]
func (mc *MessageController) GetHistory(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	paging := services.NewPagination(page, limit)

	messages, total, err := mc.messageService.GetHistory(c.Request.Context(), middleware.CurrentUserID(c), c.Param("peerId"), paging.Page, paging.Limit)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	utils.Paginate(c, messages, total, paging.Page, paging.Limit)
}

// SendMessage 发送私信（WebSocket不可用时的备用通道）
// @Router /api/messages [post]
func (mc *MessageController) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := utils.BindAndValidate(c, &req); err != nil {
		utils.Fail(c, err)
		return
	}

	message, err := mc.messageService.SendMessage(c.Request.Context(), middleware.CurrentUserID(c), req.ReceiverID, req.Content)
	if err != nil {
		utils.Fail(c, err)
		return
	}

	if mc.relay != nil {
		mc.relay.RelayMessage(message)
	}
	utils.Created(c, message)
}
