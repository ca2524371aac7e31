package handler

import (
	"net/http"

	"pizzabot-go/internal/middleware"
	"pizzabot-go/internal/service"
	"pizzabot-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// ConversationHandler 处理与对话相关的 API 请求。
type ConversationHandler struct {
	service service.ConversationService
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(service service.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// GetConversation 返回当前会话的对话历史，以及是否有进行中的下单对话。
func (h *ConversationHandler) GetConversation(c *gin.Context) {
	sessionID := c.GetString(middleware.ContextSessionID)

	history, err := h.service.GetConversationHistory(c.Request.Context(), sessionID)
	if err != nil {
		log.Errorf("获取对话历史失败: sessionId=%s, error: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "Failed to retrieve conversation history",
			"data":    nil,
		})
		return
	}
	ordering, err := h.service.HasOpenOrder(c.Request.Context(), sessionID)
	if err != nil {
		log.Warnf("查询下单草稿失败: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data": gin.H{
			"messages": history,
			"ordering": ordering,
		},
	})
}

// GetSession 返回当前会话令牌，用于建立 WebSocket 连接。
func GetSession(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"token": c.GetString(middleware.ContextSessionToken)},
	})
}

// Health 是存活检查。
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
