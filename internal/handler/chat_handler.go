// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"pizzabot-go/internal/middleware"
	"pizzabot-go/internal/repository"
	"pizzabot-go/internal/service"
	"pizzabot-go/pkg/log"
	"pizzabot-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	msgRequired   = "Message is required"
	msgProcessing = "Error processing request"
	msgBusy       = "Your previous message is still being processed"
)

// ChatRequest 是聊天接口的请求体。
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatHandler 负责处理聊天请求（HTTP 与 WebSocket）。
type ChatHandler struct {
	chatService service.ChatService
	jwtManager  *token.JWTManager
	upgrader    websocket.Upgrader
}

// NewChatHandler 创建一个新的 ChatHandler。allowedOrigins 含 "*" 时允许所有来源的 WebSocket。
func NewChatHandler(chatService service.ChatService, jwtManager *token.JWTManager, allowedOrigins []string) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		jwtManager:  jwtManager,
		upgrader: websocket.Upgrader{
			CheckOrigin: originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// Chat 处理 POST /api/chat。
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgRequired})
		return
	}

	sessionID := c.GetString(middleware.ContextSessionID)
	result, err := h.chatService.Handle(c.Request.Context(), sessionID, req.Message)
	if err != nil {
		if errors.Is(err, service.ErrEmptyMessage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgRequired})
			return
		}
		if errors.Is(err, repository.ErrSessionBusy) {
			c.JSON(http.StatusConflict, gin.H{"error": msgBusy})
			return
		}
		log.Errorf("处理聊天消息失败: sessionId=%s, error: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgProcessing})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Handle 处理一个传入的 WebSocket 连接，路径参数是会话令牌。
func (h *ChatHandler) Handle(c *gin.Context) {
	claims, err := h.jwtManager.VerifyToken(c.Param("token"))
	if err != nil || claims.Role != token.RoleGuest || claims.SessionID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的 token", "data": nil})
		return
	}
	sessionID := claims.SessionID
	c.Set(middleware.ContextSessionID, sessionID)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立，会话: %s", sessionID)

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			break
		}

		var resp interface{}
		result, err := h.chatService.Handle(c.Request.Context(), sessionID, frameMessage(frame))
		switch {
		case errors.Is(err, service.ErrEmptyMessage):
			resp = gin.H{"error": msgRequired}
		case errors.Is(err, repository.ErrSessionBusy):
			resp = gin.H{"error": msgBusy}
		case err != nil:
			log.Errorf("处理 WebSocket 消息失败: sessionId=%s, error: %v", sessionID, err)
			resp = gin.H{"error": msgProcessing}
		default:
			resp = result
		}
		if err := conn.WriteJSON(resp); err != nil {
			log.Warnf("写入 WebSocket 消息失败: %v", err)
			break
		}
	}
}

// frameMessage 从 {"message": "..."} 帧中取出消息，非 JSON 帧整体作为消息。
func frameMessage(frame []byte) string {
	var req ChatRequest
	if len(frame) > 0 && frame[0] == '{' {
		if err := json.Unmarshal(frame, &req); err == nil {
			return req.Message
		}
	}
	return string(frame)
}
