package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"pizzabot-go/internal/repository"
	"pizzabot-go/internal/service"
	"pizzabot-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AdminHandler 负责处理所有与管理员相关的 API 请求。
type AdminHandler struct {
	adminService service.AdminService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// LoginRequest 定义了管理员登录的请求体结构。
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 处理管理员登录请求。
func (h *AdminHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Login: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载：用户名和密码不能为空"})
		return
	}

	tok, err := h.adminService.Login(req.Username, req.Password)
	if err != nil {
		log.Warnf("Login: Admin authentication failed for '%s', error: %v", req.Username, err)
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的凭证"})
		return
	}

	log.Infof("Admin '%s' logged in successfully", req.Username)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "Login successful", "data": gin.H{"token": tok}})
}

// ListOrders 分页返回已归档的订单。
func (h *AdminHandler) ListOrders(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))

	orders, err := h.adminService.ListOrders(page, size)
	if err != nil {
		if errors.Is(err, service.ErrArchiveDisabled) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"code": http.StatusServiceUnavailable, "message": "订单归档未启用", "data": nil})
			return
		}
		log.Error("ListOrders: Failed to list orders", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取订单列表失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": orders})
}

// GetReceiptURL 返回订单回执的临时下载链接。
func (h *AdminHandler) GetReceiptURL(c *gin.Context) {
	orderID := c.Param("orderId")
	url, err := h.adminService.ReceiptURL(c.Request.Context(), orderID)
	switch {
	case errors.Is(err, service.ErrArchiveDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": http.StatusServiceUnavailable, "message": "订单归档未启用", "data": nil})
		return
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "订单回执不存在", "data": nil})
		return
	case err != nil:
		log.Errorf("GetReceiptURL: orderId=%s, error: %v", orderID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "生成下载链接失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"orderId": orderID, "url": url}})
}

// GetAllConversations 返回所有会话的消息，支持按 sessionId 和日期过滤。
func (h *AdminHandler) GetAllConversations(c *gin.Context) {
	var startTime, endTime *time.Time
	timeLayout := "2006-01-02"
	if startDateStr := c.Query("start_date"); startDateStr != "" {
		t, err := time.ParseInLocation(timeLayout, startDateStr, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "Invalid start_date format, use YYYY-MM-DD", "data": nil})
			return
		}
		startTime = &t
	}
	if endDateStr := c.Query("end_date"); endDateStr != "" {
		t, err := time.ParseInLocation(timeLayout, endDateStr, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "Invalid end_date format, use YYYY-MM-DD", "data": nil})
			return
		}
		// 包含当天
		t = t.Add(24*time.Hour - time.Nanosecond)
		endTime = &t
	}

	conversations, err := h.adminService.GetAllConversations(c.Request.Context(), c.Query("sessionId"), startTime, endTime)
	if err != nil {
		log.Error("GetAllConversations: Failed to load conversations", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取会话记录失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": conversations})
}
