package handler

import (
	"net/http"
	"strconv"
	"strings"

	"pizzabot-go/internal/service"
	"pizzabot-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// MenuHandler 处理菜单相关的请求。
type MenuHandler struct {
	menuService service.MenuService
}

// NewMenuHandler 创建一个新的 MenuHandler。
func NewMenuHandler(menuService service.MenuService) *MenuHandler {
	return &MenuHandler{menuService: menuService}
}

// GetMenu 返回当前菜单。
func (h *MenuHandler) GetMenu(c *gin.Context) {
	menu, err := h.menuService.GetMenu(c.Request.Context())
	if err != nil {
		log.Error("GetMenu: 获取菜单失败", err)
		c.JSON(http.StatusBadGateway, gin.H{"code": http.StatusBadGateway, "message": "菜单暂时不可用", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": menu})
}

// Search 按名称模糊查找可下单的披萨，参数 q 必填，size 默认 3。
func (h *MenuHandler) Search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "查询参数 q 不能为空", "data": nil})
		return
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", "3"))
	if err != nil || size <= 0 || size > 20 {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的 size 参数", "data": nil})
		return
	}

	names, err := h.menuService.Suggest(c.Request.Context(), q, size)
	if err != nil {
		log.Error("Search: 菜单检索失败", err)
		c.JSON(http.StatusBadGateway, gin.H{"code": http.StatusBadGateway, "message": "菜单暂时不可用", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": names})
}
