package handler

import (
	"net/http"

	"pizzabot-go/internal/middleware"
	"pizzabot-go/internal/service"
	"pizzabot-go/pkg/token"
	"pizzabot-go/web"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
)

// Services 汇总路由需要的业务服务。
type Services struct {
	Chat         service.ChatService
	Conversation service.ConversationService
	Menu         service.MenuService
	Admin        service.AdminService
	JWT          *token.JWTManager
}

// NewRouter 创建 gin 引擎并注册所有路由。
func NewRouter(svc Services, allowedOrigins []string, sessionMaxAge int) *gin.Engine {
	r := gin.New()
	// 添加我们自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestLogger(), gin.Recovery())

	r.GET("/healthz", Health)

	chatHandler := NewChatHandler(svc.Chat, svc.JWT, allowedOrigins)
	menuHandler := NewMenuHandler(svc.Menu)

	// 访客接口，需要会话
	api := r.Group("/api")
	api.Use(middleware.SessionMiddleware(svc.JWT, sessionMaxAge))
	{
		api.POST("/chat", chatHandler.Chat)
		api.GET("/session", GetSession)
		api.GET("/conversation", NewConversationHandler(svc.Conversation).GetConversation)
		api.GET("/menu", menuHandler.GetMenu)
		api.GET("/menu/search", menuHandler.Search)
	}

	// Chat 路由 (WebSocket)，路径参数是会话令牌
	r.GET("/chat/:token", chatHandler.Handle)

	adminHandler := NewAdminHandler(svc.Admin)
	r.POST("/api/v1/admin/login", adminHandler.Login)
	admin := r.Group("/api/v1/admin")
	admin.Use(middleware.AdminAuthMiddleware(svc.JWT))
	{
		admin.GET("/orders", adminHandler.ListOrders)
		admin.GET("/orders/:orderId/receipt", adminHandler.GetReceiptURL)
		admin.GET("/conversations", adminHandler.GetAllConversations)
	}

	// 聊天组件
	static := web.Handler()
	r.GET("/", gin.WrapH(static))
	r.GET("/widget/*filepath", gin.WrapH(http.StripPrefix("/widget", static)))

	return r
}

// WithCORS 允许嵌入聊天组件的站点跨域访问。
func WithCORS(h http.Handler, allowedOrigins []string) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{middleware.SessionHeader},
		AllowCredentials: true,
		MaxAge:           300,
	})(h)
}
