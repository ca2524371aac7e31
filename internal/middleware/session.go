package middleware

import (
	"net/http"
	"strings"

	"pizzabot-go/pkg/log"
	"pizzabot-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// SessionCookie 是保存访客会话令牌的 cookie 名。
	SessionCookie = "pizzachat_session"
	// SessionHeader 是回显会话令牌的响应头。
	SessionHeader = "X-Session-Token"
	// ContextSessionID 是 gin 上下文中会话 ID 的键。
	ContextSessionID = "sessionID"
	// ContextSessionToken 是 gin 上下文中会话令牌的键。
	ContextSessionToken = "sessionToken"
)

// BearerToken 从 Authorization 头中取出 "Bearer <token>" 的 token 部分。
func BearerToken(c *gin.Context) string {
	const bearerPrefix = "Bearer "
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))
}

// SessionMiddleware 识别聊天访客。
// 令牌依次从 Authorization 头和 cookie 中读取，缺失或无效时签发新的会话。
func SessionMiddleware(jwtManager *token.JWTManager, maxAgeSeconds int) gin.HandlerFunc {
	return func(c *gin.Context) {
		var sessionID, tokenString string

		candidates := []string{BearerToken(c)}
		if cookie, err := c.Cookie(SessionCookie); err == nil {
			candidates = append(candidates, cookie)
		}
		for _, candidate := range candidates {
			if candidate == "" {
				continue
			}
			claims, err := jwtManager.VerifyToken(candidate)
			if err == nil && claims.Role == token.RoleGuest && claims.SessionID != "" {
				sessionID, tokenString = claims.SessionID, candidate
				break
			}
		}

		if sessionID == "" {
			sessionID = uuid.NewString()
			var err error
			tokenString, err = jwtManager.GenerateSessionToken(sessionID)
			if err != nil {
				log.Error("签发会话令牌失败", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Error processing request"})
				return
			}
			log.Infow("新会话已创建", "sessionId", sessionID)
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(SessionCookie, tokenString, maxAgeSeconds, "/", "", c.Request.TLS != nil, true)
		c.Header(SessionHeader, tokenString)
		c.Set(ContextSessionID, sessionID)
		c.Set(ContextSessionToken, tokenString)
		c.Next()
	}
}
