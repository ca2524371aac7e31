// Package token 提供了用于生成和验证 JSON Web Tokens (JWT) 的功能。
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// RoleGuest 是聊天窗口访客会话令牌的角色。
	RoleGuest = "GUEST"
	// RoleAdmin 是后台管理员令牌的角色。
	RoleAdmin = "ADMIN"
)

// JWTManager 负责管理 JWT 的生成和验证。
type JWTManager struct {
	secretKey  []byte        // secretKey 用于签名和验证 token 的密钥
	sessionDur time.Duration // sessionDur 定义了访客会话 token 的有效期
	adminDur   time.Duration // adminDur 定义了管理员 token 的有效期
}

// CustomClaims 定义了我们想要在 JWT 中存储的自定义数据。
type CustomClaims struct {
	SessionID string `json:"sid,omitempty"`
	Username  string `json:"username,omitempty"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// NewJWTManager 创建一个新的 JWTManager 实例。
// sessionExpireHours: 访客会话 token 的过期时间（小时）。
// adminExpireHours: 管理员 token 的过期时间（小时）。
func NewJWTManager(secret string, sessionExpireHours, adminExpireHours int) *JWTManager {
	return &JWTManager{
		secretKey:  []byte(secret),
		sessionDur: time.Duration(sessionExpireHours) * time.Hour,
		adminDur:   time.Duration(adminExpireHours) * time.Hour,
	}
}

func (m *JWTManager) sign(claims CustomClaims, dur time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(dur)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// GenerateSessionToken 为聊天会话签发 token，会话 ID 保存在 sid 声明中。
func (m *JWTManager) GenerateSessionToken(sessionID string) (string, error) {
	return m.sign(CustomClaims{SessionID: sessionID, Role: RoleGuest}, m.sessionDur)
}

// GenerateAdminToken 为管理员签发 token。
func (m *JWTManager) GenerateAdminToken(username string) (string, error) {
	return m.sign(CustomClaims{Username: username, Role: RoleAdmin}, m.adminDur)
}

// VerifyToken 验证给定的 token 字符串。
// 如果 token 无效（例如，签名不匹配或已过期），则返回错误。
func (m *JWTManager) VerifyToken(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		// 检查签名方法是否为 HMAC
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*CustomClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}
