// Package model 包含了应用的数据模型定义。
package model

import "time"

// Role 是对话消息的角色。
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatMessage 代表存储在 Redis 中的单条对话消息。
type ChatMessage struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage 以当前时间构造一条消息。
func NewMessage(role Role, content string) ChatMessage {
	return ChatMessage{Role: role, Content: content, Timestamp: time.Now()}
}

// ConversationEntry 是后台查看会话时返回的一行记录。
type ConversationEntry struct {
	SessionID string    `json:"sessionId"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp LocalTime `json:"timestamp"`
}
