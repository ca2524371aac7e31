package service

import (
	"context"
	"errors"

	"pizzabot-go/internal/model"
	"pizzabot-go/internal/repository"
)

// ConversationService 定义了对话业务逻辑的接口。
type ConversationService interface {
	GetConversationHistory(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
	// HasOpenOrder 报告会话是否有进行中的下单对话。
	HasOpenOrder(ctx context.Context, sessionID string) (bool, error)
}

type conversationService struct {
	repo repository.ConversationRepository
}

// NewConversationService 创建一个新的 ConversationService。
func NewConversationService(repo repository.ConversationRepository) ConversationService {
	return &conversationService{repo: repo}
}

// GetConversationHistory 获取会话的完整消息历史。
func (s *conversationService) GetConversationHistory(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	return s.repo.GetHistory(ctx, sessionID)
}

func (s *conversationService) HasOpenOrder(ctx context.Context, sessionID string) (bool, error) {
	_, err := s.repo.GetDraft(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
