package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"pizzabot-go/internal/config"
	"pizzabot-go/internal/model"
	"pizzabot-go/internal/repository"
	"pizzabot-go/pkg/llm"
	"pizzabot-go/pkg/log"
)

// ErrEmptyMessage 表示请求中没有可处理的消息。
var ErrEmptyMessage = errors.New("message is required")

// sessionLockSlack 是会话锁在 LLM 超时之外多保留的时间，覆盖菜单和下单请求。
const sessionLockSlack = time.Minute

// ChatResult 是一次对话处理的结果。Order 只在本轮完成下单时出现。
type ChatResult struct {
	Reply string             `json:"reply"`
	Order *model.PlacedOrder `json:"order,omitempty"`
}

// ChatService 定义了聊天操作的接口。
type ChatService interface {
	Handle(ctx context.Context, sessionID, message string) (*ChatResult, error)
}

type chatService struct {
	llmClient        llm.Client
	conversationRepo repository.ConversationRepository
	menu             MenuService
	flow             OrderFlow
	prompts          config.Prompts
	llmTimeout       time.Duration
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(llmClient llm.Client, conversationRepo repository.ConversationRepository, menu MenuService, flow OrderFlow, prompts config.Prompts, llmTimeout time.Duration) ChatService {
	return &chatService{
		llmClient:        llmClient,
		conversationRepo: conversationRepo,
		menu:             menu,
		flow:             flow,
		prompts:          prompts,
		llmTimeout:       llmTimeout,
	}
}

// Handle 处理访客的一条消息。下单对话进行中时由 OrderFlow 接管，否则交给 LLM。
func (s *chatService) Handle(ctx context.Context, sessionID, message string) (*ChatResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	// 同一会话的消息逐条处理，避免并发回答重复下单
	unlock, err := s.conversationRepo.LockSession(ctx, sessionID, s.llmTimeout+sessionLockSlack)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// 1. 有进行中的草稿时，本条消息是对上一个问题的回答
	draft, err := s.conversationRepo.GetDraft(ctx, sessionID)
	if err == nil {
		return s.flow.Continue(ctx, sessionID, draft, message)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	// 2. 构建 [system, 历史..., 菜单] 消息
	history, err := s.conversationRepo.GetHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	menu, err := s.menu.GetMenu(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load menu: %w", err)
	}
	userMsg := model.NewMessage(model.RoleUser, message)
	if err := s.conversationRepo.AppendMessages(ctx, sessionID, userMsg); err != nil {
		return nil, err
	}
	messages, err := s.composeMessages(append(history, userMsg), menu)
	if err != nil {
		return nil, err
	}

	// 3. 调用 LLM
	llmCtx := ctx
	if s.llmTimeout > 0 {
		var cancel context.CancelFunc
		llmCtx, cancel = context.WithTimeout(ctx, s.llmTimeout)
		defer cancel()
	}
	reply, err := s.llmClient.Chat(llmCtx, messages, nil)
	if err != nil {
		return nil, fmt.Errorf("llm chat failed: %w", err)
	}

	// 4. 检查回复中的下单触发语
	lower := strings.ToLower(reply)
	switch {
	case containsTrigger(lower, s.prompts.Triggers.HowToOrder):
		if err := s.flow.Start(ctx, sessionID); err != nil {
			return nil, err
		}
		reply = s.prompts.Intro
		log.Infow("[ChatService] 开始下单对话", "sessionId", sessionID, "trigger", "how_to_order")
	case containsTrigger(lower, s.prompts.Triggers.PlaceOrder):
		if err := s.flow.Start(ctx, sessionID); err != nil {
			return nil, err
		}
		reply = reply + "\n\n" + s.prompts.Order.Name
		log.Infow("[ChatService] 开始下单对话", "sessionId", sessionID, "trigger", "place_order")
	}

	if err := s.conversationRepo.AppendMessages(ctx, sessionID, model.NewMessage(model.RoleAssistant, reply)); err != nil {
		// 回复已生成，只记录错误
		log.Errorf("Failed to save conversation history: %v", err)
	}
	return &ChatResult{Reply: reply}, nil
}

// containsTrigger 检查小写回复中是否出现触发语，空触发语不匹配任何回复。
func containsTrigger(lowerReply, trigger string) bool {
	trigger = strings.ToLower(strings.TrimSpace(trigger))
	return trigger != "" && strings.Contains(lowerReply, trigger)
}

func (s *chatService) composeMessages(history []model.ChatMessage, menu []model.Pizza) ([]llm.Message, error) {
	menuJSON, err := json.Marshal(menu)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal menu: %w", err)
	}
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: string(model.RoleSystem), Content: s.prompts.System})
	for _, m := range history {
		msgs = append(msgs, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	msgs = append(msgs, llm.Message{Role: string(model.RoleSystem), Content: s.prompts.MenuPrefix + string(menuJSON)})
	return msgs, nil
}
