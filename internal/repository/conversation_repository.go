// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"pizzabot-go/internal/config"
	"pizzabot-go/internal/model"
	"pizzabot-go/pkg/log"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var (
	// ErrNotFound 表示请求的记录不存在。
	ErrNotFound = errors.New("record not found")
	// ErrSessionBusy 表示同一会话的上一条消息仍在处理中。
	ErrSessionBusy = errors.New("session is busy")
)

// 只删除自己持有的锁
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

const sessionsKey = "sessions"

// ConversationRepository 定义了会话历史与下单草稿的操作接口。
type ConversationRepository interface {
	GetHistory(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
	AppendMessages(ctx context.Context, sessionID string, messages ...model.ChatMessage) error
	GetDraft(ctx context.Context, sessionID string) (*model.OrderDraft, error)
	SaveDraft(ctx context.Context, sessionID string, draft *model.OrderDraft) error
	ClearDraft(ctx context.Context, sessionID string) error
	ListSessions(ctx context.Context) ([]string, error)
	// LockSession 独占一个会话，锁已被持有时返回 ErrSessionBusy。返回的函数释放锁。
	LockSession(ctx context.Context, sessionID string, ttl time.Duration) (func(), error)
}

type redisConversationRepository struct {
	redisClient *redis.Client
	limit       int
	historyTTL  time.Duration
	draftTTL    time.Duration
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
func NewConversationRepository(redisClient *redis.Client, cfg config.ChatConfig) ConversationRepository {
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = 40
	}
	return &redisConversationRepository{
		redisClient: redisClient,
		limit:       limit,
		historyTTL:  cfg.HistoryTTL(),
		draftTTL:    cfg.DraftTTL(),
	}
}

func historyKey(sessionID string) string {
	return fmt.Sprintf("session:%s:history", sessionID)
}

func draftKey(sessionID string) string {
	return fmt.Sprintf("session:%s:draft", sessionID)
}

func lockKey(sessionID string) string {
	return fmt.Sprintf("session:%s:lock", sessionID)
}

// GetHistory 从 Redis 获取会话的历史消息，按时间顺序排列。
func (r *redisConversationRepository) GetHistory(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	items, err := r.redisClient.LRange(ctx, historyKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation history: %w", err)
	}
	messages := make([]model.ChatMessage, 0, len(items))
	for _, item := range items {
		var m model.ChatMessage
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal conversation message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, nil
}

// AppendMessages 追加消息并只保留最近 limit 条，同时刷新过期时间。
func (r *redisConversationRepository) AppendMessages(ctx context.Context, sessionID string, messages ...model.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(messages))
	for _, m := range messages {
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to marshal conversation message: %w", err)
		}
		values = append(values, b)
	}

	key := historyKey(sessionID)
	_, err := r.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		pipe.LTrim(ctx, key, int64(-r.limit), -1)
		if r.historyTTL > 0 {
			pipe.Expire(ctx, key, r.historyTTL)
		}
		pipe.SAdd(ctx, sessionsKey, sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append conversation history: %w", err)
	}
	return nil
}

// GetDraft 返回会话中进行中的下单草稿，不存在时返回 ErrNotFound。
func (r *redisConversationRepository) GetDraft(ctx context.Context, sessionID string) (*model.OrderDraft, error) {
	data, err := r.redisClient.Get(ctx, draftKey(sessionID)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order draft: %w", err)
	}
	var draft model.OrderDraft
	if err := json.Unmarshal([]byte(data), &draft); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order draft: %w", err)
	}
	return &draft, nil
}

// SaveDraft 保存下单草稿，每次保存都会重置过期时间。
func (r *redisConversationRepository) SaveDraft(ctx context.Context, sessionID string, draft *model.OrderDraft) error {
	b, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to marshal order draft: %w", err)
	}
	if err := r.redisClient.Set(ctx, draftKey(sessionID), b, r.draftTTL).Err(); err != nil {
		return fmt.Errorf("failed to save order draft: %w", err)
	}
	return nil
}

// ClearDraft 删除下单草稿。
func (r *redisConversationRepository) ClearDraft(ctx context.Context, sessionID string) error {
	if err := r.redisClient.Del(ctx, draftKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear order draft: %w", err)
	}
	return nil
}

// ListSessions 返回仍有历史记录的会话 ID。历史已过期的会话会顺便从索引中移除。
func (r *redisConversationRepository) ListSessions(ctx context.Context) ([]string, error) {
	ids, err := r.redisClient.SMembers(ctx, sessionsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	alive := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := r.redisClient.Exists(ctx, historyKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to check session history: %w", err)
		}
		if n == 0 {
			_ = r.redisClient.SRem(ctx, sessionsKey, id).Err()
			continue
		}
		alive = append(alive, id)
	}
	sort.Strings(alive)
	return alive, nil
}

func (r *redisConversationRepository) LockSession(ctx context.Context, sessionID string, ttl time.Duration) (func(), error) {
	key := lockKey(sessionID)
	owner := uuid.NewString()
	ok, err := r.redisClient.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to lock session: %w", err)
	}
	if !ok {
		return nil, ErrSessionBusy
	}
	return func() {
		// 请求的 ctx 此时可能已经取消
		if err := unlockScript.Run(context.Background(), r.redisClient, []string{key}, owner).Err(); err != nil && err != redis.Nil {
			log.Errorf("释放会话锁失败: sessionId=%s, error: %v", sessionID, err)
		}
	}, nil
}
