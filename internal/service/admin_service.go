package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pizzabot-go/internal/config"
	"pizzabot-go/internal/model"
	"pizzabot-go/internal/repository"
	"pizzabot-go/pkg/hash"
	"pizzabot-go/pkg/token"
)

const (
	receiptURLExpiry = 15 * time.Minute
	// MaxPageSize 是订单列表单页的最大条数。
	MaxPageSize = 100
)

var (
	// ErrInvalidCredentials 表示管理员用户名或密码错误。
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrArchiveDisabled 表示订单归档（MySQL/MinIO）未配置。
	ErrArchiveDisabled = errors.New("order archive is not configured")
)

// ReceiptLinker 为回执对象生成临时下载链接。
type ReceiptLinker interface {
	PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}

// OrderListResponse 定义了订单列表 API 的响应结构。
type OrderListResponse struct {
	Content       []model.OrderRecordDTO `json:"content"`
	TotalElements int64                  `json:"totalElements"`
	TotalPages    int                    `json:"totalPages"`
	Size          int                    `json:"size"`
	Number        int                    `json:"number"`
}

// AdminService 接口定义了所有管理员相关的业务操作。
type AdminService interface {
	Login(username, password string) (string, error)
	ListOrders(page, size int) (*OrderListResponse, error)
	ReceiptURL(ctx context.Context, orderID string) (string, error)
	GetAllConversations(ctx context.Context, sessionID string, startTime, endTime *time.Time) ([]model.ConversationEntry, error)
}

// adminService 是 AdminService 接口的实现。
type adminService struct {
	admin            config.AdminConfig
	jwtManager       *token.JWTManager
	orderRepo        repository.OrderRepository
	receipts         ReceiptLinker
	conversationRepo repository.ConversationRepository
}

// NewAdminService 创建一个新的 AdminService 实例。orderRepo 和 receipts 未配置时传 nil。
func NewAdminService(admin config.AdminConfig, jwtManager *token.JWTManager, orderRepo repository.OrderRepository, receipts ReceiptLinker, conversationRepo repository.ConversationRepository) AdminService {
	return &adminService{
		admin:            admin,
		jwtManager:       jwtManager,
		orderRepo:        orderRepo,
		receipts:         receipts,
		conversationRepo: conversationRepo,
	}
}

// Login 校验管理员账号并签发管理员令牌。
func (s *adminService) Login(username, password string) (string, error) {
	if s.admin.PasswordHash == "" || username != s.admin.Username {
		return "", ErrInvalidCredentials
	}
	if !hash.CheckPasswordHash(password, s.admin.PasswordHash) {
		return "", ErrInvalidCredentials
	}
	return s.jwtManager.GenerateAdminToken(username)
}

// ListOrders 分页返回已归档的订单，page 从 1 开始。
func (s *adminService) ListOrders(page, size int) (*OrderListResponse, error) {
	if s.orderRepo == nil {
		return nil, ErrArchiveDisabled
	}
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 10
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	records, total, err := s.orderRepo.FindWithPagination((page-1)*size, size)
	if err != nil {
		return nil, err
	}

	content := make([]model.OrderRecordDTO, 0, len(records))
	for _, r := range records {
		content = append(content, r.ToDTO())
	}

	totalPages := 0
	if total > 0 {
		totalPages = (int(total) + size - 1) / size
	}
	return &OrderListResponse{
		Content:       content,
		TotalElements: total,
		TotalPages:    totalPages,
		Size:          size,
		Number:        page,
	}, nil
}

// ReceiptURL 返回订单回执的预签名下载链接。
func (s *adminService) ReceiptURL(ctx context.Context, orderID string) (string, error) {
	if s.orderRepo == nil || s.receipts == nil {
		return "", ErrArchiveDisabled
	}
	record, err := s.orderRepo.FindByOrderID(orderID)
	if err != nil {
		return "", err
	}
	if record.ReceiptObject == "" {
		return "", repository.ErrNotFound
	}
	return s.receipts.PresignedURL(ctx, record.ReceiptObject, receiptURLExpiry)
}

// GetAllConversations 返回所有会话（或指定会话）的消息，可按时间过滤。
func (s *adminService) GetAllConversations(ctx context.Context, sessionID string, startTime, endTime *time.Time) ([]model.ConversationEntry, error) {
	sessionIDs := []string{sessionID}
	if sessionID == "" {
		ids, err := s.conversationRepo.ListSessions(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list sessions from redis: %w", err)
		}
		sessionIDs = ids
	}

	entries := make([]model.ConversationEntry, 0)
	for _, sid := range sessionIDs {
		history, err := s.conversationRepo.GetHistory(ctx, sid)
		if err != nil {
			return nil, fmt.Errorf("failed to get conversation history: %w", err)
		}
		for _, msg := range history {
			if startTime != nil && msg.Timestamp.Before(*startTime) {
				continue
			}
			if endTime != nil && msg.Timestamp.After(*endTime) {
				continue
			}
			entries = append(entries, model.ConversationEntry{
				SessionID: sid,
				Role:      msg.Role,
				Content:   msg.Content,
				Timestamp: model.LocalTime(msg.Timestamp),
			})
		}
	}
	return entries, nil
}
