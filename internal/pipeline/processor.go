// Package pipeline 定义了订单归档的核心流程。
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pizzabot-go/internal/model"
	"pizzabot-go/internal/repository"
	"pizzabot-go/pkg/log"
	"pizzabot-go/pkg/tasks"
)

// ReceiptWriter 保存订单回执并返回对象名。
type ReceiptWriter interface {
	PutReceipt(ctx context.Context, orderID string, data []byte) (string, error)
}

// Receipt 是写入对象存储的订单回执。
type Receipt struct {
	OrderID   string             `json:"orderId"`
	SessionID string             `json:"sessionId"`
	PlacedAt  time.Time          `json:"placedAt"`
	Details   model.OrderDetails `json:"details"`
	Order     json.RawMessage    `json:"order"`
}

// Processor 封装了订单归档的所有依赖和逻辑。两个依赖都可以为 nil。
type Processor struct {
	receipts  ReceiptWriter
	orderRepo repository.OrderRepository
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(receipts ReceiptWriter, orderRepo repository.OrderRepository) *Processor {
	return &Processor{receipts: receipts, orderRepo: orderRepo}
}

// Process 是订单归档的主函数：先写回执，再写数据库记录。
// 同一事件重复处理时结果相同。
func (p *Processor) Process(ctx context.Context, task tasks.OrderPlacedEvent) error {
	orderID := task.Order.ID
	if orderID == "" {
		return fmt.Errorf("order event without order id (session %s)", task.SessionID)
	}
	log.Infof("[Processor] 开始归档订单, OrderID: %s, SessionID: %s", orderID, task.SessionID)

	// 1. 生成回执并上传
	var objectName string
	if p.receipts != nil {
		data, err := buildReceipt(task)
		if err != nil {
			return err
		}
		objectName, err = p.receipts.PutReceipt(ctx, orderID, data)
		if err != nil {
			log.Errorf("[Processor] 上传回执失败, OrderID: %s, Error: %v", orderID, err)
			return err
		}
		log.Infof("[Processor] 步骤1: 回执已上传, Object: %s", objectName)
	}

	// 2. 写入 placed_orders 表
	if p.orderRepo != nil {
		record, err := toRecord(task, objectName)
		if err != nil {
			return err
		}
		if err := p.orderRepo.Upsert(record); err != nil {
			log.Errorf("[Processor] 写入订单记录失败, OrderID: %s, Error: %v", orderID, err)
			return fmt.Errorf("写入订单记录失败: %w", err)
		}
		log.Infof("[Processor] 步骤2: 订单记录已保存, OrderID: %s", orderID)
	}
	return nil
}

func buildReceipt(task tasks.OrderPlacedEvent) ([]byte, error) {
	order := task.RawOrder
	if len(order) == 0 {
		b, err := json.Marshal(task.Order)
		if err != nil {
			return nil, fmt.Errorf("序列化订单失败: %w", err)
		}
		order = b
	}
	return json.MarshalIndent(Receipt{
		OrderID:   task.Order.ID,
		SessionID: task.SessionID,
		PlacedAt:  task.PlacedAt,
		Details:   task.Details,
		Order:     order,
	}, "", "  ")
}

func toRecord(task tasks.OrderPlacedEvent, objectName string) (*model.OrderRecord, error) {
	cart := task.Order.Cart
	if len(cart) == 0 {
		cart = task.Details.Cart
	}
	cartJSON, err := json.Marshal(cart)
	if err != nil {
		return nil, fmt.Errorf("序列化购物车失败: %w", err)
	}
	orderPrice := task.Order.OrderPrice
	if orderPrice == 0 {
		orderPrice = task.Details.Total()
	}
	return &model.OrderRecord{
		OrderID:           task.Order.ID,
		SessionID:         task.SessionID,
		Customer:          task.Details.Customer,
		Phone:             task.Details.Phone,
		Address:           task.Details.Address,
		Priority:          task.Details.Priority,
		PaymentMethod:     task.Details.PaymentMethod,
		OrderPrice:        orderPrice,
		PriorityPrice:     task.Order.PriorityPrice,
		EstimatedDelivery: task.Order.EstimatedDelivery,
		CartJSON:          string(cartJSON),
		ReceiptObject:     objectName,
	}, nil
}

// InlinePublisher 在没有 Kafka 时直接在当前请求中归档订单。
type InlinePublisher struct {
	processor *Processor
}

// NewInlinePublisher 创建一个同步归档的发布者。
func NewInlinePublisher(processor *Processor) *InlinePublisher {
	return &InlinePublisher{processor: processor}
}

// PublishOrderPlaced 直接调用 Processor 处理事件。
func (p *InlinePublisher) PublishOrderPlaced(ctx context.Context, event tasks.OrderPlacedEvent) error {
	return p.processor.Process(ctx, event)
}
