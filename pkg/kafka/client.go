// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pizzabot-go/internal/config"
	"pizzabot-go/pkg/log"
	"pizzabot-go/pkg/tasks"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

// maxAttempts 是同一订单事件处理失败后允许的最大尝试次数。
const maxAttempts = 3

// TaskProcessor 定义了处理订单事件的接口，使消费者与具体的归档实现解耦。
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.OrderPlacedEvent) error
}

// Producer 把订单事件写入 Kafka 主题。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: w}
}

// PublishOrderPlaced 发送一个订单事件到 Kafka，以订单 ID 作为消息 key。
func (p *Producer) PublishOrderPlaced(ctx context.Context, event tasks.OrderPlacedEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Order.ID),
		Value: b,
		Time:  event.PlacedAt,
	})
}

// Close 关闭底层 writer。
func (p *Producer) Close() error {
	return p.writer.Close()
}

func attemptsKey(orderID string) string {
	return fmt.Sprintf("kafka:attempts:%s", orderID)
}

// retryBackoff 是重试的基础等待时间，第 n 次失败后等待 n*retryBackoff。
var retryBackoff = time.Second

// StartConsumer 启动一个 Kafka 消费者来处理订单事件，直到 ctx 被取消。
// 每条消息在提交 offset 之前最多处理 maxAttempts 次，之后放弃该消息。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor TaskProcessor, rdb *redis.Client) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	defer func() {
		if err := r.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				log.Info("Kafka 消费者已停止")
				return
			}
			log.Error("从 Kafka 读取消息失败", err)
			return
		}

		var task tasks.OrderPlacedEvent
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			commit(ctx, r, m)
			continue
		}

		if err := processWithRetry(ctx, processor, rdb, task); err != nil {
			if ctx.Err() != nil {
				// 未提交的消息在下次启动时重新投递
				log.Info("Kafka 消费者已停止")
				return
			}
			log.Errorf("订单事件多次失败，提交 offset 终止重试: %v", err)
		} else {
			log.Infof("订单归档成功: orderId=%s", task.Order.ID)
		}
		commit(ctx, r, m)
	}
}

// processWithRetry 处理一个订单事件，失败时等待后重试。
// 失败次数记录在 Redis 中，重启前的失败也计入 maxAttempts；rdb 为 nil 或不可用时只在本地计数。
func processWithRetry(ctx context.Context, processor TaskProcessor, rdb *redis.Client, task tasks.OrderPlacedEvent) error {
	key := attemptsKey(task.Order.ID)
	var local int64
	for {
		err := processor.Process(ctx, task)
		if err == nil {
			if rdb != nil {
				_ = rdb.Del(ctx, key).Err()
			}
			return nil
		}

		local++
		attempts := local
		if rdb != nil {
			if n, incErr := rdb.Incr(ctx, key).Result(); incErr == nil {
				attempts = n
				_ = rdb.Expire(ctx, key, 24*time.Hour).Err()
			}
		}
		log.Errorf("归档订单失败(第 %d 次): orderId=%s, error: %v", attempts, task.Order.ID, err)
		if attempts >= maxAttempts {
			return fmt.Errorf("order %s failed %d times: %w", task.Order.ID, attempts, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempts) * retryBackoff):
		}
	}
}

func commit(ctx context.Context, r *kafka.Reader, m kafka.Message) {
	if err := r.CommitMessages(ctx, m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}
