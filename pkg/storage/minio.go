// Package storage 提供了与对象存储服务（MinIO）交互的功能，用于保存订单回执。
package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"pizzabot-go/internal/config"
	"pizzabot-go/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ReceiptStore 把订单回执保存为 JSON 对象。
type ReceiptStore struct {
	client *minio.Client
	bucket string
}

// InitMinIO 初始化 MinIO 客户端并确保指定的存储桶存在。
func InitMinIO(ctx context.Context, cfg config.MinIOConfig) (*ReceiptStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
		}
	}
	log.Infof("MinIO 客户端初始化成功, bucket=%s", cfg.BucketName)
	return &ReceiptStore{client: client, bucket: cfg.BucketName}, nil
}

// ReceiptObjectName 返回订单回执的对象名。
func ReceiptObjectName(orderID string) string {
	return fmt.Sprintf("receipts/%s.json", orderID)
}

// PutReceipt 上传订单回执并返回对象名。
func (s *ReceiptStore) PutReceipt(ctx context.Context, orderID string, data []byte) (string, error) {
	objectName := ReceiptObjectName(orderID)
	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("上传订单回执失败: %w", err)
	}
	return objectName, nil
}

// PresignedURL generates a presigned GET URL for a receipt object.
func (s *ReceiptStore) PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, expiry, nil)
	if err != nil {
		log.Errorf("Error generating presigned URL: %s", err)
		return "", err
	}
	return u.String(), nil
}
