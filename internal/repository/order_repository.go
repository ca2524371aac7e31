package repository

import (
	"errors"

	"pizzabot-go/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderRepository 接口定义了已下单订单的持久化操作。
type OrderRepository interface {
	Upsert(record *model.OrderRecord) error
	FindByOrderID(orderID string) (*model.OrderRecord, error)
	FindWithPagination(offset, limit int) ([]model.OrderRecord, int64, error)
}

// orderRepository 是 OrderRepository 接口的 GORM 实现。
type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建一个新的 OrderRepository 实例。
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// Upsert 按 order_id 写入订单，重复投递的事件只会更新已有记录。
func (r *orderRepository) Upsert(record *model.OrderRecord) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "order_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"session_id", "customer", "phone", "address", "priority", "payment_method",
			"order_price", "priority_price", "estimated_delivery", "cart_json", "receipt_object",
		}),
	}).Create(record).Error
}

// FindByOrderID 根据披萨 API 返回的订单号查找记录。
func (r *orderRepository) FindByOrderID(orderID string) (*model.OrderRecord, error) {
	var record model.OrderRecord
	err := r.db.Where("order_id = ?", orderID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindWithPagination 按创建时间倒序分页检索订单。
// 它返回订单列表、总记录数和可能发生的错误。
func (r *orderRepository) FindWithPagination(offset, limit int) ([]model.OrderRecord, int64, error) {
	var records []model.OrderRecord
	var total int64

	if err := r.db.Model(&model.OrderRecord{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&records).Error
	return records, total, err
}
