package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentCashOnDelivery 是唯一支持的付款方式。
const PaymentCashOnDelivery = "Cash on Delivery"

// CartLine 是订单中的一行，字段名与披萨 API 保持一致。
type CartLine struct {
	PizzaID    int     `json:"pizzaId"`
	Name       string  `json:"name"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unitPrice"`
	TotalPrice float64 `json:"totalPrice"`
}

// OrderDetails 是提交给披萨 API 的下单请求体。
type OrderDetails struct {
	Customer      string     `json:"customer"`
	Phone         string     `json:"phone"`
	Address       string     `json:"address"`
	Cart          []CartLine `json:"cart"`
	Priority      bool       `json:"priority"`
	PaymentMethod string     `json:"paymentMethod"`
}

// NewOrderDetails 返回一个空的、货到付款的订单。
func NewOrderDetails() OrderDetails {
	return OrderDetails{Cart: []CartLine{}, PaymentMethod: PaymentCashOnDelivery}
}

func lineTotal(unitPrice float64, quantity int) float64 {
	return decimal.NewFromFloat(unitPrice).Mul(decimal.NewFromInt(int64(quantity))).InexactFloat64()
}

// AddPizza 把 quantity 个 pizza 加入购物车。同一种披萨合并到已有的行。
func (d *OrderDetails) AddPizza(p Pizza, quantity int) {
	for i := range d.Cart {
		if d.Cart[i].PizzaID == p.ID {
			d.Cart[i].Quantity += quantity
			d.Cart[i].TotalPrice = lineTotal(d.Cart[i].UnitPrice, d.Cart[i].Quantity)
			return
		}
	}
	d.Cart = append(d.Cart, CartLine{
		PizzaID:    p.ID,
		Name:       p.Name,
		Quantity:   quantity,
		UnitPrice:  p.UnitPrice,
		TotalPrice: lineTotal(p.UnitPrice, quantity),
	})
}

// Total 返回购物车总价。
func (d OrderDetails) Total() float64 {
	sum := decimal.Zero
	for _, l := range d.Cart {
		sum = sum.Add(decimal.NewFromFloat(l.TotalPrice))
	}
	return sum.InexactFloat64()
}

// PlacedOrder 是披萨 API 创建订单后返回的 data 对象。
type PlacedOrder struct {
	ID                string          `json:"id"`
	Customer          string          `json:"customer"`
	Phone             string          `json:"phone,omitempty"`
	Address           string          `json:"address,omitempty"`
	Status            string          `json:"status"`
	Priority          bool            `json:"priority"`
	EstimatedDelivery string          `json:"estimatedDelivery"`
	OrderPrice        float64         `json:"orderPrice"`
	PriorityPrice     float64         `json:"priorityPrice"`
	Cart              []CartLine      `json:"cart"`
	Raw               json.RawMessage `json:"-"`
}

// OrderRecord 对应于数据库中的 placed_orders 表，用于归档已下单的订单。
type OrderRecord struct {
	ID                uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID           string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"orderId"`
	SessionID         string    `gorm:"type:varchar(64);index" json:"sessionId"`
	Customer          string    `gorm:"type:varchar(255);not null" json:"customer"`
	Phone             string    `gorm:"type:varchar(64)" json:"phone"`
	Address           string    `gorm:"type:varchar(512)" json:"address"`
	Priority          bool      `gorm:"not null;default:false" json:"priority"`
	PaymentMethod     string    `gorm:"type:varchar(64)" json:"paymentMethod"`
	OrderPrice        float64   `gorm:"type:decimal(10,2)" json:"orderPrice"`
	PriorityPrice     float64   `gorm:"type:decimal(10,2)" json:"priorityPrice"`
	EstimatedDelivery string    `gorm:"type:varchar(64)" json:"estimatedDelivery"`
	CartJSON          string    `gorm:"type:text" json:"-"`
	ReceiptObject     string    `gorm:"type:varchar(255)" json:"receiptObject"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (OrderRecord) TableName() string {
	return "placed_orders"
}

// OrderRecordDTO 是后台订单列表的返回结构。
type OrderRecordDTO struct {
	OrderID           string     `json:"orderId"`
	SessionID         string     `json:"sessionId"`
	Customer          string     `json:"customer"`
	Phone             string     `json:"phone"`
	Address           string     `json:"address"`
	Priority          bool       `json:"priority"`
	OrderPrice        float64    `json:"orderPrice"`
	PriorityPrice     float64    `json:"priorityPrice"`
	EstimatedDelivery string     `json:"estimatedDelivery"`
	Cart              []CartLine `json:"cart"`
	CreatedAt         LocalTime  `json:"createdAt"`
}

// ToDTO 把数据库记录转换为返回给前端的结构。
func (r OrderRecord) ToDTO() OrderRecordDTO {
	var cart []CartLine
	if r.CartJSON != "" {
		_ = json.Unmarshal([]byte(r.CartJSON), &cart)
	}
	if cart == nil {
		cart = []CartLine{}
	}
	return OrderRecordDTO{
		OrderID:           r.OrderID,
		SessionID:         r.SessionID,
		Customer:          r.Customer,
		Phone:             r.Phone,
		Address:           r.Address,
		Priority:          r.Priority,
		OrderPrice:        r.OrderPrice,
		PriorityPrice:     r.PriorityPrice,
		EstimatedDelivery: r.EstimatedDelivery,
		Cart:              cart,
		CreatedAt:         LocalTime(r.CreatedAt),
	}
}
