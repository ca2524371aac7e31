package model

import "time"

// OrderStep 是下单对话当前等待回答的问题。
type OrderStep string

const (
	StepName     OrderStep = "name"
	StepPhone    OrderStep = "phone"
	StepAddress  OrderStep = "address"
	StepPizza    OrderStep = "pizza"
	StepQuantity OrderStep = "quantity"
	StepMore     OrderStep = "more"
	StepPriority OrderStep = "priority"
)

// OrderDraft 保存一个会话中正在进行的下单对话。
type OrderDraft struct {
	Step         OrderStep    `json:"step"`
	Details      OrderDetails `json:"details"`
	PendingPizza *Pizza       `json:"pendingPizza,omitempty"`
	// Attempts 记录当前步骤连续无效回答的次数
	Attempts  int       `json:"attempts"`
	StartedAt time.Time `json:"startedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewOrderDraft 创建一个从询问姓名开始的草稿。
func NewOrderDraft() *OrderDraft {
	now := time.Now()
	return &OrderDraft{
		Step:      StepName,
		Details:   NewOrderDetails(),
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Advance 进入下一步并清零无效回答计数。
func (d *OrderDraft) Advance(step OrderStep) {
	d.Step = step
	d.Attempts = 0
	d.UpdatedAt = time.Now()
}
