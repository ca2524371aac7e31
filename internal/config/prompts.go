package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Prompts 保存系统提示词与下单流程中固定的提问文本。
type Prompts struct {
	System       string        `yaml:"system"`
	MenuPrefix   string        `yaml:"menu_prefix"`
	Intro        string        `yaml:"intro"`
	Triggers     PromptTrigger `yaml:"triggers"`
	Order        OrderPrompts  `yaml:"order"`
	Placed       string        `yaml:"placed"`
	Cancelled    string        `yaml:"cancelled"`
	Suggestions  string        `yaml:"suggestions"`
	SoldOut      string        `yaml:"sold_out"`
	InvalidPhone string        `yaml:"invalid_phone"`
	InvalidQty   string        `yaml:"invalid_quantity"`
	YesNo        string        `yaml:"yes_no"`
}

// PromptTrigger 是在模型回复中检测的子串（小写比较）。
type PromptTrigger struct {
	HowToOrder string `yaml:"how_to_order"`
	PlaceOrder string `yaml:"place_order"`
}

// OrderPrompts 对应下单流程各步骤的提问。
type OrderPrompts struct {
	Name         string `yaml:"name"`
	Phone        string `yaml:"phone"`
	Address      string `yaml:"address"`
	Pizza        string `yaml:"pizza"`
	UnknownPizza string `yaml:"unknown_pizza"`
	Quantity     string `yaml:"quantity"`
	More         string `yaml:"more"`
	Priority     string `yaml:"priority"`
}

// DefaultPrompts 返回内置的提示词。
func DefaultPrompts() Prompts {
	return Prompts{
		System:     "You are a helpful assistant for ordering pizzas. You only help with pizza-related questions and ordering. The payment method is cash on delivery.",
		MenuPrefix: "Menu data: ",
		Intro:      "I can help you place an order by asking for your details and your pizza preferences. Let's start with your name. What is your name?",
		Triggers: PromptTrigger{
			HowToOrder: "how can you help me in placing order",
			PlaceOrder: "place an order",
		},
		Order: OrderPrompts{
			Name:         "Let’s start with your name. What’s your name?",
			Phone:        "Got it! What’s your phone number?",
			Address:      "Thanks! Now, what’s your address?",
			Pizza:        "Which pizza would you like to order?",
			UnknownPizza: "Sorry, we do not have that pizza. Please choose another one.",
			Quantity:     "How many would you like to order?",
			More:         "Would you like to add another pizza to your order? (yes/no)",
			Priority:     "Would you like to prioritize your order? (yes/no)",
		},
		Placed:       "Order placed successfully. Your order ID is %s. Here are the details: %s",
		Cancelled:    "Okay, I have cancelled your order.",
		Suggestions:  "Did you mean: %s?",
		SoldOut:      "Sorry, %s is sold out right now. Please choose another one.",
		InvalidPhone: "That does not look like a phone number. What’s your phone number?",
		InvalidQty:   "Please tell me a number between 1 and %d. How many would you like to order?",
		YesNo:        "Please answer yes or no.",
	}
}

// LoadPrompts 从 YAML 文件读取提示词，文件中缺失的字段沿用默认值。
// 文件不存在时直接返回默认提示词。
func LoadPrompts(path string) (Prompts, error) {
	p := DefaultPrompts()
	if path == "" {
		return p, nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("读取提示词文件失败: %w", err)
	}
	// yaml 只覆盖文件中出现的字段
	if err := yaml.Unmarshal(b, &p); err != nil {
		return DefaultPrompts(), fmt.Errorf("解析提示词文件失败: %w", err)
	}
	// 空触发语会匹配所有回复
	def := DefaultPrompts()
	if strings.TrimSpace(p.Triggers.HowToOrder) == "" {
		p.Triggers.HowToOrder = def.Triggers.HowToOrder
	}
	if strings.TrimSpace(p.Triggers.PlaceOrder) == "" {
		p.Triggers.PlaceOrder = def.Triggers.PlaceOrder
	}
	return p, nil
}
