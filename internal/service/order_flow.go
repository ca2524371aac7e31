package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"pizzabot-go/internal/config"
	"pizzabot-go/internal/model"
	"pizzabot-go/internal/repository"
	"pizzabot-go/pkg/log"
	"pizzabot-go/pkg/pizzaapi"
	"pizzabot-go/pkg/tasks"
)

const (
	// MaxQuantity 是单次加入购物车的最大数量。
	MaxQuantity    = 20
	minPhoneDigits = 6
	maxSuggestions = 3
	cancelWord     = "cancel"
)

var (
	yesWords = map[string]bool{"yes": true, "y": true, "yeah": true, "yep": true, "sure": true, "ok": true}
	noWords  = map[string]bool{"no": true, "n": true, "nope": true, "nah": true}
)

// OrderPublisher 发布订单已创建事件。
type OrderPublisher interface {
	PublishOrderPlaced(ctx context.Context, event tasks.OrderPlacedEvent) error
}

// OrderFlow 在多轮对话中逐步收集下单信息。
type OrderFlow interface {
	// Start 为会话创建一个从询问姓名开始的草稿。
	Start(ctx context.Context, sessionID string) error
	// Continue 用访客的回答推进草稿，返回下一句回复。
	Continue(ctx context.Context, sessionID string, draft *model.OrderDraft, message string) (*ChatResult, error)
}

type orderFlow struct {
	repo      repository.ConversationRepository
	menu      MenuService
	api       pizzaapi.Client
	publisher OrderPublisher
	prompts   config.Prompts
}

// NewOrderFlow 创建一个新的 OrderFlow 实例。publisher 为 nil 时不发布事件。
func NewOrderFlow(repo repository.ConversationRepository, menu MenuService, api pizzaapi.Client, publisher OrderPublisher, prompts config.Prompts) OrderFlow {
	return &orderFlow{repo: repo, menu: menu, api: api, publisher: publisher, prompts: prompts}
}

func (f *orderFlow) Start(ctx context.Context, sessionID string) error {
	return f.repo.SaveDraft(ctx, sessionID, model.NewOrderDraft())
}

func (f *orderFlow) Continue(ctx context.Context, sessionID string, draft *model.OrderDraft, message string) (*ChatResult, error) {
	answer := strings.TrimSpace(message)

	if strings.EqualFold(answer, cancelWord) {
		if err := f.repo.ClearDraft(ctx, sessionID); err != nil {
			return nil, err
		}
		log.Infow("[OrderFlow] 访客取消了订单", "sessionId", sessionID, "step", draft.Step)
		return f.reply(ctx, sessionID, answer, f.prompts.Cancelled)
	}

	if draft.Step == model.StepPriority {
		yes, ok := parseYesNo(answer)
		if !ok {
			return f.retry(ctx, sessionID, draft, answer, f.prompts.YesNo+" "+f.prompts.Order.Priority)
		}
		draft.Details.Priority = yes
		return f.place(ctx, sessionID, draft, answer)
	}

	next, err := f.step(ctx, draft, answer)
	if err != nil {
		return nil, err
	}
	if err := f.repo.SaveDraft(ctx, sessionID, draft); err != nil {
		return nil, err
	}
	return f.reply(ctx, sessionID, answer, next)
}

// step 处理除 priority 以外的步骤，修改草稿并返回下一句提问。
func (f *orderFlow) step(ctx context.Context, draft *model.OrderDraft, answer string) (string, error) {
	p := f.prompts.Order
	switch draft.Step {
	case model.StepName:
		if answer == "" {
			draft.Attempts++
			return p.Name, nil
		}
		draft.Details.Customer = answer
		draft.Advance(model.StepPhone)
		return p.Phone, nil

	case model.StepPhone:
		if countDigits(answer) < minPhoneDigits {
			draft.Attempts++
			return f.prompts.InvalidPhone, nil
		}
		draft.Details.Phone = answer
		draft.Advance(model.StepAddress)
		return p.Address, nil

	case model.StepAddress:
		if answer == "" {
			draft.Attempts++
			return p.Address, nil
		}
		draft.Details.Address = answer
		draft.Advance(model.StepPizza)
		return p.Pizza, nil

	case model.StepPizza:
		pizza, err := f.menu.FindByName(ctx, answer)
		if errors.Is(err, ErrPizzaNotFound) {
			draft.Attempts++
			return f.unknownPizza(ctx, answer), nil
		}
		if err != nil {
			return "", err
		}
		if pizza.SoldOut {
			draft.Attempts++
			return fmt.Sprintf(f.prompts.SoldOut, pizza.Name), nil
		}
		draft.PendingPizza = pizza
		draft.Advance(model.StepQuantity)
		return p.Quantity, nil

	case model.StepQuantity:
		qty, err := strconv.Atoi(answer)
		if err != nil || qty < 1 || qty > MaxQuantity || draft.PendingPizza == nil {
			draft.Attempts++
			return fmt.Sprintf(f.prompts.InvalidQty, MaxQuantity), nil
		}
		draft.Details.AddPizza(*draft.PendingPizza, qty)
		draft.PendingPizza = nil
		draft.Advance(model.StepMore)
		return p.More, nil

	case model.StepMore:
		yes, ok := parseYesNo(answer)
		if !ok {
			draft.Attempts++
			return f.prompts.YesNo + " " + p.More, nil
		}
		if yes {
			draft.Advance(model.StepPizza)
			return p.Pizza, nil
		}
		draft.Advance(model.StepPriority)
		return p.Priority, nil
	}
	return "", fmt.Errorf("unknown order step %q", draft.Step)
}

func (f *orderFlow) unknownPizza(ctx context.Context, answer string) string {
	reply := f.prompts.Order.UnknownPizza
	names, err := f.menu.Suggest(ctx, answer, maxSuggestions)
	if err != nil {
		log.Warnf("获取披萨候选失败: %v", err)
		return reply
	}
	if len(names) > 0 {
		reply += " " + fmt.Sprintf(f.prompts.Suggestions, strings.Join(names, ", "))
	}
	return reply
}

// place 提交订单。失败时草稿保留在 priority 步骤，访客可以再次回答。
func (f *orderFlow) place(ctx context.Context, sessionID string, draft *model.OrderDraft, answer string) (*ChatResult, error) {
	placed, err := f.api.CreateOrder(ctx, draft.Details)
	if err != nil {
		draft.Attempts++
		if saveErr := f.repo.SaveDraft(ctx, sessionID, draft); saveErr != nil {
			log.Errorf("保存下单草稿失败: %v", saveErr)
		}
		return nil, fmt.Errorf("failed to place order: %w", err)
	}
	if err := f.repo.ClearDraft(ctx, sessionID); err != nil {
		log.Errorf("清理下单草稿失败: sessionId=%s, error: %v", sessionID, err)
	}

	details := placed.Raw
	if len(details) == 0 {
		details, _ = json.Marshal(placed)
	}
	reply := fmt.Sprintf(f.prompts.Placed, placed.ID, string(details))
	if err := f.repo.AppendMessages(ctx, sessionID,
		model.NewMessage(model.RoleUser, answer),
		model.NewMessage(model.RoleAssistant, reply),
	); err != nil {
		log.Errorf("保存对话历史失败: %v", err)
	}

	if f.publisher != nil {
		event := tasks.OrderPlacedEvent{
			SessionID: sessionID,
			Details:   draft.Details,
			Order:     *placed,
			RawOrder:  placed.Raw,
			PlacedAt:  time.Now(),
		}
		if err := f.publisher.PublishOrderPlaced(ctx, event); err != nil {
			log.Errorf("发布订单事件失败: orderId=%s, error: %v", placed.ID, err)
		}
	}
	log.Infow("[OrderFlow] 订单已提交", "sessionId", sessionID, "orderId", placed.ID, "items", len(draft.Details.Cart))
	return &ChatResult{Reply: reply, Order: placed}, nil
}

func (f *orderFlow) retry(ctx context.Context, sessionID string, draft *model.OrderDraft, answer, reply string) (*ChatResult, error) {
	draft.Attempts++
	if err := f.repo.SaveDraft(ctx, sessionID, draft); err != nil {
		return nil, err
	}
	return f.reply(ctx, sessionID, answer, reply)
}

func (f *orderFlow) reply(ctx context.Context, sessionID, answer, reply string) (*ChatResult, error) {
	if err := f.repo.AppendMessages(ctx, sessionID,
		model.NewMessage(model.RoleUser, answer),
		model.NewMessage(model.RoleAssistant, reply),
	); err != nil {
		return nil, err
	}
	return &ChatResult{Reply: reply}, nil
}

// parseYesNo 返回回答是否为肯定，以及是否能识别。
func parseYesNo(answer string) (yes bool, ok bool) {
	w := strings.Trim(strings.ToLower(strings.TrimSpace(answer)), ".!")
	if yesWords[w] {
		return true, true
	}
	if noWords[w] {
		return false, true
	}
	return false, false
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
