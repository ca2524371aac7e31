// Package pizzaapi provides a client for the third-party pizza ordering API.
package pizzaapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"pizzabot-go/internal/config"
	"pizzabot-go/internal/model"
	"pizzabot-go/pkg/log"
)

var (
	// ErrMenuUnavailable is returned when the menu endpoint cannot be read.
	ErrMenuUnavailable = errors.New("pizza api: menu unavailable")
	// ErrOrderRejected is returned when the order endpoint does not report success.
	ErrOrderRejected = errors.New("pizza api: order rejected")
)

// Client defines the operations used against the pizza API.
type Client interface {
	GetMenu(ctx context.Context) ([]model.Pizza, error)
	CreateOrder(ctx context.Context, order model.OrderDetails) (*model.PlacedOrder, error)
}

type httpClient struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a pizza API client. A zero timeout means no client-side timeout.
func NewClient(cfg config.PizzaAPIConfig) Client {
	return &httpClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout()},
	}
}

type menuResponse struct {
	Status string        `json:"status"`
	Data   []model.Pizza `json:"data"`
}

type orderResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// GetMenu fetches GET {base}/menu.
func (c *httpClient) GetMenu(ctx context.Context) ([]model.Pizza, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/menu", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create menu request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMenuUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %s, body: %s", ErrMenuUnavailable, resp.Status, string(body))
	}

	var mr menuResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrMenuUnavailable, err)
	}
	log.Infof("[PizzaAPI] 获取菜单成功, 共 %d 项", len(mr.Data))
	return mr.Data, nil
}

// CreateOrder posts the order to POST {base}/order and returns the created order.
func (c *httpClient) CreateOrder(ctx context.Context, order model.OrderDetails) (*model.PlacedOrder, error) {
	reqBytes, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/order", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call order api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read order response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Errorf("[PizzaAPI] 下单返回非 2xx 状态码: %s, body: %s", resp.Status, string(body))
		return nil, fmt.Errorf("%w: status %s", ErrOrderRejected, resp.Status)
	}

	var or orderResponse
	if err := json.Unmarshal(body, &or); err != nil {
		return nil, fmt.Errorf("failed to decode order response: %w", err)
	}
	if or.Status != "" && or.Status != "success" {
		return nil, fmt.Errorf("%w: %s %s", ErrOrderRejected, or.Status, or.Message)
	}
	if len(or.Data) == 0 {
		return nil, fmt.Errorf("%w: empty data", ErrOrderRejected)
	}

	var placed model.PlacedOrder
	if err := json.Unmarshal(or.Data, &placed); err != nil {
		return nil, fmt.Errorf("failed to decode placed order: %w", err)
	}
	if placed.ID == "" {
		return nil, fmt.Errorf("%w: missing order id", ErrOrderRejected)
	}
	placed.Raw = or.Data
	log.Infow("[PizzaAPI] 下单成功", "orderId", placed.ID, "priority", placed.Priority)
	return &placed, nil
}
