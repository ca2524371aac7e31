// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"pizzabot-go/internal/model"
	"pizzabot-go/pkg/log"
	"pizzabot-go/pkg/pizzaapi"

	"golang.org/x/sync/singleflight"
)

// ErrPizzaNotFound 表示菜单中没有该名称的披萨。
var ErrPizzaNotFound = errors.New("pizza not found on the menu")

// MenuSearcher 是菜单模糊检索的后端，由 Elasticsearch 索引实现。
type MenuSearcher interface {
	IndexMenu(ctx context.Context, menu []model.Pizza) error
	SearchNames(ctx context.Context, query string, size int) ([]string, error)
}

// MenuService 定义了菜单相关的操作。
type MenuService interface {
	GetMenu(ctx context.Context) ([]model.Pizza, error)
	FindByName(ctx context.Context, name string) (*model.Pizza, error)
	Suggest(ctx context.Context, name string, n int) ([]string, error)
}

const (
	menuRefreshTimeout = 30 * time.Second
	// menuRetryBackoff 内刷新失败过的菜单不再请求上游，直接使用旧菜单
	menuRetryBackoff = 30 * time.Second
)

type menuService struct {
	api      pizzaapi.Client
	searcher MenuSearcher
	ttl      time.Duration
	now      func() time.Time
	group    singleflight.Group

	mu         sync.Mutex
	menu       []model.Pizza
	fetchedAt  time.Time
	failedAt   time.Time
	refreshing bool
}

// NewMenuService 创建一个带进程内缓存的 MenuService。searcher 可以为 nil。
func NewMenuService(api pizzaapi.Client, searcher MenuSearcher, ttl time.Duration) MenuService {
	return &menuService{api: api, searcher: searcher, ttl: ttl, now: time.Now}
}

// GetMenu 返回缓存的菜单，过期后重新拉取。
// 同一时间只有一次刷新；已有旧菜单时，刷新进行中、刷新失败或 ctx 到期都直接返回旧菜单。
func (s *menuService) GetMenu(ctx context.Context) ([]model.Pizza, error) {
	s.mu.Lock()
	menu := s.menu
	now := s.now()
	fresh := menu != nil && now.Sub(s.fetchedAt) < s.ttl
	skip := menu != nil && (s.refreshing || now.Sub(s.failedAt) < menuRetryBackoff)
	s.mu.Unlock()
	if fresh || skip {
		return menu, nil
	}

	ch := s.group.DoChan("menu", s.refresh)
	select {
	case res := <-ch:
		if res.Err != nil {
			if menu != nil {
				log.Warnw("刷新菜单失败，继续使用缓存的菜单", "error", res.Err)
				return menu, nil
			}
			return nil, res.Err
		}
		return res.Val.([]model.Pizza), nil
	case <-ctx.Done():
		if menu != nil {
			return menu, nil
		}
		return nil, ctx.Err()
	}
}

// refresh 拉取菜单并写入检索索引。它不使用调用方的 ctx，调用方提前返回时刷新继续进行。
func (s *menuService) refresh() (interface{}, error) {
	s.mu.Lock()
	s.refreshing = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.refreshing = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), menuRefreshTimeout)
	defer cancel()

	menu, err := s.api.GetMenu(ctx)
	if err != nil {
		s.mu.Lock()
		s.failedAt = s.now()
		s.mu.Unlock()
		return nil, err
	}
	if menu == nil {
		menu = []model.Pizza{}
	}
	s.mu.Lock()
	s.menu = menu
	s.fetchedAt = s.now()
	s.failedAt = time.Time{}
	s.mu.Unlock()

	if s.searcher != nil {
		if err := s.searcher.IndexMenu(ctx, menu); err != nil {
			log.Errorf("菜单写入检索索引失败: %v", err)
		}
	}
	return menu, nil
}

// FindByName 按名称（忽略大小写和首尾空白）查找披萨。
func (s *menuService) FindByName(ctx context.Context, name string) (*model.Pizza, error) {
	menu, err := s.GetMenu(ctx)
	if err != nil {
		return nil, err
	}
	want := strings.ToLower(strings.TrimSpace(name))
	for i := range menu {
		if strings.ToLower(strings.TrimSpace(menu[i].Name)) == want {
			p := menu[i]
			return &p, nil
		}
	}
	return nil, ErrPizzaNotFound
}

// Suggest 为没有匹配上的名称给出最多 n 个可下单的候选。
// 配置了检索索引时优先使用模糊检索，失败或无结果时退回到本地匹配。
func (s *menuService) Suggest(ctx context.Context, name string, n int) ([]string, error) {
	menu, err := s.GetMenu(ctx)
	if err != nil {
		return nil, err
	}
	query := strings.ToLower(strings.TrimSpace(name))
	if query == "" || n <= 0 {
		return []string{}, nil
	}

	available := make(map[string]string, len(menu))
	for _, p := range menu {
		if !p.SoldOut {
			available[strings.ToLower(p.Name)] = p.Name
		}
	}

	if s.searcher != nil {
		names, err := s.searcher.SearchNames(ctx, query, n*2)
		if err != nil {
			log.Warnf("菜单模糊检索失败，使用本地匹配: %v", err)
		} else {
			out := make([]string, 0, n)
			for _, candidate := range names {
				if menuName, ok := available[strings.ToLower(candidate)]; ok && len(out) < n {
					out = append(out, menuName)
				}
			}
			if len(out) > 0 {
				return out, nil
			}
		}
	}
	return localSuggestions(menu, query, n), nil
}

// localSuggestions 按子串和单词重合挑选候选名称，保持菜单原有顺序。
func localSuggestions(menu []model.Pizza, query string, n int) []string {
	words := strings.Fields(query)
	out := make([]string, 0, n)
	for _, p := range menu {
		if p.SoldOut || len(out) >= n {
			continue
		}
		lower := strings.ToLower(p.Name)
		if strings.Contains(lower, query) || strings.Contains(query, lower) {
			out = append(out, p.Name)
			continue
		}
		for _, w := range words {
			if len(w) >= 3 && (strings.Contains(lower, w) || strings.HasPrefix(lower, w[:3])) {
				out = append(out, p.Name)
				break
			}
		}
	}
	return out
}
