package service

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"pizzabot-go/internal/model"
)

type fakeSearcher struct {
	names     []string
	err       error
	indexed   int
	lastQuery string
}

func (f *fakeSearcher) IndexMenu(ctx context.Context, menu []model.Pizza) error {
	f.indexed++
	return nil
}

func (f *fakeSearcher) SearchNames(ctx context.Context, query string, size int) ([]string, error) {
	f.lastQuery = query
	return f.names, f.err
}

func newClockedMenu(api *fakePizzaAPI, searcher MenuSearcher, ttl time.Duration) (*menuService, *time.Time) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	svc := NewMenuService(api, searcher, ttl).(*menuService)
	svc.now = func() time.Time { return now }
	return svc, &now
}

func TestMenuIsCachedUntilTTL(t *testing.T) {
	api := &fakePizzaAPI{menu: testMenu()}
	searcher := &fakeSearcher{}
	s, now := newClockedMenu(api, searcher, 10*time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.GetMenu(ctx); err != nil {
			t.Fatalf("GetMenu: %v", err)
		}
	}
	if api.menuCalls != 1 {
		t.Fatalf("expected 1 api call, got %d", api.menuCalls)
	}

	*now = now.Add(11 * time.Minute)
	if _, err := s.GetMenu(ctx); err != nil {
		t.Fatalf("GetMenu: %v", err)
	}
	if api.menuCalls != 2 {
		t.Fatalf("expected refresh after ttl, got %d calls", api.menuCalls)
	}
	if searcher.indexed != 2 {
		t.Fatalf("expected menu indexed on each refresh, got %d", searcher.indexed)
	}
}

func TestMenuServesStaleOnRefreshFailure(t *testing.T) {
	api := &fakePizzaAPI{menu: testMenu()}
	svc, now := newClockedMenu(api, nil, time.Minute)
	ctx := context.Background()

	if _, err := svc.GetMenu(ctx); err != nil {
		t.Fatalf("GetMenu: %v", err)
	}
	api.menuErr = errors.New("down")
	*now = now.Add(2 * time.Minute)

	menu, err := svc.GetMenu(ctx)
	if err != nil {
		t.Fatalf("expected stale menu, got %v", err)
	}
	if len(menu) != 4 {
		t.Fatalf("unexpected stale menu %+v", menu)
	}

	// 失败后的退避期内直接返回旧菜单
	if _, err := svc.GetMenu(ctx); err != nil {
		t.Fatalf("GetMenu: %v", err)
	}
	if api.calls() != 2 {
		t.Fatalf("expected no upstream call during backoff, got %d calls", api.calls())
	}

	*now = now.Add(menuRetryBackoff + time.Second)
	if _, err := svc.GetMenu(ctx); err != nil {
		t.Fatalf("GetMenu: %v", err)
	}
	if api.calls() != 3 {
		t.Fatalf("expected a retry after backoff, got %d calls", api.calls())
	}
}

func TestMenuRefreshDoesNotBlockReaders(t *testing.T) {
	api := &fakePizzaAPI{menu: testMenu()}
	svc, now := newClockedMenu(api, nil, time.Minute)
	ctx := context.Background()
	if _, err := svc.GetMenu(ctx); err != nil {
		t.Fatalf("GetMenu: %v", err)
	}

	api.mu.Lock()
	api.menuErr = errors.New("down")
	api.menuEntered = make(chan struct{}, 1)
	api.menuGate = make(chan struct{})
	api.mu.Unlock()
	*now = now.Add(2 * time.Minute)

	refreshed := make(chan error, 1)
	go func() {
		_, err := svc.GetMenu(ctx)
		refreshed <- err
	}()
	<-api.menuEntered

	start := time.Now()
	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reqCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancel()
			_, err := svc.FindByName(reqCtx, "Romana")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("FindByName during refresh: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("readers waited for the refresh: %s", elapsed)
	}

	close(api.menuGate)
	if err := <-refreshed; err != nil {
		t.Fatalf("failed refresh should fall back to the cached menu: %v", err)
	}
	if api.calls() != 2 {
		t.Fatalf("expected a single refresh, got %d calls", api.calls())
	}
}

func TestMenuColdLoadHonoursDeadline(t *testing.T) {
	api := &fakePizzaAPI{menu: testMenu(), menuGate: make(chan struct{})}
	svc := NewMenuService(api, nil, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := svc.GetMenu(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	close(api.menuGate)
	menu, err := svc.GetMenu(context.Background())
	if err != nil || len(menu) != 4 {
		t.Fatalf("expected menu after refresh completed, got %v %v", menu, err)
	}
}

func TestMenuFailsWithoutAnyCopy(t *testing.T) {
	api := &fakePizzaAPI{menuErr: errors.New("down")}
	if _, err := NewMenuService(api, nil, time.Minute).GetMenu(context.Background()); err == nil {
		t.Fatal("expected error when nothing was ever loaded")
	}
}

func TestFindByName(t *testing.T) {
	s := NewMenuService(&fakePizzaAPI{menu: testMenu()}, nil, time.Minute)
	ctx := context.Background()

	p, err := s.FindByName(ctx, "  prosciutto E RUCOLA ")
	if err != nil {
		t.Fatalf("FindByName: %v", err)
	}
	if p.ID != 4 || p.UnitPrice != 16 {
		t.Fatalf("unexpected pizza %+v", p)
	}
	if _, err := s.FindByName(ctx, "Hawaii"); !errors.Is(err, ErrPizzaNotFound) {
		t.Fatalf("expected ErrPizzaNotFound, got %v", err)
	}
}

func TestSuggest(t *testing.T) {
	ctx := context.Background()

	t.Run("search index filters unavailable names", func(t *testing.T) {
		searcher := &fakeSearcher{names: []string{"Capricciosa", "margherita", "Hawaii", "Romana"}}
		s := NewMenuService(&fakePizzaAPI{menu: testMenu()}, searcher, time.Minute)
		got, err := s.Suggest(ctx, "Margarita ", 3)
		if err != nil {
			t.Fatalf("Suggest: %v", err)
		}
		if !reflect.DeepEqual(got, []string{"Margherita", "Romana"}) {
			t.Fatalf("unexpected suggestions %v", got)
		}
		if searcher.lastQuery != "margarita" {
			t.Fatalf("unexpected query %q", searcher.lastQuery)
		}
	})

	t.Run("falls back to local matching", func(t *testing.T) {
		searcher := &fakeSearcher{err: errors.New("es down")}
		s := NewMenuService(&fakePizzaAPI{menu: testMenu()}, searcher, time.Minute)
		got, err := s.Suggest(ctx, "prosciutto", 3)
		if err != nil {
			t.Fatalf("Suggest: %v", err)
		}
		if !reflect.DeepEqual(got, []string{"Prosciutto e Rucola"}) {
			t.Fatalf("unexpected suggestions %v", got)
		}
	})

	t.Run("sold out pizzas are never suggested", func(t *testing.T) {
		s := NewMenuService(&fakePizzaAPI{menu: testMenu()}, nil, time.Minute)
		got, _ := s.Suggest(ctx, "capri", 3)
		if len(got) != 0 {
			t.Fatalf("expected no suggestions, got %v", got)
		}
	})
}
