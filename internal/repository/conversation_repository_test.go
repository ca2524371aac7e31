package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"pizzabot-go/internal/config"
	"pizzabot-go/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newTestRepo(t *testing.T, limit int) (ConversationRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	repo := NewConversationRepository(rdb, config.ChatConfig{
		HistoryLimit:    limit,
		HistoryTTLHours: 1,
		DraftTTLMinutes: 30,
	})
	return repo, mr
}

func TestHistoryIsPerSession(t *testing.T) {
	repo, _ := newTestRepo(t, 40)
	ctx := context.Background()

	if err := repo.AppendMessages(ctx, "a", model.NewMessage(model.RoleUser, "hi"), model.NewMessage(model.RoleAssistant, "hello")); err != nil {
		t.Fatalf("AppendMessages: %v", err)
	}
	if err := repo.AppendMessages(ctx, "b", model.NewMessage(model.RoleUser, "other visitor")); err != nil {
		t.Fatalf("AppendMessages: %v", err)
	}

	a, err := repo.GetHistory(ctx, "a")
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(a) != 2 || a[0].Content != "hi" || a[1].Role != model.RoleAssistant {
		t.Fatalf("unexpected history for a: %+v", a)
	}
	b, _ := repo.GetHistory(ctx, "b")
	if len(b) != 1 || b[0].Content != "other visitor" {
		t.Fatalf("unexpected history for b: %+v", b)
	}
	empty, err := repo.GetHistory(ctx, "nobody")
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty history, got %v %v", empty, err)
	}
}

func TestHistoryTrimmedAndExpires(t *testing.T) {
	repo, mr := newTestRepo(t, 3)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := repo.AppendMessages(ctx, "s", model.NewMessage(model.RoleUser, fmt.Sprintf("m%d", i))); err != nil {
			t.Fatalf("AppendMessages: %v", err)
		}
	}
	got, _ := repo.GetHistory(ctx, "s")
	if len(got) != 3 || got[0].Content != "m2" || got[2].Content != "m4" {
		t.Fatalf("expected last 3 messages, got %+v", got)
	}
	if ttl := mr.TTL("session:s:history"); ttl != time.Hour {
		t.Fatalf("unexpected ttl %v", ttl)
	}
}

func TestDraftLifecycle(t *testing.T) {
	repo, mr := newTestRepo(t, 40)
	ctx := context.Background()

	if _, err := repo.GetDraft(ctx, "s"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	draft := model.NewOrderDraft()
	draft.Details.Customer = "Jonas"
	draft.Advance(model.StepPhone)
	if err := repo.SaveDraft(ctx, "s", draft); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	if ttl := mr.TTL("session:s:draft"); ttl != 30*time.Minute {
		t.Fatalf("unexpected draft ttl %v", ttl)
	}

	got, err := repo.GetDraft(ctx, "s")
	if err != nil {
		t.Fatalf("GetDraft: %v", err)
	}
	if got.Step != model.StepPhone || got.Details.Customer != "Jonas" {
		t.Fatalf("unexpected draft %+v", got)
	}

	if err := repo.ClearDraft(ctx, "s"); err != nil {
		t.Fatalf("ClearDraft: %v", err)
	}
	if _, err := repo.GetDraft(ctx, "s"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after clear, got %v", err)
	}
}

func TestListSessionsDropsExpired(t *testing.T) {
	repo, mr := newTestRepo(t, 40)
	ctx := context.Background()
	_ = repo.AppendMessages(ctx, "b", model.NewMessage(model.RoleUser, "x"))
	_ = repo.AppendMessages(ctx, "a", model.NewMessage(model.RoleUser, "y"))

	ids, err := repo.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("unexpected sessions %v", ids)
	}

	mr.Del("session:a:history")
	ids, _ = repo.ListSessions(ctx)
	if len(ids) != 1 || ids[0] != "b" {
		t.Fatalf("expected only b, got %v", ids)
	}
	if ok, _ := mr.SIsMember("sessions", "a"); ok {
		t.Fatal("expected expired session removed from index")
	}
}

func TestLockSession(t *testing.T) {
	repo, mr := newTestRepo(t, 40)
	ctx := context.Background()

	unlock, err := repo.LockSession(ctx, "s", time.Minute)
	if err != nil {
		t.Fatalf("LockSession: %v", err)
	}
	if _, err := repo.LockSession(ctx, "s", time.Minute); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("expected ErrSessionBusy, got %v", err)
	}
	if _, err := repo.LockSession(ctx, "other", time.Minute); err != nil {
		t.Fatalf("other sessions must not be blocked: %v", err)
	}
	unlock()
	if mr.Exists("session:s:lock") {
		t.Fatal("lock should be released")
	}

	// 锁过期后被别人拿到，旧的 unlock 不能删掉新锁
	stale, err := repo.LockSession(ctx, "s", time.Second)
	if err != nil {
		t.Fatalf("LockSession: %v", err)
	}
	mr.FastForward(2 * time.Second)
	if _, err := repo.LockSession(ctx, "s", time.Minute); err != nil {
		t.Fatalf("expected lock after expiry: %v", err)
	}
	stale()
	if !mr.Exists("session:s:lock") {
		t.Fatal("stale unlock removed a lock it does not own")
	}
}
