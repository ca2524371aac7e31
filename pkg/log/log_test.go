package log

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStructuredHelpers(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(zap.NewNop()) })

	Infow("order placed", "orderId", "ABC123")
	Error("menu refresh failed", errors.New("boom"))
	Warnf("retrying %d", 2)
	Warnw("menu stale", "error", "timeout")

	entries := logs.All()
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["orderId"]; got != "ABC123" {
		t.Fatalf("expected orderId field, got %v", got)
	}
	if entries[1].Level != zapcore.ErrorLevel {
		t.Fatalf("expected error level, got %s", entries[1].Level)
	}
	if got := entries[1].ContextMap()["error"]; got != "boom" {
		t.Fatalf("expected error field boom, got %v", got)
	}
	if entries[2].Message != "retrying 2" {
		t.Fatalf("unexpected message %q", entries[2].Message)
	}
	if entries[3].Level != zapcore.WarnLevel || entries[3].ContextMap()["error"] != "timeout" {
		t.Fatalf("unexpected warn entry %+v", entries[3])
	}
}

func TestInitFallsBackToInfoLevel(t *testing.T) {
	Init("not-a-level", "json", "")
	t.Cleanup(func() { SetLogger(zap.NewNop()) })

	if sugar.Desugar().Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("debug should be disabled when level falls back to info")
	}
	if !sugar.Desugar().Core().Enabled(zapcore.InfoLevel) {
		t.Fatal("info should be enabled")
	}
}
