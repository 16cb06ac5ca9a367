package zaplogger

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Zhima-Mochi/minishop-inventory/internal/observability"
)

func TestWrapAddsFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := Wrap(zap.New(core), observability.F("component", "test"))

	l.With(observability.F("request_id", "r1")).Warn("lookup_failed",
		observability.F("error", errors.New("boom")),
		observability.F("website_code", "base"),
	)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Message != "lookup_failed" || e.Level != zapcore.WarnLevel {
		t.Fatalf("unexpected entry: %+v", e)
	}
	fields := e.ContextMap()
	if fields["component"] != "test" || fields["request_id"] != "r1" || fields["website_code"] != "base" {
		t.Fatalf("unexpected fields: %v", fields)
	}
	if fields["error"] != "boom" {
		t.Fatalf("expected error field, got %v", fields["error"])
	}
}

func TestWrapNil(t *testing.T) {
	l := Wrap(nil)
	l.Info("discarded")
	if err := l.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}
}
