package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikey/llm-spam-replier/internal/core"
	"go.uber.org/zap/zaptest"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func entry(inReplyTo string, expires time.Time) *core.LedgerEntry {
	return &core.LedgerEntry{
		InReplyTo:      inReplyTo,
		ThreadID:       "root@spam.example",
		ReplyMessageID: "reply-" + inReplyTo,
		SentAt:         t0,
		ExpiresAt:      expires,
	}
}

// exerciseLedger runs the shared contract against l. now controls the
// ledger clock.
func exerciseLedger(t *testing.T, l Ledger, now *time.Time) {
	ctx := context.Background()

	if _, err := l.Get(ctx, "m1@spam.example"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := l.Set(ctx, entry("m1@spam.example", t0.Add(time.Hour))); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := l.Set(ctx, entry("m2@spam.example", t0.Add(time.Minute))); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := l.Get(ctx, "m1@spam.example")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ReplyMessageID != "reply-m1@spam.example" || got.ThreadID != "root@spam.example" {
		t.Fatalf("unexpected entry %+v", got)
	}
	if !got.SentAt.Equal(t0) {
		t.Fatalf("expected SentAt %v, got %v", t0, got.SentAt)
	}

	*now = t0.Add(10 * time.Minute)
	if _, err := l.Get(ctx, "m2@spam.example"); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	if err := l.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, err := l.Get(ctx, "m2@spam.example"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired entry to be removed, got %v", err)
	}
	if _, err := l.Get(ctx, "m1@spam.example"); err != nil {
		t.Fatalf("live entry removed by cleanup: %v", err)
	}

	if err := l.Delete(ctx, "m1@spam.example"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := l.Get(ctx, "m1@spam.example"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryLedger(t *testing.T) {
	l := NewMemoryLedger(zaptest.NewLogger(t), 0)
	now := t0
	l.now = func() time.Time { return now }

	exerciseLedger(t, l, &now)

	l.Stop()
	l.Stop()
}

func TestMemoryLedgerBackgroundCleanup(t *testing.T) {
	l := NewMemoryLedger(zaptest.NewLogger(t), 10*time.Millisecond)
	defer l.Stop()

	if err := l.Set(context.Background(), entry("old@spam.example", time.Now().Add(-time.Minute))); err != nil {
		t.Fatalf("Set: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		l.mu.RLock()
		n := len(l.entries)
		l.mu.RUnlock()
		if n == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expired entry was not cleaned up in the background")
}

func TestSQLiteLedger(t *testing.T) {
	l, err := NewSQLiteLedger(filepath.Join(t.TempDir(), "ledger.db"), zaptest.NewLogger(t), 0)
	if err != nil {
		t.Fatalf("NewSQLiteLedger: %v", err)
	}
	defer l.Stop()

	now := t0
	l.now = func() time.Time { return now }

	exerciseLedger(t, l, &now)
}
