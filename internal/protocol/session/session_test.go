package session

import (
	"testing"
	"time"

	"github.com/danmuck/objsync/internal/testutil/testlog"
)

func TestNextBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       false,
	}
	if got := NextBackoffDelay(cfg, 1, nil); got != 250*time.Millisecond {
		t.Fatalf("attempt1 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 2, nil); got != 500*time.Millisecond {
		t.Fatalf("attempt2 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 3, nil); got != time.Second {
		t.Fatalf("attempt3 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 6, nil); got != 5*time.Second {
		t.Fatalf("attempt6 got=%v", got)
	}
}

func TestRequestDeadlineAddsBackoffOnRetries(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultConfig()
	at := time.Unix(1700000000, 0)
	if got := RequestDeadline(cfg, 1, at, nil); !got.Equal(at.Add(time.Second)) {
		t.Fatalf("first deadline got=%v", got)
	}
	if got := RequestDeadline(cfg, 2, at, nil); !got.Equal(at.Add(1250 * time.Millisecond)) {
		t.Fatalf("second deadline got=%v", got)
	}
	if got := RequestDeadline(cfg, 3, at, nil); !got.Equal(at.Add(1500 * time.Millisecond)) {
		t.Fatalf("third deadline got=%v", got)
	}
	if Exhausted(cfg, 2) || !Exhausted(cfg, 3) {
		t.Fatalf("unexpected exhaustion with max=%d", cfg.MaxAttempts)
	}
}

func TestConfigWithDefaults(t *testing.T) {
	testlog.Start(t)
	cfg := Config{MaxAttempts: 5}.WithDefaults()
	if cfg.MaxAttempts != 5 {
		t.Fatalf("explicit max attempts overwritten: %d", cfg.MaxAttempts)
	}
	if cfg.RequestTimeout != time.Second || cfg.Backoff.Multiplier != 2.0 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestRequestOutboxLifecycle(t *testing.T) {
	testlog.Start(t)
	o := NewRequestOutbox()
	now := time.Unix(1700000000, 0)
	o.Upsert(PendingRequest{
		ObjectID:   9,
		Owner:      2,
		Attempts:   1,
		QueuedAt:   now,
		DeadlineAt: now.Add(time.Second),
	})
	o.Upsert(PendingRequest{ObjectID: 3, Owner: 4, Attempts: 1, QueuedAt: now, DeadlineAt: now})

	due := o.Due(now)
	if len(due) != 1 || due[0].ObjectID != 3 {
		t.Fatalf("unexpected due set: %+v", due)
	}

	item, ok := o.MarkAttempt(9, now.Add(time.Second), now.Add(3*time.Second))
	if !ok {
		t.Fatalf("missing pending item")
	}
	if item.Attempts != 2 || !item.DeadlineAt.Equal(now.Add(3*time.Second)) {
		t.Fatalf("unexpected attempt record: %+v", item)
	}

	list := o.List()
	if len(list) != 2 || list[0].ObjectID != 3 || list[1].ObjectID != 9 {
		t.Fatalf("list not ordered: %+v", list)
	}

	o.Remove(9)
	if _, ok := o.Get(9); ok {
		t.Fatalf("request should be removed")
	}
	if _, ok := o.MarkAttempt(9, now, now); ok {
		t.Fatalf("mark attempt on removed request should fail")
	}
}
