package cache

import (
	"context"
	"testing"
	"time"
)

func TestNewSweeperRejectsBadSchedule(t *testing.T) {
	e := NewEngine(NewMemoryStore(0, 0), nil, 0, nil)
	if _, err := NewSweeper(e, "not a cron line", nil); err == nil {
		t.Fatalf("expected schedule parse error")
	}
	if _, err := NewSweeper(e, "*/5 * * * *", nil); err != nil {
		t.Fatalf("valid schedule rejected: %v", err)
	}
}

func TestSweeperExpiresIdleEntries(t *testing.T) {
	store := NewMemoryStore(15*time.Minute, DefaultCapacity)
	now := time.Now()
	store.now = func() time.Time { return now }
	e := NewEngine(store, nil, 0, nil)

	_ = store.Put(context.Background(), docFor("idle", "https://a", now.Add(-20*time.Minute)))

	// Second-granularity schedule so the test observes one tick.
	s, err := NewSweeper(e, "* * * * * * *", nil)
	if err != nil {
		t.Fatalf("NewSweeper: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.After(5 * time.Second)
	for {
		if n, _ := store.Len(context.Background(), "idle"); n == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("sweep never removed the expired entry")
		case <-time.After(50 * time.Millisecond):
		}
	}
	cancel()
	<-done
}
