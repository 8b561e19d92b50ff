package session

import (
	"context"
	"testing"
	"time"

	"github.com/ZebulonRouseFrantzich/crxkeep/internal/retry"
)

func TestSchedule(t *testing.T) {
	store := &memoryStore{cookies: []CookieRecord{{Name: "sid", Domain: "a.test", SessionOnly: true}}}
	m, clock := newManager(t, store)

	select {
	case <-m.Schedule(context.Background(), "boot"):
	case <-time.After(5 * time.Second):
		t.Fatal("schedule did not finish")
	}

	sleeps := clock.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != 10*time.Second || sleeps[1] != 30*time.Second {
		t.Errorf("sleeps = %v", sleeps)
	}
	// Three steps, each persisting and logging the global scope.
	if got := len(store.reads); got != 6 {
		t.Errorf("store reads = %d, want 6", got)
	}
	if store.snapshot()[0].SessionOnly {
		t.Error("session cookie not persisted")
	}
}

func TestScheduleCancelled(t *testing.T) {
	store := &memoryStore{}
	m, clock := newManager(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	select {
	case <-m.Schedule(ctx, "boot"):
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled schedule did not finish")
	}
	if len(clock.Sleeps()) != 0 {
		t.Errorf("cancelled schedule slept: %v", clock.Sleeps())
	}
}

func TestScheduleCustomDelays(t *testing.T) {
	store := &memoryStore{}
	clock := retry.NewFakeClock(captured)
	m, err := NewManager(Config{Store: store, Clock: clock, Delays: []time.Duration{5 * time.Second}})
	if err != nil {
		t.Fatal(err)
	}

	<-m.Schedule(context.Background(), "boot")

	if sleeps := clock.Sleeps(); len(sleeps) != 1 || sleeps[0] != 5*time.Second {
		t.Errorf("sleeps = %v", sleeps)
	}
}

func TestStepLabel(t *testing.T) {
	tests := map[time.Duration]string{
		10 * time.Second:        "after_10s",
		30 * time.Second:        "after_30s",
		1500 * time.Millisecond: "after_1.5s",
	}
	for d, want := range tests {
		if got := stepLabel(d); got != want {
			t.Errorf("stepLabel(%v) = %q, want %q", d, got, want)
		}
	}
}
