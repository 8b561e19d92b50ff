package session

import (
	"context"
	"fmt"
	"time"
)

// Step persists session cookies and then logs a snapshot.
func (m *Manager) Step(ctx context.Context, tag string) Report {
	report := m.PersistSessionCookies(ctx, tag)
	m.LogSnapshot(ctx, tag)
	return report
}

// Schedule runs a step right away ("after_load") and one more after each
// configured delay ("after_10s", ...), each delay counted from the previous
// step. It runs on its own goroutine; the returned channel closes when the
// schedule is done or ctx is cancelled.
func (m *Manager) Schedule(ctx context.Context, tag string) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		m.Step(ctx, tag+":after_load")
		for _, d := range m.delays {
			if err := m.clock.Sleep(ctx, d); err != nil {
				m.log.Debug("cookie schedule cancelled", "component", "cookie", "tag", tag)
				return
			}
			m.Step(ctx, tag+":"+stepLabel(d))
		}
	}()
	return done
}

func stepLabel(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("after_%ds", int(d/time.Second))
	}
	return "after_" + d.String()
}
