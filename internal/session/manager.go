package session

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ZebulonRouseFrantzich/crxkeep/internal/logging"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/retry"
)

const (
	// DefaultTTL is how far in the future persisted cookies expire.
	DefaultTTL = 365 * 24 * time.Hour
)

// DefaultDelays are the pauses between scheduled passes after the first.
var DefaultDelays = []time.Duration{10 * time.Second, 30 * time.Second}

// Config configures a Manager.
type Config struct {
	Store CookieStore
	// Origins are the origin URLs whose cookies are persisted, in addition
	// to the global store.
	Origins []string
	TTL     time.Duration
	Delays  []time.Duration
	Clock   retry.Clock
	Logger  logging.Logger
}

// Manager persists session cookies.
type Manager struct {
	store   CookieStore
	origins []string
	ttl     time.Duration
	delays  []time.Duration
	clock   retry.Clock
	log     logging.Logger
}

// NewManager creates a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("Store is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Delays == nil {
		cfg.Delays = DefaultDelays
	}
	if cfg.Clock == nil {
		cfg.Clock = retry.RealClock{}
	}
	return &Manager{
		store:   cfg.Store,
		origins: cfg.Origins,
		ttl:     cfg.TTL,
		delays:  cfg.Delays,
		clock:   cfg.Clock,
		log:     logging.OrNop(cfg.Logger),
	}, nil
}

// scopes returns the configured origins followed by the global scope.
func (m *Manager) scopes() []string {
	out := make([]string, 0, len(m.origins)+1)
	out = append(out, m.origins...)
	return append(out, "")
}

// PersistSessionCookies rewrites every session-only cookie with an expiry
// TTL from now. Other attributes are kept. Failures are logged and counted.
func (m *Manager) PersistSessionCookies(ctx context.Context, tag string) Report {
	var total Report
	for _, scope := range m.scopes() {
		if ctx.Err() != nil {
			break
		}
		total.add(m.persistScope(ctx, tag, scope))
	}
	m.log.Debug("session cookies persisted", "component", "cookie", "tag", tag,
		"scopes", total.Scopes, "persisted", total.Persisted, "skipped", total.Skipped, "failed", total.Failed)
	return total
}

func (m *Manager) persistScope(ctx context.Context, tag, scope string) Report {
	report := Report{Scopes: 1}

	cookies, err := m.store.Cookies(ctx, scope)
	if err != nil {
		m.log.Warn("failed to read cookies", "component", "cookie", "tag", tag, "scope", scopeName(scope), "error", err)
		report.Failed++
		return report
	}
	report.Cookies = len(cookies)

	fallback := fallbackHost(scope)
	expires := m.clock.Now().Add(m.ttl)
	for _, c := range cookies {
		if !c.SessionOnly {
			continue
		}
		report.Session++

		persisted, ok := persistent(c, fallback, expires)
		if !ok {
			m.log.Debug("skipping cookie without domain", "component", "cookie", "tag", tag, "name", c.Name)
			report.Skipped++
			continue
		}
		if err := m.store.SetCookie(ctx, persisted); err != nil {
			m.log.Warn("failed to persist cookie", "component", "cookie", "tag", tag,
				"name", c.Name, "domain", persisted.Domain, "error", err)
			report.Failed++
			continue
		}
		report.Persisted++
	}
	return report
}

// persistent returns c as a persistent cookie expiring at expires. It
// reports false when no domain can be determined.
func persistent(c CookieRecord, fallback string, expires time.Time) (CookieRecord, bool) {
	if c.Domain == "" {
		if fallback == "" {
			return CookieRecord{}, false
		}
		c.Domain = fallback
	}
	c.Expires = expires
	c.SessionOnly = false
	return c, true
}

// fallbackHost derives a cookie domain from a scope URL.
func fallbackHost(scope string) string {
	if scope == "" {
		return ""
	}
	u, err := url.Parse(scope)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func scopeName(scope string) string {
	if scope == "" {
		return "global"
	}
	return scope
}

// LogSnapshot logs a per-scope summary of the cookie store. Values are
// never logged.
func (m *Manager) LogSnapshot(ctx context.Context, tag string) {
	for _, scope := range m.scopes() {
		cookies, err := m.store.Cookies(ctx, scope)
		if err != nil {
			m.log.Warn("failed to read cookies", "component", "cookie", "tag", tag, "scope", scopeName(scope), "error", err)
			continue
		}

		session := 0
		names := make([]string, 0, len(cookies))
		for _, c := range cookies {
			if c.SessionOnly {
				session++
			}
			names = append(names, c.Name+"@"+c.Domain)
		}
		m.log.Info("cookie snapshot", "component", "cookie", "tag", tag, "scope", scopeName(scope),
			"count", len(cookies), "session", session, "cookies", strings.Join(names, ","))
	}
}
