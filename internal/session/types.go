// Package session keeps browser login state alive across restarts and
// package reinstalls by turning session-only cookies into persistent ones.
package session

import (
	"context"
	"time"
)

// CookieRecord is a snapshot of one cookie in the host's cookie store.
type CookieRecord struct {
	Name   string
	Value  string
	Domain string
	Path   string
	// Expires is zero for session-only cookies.
	Expires     time.Time
	SessionOnly bool
	HTTPOnly    bool
	Secure      bool
	// SameSite is "Strict", "Lax", "None" or empty.
	SameSite string
}

// CookieStore is the host's cookie store. An empty scope means every
// cookie; otherwise scope is an origin URL.
type CookieStore interface {
	Cookies(ctx context.Context, scope string) ([]CookieRecord, error)
	SetCookie(ctx context.Context, cookie CookieRecord) error
}

// Report summarizes one persistence pass.
type Report struct {
	Scopes    int
	Cookies   int
	Session   int
	Persisted int
	Skipped   int
	Failed    int
}

func (r *Report) add(o Report) {
	r.Scopes += o.Scopes
	r.Cookies += o.Cookies
	r.Session += o.Session
	r.Persisted += o.Persisted
	r.Skipped += o.Skipped
	r.Failed += o.Failed
}
