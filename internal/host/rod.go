package host

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/ZebulonRouseFrantzich/crxkeep/internal/logging"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/session"
)

// RodConfig configures a RodHost.
type RodConfig struct {
	// Bin is the browser executable. Empty lets the launcher find or fetch one.
	Bin string
	// Headless hides the browser window.
	Headless bool
	// RemoteURL connects to an already running browser instead of launching
	// one. Packages cannot be loaded into a remote browser.
	RemoteURL string
	// UserDataDir keeps the browser profile, and with it the cookie store,
	// across runs.
	UserDataDir string
	Logger      logging.Logger
}

// RodHost is a Host backed by a Chromium instance driven through go-rod.
// All browser access happens on the Dispatcher goroutine.
type RodHost struct {
	cfg  RodConfig
	disp *Dispatcher
	log  logging.Logger

	// Owned by the dispatcher goroutine.
	dirs    []string
	browser *rod.Browser
	lnch    *launcher.Launcher
	page    *rod.Page
	lastURL string
}

// NewRodHost creates a RodHost. The browser starts on first use.
func NewRodHost(cfg RodConfig, disp *Dispatcher) *RodHost {
	return &RodHost{
		cfg:  cfg,
		disp: disp,
		log:  logging.OrNop(cfg.Logger),
	}
}

// RegisterPackage adds dir to the packages loaded at launch. A browser that
// is already running is restarted so the package becomes available.
func (h *RodHost) RegisterPackage(ctx context.Context, dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve package dir: %w", err)
	}
	id, err := RuntimeID(abs)
	if err != nil {
		return "", fmt.Errorf("register package %s: %w", abs, err)
	}

	err = h.disp.Call(ctx, func() error {
		for _, d := range h.dirs {
			if d == abs {
				return nil
			}
		}
		h.dirs = append(h.dirs, abs)
		h.log.Info("package registered", "component", "host", "dir", abs, "id", id.String())

		if h.browser == nil {
			return nil
		}
		return h.recycle(ctx)
	})
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Navigate opens url in the main page and waits for it to load.
func (h *RodHost) Navigate(ctx context.Context, url string) error {
	return h.disp.Call(ctx, func() error {
		page, err := h.mainPage(ctx)
		if err != nil {
			return err
		}
		if err := page.Context(ctx).Navigate(url); err != nil {
			return fmt.Errorf("navigate %s: %w", url, err)
		}
		if err := page.Context(ctx).WaitLoad(); err != nil {
			return fmt.Errorf("wait for %s: %w", url, err)
		}
		h.lastURL = url
		h.log.Info("page loaded", "component", "host", "url", url)
		return nil
	})
}

// Cookies returns the browser's cookies. An empty scope reads the whole
// store; otherwise only cookies sent to the scope URL are returned.
func (h *RodHost) Cookies(ctx context.Context, scope string) ([]session.CookieRecord, error) {
	var out []session.CookieRecord
	err := h.disp.Call(ctx, func() error {
		var cookies []*proto.NetworkCookie
		if scope == "" {
			b, err := h.ensureBrowser(ctx)
			if err != nil {
				return err
			}
			cookies, err = b.Context(ctx).GetCookies()
			if err != nil {
				return fmt.Errorf("read cookies: %w", err)
			}
		} else {
			page, err := h.mainPage(ctx)
			if err != nil {
				return err
			}
			cookies, err = page.Context(ctx).Cookies([]string{scope})
			if err != nil {
				return fmt.Errorf("read cookies for %s: %w", scope, err)
			}
		}

		out = make([]session.CookieRecord, 0, len(cookies))
		for _, c := range cookies {
			out = append(out, fromProto(c))
		}
		return nil
	})
	return out, err
}

// SetCookie writes one cookie into the browser's store.
func (h *RodHost) SetCookie(ctx context.Context, c session.CookieRecord) error {
	return h.disp.Call(ctx, func() error {
		b, err := h.ensureBrowser(ctx)
		if err != nil {
			return err
		}
		if err := b.Context(ctx).SetCookies([]*proto.NetworkCookieParam{toProto(c)}); err != nil {
			return fmt.Errorf("set cookie %s: %w", c.Name, err)
		}
		return nil
	})
}

// Close shuts the browser down.
func (h *RodHost) Close(ctx context.Context) error {
	return h.disp.Call(ctx, func() error {
		return h.shutdown()
	})
}

func (h *RodHost) mainPage(ctx context.Context) (*rod.Page, error) {
	if h.page != nil {
		return h.page, nil
	}
	b, err := h.ensureBrowser(ctx)
	if err != nil {
		return nil, err
	}
	page, err := b.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	// Detach from the call context; the page outlives this call.
	h.page = page.Context(context.Background())
	return h.page, nil
}

func (h *RodHost) ensureBrowser(ctx context.Context) (*rod.Browser, error) {
	if h.browser != nil {
		return h.browser, nil
	}
	b, err := h.launch()
	if err != nil {
		return nil, err
	}
	h.browser = b
	return b, nil
}

func (h *RodHost) launch() (*rod.Browser, error) {
	var wsURL string

	if h.cfg.RemoteURL != "" {
		wsURL = h.cfg.RemoteURL
		if len(h.dirs) > 0 {
			h.log.Warn("packages cannot be loaded into a remote browser", "component", "host", "count", len(h.dirs))
		}
		h.log.Info("connecting to remote browser", "component", "host", "url", wsURL)
	} else {
		l := launcher.New().Headless(h.cfg.Headless)
		if h.cfg.Bin != "" {
			l = l.Bin(h.cfg.Bin)
		}
		if h.cfg.UserDataDir != "" {
			l = l.UserDataDir(h.cfg.UserDataDir)
		}
		l = l.Delete("disable-extensions")
		if len(h.dirs) > 0 {
			list := strings.Join(h.dirs, ",")
			l = l.Set("load-extension", list).Set("disable-extensions-except", list)
		}

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		wsURL = u
		h.lnch = l
		h.log.Info("browser launched", "component", "host", "url", wsURL, "packages", len(h.dirs))
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	return b, nil
}

// recycle restarts the browser with the current package list and returns
// to the last page.
func (h *RodHost) recycle(ctx context.Context) error {
	h.log.Info("restarting browser", "component", "host", "packages", len(h.dirs))
	if err := h.shutdown(); err != nil {
		h.log.Warn("browser shutdown failed", "component", "host", "error", err)
	}
	if _, err := h.ensureBrowser(ctx); err != nil {
		return err
	}
	if h.lastURL == "" {
		return nil
	}
	page, err := h.mainPage(ctx)
	if err != nil {
		return err
	}
	return page.Context(ctx).Navigate(h.lastURL)
}

func (h *RodHost) shutdown() error {
	var err error
	if h.browser != nil {
		err = h.browser.Close()
		h.browser = nil
	}
	h.page = nil
	if h.lnch != nil {
		// Kill, not Cleanup: Cleanup would delete the persistent profile.
		h.lnch.Kill()
		h.lnch = nil
	}
	return err
}

func fromProto(c *proto.NetworkCookie) session.CookieRecord {
	r := session.CookieRecord{
		Name:        c.Name,
		Value:       c.Value,
		Domain:      c.Domain,
		Path:        c.Path,
		SessionOnly: c.Session,
		HTTPOnly:    c.HTTPOnly,
		Secure:      c.Secure,
		SameSite:    string(c.SameSite),
	}
	if !c.Session && float64(c.Expires) > 0 {
		r.Expires = epochToTime(float64(c.Expires))
	}
	return r
}

// toProto leaves Expires unset for session cookies.
func toProto(r session.CookieRecord) *proto.NetworkCookieParam {
	p := &proto.NetworkCookieParam{
		Name:     r.Name,
		Value:    r.Value,
		Domain:   r.Domain,
		Path:     r.Path,
		Secure:   r.Secure,
		HTTPOnly: r.HTTPOnly,
		SameSite: proto.NetworkCookieSameSite(r.SameSite),
	}
	if !r.SessionOnly && !r.Expires.IsZero() {
		p.Expires = proto.TimeSinceEpoch(timeToEpoch(r.Expires))
	}
	return p
}

func epochToTime(seconds float64) time.Time {
	whole, frac := math.Modf(seconds)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}

func timeToEpoch(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}
