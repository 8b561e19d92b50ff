package update

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/ZebulonRouseFrantzich/crxkeep/internal/logging"
)

const (
	// DefaultCheckTimeout bounds a single update check.
	DefaultCheckTimeout = 10 * time.Second
	// DefaultDownloadTimeout bounds a single download request.
	DefaultDownloadTimeout = 30 * time.Second
	// DefaultMaxRedirects caps manual redirect hops during download.
	DefaultMaxRedirects = 5
	// DefaultMaxBodySize caps how many bytes a response may carry.
	DefaultMaxBodySize = 256 << 20
	// DefaultUserAgent is the User-Agent header sent with requests
	DefaultUserAgent = "crxkeep/1.0"
)

// Options configures a Client. Zero values select the defaults.
type Options struct {
	CheckTimeout    time.Duration
	DownloadTimeout time.Duration
	MaxRedirects    int
	MaxBodySize     int64
	UserAgent       string
	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper
	Logger    logging.Logger
}

// Client performs update checks and downloads. Redirects are never followed
// by net/http; Download follows them itself.
type Client struct {
	check        *http.Client
	download     *http.Client
	maxRedirects int
	maxBodySize  int64
	userAgent    string
	log          logging.Logger
}

// NewClient creates a Client.
func NewClient(opts Options) *Client {
	if opts.CheckTimeout <= 0 {
		opts.CheckTimeout = DefaultCheckTimeout
	}
	if opts.DownloadTimeout <= 0 {
		opts.DownloadTimeout = DefaultDownloadTimeout
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = DefaultMaxRedirects
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = DefaultMaxBodySize
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	noRedirect := func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &Client{
		check: &http.Client{
			Timeout:       opts.CheckTimeout,
			Transport:     opts.Transport,
			CheckRedirect: noRedirect,
		},
		download: &http.Client{
			Timeout:       opts.DownloadTimeout,
			Transport:     opts.Transport,
			CheckRedirect: noRedirect,
		},
		maxRedirects: opts.MaxRedirects,
		maxBodySize:  opts.MaxBodySize,
		userAgent:    opts.UserAgent,
		log:          logging.OrNop(opts.Logger),
	}
}

// Check asks the update service whether a package newer than the one
// encoded in rawURL exists.
func (c *Client) Check(ctx context.Context, rawURL string) (CheckResult, error) {
	resp, err := c.get(ctx, c.check, rawURL)
	if err != nil {
		return CheckResult{}, fmt.Errorf("update check failed: %w", err)
	}
	defer resp.Body.Close()

	c.log.Debug("update check answered", "component", "update", "status", resp.StatusCode)

	switch resp.StatusCode {
	case http.StatusNoContent:
		return CheckResult{Status: NoUpdate}, nil
	case http.StatusOK:
		body, err := c.readBody(resp, "check", rawURL)
		if err != nil {
			return CheckResult{}, err
		}
		return CheckResult{Status: UpdateAvailable, Payload: body}, nil
	case http.StatusMovedPermanently, http.StatusFound, http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return CheckResult{Status: UpdateAvailable}, nil
	default:
		return CheckResult{}, &ProtocolError{Op: "check", URL: rawURL, StatusCode: resp.StatusCode}
	}
}

// Download fetches package bytes, following up to MaxRedirects 301/302
// redirects.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, error) {
	current, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse download url: %w", err)
	}

	for hop := 0; hop < c.maxRedirects; hop++ {
		body, next, err := c.downloadOnce(ctx, current)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return body, nil
		}
		c.log.Debug("following redirect", "component", "update", "hop", hop+1, "location", next.String())
		current = next
	}

	return nil, &ProtocolError{Op: "download", URL: rawURL, Reason: "too many redirects"}
}

// downloadOnce performs a single request. It returns either the body or the
// resolved redirect target.
func (c *Client) downloadOnce(ctx context.Context, current *url.URL) ([]byte, *url.URL, error) {
	resp, err := c.get(ctx, c.download, current.String())
	if err != nil {
		return nil, nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := c.readBody(resp, "download", current.String())
		return body, nil, err
	case http.StatusMovedPermanently, http.StatusFound:
		location := resp.Header.Get("Location")
		if location == "" {
			return nil, nil, &ProtocolError{Op: "download", URL: current.String(), StatusCode: resp.StatusCode}
		}
		ref, err := url.Parse(location)
		if err != nil {
			return nil, nil, &ProtocolError{Op: "download", URL: current.String(), Reason: fmt.Sprintf("bad Location %q", location)}
		}
		return nil, current.ResolveReference(ref), nil
	default:
		return nil, nil, &ProtocolError{Op: "download", URL: current.String(), StatusCode: resp.StatusCode}
	}
}

func (c *Client) get(ctx context.Context, hc *http.Client, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	return resp, nil
}

// readBody reads the whole body, refusing bodies above maxBodySize.
func (c *Client) readBody(resp *http.Response, op, rawURL string) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", op, err)
	}
	if int64(len(body)) > c.maxBodySize {
		return nil, &ProtocolError{Op: op, URL: rawURL, Reason: fmt.Sprintf("body exceeds %d bytes", c.maxBodySize)}
	}
	return body, nil
}

// IsTransient reports whether err is a network-level failure (timeout,
// refused connection, reset) rather than a protocol answer.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
