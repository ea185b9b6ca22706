package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// DefaultNavigationTimeout bounds the initial load of a page.
const DefaultNavigationTimeout = 30 * time.Second

// Session is one browser process or remote browser connection.
type Session struct {
	ctx       context.Context
	cancels   []context.CancelFunc
	userAgent string
	navigate  time.Duration
	logger    *slog.Logger
}

type sessionConfig struct {
	execPath  string
	remote    string
	headless  bool
	userAgent string
	navigate  time.Duration
	logger    *slog.Logger
}

// Option configures a Session.
type Option func(*sessionConfig)

// WithExecPath sets the Chrome executable. Empty uses the one on PATH.
func WithExecPath(path string) Option {
	return func(c *sessionConfig) {
		c.execPath = path
	}
}

// WithRemote connects to an already running browser at a DevTools
// websocket URL instead of starting one.
func WithRemote(url string) Option {
	return func(c *sessionConfig) {
		c.remote = url
	}
}

// WithHeadless toggles the browser window. Ignored with WithRemote.
func WithHeadless(headless bool) Option {
	return func(c *sessionConfig) {
		c.headless = headless
	}
}

// WithUserAgent overrides the user agent of every tab.
func WithUserAgent(ua string) Option {
	return func(c *sessionConfig) {
		c.userAgent = ua
	}
}

// WithNavigationTimeout bounds the initial page load.
func WithNavigationTimeout(d time.Duration) Option {
	return func(c *sessionConfig) {
		if d > 0 {
			c.navigate = d
		}
	}
}

// WithLogger sets the logger. Browser protocol messages are logged at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(c *sessionConfig) {
		c.logger = logger
	}
}

// Start launches or connects to a browser. Close releases it.
func Start(ctx context.Context, opts ...Option) (*Session, error) {
	cfg := sessionConfig{headless: true, navigate: DefaultNavigationTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	s := &Session{userAgent: cfg.userAgent, navigate: cfg.navigate, logger: cfg.logger}

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if cfg.remote != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, cfg.remote)
	} else {
		allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", cfg.headless),
		)
		if cfg.execPath != "" {
			allocOpts = append(allocOpts, chromedp.ExecPath(cfg.execPath))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, allocOpts...)
	}
	s.cancels = append(s.cancels, allocCancel)

	logf := func(format string, args ...any) {
		cfg.logger.Debug("browser", "message", fmt.Sprintf(format, args...))
	}
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logf),
		chromedp.WithErrorf(logf),
	)
	s.cancels = append(s.cancels, browserCancel)
	s.ctx = browserCtx

	// The first Run starts the browser.
	if err := chromedp.Run(browserCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	cfg.logger.Info("browser started", "remote", cfg.remote != "", "headless", cfg.headless)
	return s, nil
}

// Close shuts the browser down, or disconnects from a remote one.
func (s *Session) Close() {
	for i := len(s.cancels) - 1; i >= 0; i-- {
		s.cancels[i]()
	}
	s.cancels = nil
}

// Site holds what a tab sends with every request.
type Site struct {
	Cookie  string
	Headers map[string]string
}

// Open loads target in a new tab and returns it as a Page.
// The caller must Close the page.
func (s *Session) Open(ctx context.Context, target string, layout Layout, site Site) (*Page, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	tabCtx, tabCancel := chromedp.NewContext(s.ctx)
	p := &Page{ctx: tabCtx, cancel: tabCancel, target: target, layout: layout, logger: s.logger}

	// The first Run creates the tab and must not carry the load timeout.
	if err := chromedp.Run(tabCtx); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to open a tab: %w", err)
	}

	actions := []chromedp.Action{network.Enable()}
	if s.userAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(s.userAgent))
	}
	if len(site.Headers) > 0 {
		headers := make(network.Headers, len(site.Headers))
		for k, v := range site.Headers {
			headers[k] = v
		}
		actions = append(actions, network.SetExtraHTTPHeaders(headers))
	}
	for _, c := range ParseCookies(site.Cookie) {
		actions = append(actions, network.SetCookie(c.Name, c.Value).WithURL(target))
	}
	actions = append(actions, chromedp.Navigate(target), chromedp.WaitReady("body"))

	loadCtx, cancel := context.WithTimeout(ctx, s.navigate)
	defer cancel()
	if err := p.run(loadCtx, actions...); err != nil {
		p.Close()
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("page %s did not load within %s", target, s.navigate)
		}
		return nil, fmt.Errorf("failed to open %s: %w", target, err)
	}
	s.logger.Debug("page opened", "target", target, "cookie", site.Cookie)
	return p, nil
}

// Cookie is one name=value pair.
type Cookie struct {
	Name  string
	Value string
}

// ParseCookies splits a "name=value; name2=value2" cookie header.
// Pairs without a name are dropped.
func ParseCookies(header string) []Cookie {
	var out []Cookie
	for part := range strings.SplitSeq(header, ";") {
		name, value, _ := strings.Cut(strings.TrimSpace(part), "=")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out = append(out, Cookie{Name: name, Value: strings.TrimSpace(value)})
	}
	return out
}
