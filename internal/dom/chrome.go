package dom

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/engagement-cli/internal/resilience"
)

// ChromeOptions configures the headless Chrome provider.
type ChromeOptions struct {
	Headless     bool
	ExecPath     string
	UserAgent    string
	WindowWidth  int
	WindowHeight int
	// PageLoadTimeout bounds a single navigation.
	PageLoadTimeout time.Duration
	// QueryTimeout bounds each text/attribute/source query.
	QueryTimeout time.Duration
}

// ChromeProvider opens one Chrome process and tab per session.
type ChromeProvider struct {
	opts ChromeOptions
}

// NewChromeProvider creates a ChromeProvider, filling unset options.
func NewChromeProvider(opts ChromeOptions) *ChromeProvider {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.WindowWidth <= 0 || opts.WindowHeight <= 0 {
		opts.WindowWidth, opts.WindowHeight = 1920, 1080
	}
	if opts.PageLoadTimeout <= 0 {
		opts.PageLoadTimeout = 30 * time.Second
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 5 * time.Second
	}
	return &ChromeProvider{opts: opts}
}

// Open starts a browser context. The caller must Close the session.
func (p *ChromeProvider) Open(ctx context.Context) (Session, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("exclude-switches", "enable-automation"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("mute-audio", true),
		chromedp.UserAgent(p.opts.UserAgent),
		chromedp.WindowSize(p.opts.WindowWidth, p.opts.WindowHeight),
	)
	if p.opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	} else {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if p.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(p.opts.ExecPath))
	}

	// The browser outlives individual calls, so it is detached from ctx
	// cancellation and torn down by Close.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	err := chromedp.Run(tabCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}),
		network.SetExtraHTTPHeaders(network.Headers(map[string]interface{}{
			"Accept-Language": "en-US,en;q=0.9,id;q=0.8",
		})),
	)
	if err != nil {
		cancelTab()
		cancelAlloc()
		return nil, eris.Wrap(err, "chrome: start browser")
	}

	zap.L().Debug("chrome: session opened")
	return &ChromeSession{
		tab:  tabCtx,
		opts: p.opts,
		cancel: func() {
			cancelTab()
			cancelAlloc()
		},
	}, nil
}

// ChromeSession is a Session over one Chrome tab.
type ChromeSession struct {
	tab    context.Context
	opts   ChromeOptions
	cancel func()
	once   sync.Once
}

// run executes actions on the tab bounded by timeout and by ctx.
func (s *ChromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.tab, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (s *ChromeSession) Navigate(ctx context.Context, url string) error {
	err := s.run(ctx, s.opts.PageLoadTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return resilience.NewTransientError(eris.Wrapf(err, "chrome: navigate %s", url), 0)
	}
	return nil
}

func (s *ChromeSession) WaitFor(ctx context.Context, locator string, timeout time.Duration) bool {
	err := s.run(ctx, timeout, chromedp.WaitReady(locator, chromedp.ByQuery))
	return err == nil
}

func (s *ChromeSession) Text(ctx context.Context, locator string) (string, bool) {
	for _, t := range s.Texts(ctx, locator) {
		if t != "" {
			return t, true
		}
	}
	return "", false
}

func (s *ChromeSession) Texts(ctx context.Context, locator string) []string {
	var out []string
	script := fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).map(e => (e.innerText || e.textContent || "").trim())`, jsString(locator))
	if err := s.run(ctx, s.opts.QueryTimeout, chromedp.Evaluate(script, &out)); err != nil {
		zap.L().Debug("chrome: text query failed", zap.String("locator", locator), zap.Error(err))
		return nil
	}
	return out
}

func (s *ChromeSession) Attribute(ctx context.Context, locator, name string) (string, bool) {
	var out string
	script := fmt.Sprintf(`(() => {
		for (const e of document.querySelectorAll(%s)) {
			const v = e.getAttribute(%s);
			if (v && v.trim()) return v.trim();
		}
		return "";
	})()`, jsString(locator), jsString(name))
	if err := s.run(ctx, s.opts.QueryTimeout, chromedp.Evaluate(script, &out)); err != nil {
		zap.L().Debug("chrome: attribute query failed", zap.String("locator", locator), zap.Error(err))
		return "", false
	}
	return out, out != ""
}

func (s *ChromeSession) PageSource(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, s.opts.QueryTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", eris.Wrap(err, "chrome: page source")
	}
	return html, nil
}

func (s *ChromeSession) Scroll(ctx context.Context) error {
	err := s.run(ctx, s.opts.QueryTimeout, chromedp.Evaluate(`window.scrollBy(0, Math.max(window.innerHeight, 800))`, nil))
	return eris.Wrap(err, "chrome: scroll")
}

func (s *ChromeSession) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, s.opts.PageLoadTimeout, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, eris.Wrap(err, "chrome: screenshot")
	}
	return buf, nil
}

// Close shuts down the tab and the browser process.
func (s *ChromeSession) Close() error {
	s.once.Do(func() {
		s.cancel()
		zap.L().Debug("chrome: session closed")
	})
	return nil
}

func jsString(s string) string {
	b, _ := json.Marshal(strings.TrimSpace(s))
	return string(b)
}
