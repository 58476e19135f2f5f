package dom

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/engagement-cli/internal/resilience"
)

const maxPageBytes = 8 << 20

// StaticOption configures a StaticProvider.
type StaticOption func(*StaticProvider)

// WithHTTPClient sets the HTTP client used to fetch pages.
func WithHTTPClient(hc *http.Client) StaticOption {
	return func(p *StaticProvider) {
		p.client = hc
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) StaticOption {
	return func(p *StaticProvider) {
		if ua != "" {
			p.userAgent = ua
		}
	}
}

// StaticProvider fetches server-rendered HTML over plain HTTP and queries it
// with goquery. Scripts never run, so only markup present in the initial
// response (meta tags, JSON-LD, embedded state) is visible.
type StaticProvider struct {
	client    *http.Client
	userAgent string
}

// NewStaticProvider creates a StaticProvider with sensible defaults.
func NewStaticProvider(opts ...StaticOption) *StaticProvider {
	p := &StaticProvider{
		userAgent: DefaultUserAgent,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Open returns a session that loads pages through the provider's client.
func (p *StaticProvider) Open(_ context.Context) (Session, error) {
	return &StaticSession{fetch: p.fetch}, nil
}

func (p *StaticProvider) fetch(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", eris.Wrap(err, "static: create request")
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,id;q=0.8")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", resilience.NewTransientError(eris.Wrap(err, "static: fetch"), 0)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", resilience.NewTransientError(eris.Wrap(err, "static: read body"), resp.StatusCode)
	}

	if blocked, kind := DetectBlock(resp, body); blocked {
		return "", resilience.NewTransientError(eris.Errorf("static: blocked (%s)", kind), resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		err := eris.Errorf("static: status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return "", resilience.NewTransientError(err, resp.StatusCode)
		}
		return "", err
	}
	return string(body), nil
}

// StaticSession is a Session over a parsed HTML document.
type StaticSession struct {
	fetch func(ctx context.Context, url string) (string, error)

	mu   sync.RWMutex
	html string
	doc  *goquery.Document
}

// FromHTML returns a session already holding html. Navigate on it is a no-op.
func FromHTML(html string) (*StaticSession, error) {
	s := &StaticSession{}
	if err := s.load(html); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *StaticSession) load(html string) error {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(html))
	if err != nil {
		return eris.Wrap(err, "static: parse html")
	}
	s.mu.Lock()
	s.html = html
	s.doc = doc
	s.mu.Unlock()
	return nil
}

func (s *StaticSession) document() *goquery.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// Navigate fetches url and replaces the current document.
func (s *StaticSession) Navigate(ctx context.Context, url string) error {
	if s.fetch == nil {
		return nil
	}
	html, err := s.fetch(ctx, url)
	if err != nil {
		return err
	}
	return s.load(html)
}

// WaitFor reports whether locator matches. Static documents never change,
// so there is nothing to wait for.
func (s *StaticSession) WaitFor(_ context.Context, locator string, _ time.Duration) bool {
	doc := s.document()
	return doc != nil && doc.Find(locator).Length() > 0
}

func (s *StaticSession) Text(ctx context.Context, locator string) (string, bool) {
	for _, t := range s.Texts(ctx, locator) {
		if t != "" {
			return t, true
		}
	}
	return "", false
}

func (s *StaticSession) Texts(_ context.Context, locator string) []string {
	doc := s.document()
	if doc == nil {
		return nil
	}
	var out []string
	doc.Find(locator).Each(func(_ int, sel *goquery.Selection) {
		out = append(out, strings.TrimSpace(sel.Text()))
	})
	return out
}

func (s *StaticSession) Attribute(_ context.Context, locator, name string) (string, bool) {
	doc := s.document()
	if doc == nil {
		return "", false
	}
	var val string
	doc.Find(locator).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if v, ok := sel.Attr(name); ok && strings.TrimSpace(v) != "" {
			val = strings.TrimSpace(v)
			return false
		}
		return true
	})
	return val, val != ""
}

func (s *StaticSession) PageSource(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return "", eris.New("static: no page loaded")
	}
	return s.html, nil
}

// Scroll is a no-op for static documents.
func (s *StaticSession) Scroll(_ context.Context) error { return nil }

// Close releases the parsed document.
func (s *StaticSession) Close() error {
	s.mu.Lock()
	s.doc = nil
	s.html = ""
	s.mu.Unlock()
	return nil
}
