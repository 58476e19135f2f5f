// Package dom provides page access for the extraction engine: a live
// headless-Chrome session and a static goquery document.
package dom

import (
	"context"
	"time"
)

// Accessor is the page surface the extraction strategies query. Lookups
// never fail: a locator that matches nothing reports absent.
type Accessor interface {
	Navigate(ctx context.Context, url string) error
	// WaitFor blocks until locator matches or timeout elapses.
	WaitFor(ctx context.Context, locator string, timeout time.Duration) bool
	// Text returns the first non-empty text among elements matching locator.
	Text(ctx context.Context, locator string) (string, bool)
	// Texts returns the trimmed text of every element matching locator.
	Texts(ctx context.Context, locator string) []string
	// Attribute returns the first non-empty value of name among elements
	// matching locator.
	Attribute(ctx context.Context, locator, name string) (string, bool)
	PageSource(ctx context.Context) (string, error)
	Scroll(ctx context.Context) error
}

// Screenshotter is implemented by sessions that can capture the viewport.
type Screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

// Session is an Accessor bound to one browser context. Close releases it and
// is safe to call more than once.
type Session interface {
	Accessor
	Close() error
}

// Provider opens scoped sessions.
type Provider interface {
	Open(ctx context.Context) (Session, error)
}

// DefaultUserAgent is sent by both providers unless overridden.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
