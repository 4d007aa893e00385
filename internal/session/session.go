// Package session defines the browser session pool the monitor engine runs
// on and provides its chromedp implementation.
//
// A [Pool] is one launched browser. It is owned by the supervisor, which is
// the only component that launches or closes one. Workers borrow [Handle]s
// (browser tabs) from it; once the pool is closed every handle operation
// fails with errors.ErrSessionClosed.
package session

import (
	"context"
)

// Anchor is a link extracted from a rendered page.
type Anchor struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

// Launcher starts a fresh session pool.
type Launcher interface {
	Launch(ctx context.Context) (Pool, error)
}

// Pool is a launched, shared browser session.
type Pool interface {
	// NewHandles opens n independent handles.
	NewHandles(ctx context.Context, n int) ([]Handle, error)
	// Alive reports whether the pool can still serve handles.
	Alive(ctx context.Context) bool
	// Close releases the pool and invalidates all of its handles.
	Close() error
}

// Handle is a single tab borrowed from a Pool. A handle is used by one
// goroutine at a time.
type Handle interface {
	ID() string
	Navigate(ctx context.Context, url string) error
	// Reveal scrolls the page by distance pixels to trigger lazy rendering.
	Reveal(ctx context.Context, distance int) error
	// Anchors returns the links matching a CSS selector.
	Anchors(ctx context.Context, selector string) ([]Anchor, error)
	// Screenshot captures the full page as a PNG image.
	Screenshot(ctx context.Context) ([]byte, error)
}
