// Package sessiontest provides in-memory session pools for tests.
//
// A [Site] plays the remote catalog: tests set per-producer listings and
// failures on it, and every handle of every pool launched by a [Launcher]
// reads from the same Site. Pools can be killed to simulate a browser crash.
package sessiontest

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/Iron-Ham/audiowatch/internal/errors"
	"github.com/Iron-Ham/audiowatch/internal/session"
)

// Site is the fake remote catalog shared by all handles.
type Site struct {
	mu        sync.Mutex
	listings  map[string][]session.Anchor
	failures  map[string][]error
	visits    map[string]int
	navigated []string
	onNav     func(url string)
}

// NewSite creates an empty site.
func NewSite() *Site {
	return &Site{
		listings: make(map[string][]session.Anchor),
		failures: make(map[string][]error),
		visits:   make(map[string]int),
	}
}

// SetListing sets the anchors returned for producer's listing page.
func (s *Site) SetListing(producer string, anchors ...session.Anchor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings[producer] = anchors
}

// FailNext makes the next navigation to producer's listing fail with err.
// Calls queue up.
func (s *Site) FailNext(producer string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[producer] = append(s.failures[producer], err)
}

// OnNavigate registers a hook called (outside the lock) on every navigation.
func (s *Site) OnNavigate(fn func(url string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onNav = fn
}

// Visits returns how many times producer's listing was loaded.
func (s *Site) Visits(producer string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visits[producer]
}

// Navigations returns every URL navigated to, in order.
func (s *Site) Navigations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.navigated...)
}

// ListingAnchor builds an anchor pointing at an item detail page.
func ListingAnchor(id, text string) session.Anchor {
	return session.Anchor{Href: "/store/asset/" + id, Text: text}
}

func (s *Site) navigate(raw string) (string, error) {
	producer := ""
	if u, err := url.Parse(raw); err == nil {
		producer = u.Query().Get("artistName")
	}

	s.mu.Lock()
	s.navigated = append(s.navigated, raw)
	hook := s.onNav
	var failure error
	if producer != "" {
		s.visits[producer]++
		if queued := s.failures[producer]; len(queued) > 0 {
			failure = queued[0]
			s.failures[producer] = queued[1:]
		}
	}
	s.mu.Unlock()

	if hook != nil {
		hook(raw)
	}
	return producer, failure
}

func (s *Site) anchors(producer string) []session.Anchor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]session.Anchor(nil), s.listings[producer]...)
}

// Launcher launches fake pools over a Site.
type Launcher struct {
	Site *Site

	mu       sync.Mutex
	pools    []*Pool
	failures []error
}

// NewLauncher creates a launcher whose pools read from site.
func NewLauncher(site *Site) *Launcher {
	return &Launcher{Site: site}
}

// FailNext makes the next Launch fail with err. Calls queue up.
func (l *Launcher) FailNext(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures = append(l.failures, err)
}

// Launch implements session.Launcher.
func (l *Launcher) Launch(ctx context.Context) (session.Pool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.failures) > 0 {
		err := l.failures[0]
		l.failures = l.failures[1:]
		return nil, err
	}
	p := &Pool{site: l.Site, index: len(l.pools) + 1}
	l.pools = append(l.pools, p)
	return p, nil
}

// Pools returns every pool launched so far, oldest first.
func (l *Launcher) Pools() []*Pool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Pool(nil), l.pools...)
}

// Current returns the most recently launched pool, or nil.
func (l *Launcher) Current() *Pool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pools) == 0 {
		return nil
	}
	return l.pools[len(l.pools)-1]
}

// Pool is a fake session pool.
type Pool struct {
	site  *Site
	index int

	mu      sync.Mutex
	handles []*Handle
	dead    bool
	closed  bool
}

// NewHandles implements session.Pool.
func (p *Pool) NewHandles(_ context.Context, n int) ([]session.Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dead || p.closed {
		return nil, errors.NewSessionError("open handle", errors.ErrSessionClosed)
	}
	out := make([]session.Handle, 0, n)
	for i := 0; i < n; i++ {
		h := &Handle{id: fmt.Sprintf("pool%d-tab%d", p.index, len(p.handles)+1), pool: p}
		p.handles = append(p.handles, h)
		out = append(out, h)
	}
	return out, nil
}

// Alive implements session.Pool.
func (p *Pool) Alive(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.dead && !p.closed
}

// Close implements session.Pool.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Kill simulates a browser crash: the pool reports dead and every handle
// fails from now on.
func (p *Pool) Kill() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dead = true
}

// Closed reports whether Close was called.
func (p *Pool) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Handles returns the handles opened so far.
func (p *Pool) Handles() []*Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Handle(nil), p.handles...)
}

func (p *Pool) usable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.dead && !p.closed
}

// Handle is a fake tab.
type Handle struct {
	id   string
	pool *Pool

	mu       sync.Mutex
	current  string
	producer string
	reveals  int
	dead     bool
}

// ID implements session.Handle.
func (h *Handle) ID() string { return h.id }

// Navigate implements session.Handle.
func (h *Handle) Navigate(ctx context.Context, raw string) error {
	if err := h.check(ctx, "navigate"); err != nil {
		return err
	}
	producer, err := h.pool.site.navigate(raw)
	if err != nil {
		return err
	}
	if err := h.check(ctx, "navigate"); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = raw
	h.producer = producer
	h.reveals = 0
	return nil
}

// Reveal implements session.Handle.
func (h *Handle) Reveal(ctx context.Context, _ int) error {
	if err := h.check(ctx, "reveal"); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reveals++
	return nil
}

// Anchors implements session.Handle. Listing pages return the site's anchors
// for the producer; other pages have none.
func (h *Handle) Anchors(ctx context.Context, selector string) ([]session.Anchor, error) {
	if err := h.check(ctx, "extract anchors"); err != nil {
		return nil, err
	}
	h.mu.Lock()
	producer := h.producer
	h.mu.Unlock()
	if producer == "" {
		return nil, nil
	}

	prefix := strings.TrimSuffix(strings.TrimPrefix(selector, "a[href^='"), "']")
	var out []session.Anchor
	for _, a := range h.pool.site.anchors(producer) {
		if strings.HasPrefix(a.Href, prefix) {
			out = append(out, a)
		}
	}
	return out, nil
}

// Screenshot implements session.Handle.
func (h *Handle) Screenshot(ctx context.Context) ([]byte, error) {
	if err := h.check(ctx, "screenshot"); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return []byte("snapshot:" + h.current), nil
}

// Kill closes this handle only, as when a single tab crashes. The pool stays
// alive.
func (h *Handle) Kill() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dead = true
}

// Reveals returns the reveal actions performed since the last navigation.
func (h *Handle) Reveals() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reveals
}

func (h *Handle) check(ctx context.Context, op string) error {
	h.mu.Lock()
	dead := h.dead
	h.mu.Unlock()
	if dead || !h.pool.usable() {
		return errors.NewSessionError(op, errors.ErrSessionClosed).WithHandle(h.id)
	}
	if err := ctx.Err(); err != nil {
		return errors.NewSessionError(op, errors.Join(errors.ErrTimeout, err)).WithHandle(h.id)
	}
	return nil
}
