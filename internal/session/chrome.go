package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"

	"github.com/Iron-Ham/audiowatch/internal/errors"
	"github.com/Iron-Ham/audiowatch/internal/logging"
)

// screenshotQuality 100 makes chromedp capture PNG instead of JPEG.
const screenshotQuality = 100

// ChromeOptions configures the browser a ChromeLauncher starts.
type ChromeOptions struct {
	// ProfileDir is the persistent user data directory. It carries the
	// remote source's login state between launches.
	ProfileDir string
	Headless   bool
	// ExecPath overrides browser discovery.
	ExecPath string
}

// ChromeLauncher launches Chrome through chromedp.
type ChromeLauncher struct {
	opts   ChromeOptions
	logger *logging.Logger
}

// NewChromeLauncher creates a launcher. A nil logger discards output.
func NewChromeLauncher(opts ChromeOptions, logger *logging.Logger) *ChromeLauncher {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &ChromeLauncher{opts: opts, logger: logger}
}

// Launch starts a browser on the persistent profile. The pool outlives ctx;
// ctx only bounds the startup.
func (l *ChromeLauncher) Launch(ctx context.Context) (Pool, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.opts.Headless),
		chromedp.WindowSize(1280, 2000),
	)
	if l.opts.ProfileDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(l.opts.ProfileDir))
	}
	if l.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(l.opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	stop := context.AfterFunc(ctx, browserCancel)
	err := chromedp.Run(browserCtx)
	stop()
	if err != nil {
		browserCancel()
		allocCancel()
		return nil, classify("launch browser", err)
	}

	l.logger.Info("browser launched", "profile_dir", l.opts.ProfileDir, "headless", l.opts.Headless)
	return &chromePool{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		logger:        l.logger,
	}, nil
}

type chromePool struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	logger        *logging.Logger

	closed   atomic.Bool
	nextID   atomic.Uint64
	mu       sync.Mutex
	handles  []*chromeHandle
	closeErr error
}

func (p *chromePool) NewHandles(ctx context.Context, n int) ([]Handle, error) {
	out := make([]Handle, 0, n)
	for i := 0; i < n; i++ {
		if p.closed.Load() || p.browserCtx.Err() != nil {
			return nil, errors.NewSessionError("open handle", errors.ErrSessionClosed)
		}

		tabCtx, tabCancel := chromedp.NewContext(p.browserCtx)
		stop := context.AfterFunc(ctx, tabCancel)
		err := chromedp.Run(tabCtx)
		stop()
		if err != nil {
			tabCancel()
			return nil, classify("open handle", err)
		}

		h := &chromeHandle{
			id:     fmt.Sprintf("tab-%d", p.nextID.Add(1)),
			pool:   p,
			tabCtx: tabCtx,
			cancel: tabCancel,
		}
		p.mu.Lock()
		p.handles = append(p.handles, h)
		p.mu.Unlock()
		out = append(out, h)
	}
	return out, nil
}

// Alive evaluates a trivial expression in the browser's first tab.
func (p *chromePool) Alive(ctx context.Context) bool {
	if p.closed.Load() || p.browserCtx.Err() != nil {
		return false
	}
	probeCtx, cancel := context.WithCancel(p.browserCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var n int
	return chromedp.Run(probeCtx, chromedp.Evaluate(`1`, &n)) == nil && n == 1
}

// Close cancels every tab and shuts the browser down. Safe to call more
// than once.
func (p *chromePool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return p.closeErr
	}

	p.mu.Lock()
	for _, h := range p.handles {
		h.cancel()
	}
	p.handles = nil
	p.mu.Unlock()

	if err := chromedp.Cancel(p.browserCtx); err != nil && !errors.Is(err, context.Canceled) {
		p.closeErr = fmt.Errorf("close browser: %w", err)
	}
	p.browserCancel()
	p.allocCancel()
	p.logger.Info("browser closed")
	return p.closeErr
}

type chromeHandle struct {
	id     string
	pool   *chromePool
	tabCtx context.Context
	cancel context.CancelFunc
}

func (h *chromeHandle) ID() string { return h.id }

func (h *chromeHandle) Navigate(ctx context.Context, url string) error {
	return h.run(ctx, "navigate", chromedp.Navigate(url))
}

func (h *chromeHandle) Reveal(ctx context.Context, distance int) error {
	wheel := chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseWheel, 640, 600).
			WithDeltaX(0).
			WithDeltaY(float64(distance)).
			Do(ctx)
	})
	return h.run(ctx, "reveal", wheel)
}

func (h *chromeHandle) Anchors(ctx context.Context, selector string) ([]Anchor, error) {
	sel, err := json.Marshal(selector)
	if err != nil {
		return nil, err
	}
	script := fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).map(a => ({
		href: a.getAttribute("href") || "",
		text: a.innerText || ""
	}))`, sel)

	var anchors []Anchor
	if err := h.run(ctx, "extract anchors", chromedp.Evaluate(script, &anchors)); err != nil {
		return nil, err
	}
	return anchors, nil
}

func (h *chromeHandle) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := h.run(ctx, "screenshot", chromedp.FullScreenshot(&buf, screenshotQuality)); err != nil {
		return nil, err
	}
	return buf, nil
}

// run executes actions on the tab, bounded by the caller's context. Failures
// after the pool or tab went away are reported as ErrSessionClosed.
func (h *chromeHandle) run(ctx context.Context, op string, actions ...chromedp.Action) error {
	if h.pool.closed.Load() || h.tabCtx.Err() != nil {
		return errors.NewSessionError(op, errors.ErrSessionClosed).WithHandle(h.id)
	}

	runCtx, cancel := context.WithCancel(h.tabCtx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	switch {
	case err == nil:
		return nil
	case h.pool.closed.Load() || h.tabCtx.Err() != nil:
		return errors.NewSessionError(op, errors.ErrSessionClosed).WithHandle(h.id)
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return errors.NewSessionError(op, errors.Join(errors.ErrTimeout, err)).WithHandle(h.id)
	default:
		return errors.NewSessionError(op, err).WithHandle(h.id)
	}
}

// classify marks launch failures caused by exhausted system resources so the
// supervisor stops retrying them.
func classify(op string, err error) error {
	if errors.IsFatal(err) {
		return errors.NewSessionError(op, errors.Join(errors.ErrResourceExhausted, err))
	}
	return errors.NewSessionError(op, err)
}
