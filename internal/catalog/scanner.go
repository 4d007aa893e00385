// Package catalog reads producer listings and item detail pages from the
// remote creator store through a borrowed browser handle.
package catalog

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Iron-Ham/audiowatch/internal/errors"
	"github.com/Iron-Ham/audiowatch/internal/logging"
	"github.com/Iron-Ham/audiowatch/internal/session"
)

// ItemSelector matches item links on a listing page.
const ItemSelector = "a[href^='/store/asset/']"

var identifierPattern = regexp.MustCompile(`/asset/(\d+)`)

// ItemReference is one link found on a producer's listing.
type ItemReference struct {
	// Href is the detail-page reference, relative to the catalog origin.
	Href string
	// Text is the raw rendered text of the link.
	Text string
}

// Options configures a Scanner.
type Options struct {
	BaseURL           string
	RevealCount       int
	RevealDistance    int
	SettleDelay       time.Duration
	RevealDelay       time.Duration
	DetailSettleDelay time.Duration
	NavigationTimeout time.Duration
}

// Scanner is stateless beyond its options; one Scanner serves all workers.
type Scanner struct {
	opts   Options
	clock  clockwork.Clock
	logger *logging.Logger
}

// NewScanner creates a scanner. A nil clock uses the real clock and a nil
// logger discards output.
func NewScanner(opts Options, clock clockwork.Clock, logger *logging.Logger) *Scanner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Scanner{opts: opts, clock: clock, logger: logger}
}

// ListingURL returns the search page listing producer's audio.
func (s *Scanner) ListingURL(producer string) string {
	q := url.Values{}
	q.Set("artistName", producer)
	q.Set("keyword", producer)
	return s.opts.BaseURL + "/store/audio?" + q.Encode()
}

// DetailURL returns the detail page for an item identifier.
func (s *Scanner) DetailURL(id string) string {
	return s.opts.BaseURL + "/store/asset/" + id
}

// Scan loads producer's listing, waits for it to settle, performs the fixed
// number of reveal actions, and returns the item links it finds.
//
// Scan is best-effort: a timeout or any other page failure yields an empty
// listing and a nil error, so one broken producer cannot stall a worker.
// The only error returned wraps errors.ErrSessionClosed.
func (s *Scanner) Scan(ctx context.Context, h session.Handle, producer string) ([]ItemReference, error) {
	log := s.logger.WithProducer(producer)

	if err := s.navigate(ctx, h, s.ListingURL(producer)); err != nil {
		return s.giveUp(log, "listing navigation failed", err)
	}
	if err := s.sleep(ctx, s.opts.SettleDelay); err != nil {
		return nil, nil
	}

	for i := 0; i < s.opts.RevealCount; i++ {
		if err := s.bounded(ctx, func(ctx context.Context) error {
			return h.Reveal(ctx, s.opts.RevealDistance)
		}); err != nil {
			return s.giveUp(log, "reveal failed", err)
		}
		if err := s.sleep(ctx, s.opts.RevealDelay); err != nil {
			return nil, nil
		}
	}

	var anchors []session.Anchor
	err := s.bounded(ctx, func(ctx context.Context) error {
		var err error
		anchors, err = h.Anchors(ctx, ItemSelector)
		return err
	})
	if err != nil {
		return s.giveUp(log, "extract failed", err)
	}

	refs := make([]ItemReference, 0, len(anchors))
	for _, a := range anchors {
		refs = append(refs, ItemReference{Href: a.Href, Text: a.Text})
	}
	log.Debug("listing scanned", "references", len(refs))
	return refs, nil
}

// Capture loads an item's detail page and returns a full-page snapshot.
// Unlike Scan it reports every failure; the caller skips the item for this
// cycle.
func (s *Scanner) Capture(ctx context.Context, h session.Handle, id string) ([]byte, error) {
	if err := s.navigate(ctx, h, s.DetailURL(id)); err != nil {
		return nil, err
	}
	if err := s.sleep(ctx, s.opts.DetailSettleDelay); err != nil {
		return nil, err
	}

	var shot []byte
	err := s.bounded(ctx, func(ctx context.Context) error {
		var err error
		shot, err = h.Screenshot(ctx)
		return err
	})
	return shot, err
}

func (s *Scanner) navigate(ctx context.Context, h session.Handle, target string) error {
	return s.bounded(ctx, func(ctx context.Context) error {
		return h.Navigate(ctx, target)
	})
}

// bounded runs fn under the navigation timeout.
func (s *Scanner) bounded(ctx context.Context, fn func(context.Context) error) error {
	if s.opts.NavigationTimeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.NavigationTimeout)
	defer cancel()
	return fn(ctx)
}

func (s *Scanner) giveUp(log *logging.Logger, msg string, err error) ([]ItemReference, error) {
	if errors.Is(err, errors.ErrSessionClosed) {
		return nil, err
	}
	log.Warn(msg, "error", err)
	return nil, nil
}

// sleep waits d on the scanner's clock or until ctx is done.
func (s *Scanner) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.clock.After(d):
		return nil
	}
}

// ParseIdentifier extracts the numeric item identifier from a detail link.
// Links that do not match are not items.
func ParseIdentifier(href string) (string, bool) {
	m := identifierPattern.FindStringSubmatch(href)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// DisplayName returns the first line of a link's text, trimmed. An empty
// result means the item is not addressable yet.
func DisplayName(text string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	return strings.TrimSpace(first)
}
