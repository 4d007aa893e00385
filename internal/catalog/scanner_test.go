package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/audiowatch/internal/errors"
	"github.com/Iron-Ham/audiowatch/internal/session"
	"github.com/Iron-Ham/audiowatch/internal/session/sessiontest"
)

func newHandle(t *testing.T, site *sessiontest.Site) (*sessiontest.Pool, *sessiontest.Handle) {
	t.Helper()
	pool, err := sessiontest.NewLauncher(site).Launch(context.Background())
	require.NoError(t, err)
	handles, err := pool.NewHandles(context.Background(), 1)
	require.NoError(t, err)
	return pool.(*sessiontest.Pool), handles[0].(*sessiontest.Handle)
}

func testOptions() Options {
	return Options{
		BaseURL:           "https://store.test/",
		RevealCount:       3,
		RevealDistance:    4000,
		NavigationTimeout: time.Second,
	}
}

func TestScanner_ListingURL(t *testing.T) {
	s := NewScanner(testOptions(), nil, nil)
	assert.Equal(t,
		"https://store.test/store/audio?artistName=DJ+Blue&keyword=DJ+Blue",
		s.ListingURL("DJ Blue"))
	assert.Equal(t, "https://store.test/store/asset/101", s.DetailURL("101"))
}

func TestScanner_Scan(t *testing.T) {
	site := sessiontest.NewSite()
	site.SetListing("alice",
		sessiontest.ListingAnchor("101", "Song One\nalice"),
		session.Anchor{Href: "/store/plugins/5", Text: "not audio"},
		sessiontest.ListingAnchor("102", "Song Two"),
	)
	_, h := newHandle(t, site)

	refs, err := NewScanner(testOptions(), nil, nil).Scan(context.Background(), h, "alice")
	require.NoError(t, err)
	assert.Equal(t, []ItemReference{
		{Href: "/store/asset/101", Text: "Song One\nalice"},
		{Href: "/store/asset/102", Text: "Song Two"},
	}, refs)
	assert.Equal(t, 3, h.Reveals(), "exactly the configured number of reveals")
}

func TestScanner_ScanWaitsForSettleAndReveals(t *testing.T) {
	site := sessiontest.NewSite()
	site.SetListing("alice", sessiontest.ListingAnchor("1", "x"))
	_, h := newHandle(t, site)

	clock := clockwork.NewFakeClock()
	opts := testOptions()
	opts.RevealCount = 2
	opts.SettleDelay = 4 * time.Second
	opts.RevealDelay = time.Second
	s := NewScanner(opts, clock, nil)

	done := make(chan []ItemReference, 1)
	go func() {
		refs, _ := s.Scan(context.Background(), h, "alice")
		done <- refs
	}()

	ctx := context.Background()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(4 * time.Second)
	for i := 0; i < 2; i++ {
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(time.Second)
	}

	select {
	case refs := <-done:
		assert.Len(t, refs, 1)
	case <-time.After(5 * time.Second):
		t.Fatal("scan did not finish after delays elapsed")
	}
}

func TestScanner_TransientFailureYieldsEmptyListing(t *testing.T) {
	site := sessiontest.NewSite()
	site.SetListing("bob", sessiontest.ListingAnchor("1", "x"))
	site.FailNext("bob", errors.NewSessionError("navigate", errors.ErrTimeout))
	_, h := newHandle(t, site)
	s := NewScanner(testOptions(), nil, nil)

	refs, err := s.Scan(context.Background(), h, "bob")
	require.NoError(t, err)
	assert.Empty(t, refs)

	refs, err = s.Scan(context.Background(), h, "bob")
	require.NoError(t, err)
	assert.Len(t, refs, 1, "next scan succeeds")
}

func TestScanner_ClosedSessionIsReported(t *testing.T) {
	site := sessiontest.NewSite()
	pool, h := newHandle(t, site)
	pool.Kill()

	refs, err := NewScanner(testOptions(), nil, nil).Scan(context.Background(), h, "alice")
	assert.Empty(t, refs)
	assert.ErrorIs(t, err, errors.ErrSessionClosed)
}

func TestScanner_Capture(t *testing.T) {
	_, h := newHandle(t, sessiontest.NewSite())

	shot, err := NewScanner(testOptions(), nil, nil).Capture(context.Background(), h, "101")
	require.NoError(t, err)
	assert.Equal(t, "snapshot:https://store.test/store/asset/101", string(shot))
}

func TestParseIdentifier(t *testing.T) {
	tests := []struct {
		href string
		id   string
		ok   bool
	}{
		{"/store/asset/101", "101", true},
		{"/store/asset/987654321/Some-Song", "987654321", true},
		{"https://create.roblox.com/store/asset/42?x=1", "42", true},
		{"/store/asset/", "", false},
		{"/store/asset/abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			id, ok := ParseIdentifier(tt.href)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.id, id)
		})
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Song One", DisplayName("  Song One  \nalice\n12 plays"))
	assert.Equal(t, "Solo", DisplayName("Solo"))
	assert.Empty(t, DisplayName("   \n  "))
	assert.Empty(t, DisplayName(""))
}
