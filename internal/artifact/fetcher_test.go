package artifact

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockedFetcher(t *testing.T, maxBytes int64) *Fetcher {
	t.Helper()
	f := NewFetcher(Options{
		BaseURL:  "https://assets.test/",
		Timeout:  time.Second,
		MaxBytes: maxBytes,
	}, nil)
	httpmock.ActivateNonDefault(f.client.GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return f
}

func audioResponder(status int, body, contentType string) httpmock.Responder {
	return func(*http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(status, body)
		resp.Header.Set("Content-Type", contentType)
		return resp, nil
	}
}

func TestFetcher_Fetch(t *testing.T) {
	f := newMockedFetcher(t, 0)
	httpmock.RegisterResponderWithQuery(http.MethodGet, "https://assets.test/v1/asset",
		"id=101", audioResponder(200, "OggS-data", "audio/ogg"))

	got := f.Fetch(context.Background(), "101")
	require.NotNil(t, got)
	assert.Equal(t, "101.ogg", got.Name)
	assert.Equal(t, "audio/ogg", got.ContentType)
	assert.Equal(t, []byte("OggS-data"), got.Data)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestFetcher_FailuresYieldNoArtifact(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
	}{
		{"not found", audioResponder(404, "missing", "text/plain")},
		{"server error", audioResponder(500, "", "text/plain")},
		{"empty body", audioResponder(200, "", "audio/ogg")},
		{"transport error", httpmock.NewErrorResponder(context.DeadlineExceeded)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newMockedFetcher(t, 0)
			httpmock.RegisterResponder(http.MethodGet, "=~^https://assets.test/v1/asset", tt.responder)

			assert.Nil(t, f.Fetch(context.Background(), "7"))
		})
	}
}

func TestFetcher_DropsOversizedArtifact(t *testing.T) {
	f := newMockedFetcher(t, 4)
	assert.Equal(t, 4, f.client.ResponseBodyLimit, "limit enforced while reading the body")

	httpmock.RegisterResponderWithQuery(http.MethodGet, "https://assets.test/v1/asset",
		"id=9", audioResponder(200, "12345", "audio/mpeg"))
	httpmock.RegisterResponderWithQuery(http.MethodGet, "https://assets.test/v1/asset",
		"id=10", audioResponder(200, "1234", "audio/mpeg"))

	assert.Nil(t, f.Fetch(context.Background(), "9"))

	got := f.Fetch(context.Background(), "10")
	require.NotNil(t, got, "an artifact at the limit is kept")
	assert.Equal(t, []byte("1234"), got.Data)
}

func TestFetcher_NoLimitByDefault(t *testing.T) {
	f := newMockedFetcher(t, 0)
	assert.Zero(t, f.client.ResponseBodyLimit)
}

func TestFetcher_SingleAttempt(t *testing.T) {
	f := newMockedFetcher(t, 0)
	httpmock.RegisterResponder(http.MethodGet, "=~^https://assets.test/v1/asset",
		audioResponder(503, "", "text/plain"))

	assert.Nil(t, f.Fetch(context.Background(), "9"))
	assert.Equal(t, 1, httpmock.GetTotalCallCount(), "no retries")
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".mp3", Extension("audio/mpeg"))
	assert.Equal(t, ".ogg", Extension("audio/ogg; codecs=vorbis"))
	assert.Equal(t, ".wav", Extension("audio/wav"))
	assert.Equal(t, ".ogg", Extension("application/octet-stream"))
	assert.Equal(t, ".ogg", Extension(""))
}
