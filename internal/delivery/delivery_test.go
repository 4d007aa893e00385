package delivery

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/audiowatch/internal/errors"
)

const hookURL = "https://discord.test/api/webhooks/1/token"

func sample() Notification {
	return Notification{
		Producer: "alice",
		Name:     "Song One",
		Language: "en",
		ItemID:   "101",
		URL:      "https://store.test/store/asset/101",
		Snapshot: &Attachment{Name: "101.png", ContentType: "image/png", Data: []byte("png")},
		Artifact: &Attachment{Name: "101.ogg", ContentType: "audio/ogg", Data: []byte("ogg-bytes")},
	}
}

func TestNotification_Content(t *testing.T) {
	want := "🎵 **New Audio**\n" +
		"**Artist:** alice\n" +
		"**Name:** Song One\n" +
		"**Language:** en\n" +
		"**Asset ID:** `101`\n" +
		"https://store.test/store/asset/101"
	assert.Equal(t, want, sample().Content())
}

func TestNotification_Attachments(t *testing.T) {
	n := sample()
	names := func(as []Attachment) []string {
		var out []string
		for _, a := range as {
			out = append(out, a.Name)
		}
		return out
	}
	assert.Equal(t, []string{"101.png", "101.ogg"}, names(n.Attachments()))

	n.Artifact = nil
	n.Snapshot.Data = nil
	assert.Empty(t, n.Attachments())
}

func newMockedWebhook(t *testing.T, maxBytes int64) *WebhookDeliverer {
	t.Helper()
	w := NewWebhookDeliverer(hookURL, time.Second, maxBytes, nil)
	httpmock.ActivateNonDefault(w.client.GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return w
}

func TestWebhook_UploadsAttachments(t *testing.T) {
	w := newMockedWebhook(t, 0)

	var body string
	httpmock.RegisterResponder(http.MethodPost, hookURL, func(req *http.Request) (*http.Response, error) {
		data, _ := io.ReadAll(req.Body)
		body = string(data)
		assert.True(t, strings.HasPrefix(req.Header.Get("Content-Type"), "multipart/form-data"))
		return httpmock.NewStringResponse(200, "{}"), nil
	})

	require.NoError(t, w.Deliver(context.Background(), "new-audio", sample()))
	assert.Contains(t, body, `name="payload_json"`)
	assert.Contains(t, body, `filename="101.ogg"`)
	assert.Contains(t, body, `filename="101.png"`)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestWebhook_FallsBackToTextOnly(t *testing.T) {
	w := newMockedWebhook(t, 0)

	var kinds []string
	httpmock.RegisterResponder(http.MethodPost, hookURL, func(req *http.Request) (*http.Response, error) {
		ct := req.Header.Get("Content-Type")
		kinds = append(kinds, ct)
		if strings.HasPrefix(ct, "multipart/") {
			return httpmock.NewStringResponse(413, "too large"), nil
		}
		return httpmock.NewStringResponse(204, ""), nil
	})

	require.NoError(t, w.Deliver(context.Background(), "new-audio", sample()))
	require.Len(t, kinds, 2)
	assert.Equal(t, "application/json", kinds[1])
}

func TestWebhook_SkipsOversizedAttachments(t *testing.T) {
	w := newMockedWebhook(t, 4)

	var body string
	httpmock.RegisterResponder(http.MethodPost, hookURL, func(req *http.Request) (*http.Response, error) {
		data, _ := io.ReadAll(req.Body)
		body = string(data)
		return httpmock.NewStringResponse(200, "{}"), nil
	})

	require.NoError(t, w.Deliver(context.Background(), "new-audio", sample()))
	assert.Contains(t, body, `filename="101.png"`)
	assert.NotContains(t, body, `filename="101.ogg"`)
}

func TestWebhook_FailureIsRetryable(t *testing.T) {
	w := newMockedWebhook(t, 0)
	httpmock.RegisterResponder(http.MethodPost, hookURL, httpmock.NewStringResponder(500, "down"))

	n := sample()
	n.Snapshot, n.Artifact = nil, nil
	err := w.Deliver(context.Background(), "new-audio", n)
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err))

	var de *errors.DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "101", de.ItemID)
}
