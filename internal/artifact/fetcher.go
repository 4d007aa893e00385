// Package artifact downloads the audio file behind an item identifier.
package artifact

import (
	"context"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Iron-Ham/audiowatch/internal/errors"
	"github.com/Iron-Ham/audiowatch/internal/logging"
)

// Artifact is a downloaded audio file ready to attach to a notification.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// Options configures a Fetcher.
type Options struct {
	BaseURL string
	// Timeout bounds one fetch, redirects included.
	Timeout time.Duration
	// MaxBytes drops larger artifacts; 0 means no limit.
	MaxBytes int64
}

// Fetcher retrieves artifacts. It is safe for concurrent use.
type Fetcher struct {
	client   *resty.Client
	maxBytes int64
	logger   *logging.Logger
}

// NewFetcher creates a fetcher. A nil logger discards output.
func NewFetcher(opts Options, logger *logging.Logger) *Fetcher {
	if logger == nil {
		logger = logging.NopLogger()
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "audio/*")
	if opts.MaxBytes > 0 {
		client.SetResponseBodyLimit(int(opts.MaxBytes))
	}
	return &Fetcher{client: client, maxBytes: opts.MaxBytes, logger: logger}
}

// Fetch makes one request for id. Any failure (transport error, non-200
// status, empty or oversized body) returns nil: a missing artifact only
// degrades the notification.
func (f *Fetcher) Fetch(ctx context.Context, id string) *Artifact {
	log := f.logger.With("item", id)

	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParam("id", id).
		Get("/v1/asset")
	if errors.Is(err, resty.ErrResponseBodyTooLarge) {
		log.Info("artifact too large to attach", "limit", f.maxBytes)
		return nil
	}
	if err != nil {
		log.Debug("artifact fetch failed", "error", err)
		return nil
	}
	if resp.StatusCode() != http.StatusOK {
		log.Debug("artifact unavailable", "status", resp.StatusCode())
		return nil
	}

	data := resp.Body()
	if len(data) == 0 {
		return nil
	}

	contentType := resp.Header().Get("Content-Type")
	return &Artifact{
		Name:        id + Extension(contentType),
		ContentType: contentType,
		Data:        data,
	}
}

// Extension maps an audio content type to a file extension. Unknown types
// get ".ogg", the catalog's native format.
func Extension(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".ogg"
	}
	switch mediaType {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/flac", "audio/x-flac":
		return ".flac"
	default:
		return ".ogg"
	}
}
