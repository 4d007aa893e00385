package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Iron-Ham/audiowatch/internal/errors"
	"github.com/Iron-Ham/audiowatch/internal/logging"
)

// WebhookDeliverer posts notifications to a single Discord webhook. The
// webhook is bound to one channel, so the channel name is only logged.
type WebhookDeliverer struct {
	client   *resty.Client
	url      string
	maxBytes int64
	logger   *logging.Logger
}

// NewWebhookDeliverer creates a deliverer for webhookURL. Attachments larger
// than maxBytes are left off (0 means no limit).
func NewWebhookDeliverer(webhookURL string, timeout time.Duration, maxBytes int64, logger *logging.Logger) *WebhookDeliverer {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &WebhookDeliverer{
		client:   resty.New().SetTimeout(timeout),
		url:      webhookURL,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

type webhookPayload struct {
	Content string `json:"content"`
}

// Deliver posts n with its attachments. If the upload is rejected, the text
// alone is posted so the item is still announced.
func (w *WebhookDeliverer) Deliver(ctx context.Context, channel string, n Notification) error {
	payload, err := json.Marshal(webhookPayload{Content: n.Content()})
	if err != nil {
		return errors.NewDeliveryError("encode payload", err).WithItem(n.ItemID)
	}

	attachments := w.fitting(n.Attachments())
	if len(attachments) > 0 {
		req := w.client.R().
			SetContext(ctx).
			SetMultipartFormData(map[string]string{"payload_json": string(payload)})
		for i, a := range attachments {
			req.SetMultipartField(fmt.Sprintf("files[%d]", i), a.Name, a.ContentType, bytes.NewReader(a.Data))
		}
		err := w.check(req.Post(w.url))
		if err == nil {
			return nil
		}
		w.logger.Warn("webhook upload failed, sending text only",
			"item", n.ItemID, "channel", channel, "error", err)
	}

	err = w.check(w.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(w.url))
	if err != nil {
		return errors.NewDeliveryError("post webhook", err).WithItem(n.ItemID).WithChannel(channel)
	}
	return nil
}

func (w *WebhookDeliverer) fitting(in []Attachment) []Attachment {
	var out []Attachment
	for _, a := range in {
		if w.maxBytes > 0 && int64(len(a.Data)) > w.maxBytes {
			w.logger.Info("attachment too large", "name", a.Name, "bytes", len(a.Data))
			continue
		}
		out = append(out, a)
	}
	return out
}

func (w *WebhookDeliverer) check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned %s", resp.Status())
	}
	return nil
}
