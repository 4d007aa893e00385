// Package delivery defines the outbound notification and the deliverers
// that post it.
//
// A [Deliverer] sends a [Notification] to a channel addressed by name. When
// the channel does not exist it returns an error wrapping
// errors.ErrChannelNotFound; the worker then leaves the item unrecorded so
// it is delivered once the channel appears.
package delivery

import (
	"context"
	"fmt"
	"strings"
)

// Attachment is a file sent along with a notification.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Notification announces one newly discovered item.
type Notification struct {
	Producer string
	Name     string
	Language string
	ItemID   string
	URL      string
	Snapshot *Attachment
	Artifact *Attachment
}

// Deliverer posts notifications to a named channel.
type Deliverer interface {
	Deliver(ctx context.Context, channel string, n Notification) error
}

// Content renders the message text.
func (n Notification) Content() string {
	var sb strings.Builder
	sb.WriteString("🎵 **New Audio**\n")
	fmt.Fprintf(&sb, "**Artist:** %s\n", n.Producer)
	fmt.Fprintf(&sb, "**Name:** %s\n", n.Name)
	fmt.Fprintf(&sb, "**Language:** %s\n", n.Language)
	fmt.Fprintf(&sb, "**Asset ID:** `%s`\n", n.ItemID)
	sb.WriteString(n.URL)
	return sb.String()
}

// Attachments returns the present attachments, snapshot first.
func (n Notification) Attachments() []Attachment {
	var out []Attachment
	for _, a := range []*Attachment{n.Snapshot, n.Artifact} {
		if a != nil && len(a.Data) > 0 {
			out = append(out, *a)
		}
	}
	return out
}

// Func adapts a function to the Deliverer interface.
type Func func(ctx context.Context, channel string, n Notification) error

// Deliver calls f.
func (f Func) Deliver(ctx context.Context, channel string, n Notification) error {
	return f(ctx, channel, n)
}
