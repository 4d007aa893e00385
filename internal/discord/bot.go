// Package discord delivers notifications through a Discord bot and serves
// the /track and /list slash commands.
package discord

import (
	"bytes"
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/Iron-Ham/audiowatch/internal/delivery"
	"github.com/Iron-Ham/audiowatch/internal/errors"
	"github.com/Iron-Ham/audiowatch/internal/logging"
)

// Bot is a connected Discord bot. It implements delivery.Deliverer.
type Bot struct {
	session *discordgo.Session
	logger  *logging.Logger
}

// NewBot creates a bot for token. Call Open to connect.
func NewBot(token string, logger *logging.Logger) (*Bot, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds
	return &Bot{session: s, logger: logger}, nil
}

// Open connects the gateway. Guild and channel state is filled in as the
// gateway delivers it.
func (b *Bot) Open() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	b.logger.Info("discord bot connected")
	return nil
}

// Close disconnects the gateway.
func (b *Bot) Close() error {
	return b.session.Close()
}

// Deliver sends n to the first text channel named channel in any joined
// guild. A missing channel returns an error wrapping ErrChannelNotFound.
func (b *Bot) Deliver(ctx context.Context, channel string, n delivery.Notification) error {
	b.session.State.RLock()
	channelID, ok := FindChannel(b.session.State.Guilds, channel)
	b.session.State.RUnlock()
	if !ok {
		return errors.NewDeliveryError("locate channel", errors.ErrChannelNotFound).
			WithChannel(channel).WithItem(n.ItemID)
	}

	_, err := b.session.ChannelMessageSendComplex(channelID, Message(n), discordgo.WithContext(ctx))
	if err != nil {
		return errors.NewDeliveryError("send message", err).WithChannel(channel).WithItem(n.ItemID)
	}
	return nil
}

// FindChannel returns the ID of the first guild text channel called name.
// Guilds and channels are searched in the order given.
func FindChannel(guilds []*discordgo.Guild, name string) (string, bool) {
	for _, g := range guilds {
		for _, c := range g.Channels {
			if c.Name == name && c.Type == discordgo.ChannelTypeGuildText {
				return c.ID, true
			}
		}
	}
	return "", false
}

// Message builds the Discord message for n.
func Message(n delivery.Notification) *discordgo.MessageSend {
	msg := &discordgo.MessageSend{Content: n.Content()}
	for _, a := range n.Attachments() {
		msg.Files = append(msg.Files, &discordgo.File{
			Name:        a.Name,
			ContentType: a.ContentType,
			Reader:      bytes.NewReader(a.Data),
		})
	}
	return msg
}
