package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/Iron-Ham/audiowatch/internal/errors"
	"github.com/Iron-Ham/audiowatch/internal/ledger"
	"github.com/Iron-Ham/audiowatch/internal/util"
)

// maxMessageLen is Discord's content limit.
const maxMessageLen = 2000

// commandTimeout bounds handling of one interaction.
const commandTimeout = 10 * time.Second

// Tracker is what the slash commands act on.
type Tracker interface {
	// Track starts monitoring producer; ErrAlreadyTracked if it is already.
	Track(ctx context.Context, producer string) error
	Summaries() []ledger.Summary
}

// Commands are the application commands the bot registers.
var Commands = []*discordgo.ApplicationCommand{
	{
		Name:        "track",
		Description: "Track an artist and monitor for new audios",
		Options: []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "artist",
			Description: "Artist name, exactly as shown in the store",
			Required:    true,
		}},
	},
	{
		Name:        "list",
		Description: "List all monitored artists",
	},
}

// RegisterCommands creates the slash commands and routes interactions to
// tracker. The bot must be open.
func (b *Bot) RegisterCommands(tracker Tracker) error {
	b.session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type != discordgo.InteractionApplicationCommand {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		reply := Reply(ctx, tracker, i.ApplicationCommandData())
		err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{Content: reply},
		})
		if err != nil {
			b.logger.Warn("interaction response failed", "command", i.ApplicationCommandData().Name, "error", err)
		}
	})

	appID := b.session.State.User.ID
	for _, cmd := range Commands {
		if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
			return fmt.Errorf("register /%s: %w", cmd.Name, err)
		}
	}
	b.logger.Info("slash commands registered", "count", len(Commands))
	return nil
}

// Reply computes the response text for a slash command.
func Reply(ctx context.Context, tracker Tracker, data discordgo.ApplicationCommandInteractionData) string {
	switch data.Name {
	case "track":
		var producer string
		for _, opt := range data.Options {
			if opt.Name == "artist" {
				producer = strings.TrimSpace(opt.StringValue())
			}
		}
		return TrackReply(producer, tracker.Track(ctx, producer))
	case "list":
		return ListReply(tracker.Summaries())
	default:
		return fmt.Sprintf("Unknown command %q", data.Name)
	}
}

// maxNameLen caps producer names echoed back in replies.
const maxNameLen = 100

// TrackReply renders the outcome of a track request.
func TrackReply(producer string, err error) string {
	producer = util.Ellipsize(producer, maxNameLen)
	switch {
	case producer == "":
		return "⚠️ Artist name must not be empty"
	case err == nil:
		return fmt.Sprintf("✅ Now monitoring **%s**", producer)
	case errors.Is(err, errors.ErrAlreadyTracked):
		return fmt.Sprintf("ℹ️ Already monitoring **%s**", producer)
	default:
		return fmt.Sprintf("❌ Could not track **%s**: %v", producer, err)
	}
}

// ListReply renders the tracked producers, truncated to fit one message.
func ListReply(summaries []ledger.Summary) string {
	if len(summaries) == 0 {
		return "No artists are currently being monitored."
	}

	var sb strings.Builder
	sb.WriteString("**🎧 Currently Monitored Artists:**\n")
	for i, s := range summaries {
		line := fmt.Sprintf("- **%s** (%d audios)\n", util.Ellipsize(s.Producer, maxNameLen), s.Count)
		more := fmt.Sprintf("…and %d more\n", len(summaries)-i)
		if sb.Len()+len(line)+len(more) > maxMessageLen {
			sb.WriteString(more)
			break
		}
		sb.WriteString(line)
	}
	return sb.String()
}
