package notifier

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/gdg-garage/facility-api/internal/models"
)

// discordMessageLimit is Discord's maximum message length.
const discordMessageLimit = 2000

type Notifier interface {
	NotifyAnnouncement(author models.User, announcement models.Announcement) error
}

// MessageSender is the part of a discordgo session the notifier uses.
type MessageSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type DiscordNotifier struct {
	session   MessageSender
	channelID string
}

func NewDiscordNotifier(session MessageSender, channelID string) *DiscordNotifier {
	return &DiscordNotifier{
		session:   session,
		channelID: channelID,
	}
}

// NewDiscordSession opens a bot session. It returns nil, nil when no token
// is configured.
func NewDiscordSession(token string) (*discordgo.Session, error) {
	if token == "" {
		return nil, nil
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return session, nil
}

func (n *DiscordNotifier) NotifyAnnouncement(author models.User, announcement models.Announcement) error {
	if n.session == nil {
		return fmt.Errorf("discord session is nil")
	}
	if n.channelID == "" {
		return fmt.Errorf("discord channel ID is empty")
	}

	_, err := n.session.ChannelMessageSend(n.channelID, FormatAnnouncement(author, announcement))
	if err != nil {
		return fmt.Errorf("send discord message: %w", err)
	}
	return nil
}

func FormatAnnouncement(author models.User, announcement models.Announcement) string {
	message := fmt.Sprintf("📢 **%s**\n%s\n-- %s, %s",
		announcement.Title,
		announcement.Content,
		author.Name,
		announcement.CreatedAt.Format("2006-01-02"),
	)
	if r := []rune(message); len(r) > discordMessageLimit {
		message = string(r[:discordMessageLimit-1]) + "…"
	}
	return message
}
