package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"corpempire/internal/economy"
)

// ChannelNames lists, in preference order, the guild channel names that back
// each broadcast selector.
var ChannelNames = map[economy.Channel][]string{
	economy.ChannelAdmin:  {"admin-economy", "economic-reports", "admin-log"},
	economy.ChannelMarket: {"market-announcements", "general", "economy"},
}

type discordAPI interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	GuildChannels(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Channel, error)
}

// Discord delivers direct messages to players and embeds to guild channels.
type Discord struct {
	api     discordAPI
	guildID string
	log     *slog.Logger

	mu       sync.Mutex
	channels map[economy.Channel]string
	dms      map[string]string
}

// NewDiscord opens a bot session. Close releases it.
func NewDiscord(token, guildID string, logger *slog.Logger) (*Discord, *discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, nil, fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsDirectMessages
	if err := session.Open(); err != nil {
		return nil, nil, fmt.Errorf("discord open: %w", err)
	}
	return newDiscord(session, guildID, logger), session, nil
}

func newDiscord(api discordAPI, guildID string, logger *slog.Logger) *Discord {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discord{
		api:      api,
		guildID:  guildID,
		log:      logger,
		channels: map[economy.Channel]string{},
		dms:      map[string]string{},
	}
}

func (d *Discord) NotifyUser(ctx context.Context, userID string, msg economy.Message) error {
	channelID, err := d.dmChannel(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := d.api.ChannelMessageSendEmbed(channelID, embed(msg), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send dm to %s: %w", userID, err)
	}
	return nil
}

func (d *Discord) Broadcast(ctx context.Context, channel economy.Channel, msg economy.Message) error {
	channelID, err := d.guildChannel(ctx, channel)
	if err != nil {
		return err
	}
	if _, err := d.api.ChannelMessageSendEmbed(channelID, embed(msg), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("broadcast to %s: %w", channel, err)
	}
	return nil
}

func (d *Discord) dmChannel(ctx context.Context, userID string) (string, error) {
	d.mu.Lock()
	id, ok := d.dms[userID]
	d.mu.Unlock()
	if ok {
		return id, nil
	}
	ch, err := d.api.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("open dm with %s: %w", userID, err)
	}
	d.mu.Lock()
	d.dms[userID] = ch.ID
	d.mu.Unlock()
	return ch.ID, nil
}

func (d *Discord) guildChannel(ctx context.Context, channel economy.Channel) (string, error) {
	d.mu.Lock()
	id, ok := d.channels[channel]
	d.mu.Unlock()
	if ok {
		return id, nil
	}
	if d.guildID == "" {
		return "", fmt.Errorf("no guild configured for %s broadcasts", channel)
	}
	all, err := d.api.GuildChannels(d.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("list guild channels: %w", err)
	}
	byName := make(map[string]string, len(all))
	for _, ch := range all {
		if ch.Type == discordgo.ChannelTypeGuildText {
			byName[ch.Name] = ch.ID
		}
	}
	for _, name := range ChannelNames[channel] {
		if id, ok := byName[name]; ok {
			d.mu.Lock()
			d.channels[channel] = id
			d.mu.Unlock()
			return id, nil
		}
	}
	return "", fmt.Errorf("no channel matches %s selector", channel)
}

func embed(msg economy.Message) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       msg.Title,
		Description: msg.Description,
		Color:       msg.Color,
	}
	for _, f := range msg.Fields {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if msg.Footer != "" {
		e.Footer = &discordgo.MessageEmbedFooter{Text: msg.Footer}
	}
	if !msg.Timestamp.IsZero() {
		e.Timestamp = msg.Timestamp.UTC().Format(time.RFC3339)
	}
	return e
}
