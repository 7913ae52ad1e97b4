package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corpempire/internal/economy"
)

type fakeDiscord struct {
	channels []*discordgo.Channel
	dmOpens  int
	guilds   int
	sent     map[string][]*discordgo.MessageEmbed
	sendErr  error
}

func (f *fakeDiscord) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.dmOpens++
	return &discordgo.Channel{ID: "dm-" + recipientID}, nil
}

func (f *fakeDiscord) ChannelMessageSendEmbed(channelID string, e *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	if f.sent == nil {
		f.sent = map[string][]*discordgo.MessageEmbed{}
	}
	f.sent[channelID] = append(f.sent[channelID], e)
	return &discordgo.Message{ChannelID: channelID}, nil
}

func (f *fakeDiscord) GuildChannels(string, ...discordgo.RequestOption) ([]*discordgo.Channel, error) {
	f.guilds++
	return f.channels, nil
}

func TestNotifyUserCachesDMChannel(t *testing.T) {
	api := &fakeDiscord{}
	d := newDiscord(api, "guild", nil)
	ctx := context.Background()

	require.NoError(t, d.NotifyUser(ctx, "42", economy.Message{Title: "one"}))
	require.NoError(t, d.NotifyUser(ctx, "42", economy.Message{Title: "two"}))
	assert.Equal(t, 1, api.dmOpens)
	assert.Len(t, api.sent["dm-42"], 2)
}

func TestBroadcastPicksPreferredTextChannel(t *testing.T) {
	api := &fakeDiscord{channels: []*discordgo.Channel{
		{ID: "voice", Name: "admin-economy", Type: discordgo.ChannelTypeGuildVoice},
		{ID: "log", Name: "admin-log", Type: discordgo.ChannelTypeGuildText},
		{ID: "reports", Name: "economic-reports", Type: discordgo.ChannelTypeGuildText},
		{ID: "general", Name: "general", Type: discordgo.ChannelTypeGuildText},
	}}
	d := newDiscord(api, "guild", nil)
	ctx := context.Background()

	require.NoError(t, d.Broadcast(ctx, economy.ChannelAdmin, economy.Message{Title: "report"}))
	require.NoError(t, d.Broadcast(ctx, economy.ChannelAdmin, economy.Message{Title: "report"}))
	require.NoError(t, d.Broadcast(ctx, economy.ChannelMarket, economy.Message{Title: "event"}))
	assert.Len(t, api.sent["reports"], 2)
	assert.Len(t, api.sent["general"], 1)
	assert.Equal(t, 2, api.guilds)
}

func TestBroadcastFailures(t *testing.T) {
	ctx := context.Background()

	err := newDiscord(&fakeDiscord{}, "", nil).Broadcast(ctx, economy.ChannelAdmin, economy.Message{})
	assert.ErrorContains(t, err, "no guild configured")

	err = newDiscord(&fakeDiscord{}, "guild", nil).Broadcast(ctx, economy.ChannelMarket, economy.Message{})
	assert.ErrorContains(t, err, "no channel matches")

	api := &fakeDiscord{sendErr: errors.New("rate limited")}
	err = newDiscord(api, "guild", nil).NotifyUser(ctx, "7", economy.Message{})
	assert.ErrorContains(t, err, "rate limited")
}

func TestEmbedConversion(t *testing.T) {
	ts := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	e := embed(economy.Message{
		Title:       "Monthly Report",
		Description: "done",
		Color:       0x00ff00,
		Fields:      []economy.Field{{Name: "Revenue", Value: "$10", Inline: true}},
		Footer:      "period 2026-10",
		Timestamp:   ts,
	})
	assert.Equal(t, "Monthly Report", e.Title)
	assert.Equal(t, 0x00ff00, e.Color)
	require.Len(t, e.Fields, 1)
	assert.True(t, e.Fields[0].Inline)
	require.NotNil(t, e.Footer)
	assert.Equal(t, "period 2026-10", e.Footer.Text)
	assert.Equal(t, "2026-10-01T00:00:00Z", e.Timestamp)

	bare := embed(economy.Message{Title: "x"})
	assert.Nil(t, bare.Footer)
	assert.Empty(t, bare.Timestamp)
}

func TestLogNotifierWritesStructuredRecords(t *testing.T) {
	var buf bytes.Buffer
	n := NewLog(slog.New(slog.NewJSONHandler(&buf, nil)))
	ctx := context.Background()

	require.NoError(t, n.NotifyUser(ctx, "u1", economy.Message{Title: "Loan Defaulted", Fields: []economy.Field{{Name: "Balance", Value: "$5"}}}))
	require.NoError(t, n.Broadcast(ctx, economy.ChannelMarket, economy.Message{Title: "Market Event Alert!"}))
	out := buf.String()
	assert.Contains(t, out, `"user_id":"u1"`)
	assert.Contains(t, out, `"Balance":"$5"`)
	assert.Contains(t, out, `"title":"Market Event Alert!"`)
}
