package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// DiscordAdapter talks to Discord through the bot gateway.
type DiscordAdapter struct {
	token       string
	channels    []string // broadcast targets; empty means first text channel per guild
	session     *discordgo.Session
	handler     MessageHandler
	connected   bool
	connectedAt time.Time
	lastError   string
	mu          sync.RWMutex
	logger      *zap.Logger
}

// NewDiscordAdapter creates a Discord adapter. channels lists the channel
// ids broadcasts go to.
func NewDiscordAdapter(token string, channels []string, logger *zap.Logger) *DiscordAdapter {
	return &DiscordAdapter{
		token:    token,
		channels: channels,
		logger:   logger,
	}
}

func (a *DiscordAdapter) Platform() string { return "discord" }

func (a *DiscordAdapter) OnMessage(h MessageHandler) { a.handler = h }

func (a *DiscordAdapter) setError(msg string) {
	a.mu.Lock()
	a.lastError = msg
	a.connected = false
	a.mu.Unlock()
}

// Connect opens the Discord gateway websocket.
func (a *DiscordAdapter) Connect(_ context.Context) error {
	session, err := discordgo.New("Bot " + a.token)
	if err != nil {
		a.setError(fmt.Sprintf("session create: %v", err))
		return fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent
	session.AddHandler(a.onMessageCreate)

	if err := session.Open(); err != nil {
		a.setError(fmt.Sprintf("open failed: %v", err))
		return fmt.Errorf("discord open: %w", err)
	}

	a.mu.Lock()
	a.session = session
	a.connected = true
	a.connectedAt = time.Now()
	a.lastError = ""
	a.mu.Unlock()

	guildCount := len(session.State.Guilds)
	if guildCount == 0 {
		a.logger.Warn("discord bot is not a member of any guild")
	}
	a.logger.Info("discord adapter connected",
		zap.String("user", session.State.User.Username),
		zap.Int("guilds", guildCount))
	return nil
}

func (a *DiscordAdapter) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}
	if a.handler == nil {
		return
	}
	a.handler(&InboundMessage{
		Platform:  "discord",
		ChannelID: m.ChannelID,
		UserID:    m.Author.ID,
		UserName:  m.Author.Username,
		Content:   m.Content,
		Timestamp: m.Timestamp,
		ReplyTo:   m.ID,
	})
}

func (a *DiscordAdapter) sessionOrErr() (*discordgo.Session, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.session == nil {
		return nil, fmt.Errorf("discord: not connected")
	}
	return a.session, nil
}

// Send posts a message to a Discord channel, as a reply when ReplyTo is set.
func (a *DiscordAdapter) Send(_ context.Context, msg *OutboundMessage) error {
	s, err := a.sessionOrErr()
	if err != nil {
		return err
	}
	if msg.ReplyTo != "" {
		_, err = s.ChannelMessageSendReply(msg.ChannelID, msg.Content, &discordgo.MessageReference{
			MessageID: msg.ReplyTo,
			ChannelID: msg.ChannelID,
		})
	} else {
		_, err = s.ChannelMessageSend(msg.ChannelID, msg.Content)
	}
	if err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	return nil
}

// Broadcast posts to the configured channels, or to the first writable text
// channel of every guild when none are configured.
func (a *DiscordAdapter) Broadcast(_ context.Context, msg *BroadcastMessage) error {
	s, err := a.sessionOrErr()
	if err != nil {
		return err
	}
	content := msg.text("**")

	if len(a.channels) > 0 {
		var failed int
		for _, id := range a.channels {
			if _, err := s.ChannelMessageSend(id, content); err != nil {
				a.logger.Warn("discord broadcast to channel failed",
					zap.String("channel", id), zap.Error(err))
				failed++
			}
		}
		if failed == len(a.channels) {
			return fmt.Errorf("discord broadcast: all %d channels failed", failed)
		}
		return nil
	}

	for _, guild := range s.State.Guilds {
		channels, err := s.GuildChannels(guild.ID)
		if err != nil {
			a.logger.Warn("discord list channels failed",
				zap.String("guild", guild.ID), zap.Error(err))
			continue
		}
		for _, ch := range channels {
			if ch.Type != discordgo.ChannelTypeGuildText {
				continue
			}
			if _, err := s.ChannelMessageSend(ch.ID, content); err == nil {
				break
			}
		}
	}
	return nil
}

// Close shuts down the Discord session.
func (a *DiscordAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = false
	if a.session != nil {
		return a.session.Close()
	}
	return nil
}

func (a *DiscordAdapter) Status() AdapterStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := AdapterStatus{
		Platform:  "discord",
		Connected: a.connected,
		Error:     a.lastError,
	}
	if a.connected && a.session != nil && a.session.State != nil {
		t := a.connectedAt
		s.ConnectedAt = &t
		s.Details = fmt.Sprintf("guilds=%d", len(a.session.State.Guilds))
	}
	return s
}
