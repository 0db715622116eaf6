package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"

	"github.com/onnwee/chatbot/command"
	"github.com/onnwee/chatbot/telemetry"
)

// discordMessageLimit is the maximum message length Discord accepts.
const discordMessageLimit = 2000

// discordSender is the part of *discordgo.Session used to reply.
type discordSender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord is the Discord gateway adapter.
type Discord struct {
	session    *discordgo.Session
	dispatcher Dispatcher
	workers    *workers
	log        *slog.Logger
	connected  atomic.Bool
}

// NewDiscord creates the session for a bot token. Nothing connects until Run.
func NewDiscord(token string, d Dispatcher, maxInFlight int) (*Discord, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentGuildMessages | discordgo.IntentDirectMessages | discordgo.IntentMessageContent
	return &Discord{
		session:    s,
		dispatcher: d,
		workers:    newWorkers(maxInFlight),
		log:        adapterLogger(command.Discord),
	}, nil
}

// Run opens the gateway and serves messages until ctx is done, then closes
// the session and waits for in-flight dispatches.
func (dc *Discord) Run(ctx context.Context) error {
	removeMsg := dc.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		dc.onMessage(ctx, s, m)
	})
	defer removeMsg()
	removeDisc := dc.session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		dc.connected.Store(false)
		telemetry.IncChatReconnect(string(command.Discord))
		dc.log.Warn("discord gateway disconnected; reconnecting")
	})
	defer removeDisc()
	removeReady := dc.session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		dc.connected.Store(true)
		dc.log.Info("discord ready", slog.String("user", r.User.Username), slog.Int("guilds", len(r.Guilds)))
	})
	defer removeReady()

	if err := dc.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	<-ctx.Done()
	dc.connected.Store(false)
	err := dc.session.Close()
	dc.workers.wait()
	if err != nil {
		return fmt.Errorf("close discord gateway: %w", err)
	}
	dc.log.Info("discord adapter stopped")
	return nil
}

// Ready reports whether the gateway session is established. It suits a
// readiness check.
func (dc *Discord) Ready(context.Context) error {
	if !dc.connected.Load() {
		return errors.New("discord gateway not connected")
	}
	return nil
}

func (dc *Discord) onMessage(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate) {
	selfID := ""
	if s.State != nil && s.State.User != nil {
		selfID = s.State.User.ID
	}
	ev, ok := discordEvent(m.Message, selfID)
	if !ok || !looksLikeCommand(ev.Text, dc.dispatcher.Prefix(command.Discord)) {
		return
	}
	msg := m.Message
	dc.workers.spawn(ctx, func() {
		dc.respond(ctx, s, msg, ev)
	})
}

func (dc *Discord) respond(ctx context.Context, s discordSender, m *discordgo.Message, ev command.Event) {
	reply := dc.dispatcher.Dispatch(ctx, ev)
	if reply == nil {
		return
	}
	for _, chunk := range splitMessage(reply.Text, discordMessageLimit) {
		_, err := s.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
			Content:   chunk,
			Reference: m.Reference(),
			// Replies never ping anyone, whatever a custom command contains.
			AllowedMentions: &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}},
		})
		if err != nil {
			telemetry.IncReplyFailed(string(command.Discord))
			dc.log.Error("failed to send reply", slog.String("channel", m.ChannelID), slog.Any("err", err))
			return
		}
	}
}

// discordEvent normalizes a gateway message. Messages from bots, including
// this one, are not events.
func discordEvent(m *discordgo.Message, selfID string) (command.Event, bool) {
	if m == nil || m.Author == nil || m.Author.Bot || m.Author.ID == selfID {
		return command.Event{}, false
	}
	ev := command.Event{
		Source:   command.Discord,
		UserID:   m.Author.ID,
		UserName: m.Author.Username,
		Text:     m.Content,
	}
	for _, u := range m.Mentions {
		if u != nil && u.ID != selfID {
			ev.Mention = u.ID
			break
		}
	}
	return ev, true
}
