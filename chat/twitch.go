package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/onnwee/chatbot/command"
	"github.com/onnwee/chatbot/telemetry"
)

// twitchMessageLimit is the maximum PRIVMSG length Twitch accepts.
const twitchMessageLimit = 500

// twitchSender is the part of *twitch.Client used to reply.
type twitchSender interface {
	Reply(channel, parentMsgID, text string)
}

// TwitchOptions configures the Twitch adapter.
type TwitchOptions struct {
	Channel  string
	Username string
	Tokens   oauth2.TokenSource
	// MessagesPer30s paces outbound messages; 20 when zero.
	MessagesPer30s int
	MaxInFlight    int
	// MaxBackoff caps the reconnect delay; 2 minutes when zero.
	MaxBackoff time.Duration
}

// Twitch is the Twitch IRC adapter.
type Twitch struct {
	opts       TwitchOptions
	dispatcher Dispatcher
	limiter    *rate.Limiter
	workers    *workers
	log        *slog.Logger
	connected  atomic.Bool
}

// NewTwitch builds the adapter. Nothing connects until Run.
func NewTwitch(d Dispatcher, opts TwitchOptions) *Twitch {
	if opts.MessagesPer30s <= 0 {
		opts.MessagesPer30s = 20
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 2 * time.Minute
	}
	opts.Channel = strings.ToLower(strings.TrimPrefix(opts.Channel, "#"))
	every := 30 * time.Second / time.Duration(opts.MessagesPer30s)
	return &Twitch{
		opts:       opts,
		dispatcher: d,
		limiter:    rate.NewLimiter(rate.Every(every), 1),
		workers:    newWorkers(opts.MaxInFlight),
		log:        adapterLogger(command.Twitch).With(slog.String("channel", opts.Channel)),
	}
}

// Run keeps an IRC connection open until ctx is done, reconnecting with
// exponential backoff. Each attempt takes a fresh token from the token source.
func (t *Twitch) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		err := t.connectOnce(ctx)
		if ctx.Err() != nil {
			t.connected.Store(false)
			t.workers.wait()
			t.log.Info("twitch adapter stopped")
			return nil
		}
		if t.connected.Swap(false) {
			backoff = time.Second
		}
		telemetry.IncChatReconnect(string(command.Twitch))
		t.log.Warn("twitch connection lost; reconnecting", slog.Duration("backoff", backoff), slog.Any("err", err))
		select {
		case <-ctx.Done():
			t.workers.wait()
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > t.opts.MaxBackoff {
			backoff = t.opts.MaxBackoff
		}
	}
}

// Ready reports whether the IRC connection is up.
func (t *Twitch) Ready(context.Context) error {
	if !t.connected.Load() {
		return errors.New("twitch irc not connected")
	}
	return nil
}

func (t *Twitch) connectOnce(ctx context.Context) error {
	tok, err := t.opts.Tokens.Token()
	if err != nil {
		return fmt.Errorf("twitch token: %w", err)
	}
	client := twitch.NewClient(t.opts.Username, "oauth:"+tok.AccessToken)
	client.OnConnect(func() {
		t.connected.Store(true)
		t.log.Info("twitch connected")
	})
	client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		ev, ok := twitchEvent(msg, t.opts.Username)
		if !ok || !looksLikeCommand(ev.Text, t.dispatcher.Prefix(command.Twitch)) {
			return
		}
		t.workers.spawn(ctx, func() {
			t.respond(ctx, client, msg.Channel, msg.ID, ev)
		})
	})
	client.Join(t.opts.Channel)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = client.Disconnect()
		case <-done:
		}
	}()

	err = client.Connect()
	if errors.Is(err, twitch.ErrClientDisconnected) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (t *Twitch) respond(ctx context.Context, s twitchSender, channel, parentID string, ev command.Event) {
	reply := t.dispatcher.Dispatch(ctx, ev)
	if reply == nil {
		return
	}
	// IRC messages are single-line.
	text := strings.Join(strings.Fields(reply.Text), " ")
	for _, chunk := range splitMessage(text, twitchMessageLimit) {
		if err := t.limiter.Wait(ctx); err != nil {
			telemetry.IncReplyFailed(string(command.Twitch))
			t.log.Warn("reply abandoned", slog.Any("err", err))
			return
		}
		s.Reply(channel, parentID, chunk)
	}
}

// twitchEvent normalizes a PRIVMSG. The bot's own messages are not events.
// IRC carries no structured mentions, so Mention stays empty.
func twitchEvent(msg twitch.PrivateMessage, botUsername string) (command.Event, bool) {
	if msg.User.ID == "" || strings.EqualFold(msg.User.Name, botUsername) {
		return command.Event{}, false
	}
	name := msg.User.DisplayName
	if name == "" {
		name = msg.User.Name
	}
	return command.Event{
		Source:   command.Twitch,
		UserID:   msg.User.ID,
		UserName: name,
		Text:     msg.Message,
	}, true
}
