package channel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"vargasjr/internal/domain"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

const slackMaxMsgLen = 4000

// Slack posts agent replies to Slack channels and, when an app-level
// token is configured, records inbound channel messages via Socket Mode.
type Slack struct {
	appToken string
	client   *slack.Client
	logger   *slog.Logger
	botUID   string
}

// SlackConfig configures the Slack channel.
type SlackConfig struct {
	BotToken string
	AppToken string
	APIURL   string // override for tests; must end in "/"
	Logger   *slog.Logger
}

func NewSlack(cfg SlackConfig) *Slack {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	opts := []slack.Option{}
	if cfg.AppToken != "" {
		opts = append(opts, slack.OptionAppLevelToken(cfg.AppToken))
	}
	if cfg.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(cfg.APIURL))
	}
	return &Slack{
		appToken: cfg.AppToken,
		client:   slack.New(cfg.BotToken, opts...),
		logger:   cfg.Logger,
	}
}

// PostMessage implements domain.ChatPoster. Long text is split into
// several messages.
func (s *Slack) PostMessage(ctx context.Context, channel, text string) error {
	for _, chunk := range splitMessage(text, slackMaxMsgLen) {
		_, _, err := s.client.PostMessageContext(ctx, channel, slack.MsgOptionText(chunk, false))
		if err != nil {
			return fmt.Errorf("slack post to %s: %w", channel, err)
		}
	}
	return nil
}

// Healthy checks the bot token.
func (s *Slack) Healthy(ctx context.Context) error {
	_, err := s.client.AuthTestContext(ctx)
	return err
}

// Listen connects via Socket Mode and ingests channel messages until ctx
// is done. The inbox is named after the Slack channel.
func (s *Slack) Listen(ctx context.Context, sink domain.Ingestor) error {
	if s.appToken == "" {
		return fmt.Errorf("slack listen: no app token configured")
	}
	auth, err := s.client.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth: %w", err)
	}
	s.botUID = auth.UserID
	s.logger.Info("slack listener connected", "user", auth.User, "user_id", auth.UserID)

	socket := socketmode.New(s.client)
	go func() {
		for evt := range socket.Events {
			switch evt.Type {
			case socketmode.EventTypeEventsAPI:
				apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok {
					continue
				}
				socket.Ack(*evt.Request)
				s.handleEventsAPI(ctx, sink, apiEvent)
			default:
				if evt.Request != nil {
					socket.Ack(*evt.Request)
				}
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- socket.RunContext(ctx)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("slack listener disconnecting")
		return nil
	case err := <-errCh:
		return fmt.Errorf("slack socket mode: %w", err)
	}
}

func (s *Slack) handleEventsAPI(ctx context.Context, sink domain.Ingestor, event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	var user, channelID, text, ts, threadTS string
	switch ev := event.InnerEvent.Data.(type) {
	case *slackevents.MessageEvent:
		if ev.User == s.botUID || ev.User == "" || ev.SubType != "" {
			return
		}
		user, channelID, text, ts, threadTS = ev.User, ev.Channel, ev.Text, ev.TimeStamp, ev.ThreadTimeStamp
	case *slackevents.AppMentionEvent:
		user, channelID, ts, threadTS = ev.User, ev.Channel, ev.TimeStamp, ev.ThreadTimeStamp
		text = stripMention(ev.Text)
	default:
		return
	}

	in, err := s.inbound(ctx, user, channelID, text)
	if err != nil {
		s.logger.Warn("slack message dropped", "channel", channelID, "err", err)
		return
	}
	in.ExternalID = ts
	in.ThreadID = threadTS
	msg, err := sink.Ingest(ctx, in)
	if err != nil {
		s.logger.Error("slack ingest failed", "channel", channelID, "err", err)
		return
	}
	s.logger.Info("slack message received", "message_id", msg.ID, "inbox", in.InboxName, "content_len", len(text))
}

// inbound resolves the channel name and the sender's profile.
func (s *Slack) inbound(ctx context.Context, userID, channelID, text string) (domain.Inbound, error) {
	ch, err := s.client.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{ChannelID: channelID})
	if err != nil {
		return domain.Inbound{}, fmt.Errorf("channel info: %w", err)
	}
	u, err := s.client.GetUserInfoContext(ctx, userID)
	if err != nil {
		return domain.Inbound{}, fmt.Errorf("user info: %w", err)
	}
	name := u.Profile.DisplayName
	if name == "" {
		name = u.Name
	}
	return domain.Inbound{
		InboxName: ch.Name,
		Kind:      domain.KindSlack,
		Contact: domain.Contact{
			Email:            u.Profile.Email,
			FullName:         u.RealName,
			SlackDisplayName: name,
		},
		Body:     text,
		Metadata: map[string]string{"channel_id": channelID, "user_id": userID},
	}, nil
}

func stripMention(text string) string {
	if strings.HasPrefix(text, "<@") {
		if idx := strings.Index(text, ">"); idx >= 0 {
			return strings.TrimSpace(text[idx+1:])
		}
	}
	return text
}

// splitMessage cuts msg into chunks of at most maxLen bytes, preferring
// line breaks in the second half of a chunk.
func splitMessage(msg string, maxLen int) []string {
	if len(msg) <= maxLen {
		return []string{msg}
	}

	var chunks []string
	for len(msg) > 0 {
		if len(msg) <= maxLen {
			chunks = append(chunks, msg)
			break
		}
		cut := maxLen
		if idx := strings.LastIndex(msg[:maxLen], "\n"); idx > maxLen/2 {
			cut = idx + 1
		}
		chunks = append(chunks, msg[:cut])
		msg = msg[cut:]
	}
	return chunks
}
