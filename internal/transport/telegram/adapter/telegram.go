package adapter

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "hwbot/internal/transport"
	logx "hwbot/pkg/logx"
)

// Config configures the outbound Telegram adapter.
type Config struct {
	Token string
	// APIURL overrides the Bot API base URL (tests, self-hosted bot api).
	APIURL string
	// Timeout bounds a single Bot API call. telebot takes no context, so
	// this is the only per-attempt limit on a send.
	Timeout time.Duration
}

// Adapter is a send-only Telegram transport. hwbot never reads updates,
// so the bot is created offline and the long poller is never started.
type Adapter struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		URL:     strings.TrimSpace(cfg.APIURL),
		Client:  &http.Client{Timeout: timeout},
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{cfg: cfg, log: log, bot: b}, nil
}

// chatRecipient lets telebot address a chat by its raw identifier.
type chatRecipient string

func (c chatRecipient) Recipient() string { return string(c) }

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return kit.MessageRef{}, err
	}
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	chat := chatRecipient(strings.TrimSpace(to.ChatID))
	if chat == "" {
		return kit.MessageRef{}, errors.New("telegram chat id is empty")
	}
	sendOpt := &tele.SendOptions{
		ParseMode:             opt.ParseMode,
		DisableWebPagePreview: opt.DisablePreview,
		ThreadID:              to.ThreadID,
	}

	msg, err := a.bot.Send(chat, text, sendOpt)
	if err != nil {
		return kit.MessageRef{}, err
	}
	a.log.Debug("telegram message sent", logx.String("chat_id", to.ChatID), logx.Int("message_id", msg.ID))
	return kit.MessageRef{ChatID: to.ChatID, MessageID: msg.ID}, nil
}
