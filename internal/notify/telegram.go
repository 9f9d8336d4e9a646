package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-telegram/bot"
)

// ErrMissingCredentials is returned when the bot token or chat id is empty.
var ErrMissingCredentials = errors.New("telegram: bot token and chat id are required")

// TelegramOptions configures a Telegram notifier.
type TelegramOptions struct {
	Token  string
	ChatID string // numeric id or @channel name
	// APIURL overrides https://api.telegram.org, mainly for tests.
	APIURL     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// Telegram sends messages to one chat through the Bot API.
type Telegram struct {
	bot    *bot.Bot
	chatID any
}

// NewTelegram creates a Telegram notifier. No request is made until Send.
func NewTelegram(opts TelegramOptions) (*Telegram, error) {
	if opts.Token == "" || opts.ChatID == "" {
		return nil, ErrMissingCredentials
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	botOpts := []bot.Option{
		bot.WithSkipGetMe(),
		bot.WithHTTPClient(timeout, httpClient),
	}
	if opts.APIURL != "" {
		botOpts = append(botOpts, bot.WithServerURL(opts.APIURL))
	}

	b, err := bot.New(opts.Token, botOpts...)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}

	var chatID any = opts.ChatID
	if id, err := strconv.ParseInt(opts.ChatID, 10, 64); err == nil {
		chatID = id
	}
	return &Telegram{bot: b, chatID: chatID}, nil
}

// Send delivers text, split into several messages when it exceeds the
// Telegram length limit.
func (t *Telegram) Send(ctx context.Context, text string) error {
	for _, chunk := range SplitMessage(text, MessageLimit) {
		if _, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: t.chatID,
			Text:   chunk,
		}); err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
	}
	return nil
}

var _ Notifier = (*Telegram)(nil)
