// Package telegram wraps the Telegram Bot API client for HabitPing.
//
// It provides methods for sending messages with inline keyboards, editing
// them in place, and delivering photo attachments.
package telegram

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/habitping/habitping/internal/models"
)

// DefaultPollTimeout is the long-polling timeout in seconds for update
// retrieval.
const DefaultPollTimeout = 30

// Opts holds configuration options for the Telegram client.
type Opts struct {
	Token       string // bot access token, required
	PollTimeout int    // long-polling timeout in seconds
	Debug       bool   // enable the underlying library's request logging
}

// Option defines a configuration option for the Telegram client.
type Option func(*Opts)

// WithToken sets the bot access token.
func WithToken(token string) Option {
	return func(o *Opts) {
		o.Token = token
	}
}

// WithPollTimeout sets the long-polling timeout in seconds.
func WithPollTimeout(seconds int) Option {
	return func(o *Opts) {
		o.PollTimeout = seconds
	}
}

// WithDebug enables the underlying library's request logging.
func WithDebug() Option {
	return func(o *Opts) {
		o.Debug = true
	}
}

// Client wraps the Telegram bot API for modular use.
type Client struct {
	api         *tgbotapi.BotAPI
	pollTimeout int
}

// NewClient creates a Telegram client and authenticates the token against
// the Bot API. A missing or rejected token is a hard error.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{PollTimeout: DefaultPollTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("Telegram NewClient options set", "token_set", cfg.Token != "", "poll_timeout", cfg.PollTimeout)

	if cfg.Token == "" {
		slog.Error("Telegram bot token not set")
		return nil, fmt.Errorf("telegram bot token not set")
	}

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		slog.Error("Failed to authenticate with Telegram", "error", err)
		return nil, fmt.Errorf("failed to authenticate with Telegram: %w", err)
	}
	api.Debug = cfg.Debug

	slog.Info("Telegram client connected successfully", "username", api.Self.UserName)
	return &Client{api: api, pollTimeout: cfg.PollTimeout}, nil
}

// Updates returns the long-polling update channel.
func (c *Client) Updates() tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = c.pollTimeout
	return c.api.GetUpdatesChan(u)
}

// StopReceivingUpdates terminates the long-polling loop.
func (c *Client) StopReceivingUpdates() {
	c.api.StopReceivingUpdates()
}

// AnswerCallback acknowledges a button press so the client stops showing
// its progress spinner.
func (c *Client) AnswerCallback(callbackID string) {
	if _, err := c.api.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		slog.Debug("Telegram AnswerCallback failed", "error", err, "callbackID", callbackID)
	}
}

// SendMessage sends a plain text message and returns the new message id.
func (c *Client) SendMessage(chatID int64, body string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, body)
	sent, err := c.api.Send(msg)
	if err != nil {
		slog.Error("Failed to send Telegram message", "error", err, "chatID", chatID)
		return 0, fmt.Errorf("failed to send message to %d: %w", chatID, err)
	}
	return sent.MessageID, nil
}

// SendKeyboard sends a text message with an inline keyboard attached and
// returns the new message id.
func (c *Client) SendKeyboard(chatID int64, body string, kb models.Keyboard) (int, error) {
	msg := tgbotapi.NewMessage(chatID, body)
	msg.ReplyMarkup = inlineKeyboard(kb)
	sent, err := c.api.Send(msg)
	if err != nil {
		slog.Error("Failed to send Telegram keyboard", "error", err, "chatID", chatID)
		return 0, fmt.Errorf("failed to send keyboard to %d: %w", chatID, err)
	}
	return sent.MessageID, nil
}

// EditMessage replaces the text (and keyboard, when non-empty) of an
// existing message in place.
func (c *Client) EditMessage(chatID int64, messageID int, body string, kb models.Keyboard) error {
	var err error
	if kb.Empty() {
		edit := tgbotapi.NewEditMessageText(chatID, messageID, body)
		_, err = c.api.Send(edit)
	} else {
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, body, inlineKeyboard(kb))
		_, err = c.api.Send(edit)
	}
	if err != nil {
		slog.Error("Failed to edit Telegram message", "error", err, "chatID", chatID, "messageID", messageID)
		return fmt.Errorf("failed to edit message %d for %d: %w", messageID, chatID, err)
	}
	return nil
}

// SendPhoto sends a local image file as a photo attachment.
func (c *Client) SendPhoto(chatID int64, path, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(path))
	photo.Caption = caption
	if _, err := c.api.Send(photo); err != nil {
		slog.Error("Failed to send Telegram photo", "error", err, "chatID", chatID, "path", path)
		return fmt.Errorf("failed to send photo to %d: %w", chatID, err)
	}
	return nil
}

// inlineKeyboard converts the transport-neutral keyboard into the Telegram
// inline keyboard markup.
func inlineKeyboard(kb models.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb.Rows))
	for _, row := range kb.Rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
