package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/habitping/habitping/internal/models"
	"github.com/habitping/habitping/internal/telegram"
)

// Constants for TelegramService configuration
const (
	// DefaultEventBufferSize defines the default buffer size for the inbound event channel
	DefaultEventBufferSize = 100
	// DefaultEventTimeout defines the default timeout for non-blocking channel operations
	DefaultEventTimeout = 1 * time.Second
)

// TelegramService implements Service using the Telegram Bot API client.
// Recipients are decimal chat ids.
type TelegramService struct {
	client   *telegram.Client
	events   chan models.Event
	stopOnce sync.Once
}

// NewTelegramService creates a new TelegramService wrapping the given
// client.
func NewTelegramService(client *telegram.Client) *TelegramService {
	return &TelegramService{
		client: client,
		events: make(chan models.Event, DefaultEventBufferSize),
	}
}

// ValidateAndCanonicalizeRecipient checks that the recipient is a decimal
// chat id and returns it in canonical form.
func (s *TelegramService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return "", models.ErrEmptyRecipient
	}
	id, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid telegram chat id %q: %w", recipient, err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *TelegramService) chatID(to string) (int64, error) {
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(canonical, 10, 64)
}

// SendMessage sends a plain text message.
func (s *TelegramService) SendMessage(ctx context.Context, to, body string) error {
	chatID, err := s.chatID(to)
	if err != nil {
		return err
	}
	if _, err := s.client.SendMessage(chatID, body); err != nil {
		slog.Error("TelegramService SendMessage error", "error", err, "to", to)
		return err
	}
	slog.Debug("TelegramService message sent", "to", to, "body_length", len(body))
	return nil
}

// SendKeyboard sends a text message with an inline button grid.
func (s *TelegramService) SendKeyboard(ctx context.Context, to, body string, kb models.Keyboard) error {
	chatID, err := s.chatID(to)
	if err != nil {
		return err
	}
	if _, err := s.client.SendKeyboard(chatID, body, kb); err != nil {
		slog.Error("TelegramService SendKeyboard error", "error", err, "to", to)
		return err
	}
	return nil
}

// EditMessage edits a previously sent message in place. A zero messageID
// falls back to sending a fresh keyboard message.
func (s *TelegramService) EditMessage(ctx context.Context, to string, messageID int, body string, kb models.Keyboard) error {
	if messageID == 0 {
		return s.SendKeyboard(ctx, to, body, kb)
	}
	chatID, err := s.chatID(to)
	if err != nil {
		return err
	}
	if err := s.client.EditMessage(chatID, messageID, body, kb); err != nil {
		slog.Error("TelegramService EditMessage error", "error", err, "to", to, "messageID", messageID)
		return err
	}
	return nil
}

// SendPhoto sends a local image file as a photo attachment.
func (s *TelegramService) SendPhoto(ctx context.Context, to, path, caption string) error {
	chatID, err := s.chatID(to)
	if err != nil {
		return err
	}
	if err := s.client.SendPhoto(chatID, path, caption); err != nil {
		slog.Error("TelegramService SendPhoto error", "error", err, "to", to, "path", path)
		return err
	}
	return nil
}

// Start begins converting Telegram updates into normalized events.
func (s *TelegramService) Start(ctx context.Context) error {
	slog.Debug("TelegramService Start invoked")
	go s.pollUpdates(ctx)
	return nil
}

// Stop stops background processing. The poll loop owns the event channel
// and closes it once the update stream drains, so an update already in
// flight cannot race the close.
func (s *TelegramService) Stop() error {
	slog.Info("TelegramService Stop invoked")
	s.stopOnce.Do(func() {
		if s.client != nil {
			s.client.StopReceivingUpdates()
		}
	})
	return nil
}

// Events returns the channel of normalized inbound events.
func (s *TelegramService) Events() <-chan models.Event {
	return s.events
}

func (s *TelegramService) pollUpdates(ctx context.Context) {
	defer close(s.events)
	updates := s.client.Updates()
	slog.Debug("TelegramService update polling started")
	for {
		select {
		case upd, ok := <-updates:
			if !ok {
				slog.Debug("TelegramService update channel closed")
				return
			}
			s.handleUpdate(upd)
		case <-ctx.Done():
			slog.Debug("TelegramService stopping due to context cancellation")
			return
		}
	}
}

// handleUpdate converts one Telegram update into a normalized event and
// forwards it without blocking the poll loop.
func (s *TelegramService) handleUpdate(upd tgbotapi.Update) {
	var ev models.Event

	switch {
	case upd.CallbackQuery != nil:
		cq := upd.CallbackQuery
		s.client.AnswerCallback(cq.ID)
		ev = models.Event{
			Type: models.EventTypeCallback,
			From: strconv.FormatInt(cq.From.ID, 10),
			Data: cq.Data,
			Time: time.Now().Unix(),
		}
		if cq.Message != nil {
			ev.MessageID = cq.Message.MessageID
		}

	case upd.Message != nil && upd.Message.IsCommand():
		msg := upd.Message
		ev = models.Event{
			Type:    models.EventTypeCommand,
			From:    strconv.FormatInt(msg.Chat.ID, 10),
			Command: msg.Command(),
			Args:    strings.Fields(msg.CommandArguments()),
			Time:    int64(msg.Date),
		}

	case upd.Message != nil && upd.Message.Text != "":
		msg := upd.Message
		ev = models.Event{
			Type: models.EventTypeText,
			From: strconv.FormatInt(msg.Chat.ID, 10),
			Body: msg.Text,
			Time: int64(msg.Date),
		}

	default:
		// Non-text updates (photos, stickers, join events) are ignored.
		return
	}

	select {
	case s.events <- ev:
		slog.Debug("TelegramService event forwarded", "type", ev.Type, "from", ev.From)
	case <-time.After(DefaultEventTimeout):
		slog.Warn("TelegramService event channel blocked, dropping event", "type", ev.Type, "from", ev.From, "timeout", DefaultEventTimeout)
	}
}
