// Package messaging provides the pluggable chat-transport abstraction for
// HabitPing and its Telegram and WhatsApp implementations.
package messaging

import (
	"context"

	"github.com/habitping/habitping/internal/models"
)

// Service defines a pluggable message delivery abstraction. It supports
// sending text, inline keyboards and photos, and exposes a channel of
// normalized inbound events.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a
	// recipient identifier. Each transport implements its own rules.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a plain text message to a recipient.
	SendMessage(ctx context.Context, to, body string) error

	// SendKeyboard sends a text message with an inline button grid.
	SendKeyboard(ctx context.Context, to, body string, kb models.Keyboard) error

	// EditMessage replaces the text and keyboard of a previously sent
	// message where the transport supports it, falling back to a fresh
	// send otherwise. messageID is the transport's id of the message the
	// triggering event referred to (zero means "send fresh").
	EditMessage(ctx context.Context, to string, messageID int, body string, kb models.Keyboard) error

	// SendPhoto sends a local image file as a photo attachment.
	SendPhoto(ctx context.Context, to, path, caption string) error

	// Start begins any background processing (e.g. update polling).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Events returns a channel of normalized inbound events.
	Events() <-chan models.Event
}
