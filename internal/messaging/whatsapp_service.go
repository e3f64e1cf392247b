package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/habitping/habitping/internal/models"
	"github.com/habitping/habitping/internal/whatsapp"
	"go.mau.fi/whatsmeow/types/events"
)

// WhatsAppService implements Service using the Whatsmeow-based whatsapp
// client. WhatsApp has no inline buttons, so keyboards are rendered as
// numbered text menus and a numeric reply is translated back into the
// corresponding button's callback payload.
type WhatsAppService struct {
	client    whatsapp.Sender
	waClient  *whatsapp.Client // access to the underlying client for event handling
	events    chan models.Event
	done      chan struct{}
	handlerID uint32
	stopOnce  sync.Once

	// menus maps a user to the buttons of the most recent menu sent to
	// them, flattened in row order.
	mu    sync.Mutex
	menus map[string][]models.Button
}

// NewWhatsAppService creates a new WhatsAppService wrapping the given
// Sender.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	service := &WhatsAppService{
		client: client,
		events: make(chan models.Event, DefaultEventBufferSize),
		done:   make(chan struct{}),
		menus:  make(map[string][]models.Button),
	}

	// Only a full client can deliver events; mocks cannot.
	if waClient, ok := client.(*whatsapp.Client); ok {
		service.waClient = waClient
		slog.Debug("WhatsAppService created with full client for event handling")
	} else {
		slog.Debug("WhatsAppService created with interface client (likely mock)")
	}

	return service
}

// ValidateAndCanonicalizeRecipient strips any leading plus sign and
// requires the remainder to be a bare digit string (phone number without
// the JID suffix).
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	recipient = strings.TrimSpace(strings.TrimPrefix(recipient, "+"))
	if recipient == "" {
		return "", models.ErrEmptyRecipient
	}
	for _, r := range recipient {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("invalid whatsapp recipient %q: must be digits only", recipient)
		}
	}
	return recipient, nil
}

// SendMessage sends a plain text message.
func (s *WhatsAppService) SendMessage(ctx context.Context, to, body string) error {
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	if err := s.client.SendMessage(ctx, canonical, body); err != nil {
		slog.Error("WhatsAppService SendMessage error", "error", err, "to", canonical)
		return err
	}
	return nil
}

// SendKeyboard renders the keyboard as a numbered text menu and remembers
// the mapping so a numeric reply can be resolved to a payload.
func (s *WhatsAppService) SendKeyboard(ctx context.Context, to, body string, kb models.Keyboard) error {
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	buttons := kb.Buttons()
	if err := s.client.SendMessage(ctx, canonical, FormatMenu(body, buttons)); err != nil {
		slog.Error("WhatsAppService SendKeyboard error", "error", err, "to", canonical)
		return err
	}
	s.mu.Lock()
	s.menus[canonical] = buttons
	s.mu.Unlock()
	return nil
}

// EditMessage has no WhatsApp equivalent; the replacement content is sent
// as a fresh message.
func (s *WhatsAppService) EditMessage(ctx context.Context, to string, messageID int, body string, kb models.Keyboard) error {
	if kb.Empty() {
		return s.SendMessage(ctx, to, body)
	}
	return s.SendKeyboard(ctx, to, body, kb)
}

// SendPhoto reads the local image file and sends it as an image message.
func (s *WhatsAppService) SendPhoto(ctx context.Context, to, path, caption string) error {
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("WhatsAppService SendPhoto read error", "error", err, "path", path)
		return fmt.Errorf("failed to read photo %s: %w", path, err)
	}
	if err := s.client.SendImage(ctx, canonical, data, caption); err != nil {
		slog.Error("WhatsAppService SendPhoto error", "error", err, "to", canonical)
		return err
	}
	return nil
}

// Start registers the whatsmeow event handler feeding the event channel.
func (s *WhatsAppService) Start(ctx context.Context) error {
	slog.Debug("WhatsAppService Start invoked")
	if s.waClient == nil || s.waClient.GetClient() == nil {
		slog.Debug("WhatsAppService no full client available, skipping event handling (likely mock)")
		return nil
	}
	s.handlerID = s.waClient.GetClient().AddEventHandler(func(evt interface{}) {
		if msg, ok := evt.(*events.Message); ok {
			s.handleIncomingMessage(msg)
		}
	})
	slog.Debug("WhatsAppService event handler registered")
	return nil
}

// Stop stops background processing. The event channel is never closed
// because whatsmeow delivers on its own goroutines; late events are
// dropped via the done channel instead, and consumers stop through their
// own context.
func (s *WhatsAppService) Stop() error {
	slog.Info("WhatsAppService Stop invoked")
	s.stopOnce.Do(func() {
		close(s.done)
		if s.waClient != nil && s.waClient.GetClient() != nil {
			s.waClient.GetClient().RemoveEventHandler(s.handlerID)
		}
	})
	return nil
}

// Events returns the channel of normalized inbound events.
func (s *WhatsAppService) Events() <-chan models.Event {
	return s.events
}

// handleIncomingMessage converts an incoming text message into a
// normalized event: slash commands stay commands, a bare menu number
// becomes the matching callback payload, everything else is free text.
func (s *WhatsAppService) handleIncomingMessage(evt *events.Message) {
	if evt.Message == nil {
		return
	}

	var text string
	if evt.Message.Conversation != nil {
		text = *evt.Message.Conversation
	} else if evt.Message.ExtendedTextMessage != nil && evt.Message.ExtendedTextMessage.Text != nil {
		text = *evt.Message.ExtendedTextMessage.Text
	} else {
		slog.Debug("WhatsAppService ignoring non-text message", "from", evt.Info.Sender.String())
		return
	}

	from := evt.Info.Sender.User
	s.forward(s.normalize(from, strings.TrimSpace(text), evt.Info.Timestamp.Unix()))
}

// forward hands the event to the router without blocking the whatsmeow
// handler goroutine. Events arriving around shutdown are dropped.
func (s *WhatsAppService) forward(ev models.Event) {
	select {
	case s.events <- ev:
		slog.Debug("WhatsAppService event forwarded", "type", ev.Type, "from", ev.From)
	case <-s.done:
		slog.Debug("WhatsAppService dropping event after stop", "type", ev.Type, "from", ev.From)
	case <-time.After(DefaultEventTimeout):
		slog.Warn("WhatsAppService event channel blocked, dropping event", "from", ev.From, "timeout", DefaultEventTimeout)
	}
}

func (s *WhatsAppService) normalize(from, text string, ts int64) models.Event {
	if strings.HasPrefix(text, "/") {
		fields := strings.Fields(strings.TrimPrefix(text, "/"))
		ev := models.Event{Type: models.EventTypeCommand, From: from, Time: ts}
		if len(fields) > 0 {
			ev.Command = fields[0]
			ev.Args = fields[1:]
		}
		return ev
	}

	if payload, ok := s.resolveMenuChoice(from, text); ok {
		return models.Event{Type: models.EventTypeCallback, From: from, Data: payload, Time: ts}
	}

	return models.Event{Type: models.EventTypeText, From: from, Body: text, Time: ts}
}

// resolveMenuChoice maps a numeric reply to the payload of the matching
// button from the user's most recent menu. The menu stays active so a
// re-rendered view (e.g. repeated toggles) keeps working.
func (s *WhatsAppService) resolveMenuChoice(from, text string) (string, bool) {
	n, err := strconv.Atoi(text)
	if err != nil {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	buttons := s.menus[from]
	if n < 1 || n > len(buttons) {
		return "", false
	}
	return buttons[n-1].Data, true
}

// FormatMenu renders a message body plus a numbered list of button labels
// in the "reply with the number" style used for WhatsApp delivery.
func FormatMenu(body string, buttons []models.Button) string {
	if len(buttons) == 0 {
		return body
	}
	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n")
	for i, btn := range buttons {
		fmt.Fprintf(&b, "\n%d. %s", i+1, btn.Label)
	}
	b.WriteString("\n\nReply with a number to choose.")
	return b.String()
}
