// Package bot implements the HabitPing conversation logic: it consumes
// normalized transport events and maps each command, button press, and
// free-text reply onto store operations and outbound messages.
package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/habitping/habitping/internal/chart"
	"github.com/habitping/habitping/internal/flow"
	"github.com/habitping/habitping/internal/messaging"
	"github.com/habitping/habitping/internal/models"
	"github.com/habitping/habitping/internal/store"
)

// DefaultReply is sent for free text that no active flow is waiting for.
const DefaultReply = "Try /menu to see what I can do."

// Opts holds configuration options for the bot.
type Opts struct {
	Clock func() time.Time
}

// Option defines a configuration option for the bot.
type Option func(*Opts)

// WithClock overrides the bot's time source used for "today" and the
// calendar window. Tests use this to pin the current date.
func WithClock(clock func() time.Time) Option {
	return func(o *Opts) {
		o.Clock = clock
	}
}

// Bot wires the store, the transport, the session state manager, and the
// chart renderer into one event-driven handler.
type Bot struct {
	store store.Store
	msg   messaging.Service
	state flow.StateManager
	chart *chart.Renderer
	now   func() time.Time
}

// New creates a bot over the given collaborators.
func New(st store.Store, msg messaging.Service, state flow.StateManager, renderer *chart.Renderer, opts ...Option) *Bot {
	cfg := Opts{Clock: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Bot{
		store: st,
		msg:   msg,
		state: state,
		chart: renderer,
		now:   cfg.Clock,
	}
}

// Start begins processing inbound events in a background goroutine. Events
// are handled one at a time; a handler error is logged and the loop moves
// on to the next event.
func (b *Bot) Start(ctx context.Context) {
	slog.Info("Bot starting event processing")

	go func() {
		defer slog.Info("Bot stopped event processing")

		for {
			select {
			case ev, ok := <-b.msg.Events():
				if !ok {
					slog.Debug("Bot events channel closed")
					return
				}
				if err := b.HandleEvent(ctx, ev); err != nil {
					slog.Error("Bot failed to handle event", "error", err, "type", ev.Type, "from", ev.From)
				}
			case <-ctx.Done():
				slog.Debug("Bot stopping due to context cancellation")
				return
			}
		}
	}()

	slog.Info("Bot event processing started")
}

// HandleEvent dispatches one inbound event to the matching handler.
func (b *Bot) HandleEvent(ctx context.Context, ev models.Event) error {
	slog.Debug("Bot handling event", "type", ev.Type, "from", ev.From, "command", ev.Command, "data", ev.Data)

	switch ev.Type {
	case models.EventTypeCommand:
		return b.handleCommand(ctx, ev)
	case models.EventTypeCallback:
		return b.handleCallback(ctx, ev)
	case models.EventTypeText:
		return b.handleText(ctx, ev)
	default:
		slog.Debug("Bot ignoring event of unknown type", "type", ev.Type, "from", ev.From)
		return nil
	}
}

// today returns the current date in the store's date format.
func (b *Bot) today() string {
	return b.now().Format(models.DateLayout)
}
