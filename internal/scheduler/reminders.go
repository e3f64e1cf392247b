package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/habitping/habitping/internal/messaging"
	"github.com/habitping/habitping/internal/models"
	"github.com/habitping/habitping/internal/store"
)

// ReminderText is the message delivered when a user's reminder fires.
const ReminderText = "⏰ Time to mark habits! /start"

// PollerOpts holds configuration options for the reminder poller.
type PollerOpts struct {
	Clock func() time.Time
}

// PollerOption defines a configuration option for the reminder poller.
type PollerOption func(*PollerOpts)

// WithClock overrides the poller's time source. Tests use this to pin the
// current minute.
func WithClock(clock func() time.Time) PollerOption {
	return func(o *PollerOpts) {
		o.Clock = clock
	}
}

// Poller delivers reminder messages. Once a minute it scans the stored
// reminders and notifies every user whose reminder time equals the current
// wall-clock minute. Matching is an exact string comparison, so a minute
// missed while the process is down is not caught up.
type Poller struct {
	store store.Store
	msg   messaging.Service
	now   func() time.Time
}

// NewPoller creates a reminder poller over the given store and transport.
func NewPoller(st store.Store, msg messaging.Service, opts ...PollerOption) *Poller {
	cfg := PollerOpts{Clock: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Poller{store: st, msg: msg, now: cfg.Clock}
}

// Register schedules the poller to run every minute.
func (p *Poller) Register(sched *Scheduler) error {
	return sched.AddJob(EveryMinute, p.Tick)
}

// Tick runs one poll pass: load all reminders and notify the users whose
// time matches the current minute.
func (p *Poller) Tick() {
	ctx := context.Background()
	current := p.now().Format(models.ClockLayout)

	reminders, err := p.store.Reminders()
	if err != nil {
		slog.Error("Poller Tick failed to load reminders", "error", err)
		return
	}

	for _, r := range reminders {
		if r.Time != current {
			continue
		}
		if err := p.msg.SendMessage(ctx, r.UserID, ReminderText); err != nil {
			// Log and keep going; one unreachable user must not block the rest.
			slog.Error("Poller Tick failed to send reminder", "error", err, "userID", r.UserID, "time", r.Time)
			continue
		}
		slog.Debug("Poller Tick reminder sent", "userID", r.UserID, "time", r.Time)
	}
}
