package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/habitping/habitping/internal/flow"
	"github.com/habitping/habitping/internal/models"
)

// User-visible reply texts.
const (
	menuText = "/start\n/customize\n/week\n/month\n/calendar\n/mood\n/mood_progress\n/remind HH:MM"

	weekStubText  = "Weekly stats coming soon ✅"
	monthStubText = "Monthly stats coming soon ✅"

	remindUsageText  = "/remind HH:MM or /remind off"
	remindFormatText = "Format HH:MM"
	remindSetText    = "Reminder set ⏰"
	remindOffText    = "Reminder off"

	moodPromptText     = "Your mood:"
	noMoodDataText     = "No mood data yet 😶"
	calendarPromptText = "Select date:"

	customizePromptText = "Customize habits:"
	askHabitNameText    = "Send new habit name:"
	chooseHabitText     = "Choose habit:"
	noHabitsText        = "No habits yet"
	habitAddedText      = "Habit added ✅"
	habitRemovedText    = "Habit removed ❌"
	habitUpdatedText    = "Habit updated ✨"
	badHabitNameText    = "Habit name must be 1-100 characters"
)

// handleCommand runs one slash command. Any command interrupts an active
// customize session: the session is discarded first, then the command runs
// normally.
func (b *Bot) handleCommand(ctx context.Context, ev models.Event) error {
	if err := b.cancelSession(ctx, ev.From); err != nil {
		return err
	}

	switch ev.Command {
	case "start":
		return b.sendTodayView(ctx, ev.From, 0)
	case "menu":
		return b.msg.SendMessage(ctx, ev.From, menuText)
	case "week":
		return b.msg.SendMessage(ctx, ev.From, weekStubText)
	case "month":
		return b.msg.SendMessage(ctx, ev.From, monthStubText)
	case "calendar":
		return b.msg.SendKeyboard(ctx, ev.From, calendarPromptText, b.calendarKeyboard())
	case "mood":
		return b.msg.SendKeyboard(ctx, ev.From, moodPromptText, moodKeyboard())
	case "mood_progress":
		return b.handleMoodProgress(ctx, ev)
	case "remind":
		return b.handleRemind(ctx, ev)
	case "customize":
		return b.handleCustomize(ctx, ev)
	default:
		slog.Debug("Bot ignoring unknown command", "command", ev.Command, "from", ev.From)
		return nil
	}
}

// cancelSession discards any active customize session for the user.
func (b *Bot) cancelSession(ctx context.Context, userID string) error {
	state, err := b.state.GetCurrentState(ctx, userID, flow.FlowTypeCustomize)
	if err != nil {
		return fmt.Errorf("failed to read session state: %w", err)
	}
	if state == "" {
		return nil
	}
	slog.Debug("Bot cancelling active customize session", "from", userID, "state", state)
	return b.state.ResetState(ctx, userID, flow.FlowTypeCustomize)
}

// handleMoodProgress renders and sends the user's mood history chart.
func (b *Bot) handleMoodProgress(ctx context.Context, ev models.Event) error {
	entries, err := b.store.MoodEntries(ev.From)
	if err != nil {
		return fmt.Errorf("failed to load mood entries: %w", err)
	}
	if len(entries) == 0 {
		return b.msg.SendMessage(ctx, ev.From, noMoodDataText)
	}

	path, err := b.chart.Render(ev.From, entries)
	if err != nil {
		return fmt.Errorf("failed to render mood chart: %w", err)
	}
	return b.msg.SendPhoto(ctx, ev.From, path, "")
}

// handleRemind sets, replaces, or deletes the user's daily reminder.
func (b *Bot) handleRemind(ctx context.Context, ev models.Event) error {
	if len(ev.Args) == 0 {
		return b.msg.SendMessage(ctx, ev.From, remindUsageText)
	}

	arg := ev.Args[0]
	if arg == "off" {
		if err := b.store.DeleteReminder(ev.From); err != nil {
			return fmt.Errorf("failed to delete reminder: %w", err)
		}
		return b.msg.SendMessage(ctx, ev.From, remindOffText)
	}

	if err := models.ValidateClockTime(arg); err != nil {
		slog.Debug("Bot rejected reminder time", "from", ev.From, "arg", arg)
		return b.msg.SendMessage(ctx, ev.From, remindFormatText)
	}

	if err := b.store.SetReminder(ev.From, arg); err != nil {
		return fmt.Errorf("failed to set reminder: %w", err)
	}
	slog.Info("Bot reminder set", "from", ev.From, "time", arg)
	return b.msg.SendMessage(ctx, ev.From, remindSetText)
}

// handleCustomize opens the customize flow with the action menu.
func (b *Bot) handleCustomize(ctx context.Context, ev models.Event) error {
	if err := b.state.SetCurrentState(ctx, ev.From, flow.FlowTypeCustomize, flow.StateChoosing); err != nil {
		return fmt.Errorf("failed to open customize session: %w", err)
	}
	return b.msg.SendKeyboard(ctx, ev.From, customizePromptText, customizeKeyboard())
}

// handleCallback dispatches a button press. Global payloads (toggle, mood,
// calendar) work regardless of session state; the bare action and habit
// selection payloads only mean something inside the customize flow.
func (b *Bot) handleCallback(ctx context.Context, ev models.Event) error {
	data := ev.Data

	switch {
	case strings.HasPrefix(data, models.ToggleCallbackPrefix):
		return b.handleToggle(ctx, ev)
	case strings.HasPrefix(data, models.MoodCallbackPrefix):
		return b.handleSaveMood(ctx, ev)
	case strings.HasPrefix(data, models.CalendarCallbackPrefix):
		return b.handleCalendarPick(ctx, ev)
	}

	state, err := b.state.GetCurrentState(ctx, ev.From, flow.FlowTypeCustomize)
	if err != nil {
		return fmt.Errorf("failed to read session state: %w", err)
	}

	switch state {
	case flow.StateChoosing:
		return b.handleCustomizeAction(ctx, ev)
	case flow.StateRemoving:
		return b.handleRemoveHabit(ctx, ev)
	case flow.StateEditingSelect:
		return b.handleEditSelect(ctx, ev)
	default:
		// A press on a stale keyboard after the session expired or ended.
		slog.Debug("Bot ignoring callback outside any session", "from", ev.From, "data", data)
		return nil
	}
}

// handleToggle flips today's completion for the pressed habit and
// re-renders the day view in place.
func (b *Bot) handleToggle(ctx context.Context, ev models.Event) error {
	habitID, err := models.ParseHabitID(ev.Data, models.ToggleCallbackPrefix)
	if err != nil {
		return err
	}
	if _, err := b.store.ToggleHabitLog(ev.From, habitID, b.today()); err != nil {
		return fmt.Errorf("failed to toggle habit %d: %w", habitID, err)
	}
	return b.sendTodayView(ctx, ev.From, ev.MessageID)
}

// handleSaveMood records today's mood score.
func (b *Bot) handleSaveMood(ctx context.Context, ev models.Event) error {
	value, err := models.ParseMoodValue(ev.Data)
	if err != nil {
		return err
	}
	if err := b.store.SetMood(ev.From, b.today(), value); err != nil {
		return fmt.Errorf("failed to save mood: %w", err)
	}
	return b.msg.EditMessage(ctx, ev.From, ev.MessageID, fmt.Sprintf("Mood saved: %d/10", value), models.Keyboard{})
}

// handleCalendarPick acknowledges a calendar date selection.
func (b *Bot) handleCalendarPick(ctx context.Context, ev models.Event) error {
	date, err := models.ParseCalendarDate(ev.Data)
	if err != nil {
		return err
	}
	return b.msg.EditMessage(ctx, ev.From, ev.MessageID, fmt.Sprintf("Selected date: %s", date), models.Keyboard{})
}

// handleCustomizeAction reacts to the add/edit/remove choice.
func (b *Bot) handleCustomizeAction(ctx context.Context, ev models.Event) error {
	action := ev.Data

	if action == models.ActionAdd {
		if err := b.state.TransitionState(ctx, ev.From, flow.FlowTypeCustomize, flow.StateChoosing, flow.StateAdding); err != nil {
			return fmt.Errorf("failed to enter adding state: %w", err)
		}
		return b.msg.EditMessage(ctx, ev.From, ev.MessageID, askHabitNameText, models.Keyboard{})
	}

	if action != models.ActionEdit && action != models.ActionRemove {
		slog.Debug("Bot ignoring unknown customize action", "from", ev.From, "data", action)
		return nil
	}

	habits, err := b.store.HabitsByUser(ev.From)
	if err != nil {
		return fmt.Errorf("failed to load habits: %w", err)
	}
	if len(habits) == 0 {
		if err := b.state.ResetState(ctx, ev.From, flow.FlowTypeCustomize); err != nil {
			return err
		}
		return b.msg.EditMessage(ctx, ev.From, ev.MessageID, noHabitsText, models.Keyboard{})
	}

	next := flow.StateEditingSelect
	if action == models.ActionRemove {
		next = flow.StateRemoving
	}
	if err := b.state.TransitionState(ctx, ev.From, flow.FlowTypeCustomize, flow.StateChoosing, next); err != nil {
		return fmt.Errorf("failed to enter %s state: %w", next, err)
	}

	var kb models.Keyboard
	for _, h := range habits {
		kb.AddRow(models.Button{Label: h.Name, Data: models.PickCallback(action, h.ID)})
	}
	return b.msg.EditMessage(ctx, ev.From, ev.MessageID, chooseHabitText, kb)
}

// handleRemoveHabit deletes the selected habit. Its historical logs are
// left in place.
func (b *Bot) handleRemoveHabit(ctx context.Context, ev models.Event) error {
	habitID, err := models.ParseHabitID(ev.Data, models.RemoveCallbackPrefix)
	if err != nil {
		return err
	}
	if err := b.store.DeleteHabit(habitID); err != nil {
		return fmt.Errorf("failed to delete habit %d: %w", habitID, err)
	}
	if err := b.state.ResetState(ctx, ev.From, flow.FlowTypeCustomize); err != nil {
		return err
	}
	slog.Info("Bot habit removed", "from", ev.From, "habitID", habitID)
	return b.msg.EditMessage(ctx, ev.From, ev.MessageID, habitRemovedText, models.Keyboard{})
}

// handleEditSelect remembers which habit to rename and asks for the new
// name.
func (b *Bot) handleEditSelect(ctx context.Context, ev models.Event) error {
	habitID, err := models.ParseHabitID(ev.Data, models.EditCallbackPrefix)
	if err != nil {
		return err
	}
	if err := b.state.SetStateData(ctx, ev.From, flow.FlowTypeCustomize, flow.DataKeyEditHabitID, strconv.FormatInt(habitID, 10)); err != nil {
		return fmt.Errorf("failed to store habit id for rename: %w", err)
	}
	if err := b.state.TransitionState(ctx, ev.From, flow.FlowTypeCustomize, flow.StateEditingSelect, flow.StateEditingValue); err != nil {
		return fmt.Errorf("failed to enter editing state: %w", err)
	}
	return b.msg.EditMessage(ctx, ev.From, ev.MessageID, askHabitNameText, models.Keyboard{})
}

// handleText routes free text into whichever flow state is waiting for it.
// Text outside any session gets the default reply; text while a session is
// waiting for a button press is dropped.
func (b *Bot) handleText(ctx context.Context, ev models.Event) error {
	state, err := b.state.GetCurrentState(ctx, ev.From, flow.FlowTypeCustomize)
	if err != nil {
		return fmt.Errorf("failed to read session state: %w", err)
	}

	switch state {
	case flow.StateAdding:
		return b.handleAddHabit(ctx, ev)
	case flow.StateEditingValue:
		return b.handleEditSave(ctx, ev)
	case "":
		return b.msg.SendMessage(ctx, ev.From, DefaultReply)
	default:
		slog.Debug("Bot dropping text while a button press is expected", "from", ev.From, "state", state)
		return nil
	}
}

// handleAddHabit creates a habit from the supplied name and ends the flow.
func (b *Bot) handleAddHabit(ctx context.Context, ev models.Event) error {
	name := strings.TrimSpace(ev.Body)
	if err := models.ValidateHabitName(name); err != nil {
		slog.Debug("Bot rejected habit name", "from", ev.From, "error", err)
		return b.msg.SendMessage(ctx, ev.From, badHabitNameText)
	}

	if _, err := b.store.CreateHabit(ev.From, name); err != nil {
		return fmt.Errorf("failed to create habit: %w", err)
	}
	if err := b.state.ResetState(ctx, ev.From, flow.FlowTypeCustomize); err != nil {
		return err
	}
	slog.Info("Bot habit added", "from", ev.From, "name", name)
	return b.msg.SendMessage(ctx, ev.From, habitAddedText)
}

// handleEditSave renames the habit chosen earlier in the flow and ends it.
func (b *Bot) handleEditSave(ctx context.Context, ev models.Event) error {
	name := strings.TrimSpace(ev.Body)
	if err := models.ValidateHabitName(name); err != nil {
		slog.Debug("Bot rejected habit name", "from", ev.From, "error", err)
		return b.msg.SendMessage(ctx, ev.From, badHabitNameText)
	}

	raw, err := b.state.GetStateData(ctx, ev.From, flow.FlowTypeCustomize, flow.DataKeyEditHabitID)
	if err != nil {
		return fmt.Errorf("failed to read habit id for rename: %w", err)
	}
	habitID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("corrupt habit id %q in session: %w", raw, err)
	}

	if err := b.store.RenameHabit(habitID, name); err != nil {
		return fmt.Errorf("failed to rename habit %d: %w", habitID, err)
	}
	if err := b.state.ResetState(ctx, ev.From, flow.FlowTypeCustomize); err != nil {
		return err
	}
	slog.Info("Bot habit renamed", "from", ev.From, "habitID", habitID, "name", name)
	return b.msg.SendMessage(ctx, ev.From, habitUpdatedText)
}
