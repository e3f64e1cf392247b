package bot

import (
	"context"
	"fmt"
	"strconv"

	"github.com/habitping/habitping/internal/models"
)

// todayViewText heads the per-day habit checklist.
const todayViewText = "Your habits today:"

// CalendarDays is the size of the rolling date window, today included.
const CalendarDays = 7

// sendTodayView sends or, when messageID is non-zero, edits the day view:
// one button per habit showing today's completion mark. A user with no
// habits gets the default set seeded first.
func (b *Bot) sendTodayView(ctx context.Context, userID string, messageID int) error {
	habits, err := b.habitsSeeded(userID)
	if err != nil {
		return err
	}

	today := b.today()
	var kb models.Keyboard
	for _, h := range habits {
		value, ok, err := b.store.HabitLogValue(userID, h.ID, today)
		if err != nil {
			return fmt.Errorf("failed to load habit log: %w", err)
		}
		mark := "⬜"
		if ok && value != 0 {
			mark = "✅"
		}
		kb.AddRow(models.Button{Label: mark + " " + h.Name, Data: models.ToggleCallback(h.ID)})
	}

	if messageID != 0 {
		return b.msg.EditMessage(ctx, userID, messageID, todayViewText, kb)
	}
	return b.msg.SendKeyboard(ctx, userID, todayViewText, kb)
}

// habitsSeeded returns the user's habits, creating the default set when
// the user has none. Seeding happens at most once because the created
// habits are visible to every later call.
func (b *Bot) habitsSeeded(userID string) ([]models.Habit, error) {
	habits, err := b.store.HabitsByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load habits: %w", err)
	}
	if len(habits) > 0 {
		return habits, nil
	}

	for _, name := range models.DefaultHabits {
		id, err := b.store.CreateHabit(userID, name)
		if err != nil {
			return nil, fmt.Errorf("failed to seed habit %q: %w", name, err)
		}
		habits = append(habits, models.Habit{ID: id, UserID: userID, Name: name})
	}
	return habits, nil
}

// calendarKeyboard builds one button per day for the rolling window,
// newest first.
func (b *Bot) calendarKeyboard() models.Keyboard {
	var kb models.Keyboard
	now := b.now()
	for i := 0; i < CalendarDays; i++ {
		d := now.AddDate(0, 0, -i)
		kb.AddRow(models.Button{
			Label: d.Format("02 Jan"),
			Data:  models.CalendarCallback(d.Format(models.DateLayout)),
		})
	}
	return kb
}

// moodKeyboard builds the single-row 0..10 score picker.
func moodKeyboard() models.Keyboard {
	var row []models.Button
	for v := models.MinMoodValue; v <= models.MaxMoodValue; v++ {
		row = append(row, models.Button{Label: strconv.Itoa(v), Data: models.MoodCallback(v)})
	}
	var kb models.Keyboard
	kb.AddRow(row...)
	return kb
}

// customizeKeyboard builds the add/edit/remove action menu.
func customizeKeyboard() models.Keyboard {
	var kb models.Keyboard
	kb.AddRow(models.Button{Label: "➕ Add", Data: models.ActionAdd})
	kb.AddRow(models.Button{Label: "✏️ Edit", Data: models.ActionEdit})
	kb.AddRow(models.Button{Label: "➖ Remove", Data: models.ActionRemove})
	return kb
}
