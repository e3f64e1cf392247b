package bot

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/habitping/habitping/internal/chart"
	"github.com/habitping/habitping/internal/flow"
	"github.com/habitping/habitping/internal/messaging"
	"github.com/habitping/habitping/internal/models"
	"github.com/habitping/habitping/internal/store"
)

var testNow = time.Date(2026, 8, 23, 10, 0, 0, 0, time.Local)

type fixture struct {
	bot   *Bot
	store *store.InMemoryStore
	msg   *messaging.MockService
	state *flow.InMemoryStateManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewInMemoryStore()
	msg := messaging.NewMockService()
	sm := flow.NewInMemoryStateManager()
	t.Cleanup(sm.Stop)
	renderer, err := chart.NewRenderer(chart.WithDir(t.TempDir()))
	if err != nil {
		t.Fatalf("failed to create renderer: %v", err)
	}
	b := New(st, msg, sm, renderer, WithClock(func() time.Time { return testNow }))
	return &fixture{bot: b, store: st, msg: msg, state: sm}
}

func command(from, name string, args ...string) models.Event {
	return models.Event{Type: models.EventTypeCommand, From: from, Command: name, Args: args}
}

func callback(from, data string, messageID int) models.Event {
	return models.Event{Type: models.EventTypeCallback, From: from, Data: data, MessageID: messageID}
}

func text(from, body string) models.Event {
	return models.Event{Type: models.EventTypeText, From: from, Body: body}
}

func (f *fixture) handle(t *testing.T, ev models.Event) {
	t.Helper()
	if err := f.bot.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("HandleEvent(%+v) failed: %v", ev, err)
	}
}

func (f *fixture) currentState(t *testing.T, userID string) flow.StateType {
	t.Helper()
	state, err := f.state.GetCurrentState(context.Background(), userID, flow.FlowTypeCustomize)
	if err != nil {
		t.Fatalf("GetCurrentState failed: %v", err)
	}
	return state
}

func TestStartSeedsDefaultHabitsOnce(t *testing.T) {
	f := newFixture(t)

	f.handle(t, command("u1", "start"))

	last := f.msg.LastSent()
	if last.Body != "Your habits today:" {
		t.Errorf("body = %q", last.Body)
	}
	if len(last.Keyboard.Rows) != len(models.DefaultHabits) {
		t.Fatalf("expected %d habit buttons, got %d", len(models.DefaultHabits), len(last.Keyboard.Rows))
	}
	for i, row := range last.Keyboard.Rows {
		if len(row) != 1 {
			t.Fatalf("expected one button per row, got %d", len(row))
		}
		if !strings.HasPrefix(row[0].Label, "⬜ ") {
			t.Errorf("fresh habit should be unchecked: %q", row[0].Label)
		}
		if !strings.HasSuffix(row[0].Label, models.DefaultHabits[i]) {
			t.Errorf("row %d label = %q, want suffix %q", i, row[0].Label, models.DefaultHabits[i])
		}
		if !strings.HasPrefix(row[0].Data, models.ToggleCallbackPrefix) {
			t.Errorf("row %d payload = %q", i, row[0].Data)
		}
	}

	// A second /start must not seed again.
	f.handle(t, command("u1", "start"))
	habits, _ := f.store.HabitsByUser("u1")
	if len(habits) != len(models.DefaultHabits) {
		t.Errorf("expected %d habits after repeat /start, got %d", len(models.DefaultHabits), len(habits))
	}
}

func TestToggleHabitRerendersInPlace(t *testing.T) {
	f := newFixture(t)
	f.handle(t, command("u1", "start"))
	habits, _ := f.store.HabitsByUser("u1")
	target := habits[0]

	f.handle(t, callback("u1", models.ToggleCallback(target.ID), 42))

	today := testNow.Format(models.DateLayout)
	v, ok, _ := f.store.HabitLogValue("u1", target.ID, today)
	if !ok || v != 1 {
		t.Errorf("toggle did not log completion: %d, %v", v, ok)
	}

	last := f.msg.LastSent()
	if !last.Edited || last.MessageID != 42 {
		t.Errorf("toggle should edit the pressed message: %+v", last)
	}
	if !strings.HasPrefix(last.Keyboard.Rows[0][0].Label, "✅ ") {
		t.Errorf("toggled habit not checked: %q", last.Keyboard.Rows[0][0].Label)
	}

	// Toggling again flips back.
	f.handle(t, callback("u1", models.ToggleCallback(target.ID), 42))
	v, _, _ = f.store.HabitLogValue("u1", target.ID, today)
	if v != 0 {
		t.Errorf("second toggle should uncheck, got %d", v)
	}
	if !strings.HasPrefix(f.msg.LastSent().Keyboard.Rows[0][0].Label, "⬜ ") {
		t.Errorf("untoggled habit still checked: %q", f.msg.LastSent().Keyboard.Rows[0][0].Label)
	}
}

func TestMoodKeyboardAndSave(t *testing.T) {
	f := newFixture(t)

	f.handle(t, command("u1", "mood"))
	last := f.msg.LastSent()
	if last.Body != "Your mood:" {
		t.Errorf("body = %q", last.Body)
	}
	if len(last.Keyboard.Rows) != 1 || len(last.Keyboard.Rows[0]) != 11 {
		t.Fatalf("expected a single row of 11 score buttons, got %v", last.Keyboard.Rows)
	}
	if last.Keyboard.Rows[0][0].Data != "mood_0" || last.Keyboard.Rows[0][10].Data != "mood_10" {
		t.Errorf("score payloads wrong: %v", last.Keyboard.Rows[0])
	}

	f.handle(t, callback("u1", "mood_7", 9))
	entries, _ := f.store.MoodEntries("u1")
	if len(entries) != 1 || entries[0].Value != 7 || entries[0].Date != testNow.Format(models.DateLayout) {
		t.Errorf("mood not saved: %v", entries)
	}
	last = f.msg.LastSent()
	if !last.Edited || last.Body != "Mood saved: 7/10" || last.MessageID != 9 {
		t.Errorf("mood ack wrong: %+v", last)
	}
}

func TestCalendarWindowAndPick(t *testing.T) {
	f := newFixture(t)

	f.handle(t, command("u1", "calendar"))
	last := f.msg.LastSent()
	if last.Body != "Select date:" {
		t.Errorf("body = %q", last.Body)
	}
	if len(last.Keyboard.Rows) != CalendarDays {
		t.Fatalf("expected %d date buttons, got %d", CalendarDays, len(last.Keyboard.Rows))
	}
	for i, row := range last.Keyboard.Rows {
		d := testNow.AddDate(0, 0, -i)
		if row[0].Label != d.Format("02 Jan") {
			t.Errorf("row %d label = %q, want %q", i, row[0].Label, d.Format("02 Jan"))
		}
		if row[0].Data != models.CalendarCallback(d.Format(models.DateLayout)) {
			t.Errorf("row %d payload = %q", i, row[0].Data)
		}
	}

	f.handle(t, callback("u1", "cal_2026-08-20", 3))
	last = f.msg.LastSent()
	if !last.Edited || last.Body != "Selected date: 2026-08-20" {
		t.Errorf("calendar pick ack wrong: %+v", last)
	}
}

func TestRemindCommand(t *testing.T) {
	f := newFixture(t)

	f.handle(t, command("u1", "remind"))
	if got := f.msg.LastSent().Body; got != "/remind HH:MM or /remind off" {
		t.Errorf("usage reply = %q", got)
	}

	for _, bad := range []string{"930", "9:30", "99:99", "soon"} {
		f.handle(t, command("u1", "remind", bad))
		if got := f.msg.LastSent().Body; got != "Format HH:MM" {
			t.Errorf("remind %q reply = %q, want format error", bad, got)
		}
	}
	if reminders, _ := f.store.Reminders(); len(reminders) != 0 {
		t.Fatalf("rejected times must not be written: %v", reminders)
	}

	f.handle(t, command("u1", "remind", "08:30"))
	if got := f.msg.LastSent().Body; got != "Reminder set ⏰" {
		t.Errorf("set reply = %q", got)
	}
	f.handle(t, command("u1", "remind", "09:15"))
	reminders, _ := f.store.Reminders()
	if len(reminders) != 1 || reminders[0].Time != "09:15" {
		t.Errorf("setting twice must keep one row with the latest time: %v", reminders)
	}

	f.handle(t, command("u1", "remind", "off"))
	if got := f.msg.LastSent().Body; got != "Reminder off" {
		t.Errorf("off reply = %q", got)
	}
	if reminders, _ := f.store.Reminders(); len(reminders) != 0 {
		t.Errorf("off must delete the row: %v", reminders)
	}
}

func TestCustomizeAddFlow(t *testing.T) {
	f := newFixture(t)

	f.handle(t, command("u1", "customize"))
	last := f.msg.LastSent()
	if last.Body != "Customize habits:" || len(last.Keyboard.Rows) != 3 {
		t.Fatalf("customize menu wrong: %+v", last)
	}
	if f.currentState(t, "u1") != flow.StateChoosing {
		t.Fatalf("state = %q, want CHOOSING", f.currentState(t, "u1"))
	}

	f.handle(t, callback("u1", models.ActionAdd, 7))
	last = f.msg.LastSent()
	if !last.Edited || last.Body != "Send new habit name:" {
		t.Errorf("add prompt wrong: %+v", last)
	}
	if f.currentState(t, "u1") != flow.StateAdding {
		t.Fatalf("state = %q, want ADDING", f.currentState(t, "u1"))
	}

	f.handle(t, text("u1", "  Reading  "))
	if got := f.msg.LastSent().Body; got != "Habit added ✅" {
		t.Errorf("add ack = %q", got)
	}
	habits, _ := f.store.HabitsByUser("u1")
	if len(habits) != 1 || habits[0].Name != "Reading" {
		t.Errorf("habit not created with trimmed name: %v", habits)
	}
	if f.currentState(t, "u1") != "" {
		t.Errorf("session should end after add, state = %q", f.currentState(t, "u1"))
	}
}

func TestCustomizeRemoveFlow(t *testing.T) {
	f := newFixture(t)
	f.handle(t, command("u1", "start"))
	habits, _ := f.store.HabitsByUser("u1")
	victim := habits[1]

	f.handle(t, command("u1", "customize"))
	f.handle(t, callback("u1", models.ActionRemove, 7))

	last := f.msg.LastSent()
	if last.Body != "Choose habit:" || len(last.Keyboard.Rows) != len(habits) {
		t.Fatalf("habit picker wrong: %+v", last)
	}
	if last.Keyboard.Rows[1][0].Data != models.PickCallback(models.ActionRemove, victim.ID) {
		t.Errorf("picker payload = %q", last.Keyboard.Rows[1][0].Data)
	}

	f.handle(t, callback("u1", models.PickCallback(models.ActionRemove, victim.ID), 7))
	if got := f.msg.LastSent().Body; got != "Habit removed ❌" {
		t.Errorf("remove ack = %q", got)
	}
	remaining, _ := f.store.HabitsByUser("u1")
	if len(remaining) != len(habits)-1 {
		t.Errorf("habit not removed: %v", remaining)
	}
	for _, h := range remaining {
		if h.ID == victim.ID {
			t.Errorf("victim still present: %v", h)
		}
	}
	if f.currentState(t, "u1") != "" {
		t.Errorf("session should end after remove, state = %q", f.currentState(t, "u1"))
	}
}

func TestCustomizeEditFlow(t *testing.T) {
	f := newFixture(t)
	f.handle(t, command("u1", "start"))
	habits, _ := f.store.HabitsByUser("u1")
	target := habits[0]

	f.handle(t, command("u1", "customize"))
	f.handle(t, callback("u1", models.ActionEdit, 7))
	if f.currentState(t, "u1") != flow.StateEditingSelect {
		t.Fatalf("state = %q, want EDITING_SELECT", f.currentState(t, "u1"))
	}

	f.handle(t, callback("u1", models.PickCallback(models.ActionEdit, target.ID), 7))
	if got := f.msg.LastSent().Body; got != "Send new habit name:" {
		t.Errorf("edit prompt = %q", got)
	}
	if f.currentState(t, "u1") != flow.StateEditingValue {
		t.Fatalf("state = %q, want EDITING_VALUE", f.currentState(t, "u1"))
	}

	f.handle(t, text("u1", "🏊 Swim"))
	if got := f.msg.LastSent().Body; got != "Habit updated ✨" {
		t.Errorf("edit ack = %q", got)
	}
	habits, _ = f.store.HabitsByUser("u1")
	if habits[0].Name != "🏊 Swim" {
		t.Errorf("rename not applied: %v", habits[0])
	}
	if f.currentState(t, "u1") != "" {
		t.Errorf("session should end after edit, state = %q", f.currentState(t, "u1"))
	}
}

func TestCustomizeWithoutHabits(t *testing.T) {
	f := newFixture(t)

	f.handle(t, command("u1", "customize"))
	f.handle(t, callback("u1", models.ActionRemove, 7))

	last := f.msg.LastSent()
	if !last.Edited || last.Body != "No habits yet" {
		t.Errorf("expected 'No habits yet', got %+v", last)
	}
	if f.currentState(t, "u1") != "" {
		t.Errorf("session should end, state = %q", f.currentState(t, "u1"))
	}
}

func TestCommandCancelsActiveSession(t *testing.T) {
	f := newFixture(t)
	f.handle(t, command("u1", "customize"))
	f.handle(t, callback("u1", models.ActionAdd, 7))
	if f.currentState(t, "u1") != flow.StateAdding {
		t.Fatalf("state = %q, want ADDING", f.currentState(t, "u1"))
	}

	// An unrelated command discards the session.
	f.handle(t, command("u1", "menu"))
	if f.currentState(t, "u1") != "" {
		t.Fatalf("command should cancel the session, state = %q", f.currentState(t, "u1"))
	}

	// The follow-up text is no longer a habit name.
	f.handle(t, text("u1", "Reading"))
	if got := f.msg.LastSent().Body; got != DefaultReply {
		t.Errorf("text after cancel = %q, want default reply", got)
	}
	if habits, _ := f.store.HabitsByUser("u1"); len(habits) != 0 {
		t.Errorf("cancelled add still created a habit: %v", habits)
	}
}

func TestTextWhileAwaitingButtonIsDropped(t *testing.T) {
	f := newFixture(t)
	f.handle(t, command("u1", "customize"))
	f.msg.Reset()

	// The action menu is waiting for a button, not text.
	f.handle(t, text("u1", "hello"))
	if n := len(f.msg.Sent()); n != 0 {
		t.Errorf("text while CHOOSING should send nothing, got %d messages", n)
	}
	if f.currentState(t, "u1") != flow.StateChoosing {
		t.Errorf("dropped text should keep the session, state = %q", f.currentState(t, "u1"))
	}

	// Same while a habit picker is showing.
	f.handle(t, command("u1", "start"))
	f.handle(t, command("u1", "customize"))
	f.handle(t, callback("u1", models.ActionRemove, 7))
	f.msg.Reset()
	f.handle(t, text("u1", "2"))
	if n := len(f.msg.Sent()); n != 0 {
		t.Errorf("text while REMOVING should send nothing, got %d messages", n)
	}
	if f.currentState(t, "u1") != flow.StateRemoving {
		t.Errorf("dropped text should keep the session, state = %q", f.currentState(t, "u1"))
	}
}

func TestRejectedHabitNameKeepsSession(t *testing.T) {
	f := newFixture(t)
	f.handle(t, command("u1", "customize"))
	f.handle(t, callback("u1", models.ActionAdd, 7))

	f.handle(t, text("u1", strings.Repeat("x", models.MaxHabitNameLength+1)))
	if got := f.msg.LastSent().Body; got != badHabitNameText {
		t.Errorf("reply = %q, want name rejection", got)
	}
	if f.currentState(t, "u1") != flow.StateAdding {
		t.Errorf("rejection should keep the session waiting, state = %q", f.currentState(t, "u1"))
	}

	f.handle(t, text("u1", "Reading"))
	if habits, _ := f.store.HabitsByUser("u1"); len(habits) != 1 {
		t.Errorf("retry after rejection failed: %v", habits)
	}
}

func TestMoodProgress(t *testing.T) {
	f := newFixture(t)

	f.handle(t, command("u1", "mood_progress"))
	if got := f.msg.LastSent().Body; got != "No mood data yet 😶" {
		t.Errorf("empty history reply = %q", got)
	}

	f.store.SetMood("u1", "2026-08-21", 4)
	f.store.SetMood("u1", "2026-08-22", 8)
	f.handle(t, command("u1", "mood_progress"))

	last := f.msg.LastSent()
	if last.PhotoPath == "" {
		t.Fatalf("expected a photo, got %+v", last)
	}
	if _, err := os.Stat(last.PhotoPath); err != nil {
		t.Errorf("chart file missing: %v", err)
	}
}

func TestMenuAndStubs(t *testing.T) {
	f := newFixture(t)

	f.handle(t, command("u1", "menu"))
	if got := f.msg.LastSent().Body; !strings.Contains(got, "/customize") || !strings.Contains(got, "/remind HH:MM") {
		t.Errorf("menu = %q", got)
	}

	f.handle(t, command("u1", "week"))
	if got := f.msg.LastSent().Body; got != weekStubText {
		t.Errorf("week = %q", got)
	}
	f.handle(t, command("u1", "month"))
	if got := f.msg.LastSent().Body; got != monthStubText {
		t.Errorf("month = %q", got)
	}
}

func TestUnknownCommandAndStaleCallback(t *testing.T) {
	f := newFixture(t)

	f.handle(t, command("u1", "frobnicate"))
	if n := len(f.msg.Sent()); n != 0 {
		t.Errorf("unknown command should send nothing, got %d messages", n)
	}

	// A customize-flow payload with no live session is dropped.
	f.handle(t, callback("u1", models.PickCallback(models.ActionRemove, 1), 7))
	if n := len(f.msg.Sent()); n != 0 {
		t.Errorf("stale callback should send nothing, got %d messages", n)
	}
}

func TestUsersAreIsolated(t *testing.T) {
	f := newFixture(t)
	f.handle(t, command("u1", "start"))
	f.handle(t, command("u2", "start"))

	h1, _ := f.store.HabitsByUser("u1")
	h2, _ := f.store.HabitsByUser("u2")
	if len(h1) != 3 || len(h2) != 3 {
		t.Fatalf("seeding wrong: u1=%d u2=%d", len(h1), len(h2))
	}

	f.handle(t, callback("u1", models.ToggleCallback(h1[0].ID), 1))
	today := testNow.Format(models.DateLayout)
	if _, ok, _ := f.store.HabitLogValue("u2", h2[0].ID, today); ok {
		t.Error("u1's toggle leaked into u2's logs")
	}
}

func TestScenarioFullDay(t *testing.T) {
	f := newFixture(t)
	uid := fmt.Sprintf("%d", 987654321)

	f.handle(t, command(uid, "start"))
	habits, _ := f.store.HabitsByUser(uid)
	for _, h := range habits {
		f.handle(t, callback(uid, models.ToggleCallback(h.ID), 1))
	}
	f.handle(t, command(uid, "mood"))
	f.handle(t, callback(uid, "mood_9", 2))
	f.handle(t, command(uid, "remind", "21:00"))

	today := testNow.Format(models.DateLayout)
	for _, h := range habits {
		if v, ok, _ := f.store.HabitLogValue(uid, h.ID, today); !ok || v != 1 {
			t.Errorf("habit %d not completed: %d, %v", h.ID, v, ok)
		}
	}
	entries, _ := f.store.MoodEntries(uid)
	if len(entries) != 1 || entries[0].Value != 9 {
		t.Errorf("mood wrong: %v", entries)
	}
	reminders, _ := f.store.Reminders()
	if len(reminders) != 1 || reminders[0].Time != "21:00" {
		t.Errorf("reminder wrong: %v", reminders)
	}
}
