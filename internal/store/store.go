// Package store provides storage backends for HabitPing.
//
// It defines the Store interface over habits, daily habit logs, mood
// entries and reminders, with SQLite, PostgreSQL and in-memory
// implementations.
package store

import (
	"sort"
	"strings"
	"sync"

	"github.com/habitping/habitping/internal/models"
)

// Store is the persistence abstraction used by the bot and the reminder
// poller. All operations are single-row point reads and upserts.
type Store interface {
	// HabitsByUser returns the user's habits in insertion order.
	HabitsByUser(userID string) ([]models.Habit, error)

	// CreateHabit inserts a habit and returns its store-assigned id.
	CreateHabit(userID, name string) (int64, error)

	// RenameHabit updates a habit's display name. Renaming a habit that
	// does not exist is a no-op.
	RenameHabit(habitID int64, name string) error

	// DeleteHabit removes a habit row. Logs referencing it are kept and
	// simply never rendered again.
	DeleteHabit(habitID int64) error

	// HabitLogValue returns the completion value logged for (user, habit,
	// date) and whether such a row exists.
	HabitLogValue(userID string, habitID int64, date string) (int, bool, error)

	// ToggleHabitLog flips the completion value for (user, habit, date):
	// the first toggle of a day inserts value=1, later toggles flip the
	// stored value. It returns the new value.
	ToggleHabitLog(userID string, habitID int64, date string) (int, error)

	// SetMood upserts the mood entry for (user, date); the latest write
	// wins.
	SetMood(userID, date string, value int) error

	// MoodEntries returns all of the user's mood entries in insertion
	// order.
	MoodEntries(userID string) ([]models.MoodEntry, error)

	// SetReminder upserts the user's daily reminder time ("HH:MM").
	SetReminder(userID, clock string) error

	// DeleteReminder removes the user's reminder. Deleting a missing
	// reminder is a no-op.
	DeleteReminder(userID string) error

	// Reminders returns every stored reminder for the poller's scan pass.
	Reminders() ([]models.Reminder, error)

	// Close releases the underlying resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store construction.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite" based on its
// shape. File paths fall through to SQLite.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore is a map-backed Store used in tests and when no DSN is
// configured. It mirrors the SQL backends' semantics, including the
// absence of cascading deletes from habits to logs.
type InMemoryStore struct {
	mu        sync.Mutex
	nextID    int64
	habits    []models.Habit
	logs      map[logKey]int
	moods     []models.MoodEntry
	reminders map[string]string
}

type logKey struct {
	userID  string
	habitID int64
	date    string
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		nextID:    1,
		logs:      make(map[logKey]int),
		reminders: make(map[string]string),
	}
}

func (s *InMemoryStore) HabitsByUser(userID string) ([]models.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Habit
	for _, h := range s.habits {
		if h.UserID == userID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *InMemoryStore) CreateHabit(userID, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.habits = append(s.habits, models.Habit{ID: id, UserID: userID, Name: name})
	return id, nil
}

func (s *InMemoryStore) RenameHabit(habitID int64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.habits {
		if s.habits[i].ID == habitID {
			s.habits[i].Name = name
			return nil
		}
	}
	return nil
}

func (s *InMemoryStore) DeleteHabit(habitID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.habits {
		if s.habits[i].ID == habitID {
			s.habits = append(s.habits[:i], s.habits[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *InMemoryStore) HabitLogValue(userID string, habitID int64, date string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.logs[logKey{userID, habitID, date}]
	return v, ok, nil
}

func (s *InMemoryStore) ToggleHabitLog(userID string, habitID int64, date string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := logKey{userID, habitID, date}
	if v, ok := s.logs[key]; ok {
		s.logs[key] = 1 - v
		return 1 - v, nil
	}
	s.logs[key] = 1
	return 1, nil
}

func (s *InMemoryStore) SetMood(userID, date string, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.moods {
		if s.moods[i].UserID == userID && s.moods[i].Date == date {
			s.moods[i].Value = value
			return nil
		}
	}
	s.moods = append(s.moods, models.MoodEntry{UserID: userID, Date: date, Value: value})
	return nil
}

func (s *InMemoryStore) MoodEntries(userID string) ([]models.MoodEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.MoodEntry
	for _, m := range s.moods {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *InMemoryStore) SetReminder(userID, clock string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminders[userID] = clock
	return nil
}

func (s *InMemoryStore) DeleteReminder(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reminders, userID)
	return nil
}

func (s *InMemoryStore) Reminders() ([]models.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Reminder, 0, len(s.reminders))
	for uid, clock := range s.reminders {
		out = append(out, models.Reminder{UserID: uid, Time: clock})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
