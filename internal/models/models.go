// Package models defines the core data structures for HabitPing.
//
// It includes the persisted habit/mood/reminder types and the inbound
// event and outbound keyboard types shared across modules.
package models

import (
	"errors"
	"regexp"
	"time"
	"unicode/utf8"
)

// DateLayout is the calendar-date format used for all persisted dates.
const DateLayout = "2006-01-02"

// ClockLayout is the wall-clock format used for reminder times.
const ClockLayout = "15:04"

// Validation constants for input validation
const (
	// MaxHabitNameLength defines the maximum allowed habit name length in runes
	MaxHabitNameLength = 100
	// MinMoodValue is the lowest mood score a user can record
	MinMoodValue = 0
	// MaxMoodValue is the highest mood score a user can record
	MaxMoodValue = 10
)

// Error variables for better error handling and testability
var (
	ErrEmptyRecipient   = errors.New("recipient cannot be empty")
	ErrEmptyHabitName   = errors.New("habit name cannot be empty")
	ErrHabitNameTooLong = errors.New("habit name exceeds maximum length")
	ErrMoodOutOfRange   = errors.New("mood value must be between 0 and 10")
	ErrInvalidClockTime = errors.New("reminder time must match HH:MM")
	ErrUnknownCallback  = errors.New("unknown callback payload")
)

// DefaultHabits are seeded once for any user who has no habits yet.
var DefaultHabits = []string{"🏃 Sport", "💧 Water", "📚 Study"}

// clockRe matches the two-digit:two-digit reminder time shape.
var clockRe = regexp.MustCompile(`^\d{2}:\d{2}$`)

// ValidateClockTime reports whether s is a well-formed HH:MM string with
// hour and minute in range, so "08:30" passes and "99:99" does not.
// Poller matching stays a pure string comparison against the stored value.
func ValidateClockTime(s string) error {
	if !clockRe.MatchString(s) {
		return ErrInvalidClockTime
	}
	if _, err := time.Parse(ClockLayout, s); err != nil {
		return ErrInvalidClockTime
	}
	return nil
}

// ValidateHabitName checks a user-supplied habit name. The length limit
// counts runes, not bytes, so emoji-heavy names are not penalized.
func ValidateHabitName(name string) error {
	if name == "" {
		return ErrEmptyHabitName
	}
	if utf8.RuneCountInString(name) > MaxHabitNameLength {
		return ErrHabitNameTooLong
	}
	return nil
}

// Habit is a user-defined recurring task tracked per calendar day.
type Habit struct {
	ID     int64  `json:"id"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// HabitLog records the completion value of one habit on one date.
// At most one row exists per (user, habit, date).
type HabitLog struct {
	UserID  string `json:"user_id"`
	HabitID int64  `json:"habit_id"`
	Date    string `json:"date"` // YYYY-MM-DD
	Value   int    `json:"value"`
}

// MoodEntry records a 0-10 mood score for one date. Later writes for the
// same (user, date) replace earlier ones.
type MoodEntry struct {
	UserID string `json:"user_id"`
	Date   string `json:"date"`
	Value  int    `json:"value"`
}

// Reminder holds a user's daily reminder time as an HH:MM string.
// At most one reminder exists per user.
type Reminder struct {
	UserID string `json:"user_id"`
	Time   string `json:"time"`
}
