package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Callback payload prefixes. The full grammar is:
//
//	h_<habitId>         toggle today's completion of a habit
//	mood_<0..10>        record today's mood score
//	cal_<YYYY-MM-DD>    select a calendar date
//	add | edit | remove customize-flow action choice
//	remove_<habitId>    customize-flow habit selection for removal
//	edit_<habitId>      customize-flow habit selection for renaming
const (
	ToggleCallbackPrefix   = "h_"
	MoodCallbackPrefix     = "mood_"
	CalendarCallbackPrefix = "cal_"
	RemoveCallbackPrefix   = "remove_"
	EditCallbackPrefix     = "edit_"
)

// Customize-flow action payloads.
const (
	ActionAdd    = "add"
	ActionEdit   = "edit"
	ActionRemove = "remove"
)

// ToggleCallback builds the payload for a habit toggle button.
func ToggleCallback(habitID int64) string {
	return ToggleCallbackPrefix + strconv.FormatInt(habitID, 10)
}

// MoodCallback builds the payload for a mood score button.
func MoodCallback(value int) string {
	return MoodCallbackPrefix + strconv.Itoa(value)
}

// CalendarCallback builds the payload for a calendar date button.
func CalendarCallback(isoDate string) string {
	return CalendarCallbackPrefix + isoDate
}

// PickCallback builds the payload for a customize-flow habit selection
// button, action being ActionRemove or ActionEdit.
func PickCallback(action string, habitID int64) string {
	return action + "_" + strconv.FormatInt(habitID, 10)
}

// ParseHabitID extracts the habit id from a payload of the form
// "<prefix><id>". It returns ErrUnknownCallback when the payload does not
// carry the prefix or the id is not numeric.
func ParseHabitID(data, prefix string) (int64, error) {
	rest, ok := strings.CutPrefix(data, prefix)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCallback, data)
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad habit id in %q", ErrUnknownCallback, data)
	}
	return id, nil
}

// ParseMoodValue extracts and range-checks the mood score from a
// "mood_<n>" payload.
func ParseMoodValue(data string) (int, error) {
	rest, ok := strings.CutPrefix(data, MoodCallbackPrefix)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCallback, data)
	}
	v, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("%w: bad mood value in %q", ErrUnknownCallback, data)
	}
	if v < MinMoodValue || v > MaxMoodValue {
		return 0, ErrMoodOutOfRange
	}
	return v, nil
}

// ParseCalendarDate extracts the ISO date string from a "cal_<date>"
// payload. The date is echoed back verbatim, so only the prefix is
// validated here.
func ParseCalendarDate(data string) (string, error) {
	rest, ok := strings.CutPrefix(data, CalendarCallbackPrefix)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCallback, data)
	}
	return rest, nil
}
