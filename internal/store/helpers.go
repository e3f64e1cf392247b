package store

import (
	"database/sql"
	"fmt"

	"github.com/habitping/habitping/internal/models"
)

// scanHabits drains a habit result set.
func scanHabits(rows *sql.Rows) ([]models.Habit, error) {
	var habits []models.Habit
	for rows.Next() {
		var h models.Habit
		if err := rows.Scan(&h.ID, &h.UserID, &h.Name); err != nil {
			return nil, fmt.Errorf("scan habit failed: %w", err)
		}
		habits = append(habits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate habit rows failed: %w", err)
	}
	return habits, nil
}

// scanMoodEntries drains a mood result set.
func scanMoodEntries(rows *sql.Rows) ([]models.MoodEntry, error) {
	var entries []models.MoodEntry
	for rows.Next() {
		var m models.MoodEntry
		if err := rows.Scan(&m.UserID, &m.Date, &m.Value); err != nil {
			return nil, fmt.Errorf("scan mood entry failed: %w", err)
		}
		entries = append(entries, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mood rows failed: %w", err)
	}
	return entries, nil
}

// scanReminders drains a reminder result set.
func scanReminders(rows *sql.Rows) ([]models.Reminder, error) {
	var reminders []models.Reminder
	for rows.Next() {
		var r models.Reminder
		if err := rows.Scan(&r.UserID, &r.Time); err != nil {
			return nil, fmt.Errorf("scan reminder failed: %w", err)
		}
		reminders = append(reminders, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reminder rows failed: %w", err)
	}
	return reminders, nil
}
