// Package store provides storage backends for HabitPing.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/habitping/habitping/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) HabitsByUser(userID string) ([]models.Habit, error) {
	rows, err := s.db.Query(`SELECT id, user_id, name FROM habits WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		slog.Error("SQLiteStore HabitsByUser query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query habits for %s: %w", userID, err)
	}
	defer rows.Close()
	return scanHabits(rows)
}

func (s *SQLiteStore) CreateHabit(userID, name string) (int64, error) {
	res, err := s.db.Exec(`INSERT INTO habits (user_id, name) VALUES (?, ?)`, userID, name)
	if err != nil {
		slog.Error("SQLiteStore CreateHabit failed", "error", err, "userID", userID)
		return 0, fmt.Errorf("failed to insert habit for %s: %w", userID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted habit id: %w", err)
	}
	slog.Debug("SQLiteStore CreateHabit succeeded", "userID", userID, "habitID", id)
	return id, nil
}

func (s *SQLiteStore) RenameHabit(habitID int64, name string) error {
	_, err := s.db.Exec(`UPDATE habits SET name = ? WHERE id = ?`, name, habitID)
	if err != nil {
		slog.Error("SQLiteStore RenameHabit failed", "error", err, "habitID", habitID)
		return fmt.Errorf("failed to rename habit %d: %w", habitID, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteHabit(habitID int64) error {
	// No cascade to habit_logs: rows for deleted habits are kept but never
	// rendered again.
	_, err := s.db.Exec(`DELETE FROM habits WHERE id = ?`, habitID)
	if err != nil {
		slog.Error("SQLiteStore DeleteHabit failed", "error", err, "habitID", habitID)
		return fmt.Errorf("failed to delete habit %d: %w", habitID, err)
	}
	return nil
}

func (s *SQLiteStore) HabitLogValue(userID string, habitID int64, date string) (int, bool, error) {
	var v int
	err := s.db.QueryRow(`SELECT value FROM habit_logs WHERE user_id = ? AND habit_id = ? AND date = ?`,
		userID, habitID, date).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		slog.Error("SQLiteStore HabitLogValue failed", "error", err, "userID", userID, "habitID", habitID, "date", date)
		return 0, false, fmt.Errorf("failed to query habit log: %w", err)
	}
	return v, true, nil
}

func (s *SQLiteStore) ToggleHabitLog(userID string, habitID int64, date string) (int, error) {
	v, ok, err := s.HabitLogValue(userID, habitID, date)
	if err != nil {
		return 0, err
	}
	if !ok {
		if _, err := s.db.Exec(`INSERT INTO habit_logs (user_id, habit_id, date, value) VALUES (?, ?, ?, 1)`,
			userID, habitID, date); err != nil {
			slog.Error("SQLiteStore ToggleHabitLog insert failed", "error", err, "userID", userID, "habitID", habitID)
			return 0, fmt.Errorf("failed to insert habit log: %w", err)
		}
		return 1, nil
	}
	if _, err := s.db.Exec(`UPDATE habit_logs SET value = ? WHERE user_id = ? AND habit_id = ? AND date = ?`,
		1-v, userID, habitID, date); err != nil {
		slog.Error("SQLiteStore ToggleHabitLog update failed", "error", err, "userID", userID, "habitID", habitID)
		return 0, fmt.Errorf("failed to update habit log: %w", err)
	}
	return 1 - v, nil
}

func (s *SQLiteStore) SetMood(userID, date string, value int) error {
	_, err := s.db.Exec(`INSERT INTO mood (user_id, date, value) VALUES (?, ?, ?)
		ON CONFLICT (user_id, date) DO UPDATE SET value = excluded.value`,
		userID, date, value)
	if err != nil {
		slog.Error("SQLiteStore SetMood failed", "error", err, "userID", userID, "date", date)
		return fmt.Errorf("failed to upsert mood for %s: %w", userID, err)
	}
	slog.Debug("SQLiteStore SetMood succeeded", "userID", userID, "date", date, "value", value)
	return nil
}

func (s *SQLiteStore) MoodEntries(userID string) ([]models.MoodEntry, error) {
	rows, err := s.db.Query(`SELECT user_id, date, value FROM mood WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		slog.Error("SQLiteStore MoodEntries query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query mood entries for %s: %w", userID, err)
	}
	defer rows.Close()
	return scanMoodEntries(rows)
}

func (s *SQLiteStore) SetReminder(userID, clock string) error {
	_, err := s.db.Exec(`INSERT INTO reminders (user_id, time) VALUES (?, ?)
		ON CONFLICT (user_id) DO UPDATE SET time = excluded.time`,
		userID, clock)
	if err != nil {
		slog.Error("SQLiteStore SetReminder failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to upsert reminder for %s: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteReminder(userID string) error {
	_, err := s.db.Exec(`DELETE FROM reminders WHERE user_id = ?`, userID)
	if err != nil {
		slog.Error("SQLiteStore DeleteReminder failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to delete reminder for %s: %w", userID, err)
	}
	return nil
}

func (s *SQLiteStore) Reminders() ([]models.Reminder, error) {
	rows, err := s.db.Query(`SELECT user_id, time FROM reminders ORDER BY user_id`)
	if err != nil {
		slog.Error("SQLiteStore Reminders query failed", "error", err)
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
