// Package store provides storage backends for HabitPing.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "embed"

	"github.com/habitping/habitping/internal/models"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN and
// applies the idempotent schema migrations.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open PostgreSQL connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("PostgreSQL ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgreSQL migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) HabitsByUser(userID string) ([]models.Habit, error) {
	rows, err := s.db.Query(`SELECT id, user_id, name FROM habits WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		slog.Error("PostgresStore HabitsByUser query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query habits for %s: %w", userID, err)
	}
	defer rows.Close()
	return scanHabits(rows)
}

func (s *PostgresStore) CreateHabit(userID, name string) (int64, error) {
	var id int64
	err := s.db.QueryRow(`INSERT INTO habits (user_id, name) VALUES ($1, $2) RETURNING id`, userID, name).Scan(&id)
	if err != nil {
		slog.Error("PostgresStore CreateHabit failed", "error", err, "userID", userID)
		return 0, fmt.Errorf("failed to insert habit for %s: %w", userID, err)
	}
	slog.Debug("PostgresStore CreateHabit succeeded", "userID", userID, "habitID", id)
	return id, nil
}

func (s *PostgresStore) RenameHabit(habitID int64, name string) error {
	_, err := s.db.Exec(`UPDATE habits SET name = $1 WHERE id = $2`, name, habitID)
	if err != nil {
		slog.Error("PostgresStore RenameHabit failed", "error", err, "habitID", habitID)
		return fmt.Errorf("failed to rename habit %d: %w", habitID, err)
	}
	return nil
}

func (s *PostgresStore) DeleteHabit(habitID int64) error {
	_, err := s.db.Exec(`DELETE FROM habits WHERE id = $1`, habitID)
	if err != nil {
		slog.Error("PostgresStore DeleteHabit failed", "error", err, "habitID", habitID)
		return fmt.Errorf("failed to delete habit %d: %w", habitID, err)
	}
	return nil
}

func (s *PostgresStore) HabitLogValue(userID string, habitID int64, date string) (int, bool, error) {
	var v int
	err := s.db.QueryRow(`SELECT value FROM habit_logs WHERE user_id = $1 AND habit_id = $2 AND date = $3`,
		userID, habitID, date).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		slog.Error("PostgresStore HabitLogValue failed", "error", err, "userID", userID, "habitID", habitID, "date", date)
		return 0, false, fmt.Errorf("failed to query habit log: %w", err)
	}
	return v, true, nil
}

func (s *PostgresStore) ToggleHabitLog(userID string, habitID int64, date string) (int, error) {
	v, ok, err := s.HabitLogValue(userID, habitID, date)
	if err != nil {
		return 0, err
	}
	if !ok {
		if _, err := s.db.Exec(`INSERT INTO habit_logs (user_id, habit_id, date, value) VALUES ($1, $2, $3, 1)`,
			userID, habitID, date); err != nil {
			slog.Error("PostgresStore ToggleHabitLog insert failed", "error", err, "userID", userID, "habitID", habitID)
			return 0, fmt.Errorf("failed to insert habit log: %w", err)
		}
		return 1, nil
	}
	if _, err := s.db.Exec(`UPDATE habit_logs SET value = $1 WHERE user_id = $2 AND habit_id = $3 AND date = $4`,
		1-v, userID, habitID, date); err != nil {
		slog.Error("PostgresStore ToggleHabitLog update failed", "error", err, "userID", userID, "habitID", habitID)
		return 0, fmt.Errorf("failed to update habit log: %w", err)
	}
	return 1 - v, nil
}

func (s *PostgresStore) SetMood(userID, date string, value int) error {
	_, err := s.db.Exec(`INSERT INTO mood (user_id, date, value) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, date) DO UPDATE SET value = EXCLUDED.value`,
		userID, date, value)
	if err != nil {
		slog.Error("PostgresStore SetMood failed", "error", err, "userID", userID, "date", date)
		return fmt.Errorf("failed to upsert mood for %s: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) MoodEntries(userID string) ([]models.MoodEntry, error) {
	rows, err := s.db.Query(`SELECT user_id, date, value FROM mood WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		slog.Error("PostgresStore MoodEntries query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query mood entries for %s: %w", userID, err)
	}
	defer rows.Close()
	return scanMoodEntries(rows)
}

func (s *PostgresStore) SetReminder(userID, clock string) error {
	_, err := s.db.Exec(`INSERT INTO reminders (user_id, time) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET time = EXCLUDED.time`,
		userID, clock)
	if err != nil {
		slog.Error("PostgresStore SetReminder failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to upsert reminder for %s: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) DeleteReminder(userID string) error {
	_, err := s.db.Exec(`DELETE FROM reminders WHERE user_id = $1`, userID)
	if err != nil {
		slog.Error("PostgresStore DeleteReminder failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to delete reminder for %s: %w", userID, err)
	}
	return nil
}

func (s *PostgresStore) Reminders() ([]models.Reminder, error) {
	rows, err := s.db.Query(`SELECT user_id, time FROM reminders ORDER BY user_id`)
	if err != nil {
		slog.Error("PostgresStore Reminders query failed", "error", err)
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()
	return scanReminders(rows)
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close PostgreSQL database", "error", err)
	}
	return err
}
