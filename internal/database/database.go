package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB wraps the sqlite connection for the clinic service.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

var (
	ErrNotFound        = errors.New("not found")
	ErrPlanInUse       = errors.New("plan is referenced by patients")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidModality = errors.New("invalid modality")
)

// NewDB opens the database at path, enabling WAL mode, and runs migrations.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	instance := &DB{DB: db, logger: logger}
	if err := instance.createTables(); err != nil {
		return nil, err
	}
	return instance, nil
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS plans (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			name TEXT NOT NULL,
			value TEXT NOT NULL DEFAULT '0',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS patients (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			name TEXT NOT NULL,
			email TEXT,
			payment_type TEXT NOT NULL DEFAULT 'private',
			custom_price TEXT,
			plan_id TEXT,
			status TEXT NOT NULL DEFAULT 'active',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (plan_id) REFERENCES plans(id)
		)`,

		`CREATE TABLE IF NOT EXISTS recurring_slots (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			patient_id TEXT NOT NULL,
			day_of_week INTEGER NOT NULL,
			start_time TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (patient_id) REFERENCES patients(id)
		)`,

		// No FK on patient_id: appointments outlive their patient so the
		// financial history stays intact after a patient is removed.
		`CREATE TABLE IF NOT EXISTS appointments (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			patient_id TEXT NOT NULL,
			date DATETIME NOT NULL,
			modality TEXT NOT NULL DEFAULT 'in_person',
			status TEXT NOT NULL DEFAULT 'scheduled',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_patients_owner ON patients(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_plans_owner ON plans(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_slots_owner ON recurring_slots(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_slots_day ON recurring_slots(owner_id, day_of_week)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_owner_date ON appointments(owner_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_status ON appointments(status)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}
