package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "github.com/lib/pq"
)

// ErrNotFound is returned when a referenced entity does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps the Postgres connection and exposes the repository methods
// consumed by the API handlers and the realtime gateway.
type Store struct {
	db *sql.DB
}

func Open() (*Store, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
	)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	if err = conn.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	s := &Store{db: conn}
	if err = s.createTables(); err != nil {
		return nil, fmt.Errorf("error creating tables: %v", err)
	}

	return s, nil
}

func (s *Store) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS squads (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) NOT NULL UNIQUE,
			password VARCHAR(255) NOT NULL,
			type VARCHAR(20) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'notWorking',
			squad_id UUID REFERENCES squads(id),
			refresh_token TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS work_sessions (
			id UUID PRIMARY KEY,
			owner_ref UUID NOT NULL,
			kind VARCHAR(20) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'inProgress',
			started_at TIMESTAMP WITH TIME ZONE NOT NULL,
			ended_at TIMESTAMP WITH TIME ZONE
		)`,
		`CREATE TABLE IF NOT EXISTS occurrences (
			id UUID PRIMARY KEY,
			type VARCHAR(20) NOT NULL,
			parent_work_ref UUID NOT NULL REFERENCES work_sessions(id),
			operator_work_ref UUID REFERENCES work_sessions(id),
			status VARCHAR(20) NOT NULL DEFAULT 'inProgress',
			started_at TIMESTAMP WITH TIME ZONE NOT NULL,
			ended_at TIMESTAMP WITH TIME ZONE
		)`,
		`CREATE TABLE IF NOT EXISTS work_session_occurrences (
			work_id UUID NOT NULL REFERENCES work_sessions(id),
			occurrence_id UUID NOT NULL REFERENCES occurrences(id),
			PRIMARY KEY (work_id, occurrence_id)
		)`,
		`CREATE TABLE IF NOT EXISTS occurrence_coordinates (
			id BIGSERIAL PRIMARY KEY,
			occurrence_id UUID NOT NULL REFERENCES occurrences(id),
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			recorded_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS occurrence_backups (
			occurrence_id UUID NOT NULL REFERENCES occurrences(id),
			backup_ref UUID NOT NULL,
			PRIMARY KEY (occurrence_id, backup_ref)
		)`,
		`CREATE TABLE IF NOT EXISTS user_references (
			user_id UUID NOT NULL REFERENCES users(id),
			field VARCHAR(20) NOT NULL,
			ref_id UUID NOT NULL,
			PRIMARY KEY (user_id, field, ref_id)
		)`,
		`CREATE TABLE IF NOT EXISTS call_for_service (
			squad_id UUID PRIMARY KEY REFERENCES squads(id),
			requester_id UUID NOT NULL REFERENCES users(id),
			offline_members TEXT[] NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_users_squad ON users(squad_id)`,
		`CREATE INDEX IF NOT EXISTS idx_work_sessions_owner ON work_sessions(owner_ref)`,
		`CREATE INDEX IF NOT EXISTS idx_occurrence_coordinates_occurrence ON occurrence_coordinates(occurrence_id, id)`,
		`CREATE INDEX IF NOT EXISTS idx_user_references_user ON user_references(user_id, field)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
