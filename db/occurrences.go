package db

import (
	"database/sql"
	"time"

	"github.com/rmacedo/patrol-ops/models"
)

func (s *Store) CreateOccurrence(occurrence *models.Occurrence) error {
	_, err := s.db.Exec(`
		INSERT INTO occurrences (id, type, parent_work_ref, status, started_at)
		VALUES ($1, $2, $3, $4, $5)
	`, occurrence.ID, occurrence.Type, occurrence.ParentWorkRef, occurrence.Status, occurrence.StartedAt)
	return err
}

func (s *Store) GetOccurrence(id string) (*models.Occurrence, error) {
	var occurrence models.Occurrence
	var operatorWork sql.NullString
	var endedAt sql.NullTime
	err := s.db.QueryRow(`
		SELECT id, type, parent_work_ref, operator_work_ref, status, started_at, ended_at
		FROM occurrences WHERE id = $1
	`, id).Scan(&occurrence.ID, &occurrence.Type, &occurrence.ParentWorkRef,
		&operatorWork, &occurrence.Status, &occurrence.StartedAt, &endedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if operatorWork.Valid {
		occurrence.OperatorWorkRef = operatorWork.String
	}
	if endedAt.Valid {
		occurrence.EndedAt = &endedAt.Time
	}

	backups, err := s.db.Query(`SELECT backup_ref FROM occurrence_backups WHERE occurrence_id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer backups.Close()
	for backups.Next() {
		var ref string
		if err := backups.Scan(&ref); err != nil {
			return nil, err
		}
		occurrence.BackupRefs = append(occurrence.BackupRefs, ref)
	}
	if err := backups.Err(); err != nil {
		return nil, err
	}

	coords, err := s.db.Query(`
		SELECT latitude, longitude FROM occurrence_coordinates
		WHERE occurrence_id = $1 ORDER BY id
	`, id)
	if err != nil {
		return nil, err
	}
	defer coords.Close()
	for coords.Next() {
		var c models.Coordinate
		if err := coords.Scan(&c.Latitude, &c.Longitude); err != nil {
			return nil, err
		}
		occurrence.Coordinates = append(occurrence.Coordinates, c)
	}
	return &occurrence, coords.Err()
}

// SetOccurrenceOperator binds an operator work session to the occurrence.
func (s *Store) SetOccurrenceOperator(id, operatorWorkRef string) error {
	result, err := s.db.Exec(`
		UPDATE occurrences SET operator_work_ref = $2 WHERE id = $1
	`, id, operatorWorkRef)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// AddOccurrenceBackup registers a squad or individual on the backup set.
// Duplicate registrations are no-ops.
func (s *Store) AddOccurrenceBackup(id, backupRef string) error {
	var exists bool
	err := s.db.QueryRow(`SELECT EXISTS (SELECT 1 FROM occurrences WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	_, err = s.db.Exec(`
		INSERT INTO occurrence_backups (occurrence_id, backup_ref)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, id, backupRef)
	return err
}

// AppendOccurrenceCoordinate appends one point to the location log.
func (s *Store) AppendOccurrenceCoordinate(id string, latitude, longitude float64) error {
	var exists bool
	err := s.db.QueryRow(`SELECT EXISTS (SELECT 1 FROM occurrences WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	_, err = s.db.Exec(`
		INSERT INTO occurrence_coordinates (occurrence_id, latitude, longitude)
		VALUES ($1, $2, $3)
	`, id, latitude, longitude)
	return err
}

func (s *Store) FinishOccurrence(id string, endedAt time.Time) error {
	result, err := s.db.Exec(`
		UPDATE occurrences SET status = $2, ended_at = $3
		WHERE id = $1 AND status = $4
	`, id, models.WorkFinished, endedAt, models.WorkInProgress)
	if err != nil {
		return err
	}
	return requireRow(result)
}
