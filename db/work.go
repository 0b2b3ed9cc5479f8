package db

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/rmacedo/patrol-ops/models"
)

func (s *Store) CreateWorkSession(work *models.WorkSession) error {
	_, err := s.db.Exec(`
		INSERT INTO work_sessions (id, owner_ref, kind, status, started_at)
		VALUES ($1, $2, $3, $4, $5)
	`, work.ID, work.OwnerRef, work.Kind, work.Status, work.StartedAt)
	return err
}

func (s *Store) GetWorkSession(id string) (*models.WorkSession, error) {
	var work models.WorkSession
	var endedAt sql.NullTime
	err := s.db.QueryRow(`
		SELECT id, owner_ref, kind, status, started_at, ended_at
		FROM work_sessions WHERE id = $1
	`, id).Scan(&work.ID, &work.OwnerRef, &work.Kind, &work.Status, &work.StartedAt, &endedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if endedAt.Valid {
		work.EndedAt = &endedAt.Time
	}

	rows, err := s.db.Query(`
		SELECT occurrence_id FROM work_session_occurrences WHERE work_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var occurrenceID string
		if err := rows.Scan(&occurrenceID); err != nil {
			return nil, err
		}
		work.Occurrences = append(work.Occurrences, occurrenceID)
	}
	return &work, rows.Err()
}

// FinishWorkSession marks an in-progress session finished. Returns
// ErrNotFound when the session does not exist or is already finished.
func (s *Store) FinishWorkSession(id string, endedAt time.Time) error {
	result, err := s.db.Exec(`
		UPDATE work_sessions SET status = $2, ended_at = $3
		WHERE id = $1 AND status = $4
	`, id, models.WorkFinished, endedAt, models.WorkInProgress)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// FindActiveWork returns the in-progress session for an owner, if any.
func (s *Store) FindActiveWork(ownerRef string) (*models.WorkSession, error) {
	var id string
	err := s.db.QueryRow(`
		SELECT id FROM work_sessions WHERE owner_ref = $1 AND status = $2
	`, ownerRef, models.WorkInProgress).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.GetWorkSession(id)
}

func (s *Store) AppendWorkOccurrence(workID, occurrenceID string) error {
	_, err := s.db.Exec(`
		INSERT INTO work_session_occurrences (work_id, occurrence_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, workID, occurrenceID)
	return err
}

func (s *Store) CreateCallForService(cfs *models.CallForService) error {
	_, err := s.db.Exec(`
		INSERT INTO call_for_service (squad_id, requester_id, offline_members)
		VALUES ($1, $2, $3)
		ON CONFLICT (squad_id) DO NOTHING
	`, cfs.SquadID, cfs.RequesterID, pq.Array(cfs.OfflineMembers))
	return err
}

func (s *Store) FindCallForService(squadID string) (*models.CallForService, error) {
	var cfs models.CallForService
	err := s.db.QueryRow(`
		SELECT squad_id, requester_id, offline_members
		FROM call_for_service WHERE squad_id = $1
	`, squadID).Scan(&cfs.SquadID, &cfs.RequesterID, pq.Array(&cfs.OfflineMembers))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cfs, nil
}

func (s *Store) UpdateCallForService(cfs *models.CallForService) error {
	result, err := s.db.Exec(`
		UPDATE call_for_service SET offline_members = $2 WHERE squad_id = $1
	`, cfs.SquadID, pq.Array(cfs.OfflineMembers))
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (s *Store) DeleteCallForService(squadID string) error {
	_, err := s.db.Exec(`DELETE FROM call_for_service WHERE squad_id = $1`, squadID)
	return err
}
