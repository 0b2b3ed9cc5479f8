package db

import (
	"database/sql"

	"github.com/rmacedo/patrol-ops/models"
)

func (s *Store) CreateSquad(squad *models.Squad) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO squads (id, name) VALUES ($1, $2)`, squad.ID, squad.Name)
	if err != nil {
		return err
	}
	for _, member := range squad.Members {
		result, err := tx.Exec(`
			UPDATE users SET squad_id = $1 WHERE id = $2 AND type = $3
		`, squad.ID, member, models.TypePolice)
		if err != nil {
			return err
		}
		if err := requireRow(result); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) GetSquad(id string) (*models.Squad, error) {
	var squad models.Squad
	err := s.db.QueryRow(`
		SELECT id, name, created_at FROM squads WHERE id = $1
	`, id).Scan(&squad.ID, &squad.Name, &squad.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`SELECT id FROM users WHERE squad_id = $1 ORDER BY created_at`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var member string
		if err := rows.Scan(&member); err != nil {
			return nil, err
		}
		squad.Members = append(squad.Members, member)
	}
	return &squad, rows.Err()
}

func (s *Store) ListSquads() ([]models.Squad, error) {
	rows, err := s.db.Query(`SELECT id, name, created_at FROM squads ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var squads []models.Squad
	for rows.Next() {
		var squad models.Squad
		if err := rows.Scan(&squad.ID, &squad.Name, &squad.CreatedAt); err != nil {
			return nil, err
		}
		squads = append(squads, squad)
	}
	return squads, rows.Err()
}

func (s *Store) RenameSquad(id, name string) error {
	result, err := s.db.Exec(`UPDATE squads SET name = $2 WHERE id = $1`, id, name)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (s *Store) DeleteSquad(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE users SET squad_id = NULL WHERE squad_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM call_for_service WHERE squad_id = $1`, id); err != nil {
		return err
	}
	result, err := tx.Exec(`DELETE FROM squads WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if err := requireRow(result); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) InsertSquadMember(squadID, userID string) error {
	result, err := s.db.Exec(`
		UPDATE users SET squad_id = $1
		WHERE id = $2 AND type = $3 AND squad_id IS NULL
	`, squadID, userID, models.TypePolice)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (s *Store) RemoveSquadMember(squadID, userID string) error {
	result, err := s.db.Exec(`
		UPDATE users SET squad_id = NULL
		WHERE id = $2 AND squad_id = $1
	`, squadID, userID)
	if err != nil {
		return err
	}
	return requireRow(result)
}
