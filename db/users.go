package db

import (
	"database/sql"

	"github.com/rmacedo/patrol-ops/models"
)

const userColumns = `id, name, email, password, type, status, COALESCE(squad_id::text, ''), refresh_token, created_at`

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.Type, &u.Status, &u.SquadID, &u.RefreshToken, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) CreateUser(u *models.User) error {
	_, err := s.db.Exec(`
		INSERT INTO users (id, name, email, password, type, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.ID, u.Name, u.Email, u.Password, u.Type, u.Status)
	return err
}

func (s *Store) GetUser(id string) (*models.User, error) {
	return scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *Store) GetUserByEmail(email string) (*models.User, error) {
	return scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (s *Store) GetUserByRefreshToken(token string) (*models.User, error) {
	return scanUser(s.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE refresh_token = $1`, token))
}

func (s *Store) ListUsers() ([]models.User, error) {
	return s.listUsers(`SELECT ` + userColumns + ` FROM users ORDER BY created_at`)
}

// ListFreeUsers lists police users that are not assigned to any squad.
func (s *Store) ListFreeUsers() ([]models.User, error) {
	return s.listUsers(`SELECT `+userColumns+` FROM users WHERE type = $1 AND squad_id IS NULL`, models.TypePolice)
}

func (s *Store) listUsers(query string, args ...interface{}) ([]models.User, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Password, &u.Type, &u.Status, &u.SquadID, &u.RefreshToken, &u.CreatedAt)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUser writes back every mutable field of the user row.
func (s *Store) UpdateUser(u *models.User) error {
	result, err := s.db.Exec(`
		UPDATE users
		SET name = $2, email = $3, password = $4, status = $5,
		    squad_id = NULLIF($6, '')::uuid, refresh_token = $7
		WHERE id = $1
	`, u.ID, u.Name, u.Email, u.Password, u.Status, u.SquadID, u.RefreshToken)
	if err != nil {
		return err
	}
	return requireRow(result)
}

func (s *Store) DeleteUser(id string) error {
	if _, err := s.db.Exec(`DELETE FROM user_references WHERE user_id = $1`, id); err != nil {
		return err
	}
	result, err := s.db.Exec(`DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(result)
}

// AppendUserReference records a reverse reference (work, occurrence or
// supported occurrence) on a user. Duplicate appends are no-ops.
func (s *Store) AppendUserReference(userID, field, refID string) error {
	_, err := s.db.Exec(`
		INSERT INTO user_references (user_id, field, ref_id)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, userID, field, refID)
	return err
}

func (s *Store) CountUserReferences(userID string) (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT field, COUNT(*) FROM user_references
		WHERE user_id = $1 GROUP BY field
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var field string
		var n int
		if err := rows.Scan(&field, &n); err != nil {
			return nil, err
		}
		counts[field] = n
	}
	return counts, rows.Err()
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
