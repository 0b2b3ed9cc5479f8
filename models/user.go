package models

import "time"

type UserType string

const (
	TypeManager  UserType = "manager"
	TypeOperator UserType = "operator"
	TypePolice   UserType = "police"
)

type UserStatus string

const (
	StatusNotWorking UserStatus = "notWorking"
	StatusWorking    UserStatus = "working"
)

// User is an account that can sign in: managers administer the roster,
// operators staff the operations center, polices patrol (optionally in a
// squad).
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Password     string     `json:"-"` // salt.hash, never serialized
	Type         UserType   `json:"type"`
	Status       UserStatus `json:"status"`
	SquadID      string     `json:"squad_id,omitempty"`
	RefreshToken string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
}

// UserStats aggregates the reverse references kept for each user.
type UserStats struct {
	Work        int `json:"work"`
	Occurrences int `json:"occurrences"`
	Supported   int `json:"supported,omitempty"`
}
