package models

import "time"

// Squad is a named group of police users that works as one coordinated unit.
// Membership lives on the user rows (squad_id); Members carries the resolved
// ids when the squad is loaded.
type Squad struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"created_at"`
}
