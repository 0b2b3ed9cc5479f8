package models

import "time"

type WorkKind string

const (
	WorkOperations WorkKind = "operations"
	WorkPatrolling WorkKind = "patrolling"
)

type WorkStatus string

const (
	WorkInProgress WorkStatus = "inProgress"
	WorkFinished   WorkStatus = "finished"
)

// WorkSession is a timed span during which an owner (an individual user or
// a whole squad) is on duty. At most one in-progress session exists per
// owner at a time.
type WorkSession struct {
	ID          string     `json:"id"`
	OwnerRef    string     `json:"owner_ref"` // user id or squad id
	Kind        WorkKind   `json:"kind"`
	Status      WorkStatus `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	Occurrences []string   `json:"occurrences,omitempty"`
}
