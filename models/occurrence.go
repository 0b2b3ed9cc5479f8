package models

import "time"

type OccurrenceType string

const (
	OccurrenceChase   OccurrenceType = "chase"
	OccurrenceSupport OccurrenceType = "support"
)

// Coordinate is one point of an occurrence location log.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Occurrence is a tracked incident (a chase, or support to one) bound to
// the work session that opened it. The coordinate log is append-only while
// the occurrence is in progress.
type Occurrence struct {
	ID              string         `json:"id"`
	Type            OccurrenceType `json:"type"`
	ParentWorkRef   string         `json:"parent_work_ref"`
	OperatorWorkRef string         `json:"operator_work_ref,omitempty"`
	BackupRefs      []string       `json:"backup_refs,omitempty"`
	Status          WorkStatus     `json:"status"`
	Coordinates     []Coordinate   `json:"coordinates,omitempty"`
	StartedAt       time.Time      `json:"started_at"`
	EndedAt         *time.Time     `json:"ended_at,omitempty"`
}
