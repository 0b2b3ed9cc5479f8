package realtime

import "errors"

var (
	// ErrUnauthorized means the connection credential was missing or
	// invalid; the connection is terminated without a session.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidState means the operation does not apply to the caller's
	// current state (no active work, duplicate finish, ...). Reported to
	// the caller, never fatal to the connection.
	ErrInvalidState = errors.New("invalid state")

	// ErrAlreadyPending means a quorum is already open for the squad; the
	// new request is rejected and the existing quorum kept.
	ErrAlreadyPending = errors.New("quorum already pending")
)
