package repository

import "errors"

var (
	// ErrNotFound indicates an entity was not located.
	ErrNotFound = errors.New("repository: not found")
	// ErrInvalidArgument indicates the storage layer rejected a value.
	ErrInvalidArgument = errors.New("repository: invalid argument")
	// ErrDuplicate indicates a unique constraint was violated.
	ErrDuplicate = errors.New("repository: duplicate")
	// ErrRosterFull indicates the team leader roster is at capacity.
	ErrRosterFull = errors.New("repository: roster full")
	// ErrAlreadyAssigned indicates the collaborator already belongs to a roster.
	ErrAlreadyAssigned = errors.New("repository: collaborator already assigned")
)
