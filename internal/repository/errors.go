// Package repository defines the persistence collaborator used by the
// scheduler services together with its MySQL implementation.  The
// sentinel values below let higher layers distinguish failure scenarios
// without inspecting driver errors.
package repository

import "errors"

// ErrNotFound is returned when a requested row does not exist.  It plays
// the role sql.ErrNoRows plays inside the repository so that other store
// implementations can report the same condition.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write cannot be performed because of
// conflicting state, such as deleting a maintenance period that does not
// belong to the caller's scope or a duplicate key.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned when a user with the same email exists.
var ErrEmailExists = errors.New("email already exists")
